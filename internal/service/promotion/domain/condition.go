// internal/service/promotion/domain/condition.go
package domain

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// MaxConditionDepth 限制条件树的嵌套深度。
const MaxConditionDepth = 32

// Operator 是叶子条件的比较运算符，取值是一个封闭集合。
type Operator string

const (
	OpEqual                Operator = "equal"
	OpNotEqual             Operator = "notEqual"
	OpLessThan             Operator = "lessThan"
	OpLessThanInclusive    Operator = "lessThanInclusive"
	OpGreaterThan          Operator = "greaterThan"
	OpGreaterThanInclusive Operator = "greaterThanInclusive"
	OpIn                   Operator = "in"
	OpNotIn                Operator = "notIn"
	OpContains             Operator = "contains"
	OpDoesNotContain       Operator = "doesNotContain"
)

// OperandKind 描述运算符对比较值的要求。
type OperandKind uint8

const (
	OperandScalar  OperandKind = iota + 1 // 任意 JSON 标量
	OperandNumeric                        // 数值比较，两侧都要能转成 float64
	OperandList                           // 比较值必须是列表 (in / notIn)
	OperandMember                         // 事实值必须是列表 (contains / doesNotContain)
)

var operatorTable = map[Operator]OperandKind{
	OpEqual:                OperandScalar,
	OpNotEqual:             OperandScalar,
	OpLessThan:             OperandNumeric,
	OpLessThanInclusive:    OperandNumeric,
	OpGreaterThan:          OperandNumeric,
	OpGreaterThanInclusive: OperandNumeric,
	OpIn:                   OperandList,
	OpNotIn:                OperandList,
	OpContains:             OperandMember,
	OpDoesNotContain:       OperandMember,
}

// Kind 返回运算符的操作数类型，未知运算符返回 0。
func (o Operator) Kind() OperandKind {
	return operatorTable[o]
}

// Valid 判断运算符是否属于支持的集合。
func (o Operator) Valid() bool {
	_, ok := operatorTable[o]
	return ok
}

// Operators 返回全部支持的运算符，按字典序。
func Operators() []Operator {
	ops := make([]Operator, 0, len(operatorTable))
	for op := range operatorTable {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// Condition 是管理端编写的条件节点：
// 要么是叶子 {fact, path, operator, value}，要么是组合节点 {all: [...]} / {any: [...]}。
type Condition struct {
	All      []*Condition `json:"all,omitempty" yaml:"all,omitempty"`
	Any      []*Condition `json:"any,omitempty" yaml:"any,omitempty"`
	Fact     string       `json:"fact,omitempty" yaml:"fact,omitempty"`
	Path     string       `json:"path,omitempty" yaml:"path,omitempty"`
	Operator Operator     `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value    any          `json:"value,omitempty" yaml:"value,omitempty"`
}

// NodeKind 区分编译后节点的类型。
type NodeKind uint8

const (
	NodeLeaf NodeKind = iota + 1
	NodeAll
	NodeAny
)

// CompiledCondition 是校验通过后的条件树，每个组合节点独占自己的子节点。
// 编译完成后不可修改，可以被多个评估过程并发读取。
type CompiledCondition struct {
	Kind     NodeKind
	Children []*CompiledCondition

	Fact     string
	Path     string
	Segments []PathSegment
	Operator Operator
	Value    any
}

// CompileCondition 校验条件树并生成不可变的编译结果。
// 空的组合节点、环、未知运算符、比较值类型不匹配都会在这里被拒绝，而不是拖到评估阶段。
func CompileCondition(c *Condition) (*CompiledCondition, error) {
	if c == nil {
		return nil, fmt.Errorf("condition is nil")
	}
	return compileNode(c, "$", map[*Condition]bool{}, 0)
}

func compileNode(c *Condition, at string, onPath map[*Condition]bool, depth int) (*CompiledCondition, error) {
	if c == nil {
		return nil, fmt.Errorf("%s: nil condition", at)
	}
	if depth > MaxConditionDepth {
		return nil, fmt.Errorf("%s: nesting deeper than %d", at, MaxConditionDepth)
	}
	if onPath[c] {
		return nil, fmt.Errorf("%s: cyclic condition reference", at)
	}
	onPath[c] = true
	defer delete(onPath, c)

	isLeaf := c.Fact != "" || c.Operator != ""
	switch {
	case c.All != nil && c.Any != nil:
		return nil, fmt.Errorf("%s: node declares both all and any", at)
	case (c.All != nil || c.Any != nil) && isLeaf:
		return nil, fmt.Errorf("%s: node mixes a composite with a leaf", at)
	case c.All != nil:
		return compileComposite(NodeAll, c.All, at+".all", onPath, depth)
	case c.Any != nil:
		return compileComposite(NodeAny, c.Any, at+".any", onPath, depth)
	}
	return compileLeaf(c, at)
}

func compileComposite(kind NodeKind, children []*Condition, at string, onPath map[*Condition]bool, depth int) (*CompiledCondition, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("%s: composite must contain at least one condition", at)
	}
	node := &CompiledCondition{Kind: kind, Children: make([]*CompiledCondition, 0, len(children))}
	for i, child := range children {
		compiled, err := compileNode(child, fmt.Sprintf("%s[%d]", at, i), onPath, depth+1)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, compiled)
	}
	return node, nil
}

func compileLeaf(c *Condition, at string) (*CompiledCondition, error) {
	if strings.TrimSpace(c.Fact) == "" {
		return nil, fmt.Errorf("%s: leaf condition has no fact", at)
	}
	if !c.Operator.Valid() {
		return nil, fmt.Errorf("%s: unknown operator %q", at, c.Operator)
	}
	segments, err := ParsePath(c.Path)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", at, err)
	}

	value := NormalizeValue(c.Value)
	switch c.Operator.Kind() {
	case OperandNumeric:
		// 与事实一侧一样，数字字符串按数值比较
		if s, ok := value.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
				value = f
			}
		}
		if _, ok := value.(float64); !ok {
			return nil, fmt.Errorf("%s: operator %s requires a numeric value, got %T", at, c.Operator, c.Value)
		}
	case OperandList:
		if _, ok := value.([]any); !ok {
			return nil, fmt.Errorf("%s: operator %s requires a list value, got %T", at, c.Operator, c.Value)
		}
	}

	return &CompiledCondition{
		Kind:     NodeLeaf,
		Fact:     c.Fact,
		Path:     c.Path,
		Segments: segments,
		Operator: c.Operator,
		Value:    value,
	}, nil
}

// NormalizeValue 把 JSON / YAML 解码得到的值统一成 float64、string、bool、nil、[]any、map[string]any。
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case []float64:
		out := make([]any, len(val))
		for i, f := range val {
			out[i] = f
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = NormalizeValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = NormalizeValue(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = NormalizeValue(item)
		}
		return out
	default:
		return v
	}
}
