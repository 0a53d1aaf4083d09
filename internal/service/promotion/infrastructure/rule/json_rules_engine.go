// internal/service/promotion/infrastructure/rule/json_rules_engine.go
package rule

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"nexus-promotion/internal/service/promotion/domain"
)

// JSONRuleEngineAdapter 是 domain.ConditionEvaluator 的实现。
// 事实以 JSON 文档的形式保存在快照里，叶子条件的 path 通过 gjson 解析。
// 适配器没有可变状态，可以被并发使用。
type JSONRuleEngineAdapter struct {
	operators map[domain.Operator]operatorFunc
}

// NewJSONRuleEngineAdapter 创建一个新的规则引擎适配器实例。
func NewJSONRuleEngineAdapter() *JSONRuleEngineAdapter {
	return &JSONRuleEngineAdapter{operators: operatorFuncs()}
}

// Evaluate 实现了 domain.ConditionEvaluator 接口。
// all 在第一个不成立的子条件处短路，any 在第一个成立的子条件处短路。
func (a *JSONRuleEngineAdapter) Evaluate(cond *domain.CompiledCondition, facts *domain.FactSnapshot) (bool, error) {
	switch cond.Kind {
	case domain.NodeAll:
		for _, child := range cond.Children {
			ok, err := a.Evaluate(child, facts)
			if !ok {
				return false, err
			}
		}
		return true, nil

	case domain.NodeAny:
		var firstErr error
		for _, child := range cond.Children {
			ok, err := a.Evaluate(child, facts)
			if ok {
				return true, nil
			}
			if firstErr == nil {
				firstErr = err
			}
		}
		return false, firstErr

	case domain.NodeLeaf:
		return a.evaluateLeaf(cond, facts)
	}
	return false, fmt.Errorf("unknown condition node kind %d", cond.Kind)
}

func (a *JSONRuleEngineAdapter) evaluateLeaf(cond *domain.CompiledCondition, facts *domain.FactSnapshot) (bool, error) {
	actual, err := resolve(facts, cond.Fact, cond.Path, GJSONPath(cond.Segments))
	if err != nil {
		return false, err
	}
	op, ok := a.operators[cond.Operator]
	if !ok {
		return false, &domain.FactResolutionError{Fact: cond.Fact, Path: cond.Path, Reason: fmt.Sprintf("operator %q has no implementation", cond.Operator)}
	}
	matched, err := op(actual, cond.Value)
	if err != nil {
		return false, &domain.FactResolutionError{Fact: cond.Fact, Path: cond.Path, Reason: err.Error()}
	}
	return matched, nil
}

// Resolve 在快照中按 path 取值。事实不存在、路径不合法或解析为空都返回 *domain.FactResolutionError。
func Resolve(facts *domain.FactSnapshot, fact, path string) (gjson.Result, error) {
	gpath, err := ToGJSONPath(path)
	if err != nil {
		return gjson.Result{}, &domain.FactResolutionError{Fact: fact, Path: path, Reason: err.Error()}
	}
	return resolve(facts, fact, path, gpath)
}

func resolve(facts *domain.FactSnapshot, fact, path, gpath string) (gjson.Result, error) {
	raw, ok := facts.Raw(fact)
	if !ok {
		return gjson.Result{}, &domain.FactResolutionError{Fact: fact, Path: path, Reason: "unknown fact"}
	}

	var res gjson.Result
	if gpath == "" {
		res = gjson.ParseBytes(raw)
	} else {
		res = gjson.GetBytes(raw, gpath)
	}
	if !res.Exists() || res.Type == gjson.Null {
		return gjson.Result{}, &domain.FactResolutionError{Fact: fact, Path: path, Reason: "path resolved to nothing"}
	}
	return res, nil
}

// ToGJSONPath 把 $.items[0].price 形式的路径转换成 gjson 路径 items.0.price，
// [*] 转换为 gjson 的 # 通配。"" 与 "$" 表示整个事实。
func ToGJSONPath(path string) (string, error) {
	segs, err := domain.ParsePath(path)
	if err != nil {
		return "", err
	}
	return GJSONPath(segs), nil
}

// GJSONPath 拼接 gjson 路径。键中的 . * ? # @ | 等字符会被转义，按字面匹配。
func GJSONPath(segs []domain.PathSegment) string {
	parts := make([]string, 0, len(segs))
	for _, seg := range segs {
		switch seg.Kind {
		case domain.SegmentIndex:
			parts = append(parts, strconv.Itoa(seg.Index))
		case domain.SegmentWildcard:
			parts = append(parts, "#")
		default:
			parts = append(parts, gjson.Escape(seg.Key))
		}
	}
	return strings.Join(parts, ".")
}
