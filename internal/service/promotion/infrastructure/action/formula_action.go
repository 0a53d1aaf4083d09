// internal/service/promotion/infrastructure/action/formula_action.go
package action

import (
	"encoding/json"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"nexus-promotion/internal/service/promotion/domain"
)

// FormulaHandler 实现 formulaDiscount 动作：actionParameters.expression 是一个 CEL 表达式，
// 变量 cart 是购物车文档 (与条件中 cart 事实的 JSON 结构相同)，表达式的值就是优惠金额。
//
//	expression: "cart.merchandiseTotal > 500.0 ? 50.0 : cart.merchandiseTotal * 0.05"
//
// 购物车中的数字都是 double，整数字面量需要写成 50.0 这样的形式。
type FormulaHandler struct {
	env *cel.Env
}

// NewFormulaHandler 创建 CEL 环境，整个进程共享一个即可。
func NewFormulaHandler() (*FormulaHandler, error) {
	env, err := cel.NewEnv(
		cel.Variable("cart", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel env")
	}
	return &FormulaHandler{env: env}, nil
}

func (h *FormulaHandler) Key() domain.ActionKey { return domain.ActionFormulaDiscount }

// Compile 在加载促销时完成 Parse / Check / Program，评估时只执行。
func (h *FormulaHandler) Compile(params map[string]any) (domain.ActionProgram, error) {
	expr, ok, err := domain.StringParam(params, "expression")
	if err != nil {
		return nil, err
	}
	if !ok || expr == "" {
		return nil, fmt.Errorf("expression is required")
	}

	ast, iss := h.env.Parse(expr)
	if iss.Err() != nil {
		return nil, iss.Err()
	}
	checked, iss := h.env.Check(ast)
	if iss.Err() != nil {
		return nil, iss.Err()
	}
	switch out := checked.OutputType(); {
	case out.IsExactType(cel.DoubleType), out.IsExactType(cel.IntType), out.IsExactType(cel.DynType):
	default:
		return nil, fmt.Errorf("expression must evaluate to a number, got %s", out)
	}

	program, err := h.env.Program(checked)
	if err != nil {
		return nil, err
	}
	return &formulaProgram{expr: expr, program: program}, nil
}

type formulaProgram struct {
	expr    string
	program cel.Program
}

func (p *formulaProgram) Amount(cart *domain.Cart) (float64, error) {
	vars, err := cartVariables(cart)
	if err != nil {
		return 0, err
	}
	out, _, err := p.program.Eval(map[string]any{"cart": vars})
	if err != nil {
		return 0, errors.Wrapf(err, "evaluate %q", p.expr)
	}
	switch v := out.Value().(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	}
	return 0, fmt.Errorf("expression %q returned %T, want a number", p.expr, out.Value())
}

// cartVariables 把购物车转换成 CEL 可以访问的 map，字段名与 JSON 一致。
func cartVariables(cart *domain.Cart) (map[string]any, error) {
	raw, err := json.Marshal(cart)
	if err != nil {
		return nil, err
	}
	vars := map[string]any{}
	if err := json.Unmarshal(raw, &vars); err != nil {
		return nil, err
	}
	return vars, nil
}
