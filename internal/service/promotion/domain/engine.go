// internal/service/promotion/domain/engine.go
package domain

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// ConditionEvaluator 是条件评估的领域接口，由基础设施层的规则引擎适配器实现。
// 返回的 error 只用于诊断，false + error 表示条件因事实解析失败而不成立。
type ConditionEvaluator interface {
	Evaluate(cond *CompiledCondition, facts *FactSnapshot) (bool, error)
}

// Qualified 是条件成立的促销和它发出的事件。
type Qualified struct {
	Promotion *CompiledPromotion
	Event     TriggerEvent
}

// AdjustmentRecord 是一次动作执行的结果，调用方据此修改购物车并持久化。
type AdjustmentRecord struct {
	PromotionID     string    `json:"promotionId"`
	ActionKey       ActionKey `json:"actionKey"`
	Amount          float64   `json:"amount"`
	ReportAsTaxable bool      `json:"reportAsTaxable"`
}

// AppliedPromotion 汇总一个最终生效的促销。
type AppliedPromotion struct {
	PromotionID     string       `json:"promotionId"`
	Label           string       `json:"label"`
	StackAbility    StackAbility `json:"stackAbility"`
	Actions         []ActionKey  `json:"actions"`
	Amount          float64      `json:"amount"`
	ReportAsTaxable bool         `json:"reportAsTaxable"`
}

// EvaluationInput 是一轮评估的全部输入，调用前由协作方准备好。
type EvaluationInput struct {
	TriggerKey string
	Promotions []*CompiledPromotion
	Cart       *Cart
	// Facts 为空时从 Cart 构建。
	Facts *FactSnapshot
	Now   time.Time
}

// EvaluationResult 是一轮评估的输出。
type EvaluationResult struct {
	TriggerKey string   `json:"triggerKey"`
	Candidates []string `json:"candidates"`
	// Events 是所有条件成立的促销发出的事件，不论最终是否生效。
	Events        []TriggerEvent     `json:"events"`
	Applied       []AppliedPromotion `json:"applied"`
	Adjustments   []AdjustmentRecord `json:"adjustments"`
	Diagnostics   []Diagnostic       `json:"diagnostics"`
	TotalDiscount float64            `json:"totalDiscount"`
}

// Engine 串起 触发匹配 -> 条件评估 -> 叠加裁决 -> 动作执行。
// Engine 不持有任何评估过程中的可变状态，可以被多个 goroutine 同时使用。
type Engine struct {
	evaluator     ConditionEvaluator
	requiredFacts []string
}

// NewEngine 创建引擎。requiredFacts 中的事实缺失时，Evaluate 直接返回 ErrMissingRootFact。
func NewEngine(evaluator ConditionEvaluator, requiredFacts ...string) *Engine {
	if len(requiredFacts) == 0 {
		requiredFacts = []string{FactCart}
	}
	return &Engine{evaluator: evaluator, requiredFacts: requiredFacts}
}

// Run 对候选促销逐个评估条件。编译失败的促销不评估，只生成 MalformedRuleError 诊断；
// 某个条件的事实解析失败只影响它自己所在的促销。
func (e *Engine) Run(candidates []*CompiledPromotion, facts *FactSnapshot) ([]Qualified, []Diagnostic) {
	var (
		qualified []Qualified
		diags     []Diagnostic
	)
	for _, cp := range candidates {
		if cp.Err != nil {
			diags = append(diags, NewDiagnostic(cp.ID(), cp.Err))
			continue
		}
		if cp.Condition == nil {
			diags = append(diags, NewDiagnostic(cp.ID(), &MalformedRuleError{PromotionID: cp.ID(), Reason: "offer rule was never compiled"}))
			continue
		}
		ok, err := e.evaluator.Evaluate(cp.Condition, facts)
		if err != nil {
			diags = append(diags, NewDiagnostic(cp.ID(), err))
		}
		if !ok {
			continue
		}
		qualified = append(qualified, Qualified{Promotion: cp, Event: newTriggerEvent(&cp.Promotion)})
	}
	return qualified, diags
}

// execution 是单个促销所有动作的执行结果。
type execution struct {
	records []AdjustmentRecord
	keys    []ActionKey
	amount  float64
}

// budget 是购物车上尚可抵扣的额度。商品类动作共用 merchandise，freeShipping 单独占用 shipping。
type budget struct {
	merchandise float64
	shipping    float64
}

func newBudget(cart *Cart) *budget {
	return &budget{merchandise: math.Max(cart.MerchandiseTotal, 0), shipping: math.Max(cart.ShippingTotal, 0)}
}

// take 从剩余额度中扣除 amount，返回实际可抵扣的金额。
func (b *budget) take(key ActionKey, amount float64) float64 {
	left := &b.merchandise
	if key == ActionFreeShipping {
		left = &b.shipping
	}
	if amount > *left {
		amount = *left
	}
	amount = RoundMoney(amount)
	*left = RoundMoney(*left - amount)
	return amount
}

// limit 按 applied 的顺序截断每条记录，并重新计算促销合计。
func (b *budget) limit(exec execution) execution {
	out := execution{keys: exec.keys, records: make([]AdjustmentRecord, 0, len(exec.records))}
	for _, r := range exec.records {
		r.Amount = b.take(r.ActionKey, r.Amount)
		out.records = append(out.records, r)
		out.amount += r.Amount
	}
	out.amount = RoundMoney(out.amount)
	return out
}

// executeActions 按声明顺序执行动作。无法执行的动作被跳过并生成诊断；
// 一个动作都没执行成功时 ok 为 false。
func executeActions(cp *CompiledPromotion, cart *Cart) (execution, []Diagnostic, bool) {
	var (
		exec  execution
		diags []Diagnostic
		ran   int
		left  = newBudget(cart)
	)
	for _, ca := range cp.Actions {
		if ca.Err != nil {
			diags = append(diags, NewDiagnostic(cp.ID(), ca.Err))
			continue
		}
		raw, err := ca.Program.Amount(cart)
		if err != nil {
			diags = append(diags, NewDiagnostic(cp.ID(), &UnsupportedActionError{
				PromotionID: cp.ID(),
				ActionKey:   ca.Action.ActionKey,
				Reason:      err.Error(),
			}))
			continue
		}
		amount := left.take(ca.Action.ActionKey, clampAmount(ca.Action.ActionKey, raw, cart))
		exec.records = append(exec.records, AdjustmentRecord{
			PromotionID:     cp.ID(),
			ActionKey:       ca.Action.ActionKey,
			Amount:          amount,
			ReportAsTaxable: cp.Promotion.ReportAsTaxable,
		})
		exec.keys = append(exec.keys, ca.Action.ActionKey)
		exec.amount += amount
		ran++
	}
	exec.amount = RoundMoney(exec.amount)
	return exec, diags, ran > 0
}

// Apply 对已裁决的促销执行动作，返回调整记录。
// 合计折扣不超过商品金额，免运费不超过运费；靠后的促销只能用剩余额度。
// 某个动作失败只跳过该动作；全部失败的促销不出现在 applied 中。
func Apply(applied []*CompiledPromotion, cart *Cart) ([]AdjustmentRecord, []AppliedPromotion, []Diagnostic) {
	var (
		records []AdjustmentRecord
		summary []AppliedPromotion
		diags   []Diagnostic
		left    = newBudget(cart)
	)
	for _, cp := range applied {
		exec, d, ok := executeActions(cp, cart)
		diags = append(diags, d...)
		if !ok {
			continue
		}
		exec = left.limit(exec)
		records = append(records, exec.records...)
		summary = append(summary, summarize(cp, exec))
	}
	return records, summary, diags
}

func summarize(cp *CompiledPromotion, exec execution) AppliedPromotion {
	return AppliedPromotion{
		PromotionID:     cp.ID(),
		Label:           cp.Promotion.Label,
		StackAbility:    cp.Promotion.StackAbility,
		Actions:         exec.keys,
		Amount:          exec.amount,
		ReportAsTaxable: cp.Promotion.ReportAsTaxable,
	}
}

// Evaluate 执行完整的一轮评估。
// 只有引擎输入本身不合法（触发器为空、缺少必需的根事实）才返回错误，
// 单个促销或条件的问题都以诊断形式出现在结果里。
func (e *Engine) Evaluate(in EvaluationInput) (*EvaluationResult, error) {
	if in.TriggerKey == "" {
		return nil, ErrEmptyTrigger
	}
	cart := in.Cart
	if cart == nil {
		cart = &Cart{}
	}
	facts := in.Facts
	if facts == nil {
		var err error
		if facts, err = NewCartSnapshot(in.Cart, nil); err != nil {
			return nil, errors.Wrap(err, "build fact snapshot")
		}
	}
	for _, name := range e.requiredFacts {
		if !facts.Has(name) {
			return nil, errors.Wrapf(ErrMissingRootFact, "fact %q", name)
		}
	}

	result := &EvaluationResult{
		TriggerKey:  in.TriggerKey,
		Candidates:  []string{},
		Events:      []TriggerEvent{},
		Applied:     []AppliedPromotion{},
		Adjustments: []AdjustmentRecord{},
		Diagnostics: []Diagnostic{},
	}

	candidates := MatchTriggers(in.TriggerKey, in.Promotions, in.Now)
	for _, cp := range candidates {
		result.Candidates = append(result.Candidates, cp.ID())
	}

	qualified, diags := e.Run(candidates, facts)
	result.Diagnostics = append(result.Diagnostics, diags...)

	// 叠加裁决之前先算出每个促销的预估金额，执行结果直接复用，动作只执行一次。
	executions := make(map[string]execution, len(qualified))
	passed := make([]StackingCandidate, 0, len(qualified))
	for _, q := range qualified {
		result.Events = append(result.Events, q.Event)
		exec, d, ok := executeActions(q.Promotion, cart)
		result.Diagnostics = append(result.Diagnostics, d...)
		if !ok {
			continue
		}
		executions[q.Promotion.ID()] = exec
		passed = append(passed, StackingCandidate{Promotion: q.Promotion, Value: exec.amount})
	}

	applied, diags := ResolveStacking(passed)
	result.Diagnostics = append(result.Diagnostics, diags...)

	var total float64
	left := newBudget(cart)
	for _, c := range applied {
		exec := left.limit(executions[c.Promotion.ID()])
		result.Adjustments = append(result.Adjustments, exec.records...)
		result.Applied = append(result.Applied, summarize(c.Promotion, exec))
		total += exec.amount
	}
	result.TotalDiscount = RoundMoney(total)
	return result, nil
}
