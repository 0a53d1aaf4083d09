// internal/service/promotion/domain/action.go
package domain

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// ActionKey 标识一种动作实现，取值是封闭集合，未知的 key 只会生成 UnsupportedActionError。
type ActionKey string

const (
	ActionNoop               ActionKey = "noop"
	ActionPercentageDiscount ActionKey = "percentageDiscount"
	ActionFixedDiscount      ActionKey = "fixedDiscount"
	ActionFreeShipping       ActionKey = "freeShipping"
	ActionFormulaDiscount    ActionKey = "formulaDiscount"
)

var knownActionKeys = map[ActionKey]struct{}{
	ActionNoop:               {},
	ActionPercentageDiscount: {},
	ActionFixedDiscount:      {},
	ActionFreeShipping:       {},
	ActionFormulaDiscount:    {},
}

// Known 判断 key 是否属于支持的动作集合。
func (k ActionKey) Known() bool {
	_, ok := knownActionKeys[k]
	return ok
}

// ActionProgram 是编译好的动作，根据购物车计算优惠金额。实现必须是无状态、可并发调用的。
type ActionProgram interface {
	Amount(cart *Cart) (float64, error)
}

// ActionHandler 负责校验 actionParameters 并生成 ActionProgram。
type ActionHandler interface {
	Key() ActionKey
	Compile(params map[string]any) (ActionProgram, error)
}

// ActionSet 是 actionKey -> 实现 的分发表，构建后只读。
type ActionSet struct {
	handlers map[ActionKey]ActionHandler
}

// NewActionSet 用给定的实现构建分发表，拒绝未知或重复的 key。
func NewActionSet(handlers ...ActionHandler) (*ActionSet, error) {
	s := &ActionSet{handlers: make(map[ActionKey]ActionHandler, len(handlers))}
	for _, h := range handlers {
		if !h.Key().Known() {
			return nil, errors.Wrapf(ErrUnknownActionKey, "register %q", h.Key())
		}
		if _, dup := s.handlers[h.Key()]; dup {
			return nil, errors.Errorf("action %q registered twice", h.Key())
		}
		s.handlers[h.Key()] = h
	}
	return s, nil
}

// BuiltinActionHandlers 返回不依赖外部库的内置动作。
func BuiltinActionHandlers() []ActionHandler {
	return []ActionHandler{
		noopHandler{},
		percentageDiscountHandler{},
		fixedDiscountHandler{},
		freeShippingHandler{},
	}
}

// DefaultActionSet 只包含内置动作。
func DefaultActionSet() *ActionSet {
	s, err := NewActionSet(BuiltinActionHandlers()...)
	if err != nil {
		panic(err)
	}
	return s
}

// Keys 返回已注册的 key，按字典序。
func (s *ActionSet) Keys() []ActionKey {
	keys := make([]ActionKey, 0, len(s.handlers))
	for k := range s.handlers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Compile 编译单个动作，失败时返回 *UnsupportedActionError。
func (s *ActionSet) Compile(promotionID string, action Action) (ActionProgram, error) {
	h, ok := s.handlers[action.ActionKey]
	if !ok {
		reason := "unknown action key"
		if action.ActionKey.Known() {
			reason = "action is not enabled on this engine"
		}
		return nil, &UnsupportedActionError{PromotionID: promotionID, ActionKey: action.ActionKey, Reason: reason}
	}
	program, err := h.Compile(action.ActionParameters)
	if err != nil {
		return nil, &UnsupportedActionError{
			PromotionID: promotionID,
			ActionKey:   action.ActionKey,
			Reason:      "invalid parameters: " + err.Error(),
		}
	}
	return program, nil
}

// clampAmount 把金额限制在购物车可抵扣的范围内，并四舍五入到分。
func clampAmount(key ActionKey, amount float64, cart *Cart) float64 {
	limit := cart.MerchandiseTotal
	if key == ActionFreeShipping {
		limit = cart.ShippingTotal
	}
	if amount < 0 {
		amount = 0
	}
	if amount > limit {
		amount = limit
	}
	return RoundMoney(amount)
}

// --- 内置动作 ---

type noopHandler struct{}

func (noopHandler) Key() ActionKey { return ActionNoop }

func (noopHandler) Compile(map[string]any) (ActionProgram, error) { return fixedAmount(0), nil }

type fixedAmount float64

func (f fixedAmount) Amount(*Cart) (float64, error) { return float64(f), nil }

type percentageDiscountHandler struct{}

func (percentageDiscountHandler) Key() ActionKey { return ActionPercentageDiscount }

func (percentageDiscountHandler) Compile(params map[string]any) (ActionProgram, error) {
	pct, ok, err := NumberParam(params, "percentage")
	if err != nil {
		return nil, err
	}
	if !ok || pct <= 0 || pct > 100 {
		return nil, fmt.Errorf("percentage must be in (0, 100]")
	}
	ceiling, hasCeiling, err := NumberParam(params, "ceiling")
	if err != nil {
		return nil, err
	}
	if hasCeiling && ceiling < 0 {
		return nil, fmt.Errorf("ceiling must not be negative")
	}
	return percentageProgram{percentage: pct, ceiling: ceiling, hasCeiling: hasCeiling}, nil
}

type percentageProgram struct {
	percentage float64
	ceiling    float64
	hasCeiling bool
}

func (p percentageProgram) Amount(cart *Cart) (float64, error) {
	amount := cart.MerchandiseTotal * p.percentage / 100
	if p.hasCeiling && amount > p.ceiling {
		amount = p.ceiling
	}
	return amount, nil
}

type fixedDiscountHandler struct{}

func (fixedDiscountHandler) Key() ActionKey { return ActionFixedDiscount }

func (fixedDiscountHandler) Compile(params map[string]any) (ActionProgram, error) {
	amount, ok, err := NumberParam(params, "amount")
	if err != nil {
		return nil, err
	}
	if !ok || amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return fixedAmount(amount), nil
}

type freeShippingHandler struct{}

func (freeShippingHandler) Key() ActionKey { return ActionFreeShipping }

func (freeShippingHandler) Compile(map[string]any) (ActionProgram, error) {
	return freeShippingProgram{}, nil
}

type freeShippingProgram struct{}

func (freeShippingProgram) Amount(cart *Cart) (float64, error) { return cart.ShippingTotal, nil }

// NumberParam 读取数值参数，第二个返回值表示参数是否存在。
func NumberParam(params map[string]any, name string) (float64, bool, error) {
	raw, ok := params[name]
	if !ok || raw == nil {
		return 0, false, nil
	}
	f, ok := NormalizeValue(raw).(float64)
	if !ok {
		return 0, true, fmt.Errorf("%s must be a number, got %T", name, raw)
	}
	return f, true, nil
}

// StringParam 读取字符串参数。
func StringParam(params map[string]any, name string) (string, bool, error) {
	raw, ok := params[name]
	if !ok || raw == nil {
		return "", false, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", true, fmt.Errorf("%s must be a string, got %T", name, raw)
	}
	return s, true, nil
}
