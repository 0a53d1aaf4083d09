// internal/service/promotion/domain/errors.go
package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// 调用方需要处理的硬错误。
var (
	ErrEmptyTrigger      = errors.New("trigger key is empty")
	ErrMissingRootFact   = errors.New("fact snapshot is missing a required root fact")
	ErrPromotionNotFound = errors.New("promotion not found")
	ErrShopNotFound      = errors.New("shop not found")
	ErrInvalidPromotion  = errors.New("invalid promotion")
	ErrUnknownActionKey  = errors.New("unknown action key")
)

// 只出现在诊断信息里的错误类别，每个类型化错误都能通过 errors.Is 匹配到对应的哨兵值。
var (
	ErrFactResolution    = errors.New("fact resolution failed")
	ErrMalformedRule     = errors.New("malformed offer rule")
	ErrUnsupportedAction = errors.New("unsupported action")
	ErrStackingConflict  = errors.New("stacking conflict")
)

// DiagnosticCode 是诊断信息的机器可读编码。
type DiagnosticCode string

const (
	CodeFactResolution    DiagnosticCode = "FACT_RESOLUTION"
	CodeMalformedRule     DiagnosticCode = "MALFORMED_RULE"
	CodeUnsupportedAction DiagnosticCode = "UNSUPPORTED_ACTION"
	CodeStackingConflict  DiagnosticCode = "STACKING_CONFLICT"
)

// FactResolutionError 表示事实不存在、路径解析为空或值类型不符合运算符要求。
// 它只让所在的条件为 false，不会中断本轮评估。
type FactResolutionError struct {
	Fact   string
	Path   string
	Reason string
}

func (e *FactResolutionError) Error() string {
	return fmt.Sprintf("fact %q path %q: %s", e.Fact, e.Path, e.Reason)
}

func (e *FactResolutionError) Is(target error) bool { return target == ErrFactResolution }

// MalformedRuleError 表示 offerRule 本身不合法，该促销被排除。
type MalformedRuleError struct {
	PromotionID string
	Reason      string
}

func (e *MalformedRuleError) Error() string {
	return fmt.Sprintf("promotion %s: malformed offer rule: %s", e.PromotionID, e.Reason)
}

func (e *MalformedRuleError) Is(target error) bool { return target == ErrMalformedRule }

// UnsupportedActionError 表示某个动作无法执行（未知 actionKey 或参数非法），只跳过这一个动作。
type UnsupportedActionError struct {
	PromotionID string
	ActionKey   ActionKey
	Reason      string
}

func (e *UnsupportedActionError) Error() string {
	return fmt.Sprintf("promotion %s: action %q: %s", e.PromotionID, e.ActionKey, e.Reason)
}

func (e *UnsupportedActionError) Is(target error) bool { return target == ErrUnsupportedAction }

// StackingConflictError 记录互斥促销价值相同、只能按最小 ID 决出胜者的情况，从不返回给调用方。
type StackingConflictError struct {
	WinnerID    string
	ContenderID []string
	Value       float64
}

func (e *StackingConflictError) Error() string {
	return fmt.Sprintf("exclusive promotions %s tie at %.2f, %s chosen by lowest id",
		strings.Join(e.ContenderID, ","), e.Value, e.WinnerID)
}

func (e *StackingConflictError) Is(target error) bool { return target == ErrStackingConflict }

// ValidationError 汇总一个促销文档的所有结构问题。
type ValidationError struct {
	PromotionID string
	Problems    []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("promotion %q: %s", e.PromotionID, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidPromotion }

// Diagnostic 是附加在评估结果上的单条诊断。
type Diagnostic struct {
	PromotionID string         `json:"promotionId,omitempty"`
	Code        DiagnosticCode `json:"code"`
	Message     string         `json:"message"`
}

// NewDiagnostic 根据错误类型选择诊断编码。
func NewDiagnostic(promotionID string, err error) Diagnostic {
	code := CodeMalformedRule
	switch {
	case errors.Is(err, ErrFactResolution):
		code = CodeFactResolution
	case errors.Is(err, ErrUnsupportedAction):
		code = CodeUnsupportedAction
	case errors.Is(err, ErrStackingConflict):
		code = CodeStackingConflict
	}
	return Diagnostic{PromotionID: promotionID, Code: code, Message: err.Error()}
}
