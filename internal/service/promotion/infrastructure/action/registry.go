package action

import (
	"nexus-promotion/internal/service/promotion/domain"
)

// NewActionSet 返回服务使用的完整动作表：内置动作加上 CEL 公式动作。
func NewActionSet() (*domain.ActionSet, error) {
	formula, err := NewFormulaHandler()
	if err != nil {
		return nil, err
	}
	handlers := append(domain.BuiltinActionHandlers(), formula)
	return domain.NewActionSet(handlers...)
}
