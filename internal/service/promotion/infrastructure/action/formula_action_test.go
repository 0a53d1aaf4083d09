package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-promotion/internal/service/promotion/domain"
)

func TestFormulaHandler_Amount(t *testing.T) {
	t.Parallel()

	h, err := NewFormulaHandler()
	require.NoError(t, err)

	cart := &domain.Cart{
		MerchandiseTotal: 250,
		ShippingTotal:    12,
		ItemCount:        3,
		Items:            []domain.CartItem{{ProductID: "p1", Quantity: 3, Price: 250.0 / 3}},
	}

	tests := []struct {
		name string
		expr string
		want float64
	}{
		{"percentage of total", "cart.merchandiseTotal * 0.1", 25},
		{"tiered", "cart.merchandiseTotal >= 200.0 ? 30.0 : 10.0", 30},
		{"integer literal", "7", 7},
		{"shipping refund", "cart.shippingTotal + 3.0", 15},
		{"list access", "size(cart.items) == 1 ? 5.0 : 0.0", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			program, err := h.Compile(map[string]any{"expression": tt.expr})
			require.NoError(t, err)
			got, err := program.Amount(cart)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestFormulaHandler_CompileErrors(t *testing.T) {
	t.Parallel()

	h, err := NewFormulaHandler()
	require.NoError(t, err)

	tests := []struct {
		name   string
		params map[string]any
	}{
		{"missing expression", map[string]any{}},
		{"expression not a string", map[string]any{"expression": 42}},
		{"syntax error", map[string]any{"expression": "cart.merchandiseTotal *"}},
		{"boolean result", map[string]any{"expression": "cart.merchandiseTotal > 1.0"}},
		{"string result", map[string]any{"expression": "'ten'"}},
		{"unknown variable", map[string]any{"expression": "order.total * 0.1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := h.Compile(tt.params)
			assert.Error(t, err)
		})
	}
}

func TestFormulaHandler_RuntimeError(t *testing.T) {
	t.Parallel()

	h, err := NewFormulaHandler()
	require.NoError(t, err)

	program, err := h.Compile(map[string]any{"expression": "cart.missingField * 2.0"})
	require.NoError(t, err)
	_, err = program.Amount(&domain.Cart{MerchandiseTotal: 10})
	assert.Error(t, err)
}

func TestNewActionSet(t *testing.T) {
	t.Parallel()

	set, err := NewActionSet()
	require.NoError(t, err)
	assert.Contains(t, set.Keys(), domain.ActionFormulaDiscount)

	program, err := set.Compile("formula", domain.Action{
		ActionKey:        domain.ActionFormulaDiscount,
		ActionParameters: map[string]any{"expression": "cart.merchandiseTotal * 0.05"},
	})
	require.NoError(t, err)
	amount, err := program.Amount(&domain.Cart{MerchandiseTotal: 100})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, amount, 1e-9)
}
