package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-promotion/internal/service/promotion/domain"
)

func snapshot(t *testing.T) *domain.FactSnapshot {
	t.Helper()
	facts, err := domain.NewFactSnapshot(map[string]any{
		"cart": map[string]any{
			"merchandiseTotal": 200,
			"currencyCode":     "USD",
			"tags":             []string{"vip", "new"},
			"note":             nil,
			"gift-card":        true,
			"a.b":              "dotted",
			"odd#key|x":        7,
			"w*":               "star",
			"items": []map[string]any{
				{"productId": "p1", "price": "19.5"},
				{"productId": "p2", "price": 5},
			},
		},
	})
	require.NoError(t, err)
	return facts
}

func compileLeaf(t *testing.T, fact, path string, op domain.Operator, value any) *domain.CompiledCondition {
	t.Helper()
	c, err := domain.CompileCondition(&domain.Condition{Fact: fact, Path: path, Operator: op, Value: value})
	require.NoError(t, err)
	return c
}

func TestToGJSONPath(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":                   "",
		"$":                  "",
		"$.merchandiseTotal": "merchandiseTotal",
		"$.items[0].price":   "items.0.price",
		"$.items[*].price":   "items.#.price",
		"$[1]":               "1",
		"$.a.b[10][2]":       "a.b.10.2",
		"$['gift-card']":     "gift-card",
		`$["a.b"]`:           `a\.b`,
		"$['w*?']":           `w\*\?`,
		"$['x#y'].z":         `x\#y.z`,
		"$['p@q|r']":         `p\@q\|r`,
	}
	for in, want := range tests {
		got, err := ToGJSONPath(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestToGJSONPath_Malformed(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"items", "$.", "$['open", "$[x]", "$[-1]", "$.a[0"} {
		_, err := ToGJSONPath(in)
		assert.Error(t, err, in)
	}
}

func TestResolve_MalformedPathIsResolutionError(t *testing.T) {
	t.Parallel()

	_, err := Resolve(snapshot(t), "cart", "$['open")
	assert.ErrorIs(t, err, domain.ErrFactResolution)
}

func TestJSONRuleEngineAdapter_Operators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		path  string
		op    domain.Operator
		value any
		want  bool
	}{
		{"equal string", "$.currencyCode", domain.OpEqual, "USD", true},
		{"equal number", "$.merchandiseTotal", domain.OpEqual, 200, true},
		{"equal is strict across types", "$.merchandiseTotal", domain.OpEqual, "200", false},
		{"notEqual", "$.currencyCode", domain.OpNotEqual, "USD", false},
		{"greaterThanInclusive at boundary", "$.merchandiseTotal", domain.OpGreaterThanInclusive, 200, true},
		{"greaterThan at boundary", "$.merchandiseTotal", domain.OpGreaterThan, 200, false},
		{"lessThan", "$.merchandiseTotal", domain.OpLessThan, 200.01, true},
		{"lessThanInclusive", "$.merchandiseTotal", domain.OpLessThanInclusive, 199.99, false},
		{"numeric string coerced", "$.items[0].price", domain.OpGreaterThan, 19, true},
		{"in", "$.currencyCode", domain.OpIn, []string{"EUR", "USD"}, true},
		{"notIn", "$.currencyCode", domain.OpNotIn, []string{"EUR", "USD"}, false},
		{"contains", "$.tags", domain.OpContains, "vip", true},
		{"doesNotContain", "$.tags", domain.OpDoesNotContain, "vip", false},
		{"contains over wildcard", "$.items[*].productId", domain.OpContains, "p2", true},
		{"whole document", "$", domain.OpNotEqual, nil, true},
		{"bracket quoted key", "$['gift-card']", domain.OpEqual, true, true},
		{"dot inside quoted key", `$["a.b"]`, domain.OpEqual, "dotted", true},
		{"gjson metacharacters are literal", "$['odd#key|x']", domain.OpEqual, 7, true},
		{"star inside quoted key", "$['w*']", domain.OpEqual, "star", true},
	}

	adapter := NewJSONRuleEngineAdapter()
	facts := snapshot(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := adapter.Evaluate(compileLeaf(t, "cart", tt.path, tt.op, tt.value), facts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJSONRuleEngineAdapter_ResolutionErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		fact  string
		path  string
		op    domain.Operator
		value any
	}{
		{"unknown fact", "foo", "$.bar", domain.OpEqual, true},
		{"missing path", "cart", "$.nothing.here", domain.OpEqual, 1},
		{"null value", "cart", "$.note", domain.OpEqual, "x"},
		{"numeric operator on text", "cart", "$.currencyCode", domain.OpGreaterThan, 1},
		{"contains on scalar", "cart", "$.currencyCode", domain.OpContains, "U"},
	}

	adapter := NewJSONRuleEngineAdapter()
	facts := snapshot(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := adapter.Evaluate(compileLeaf(t, tt.fact, tt.path, tt.op, tt.value), facts)
			assert.False(t, got)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrFactResolution)
		})
	}
}

func TestJSONRuleEngineAdapter_Composites(t *testing.T) {
	t.Parallel()

	adapter := NewJSONRuleEngineAdapter()
	facts := snapshot(t)

	unknown := &domain.Condition{Fact: "foo", Path: "$.bar", Operator: domain.OpEqual, Value: 1}
	passing := &domain.Condition{Fact: "cart", Path: "$.currencyCode", Operator: domain.OpEqual, Value: "USD"}
	failing := &domain.Condition{Fact: "cart", Path: "$.currencyCode", Operator: domain.OpEqual, Value: "EUR"}

	compile := func(c *domain.Condition) *domain.CompiledCondition {
		compiled, err := domain.CompileCondition(c)
		require.NoError(t, err)
		return compiled
	}

	ok, err := adapter.Evaluate(compile(&domain.Condition{Any: []*domain.Condition{unknown, passing}}), facts)
	assert.True(t, ok)
	assert.NoError(t, err, "a passing sibling makes any true")

	ok, err = adapter.Evaluate(compile(&domain.Condition{Any: []*domain.Condition{unknown, failing}}), facts)
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrFactResolution)

	ok, err = adapter.Evaluate(compile(&domain.Condition{All: []*domain.Condition{failing, unknown}}), facts)
	assert.False(t, ok)
	assert.NoError(t, err, "all stops at the first false child")

	ok, err = adapter.Evaluate(compile(&domain.Condition{All: []*domain.Condition{passing, {Any: []*domain.Condition{failing, passing}}}}), facts)
	assert.True(t, ok)
	assert.NoError(t, err)
}

func TestOperatorTableCoversEveryOperator(t *testing.T) {
	t.Parallel()

	table := operatorFuncs()
	for _, op := range domain.Operators() {
		assert.Contains(t, table, op)
	}
}
