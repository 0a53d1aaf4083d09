package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testPromotion(id string, stack StackAbility, actions ...Action) Promotion {
	if len(actions) == 0 {
		actions = []Action{{ActionKey: ActionNoop}}
	}
	return Promotion{
		ID:           id,
		ShopID:       "shop",
		Label:        id,
		Enabled:      true,
		Triggers:     []Trigger{{TriggerKey: "offers"}},
		OfferRule:    OfferRule{Name: id, Conditions: &Condition{All: []*Condition{leaf("cart", "$.merchandiseTotal", OpGreaterThanInclusive, 0)}}},
		Actions:      actions,
		StartDate:    testNow.Add(-24 * time.Hour),
		StackAbility: stack,
	}
}

func compileAll(promotions ...Promotion) []*CompiledPromotion {
	out := make([]*CompiledPromotion, 0, len(promotions))
	for _, p := range promotions {
		out = append(out, CompilePromotion(p, DefaultActionSet()))
	}
	return out
}

func ids(list []*CompiledPromotion) []string {
	out := make([]string, 0, len(list))
	for _, cp := range list {
		out = append(out, cp.ID())
	}
	return out
}

func TestMatchTriggers(t *testing.T) {
	t.Parallel()

	active := testPromotion("b-active", StackNone)
	sorted := testPromotion("a-active", StackNone)

	future := testPromotion("future", StackNone)
	future.StartDate = testNow.Add(time.Minute)

	startsNow := testPromotion("starts-now", StackNone)
	startsNow.StartDate = testNow

	ended := testPromotion("ended", StackNone)
	end := testNow
	ended.EndDate = &end

	endsLater := testPromotion("ends-later", StackNone)
	later := testNow.Add(time.Second)
	endsLater.EndDate = &later

	disabled := testPromotion("disabled", StackNone)
	disabled.Enabled = false

	otherTrigger := testPromotion("other-trigger", StackNone)
	otherTrigger.Triggers = []Trigger{{TriggerKey: "checkout"}}

	got := MatchTriggers("offers", compileAll(active, future, startsNow, ended, endsLater, disabled, otherTrigger, sorted), testNow)
	assert.Equal(t, []string{"a-active", "b-active", "ends-later", "starts-now"}, ids(got))

	assert.Empty(t, MatchTriggers("unknown", compileAll(active), testNow))
}
