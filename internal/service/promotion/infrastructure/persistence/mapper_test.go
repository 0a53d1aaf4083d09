package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-promotion/internal/service/promotion/domain"
)

func TestPromotionMapping(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)
	p := &domain.Promotion{
		ID:       "orderPromotion",
		ShopID:   "shop-1",
		Label:    "5 percent off",
		Enabled:  true,
		Triggers: []domain.Trigger{{TriggerKey: "offers"}},
		OfferRule: domain.OfferRule{
			Name: "threshold",
			Conditions: &domain.Condition{Any: []*domain.Condition{{
				Fact: "cart", Path: "$.merchandiseTotal", Operator: domain.OpGreaterThanInclusive, Value: 200,
			}}},
			Event: domain.EventDefinition{Type: "triggerAction", Params: map[string]any{"promotionId": "orderPromotion"}},
		},
		Actions:         []domain.Action{{ActionKey: domain.ActionPercentageDiscount, ActionParameters: map[string]any{"percentage": 5}}},
		StartDate:       start,
		EndDate:         &end,
		StackAbility:    domain.StackNone,
		ReportAsTaxable: true,
	}

	model, err := FromDomainPromotion(p)
	require.NoError(t, err)
	assert.Equal(t, "shop-1", model.ShopID)
	assert.JSONEq(t, `[{"triggerKey":"offers"}]`, model.Triggers)
	assert.Equal(t, "none", model.StackAbility)

	back, err := ToDomainPromotion(model)
	require.NoError(t, err)
	assert.Equal(t, p.ID, back.ID)
	assert.Equal(t, p.EndDate, back.EndDate)
	assert.Equal(t, p.Triggers, back.Triggers)
	require.Len(t, back.OfferRule.Conditions.Any, 1)
	assert.Equal(t, float64(200), back.OfferRule.Conditions.Any[0].Value)

	_, err = domain.CompileCondition(back.OfferRule.Conditions)
	assert.NoError(t, err, "stored rules compile after loading")
}

func TestToDomainPromotion_BadColumn(t *testing.T) {
	t.Parallel()

	_, err := ToDomainPromotion(&PromotionModel{ID: "bad", Actions: "{not json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestToDomainShop(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ToDomainShop(nil))
	assert.Equal(t, &domain.Shop{ID: "s", Name: "Main", ShopType: domain.ShopTypePrimary},
		ToDomainShop(&ShopModel{ID: "s", Name: "Main", ShopType: "primary"}))
}
