package fixture

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-promotion/internal/service/promotion/domain"
)

func TestLoadFile_ShippedFixtures(t *testing.T) {
	t.Parallel()

	promotions, err := LoadFile("../../../../../configs/fixtures/promotions.yaml")
	require.NoError(t, err)
	require.Len(t, promotions, 1)

	p := promotions[0]
	assert.Equal(t, "orderPromotion", p.ID)
	assert.Equal(t, domain.StackNone, p.StackAbility)
	assert.True(t, p.ReportAsTaxable)
	assert.True(t, p.StartDate.IsZero(), "startDate is filled in when seeding")

	cp := domain.CompilePromotion(p, domain.DefaultActionSet())
	require.NoError(t, cp.Err)
	assert.Equal(t, float64(200), cp.Condition.Children[0].Value)
}

func TestDecode(t *testing.T) {
	t.Parallel()

	doc := `
promotions:
  - _id: p1
    label: ten off
    enabled: true
    triggers: [{triggerKey: offers}]
    offerRule:
      conditions:
        all:
          - {fact: cart, path: $.itemCount, operator: greaterThan, value: 2}
    actions:
      - actionKey: fixedDiscount
        actionParameters: {amount: 10}
    stackAbility: all
`
	promotions, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, promotions, 1)
	assert.Equal(t, float64(2), promotions[0].OfferRule.Conditions.All[0].Value)
	assert.Equal(t, float64(10), promotions[0].Actions[0].ActionParameters["amount"])

	_, err = Decode(strings.NewReader("promotions:\n  - _id: p1\n    labl: typo\n"))
	assert.Error(t, err, "unknown fields are rejected")

	none, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewMemoryRepository()
	_, err := repo.FindPrimary(ctx)
	assert.ErrorIs(t, err, domain.ErrShopNotFound)

	repo = NewMemoryRepository(domain.Shop{ID: "s2"}, domain.Shop{ID: "s1", ShopType: domain.ShopTypePrimary})
	shop, err := repo.FindPrimary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s1", shop.ID)

	require.NoError(t, repo.Upsert(ctx, &domain.Promotion{ID: "b", ShopID: "s1"}))
	require.NoError(t, repo.Upsert(ctx, &domain.Promotion{ID: "a", ShopID: "s1", Label: "first"}))
	require.NoError(t, repo.Upsert(ctx, &domain.Promotion{ID: "a", ShopID: "s1", Label: "second"}))
	require.NoError(t, repo.Upsert(ctx, &domain.Promotion{ID: "c", ShopID: "s2"}))

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byShop, err := repo.FindByShop(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, byShop, 2)
	assert.Equal(t, "a", byShop[0].ID)
	assert.Equal(t, "second", byShop[0].Label)

	_, err = repo.FindByID(ctx, "zzz")
	assert.ErrorIs(t, err, domain.ErrPromotionNotFound)
}
