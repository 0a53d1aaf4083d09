package application

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-promotion/internal/service/promotion/domain"
)

func TestPromotionService_EvaluateCart(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil,
		thresholdPromotion("orderPromotion", "shop-1", 200, domain.StackNone, percentOff(5)),
	)

	tests := []struct {
		name    string
		total   float64
		applied []string
		amount  float64
	}{
		{name: "at threshold", total: 200, applied: []string{"orderPromotion"}, amount: 10},
		{name: "above threshold", total: 300, applied: []string{"orderPromotion"}, amount: 15},
		{name: "below threshold", total: 199.99, applied: nil, amount: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, err := svc.EvaluateCart(context.Background(), &EvaluateRequest{
				ShopID: "shop-1",
				Cart:   &domain.Cart{ID: "cart-1", MerchandiseTotal: tt.total},
			})
			require.NoError(t, err)
			assert.Equal(t, "eval-1", resp.EvaluationID)
			assert.Equal(t, "cart-1", resp.CartID)
			assert.Equal(t, "offers", resp.TriggerKey, "default trigger")
			assert.Equal(t, testNow, resp.EvaluatedAt)

			var applied []string
			for _, a := range resp.Applied {
				applied = append(applied, a.PromotionID)
			}
			assert.Equal(t, tt.applied, applied)
			assert.InDelta(t, tt.amount, resp.TotalDiscount, 0.001)
		})
	}
}

func TestPromotionService_EvaluateCartHydratesTotals(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil,
		thresholdPromotion("orderPromotion", "shop-1", 200, domain.StackNone, percentOff(5)),
	)
	cart := &domain.Cart{ID: "cart-1", Items: []domain.CartItem{
		{ID: "i1", ProductID: "p1", Quantity: 2, Price: 60},
		{ID: "i2", ProductID: "p2", Quantity: 1, Price: 80},
	}}

	resp, err := svc.EvaluateCart(context.Background(), &EvaluateRequest{ShopID: "shop-1", Cart: cart})
	require.NoError(t, err)
	require.Len(t, resp.Applied, 1)
	assert.InDelta(t, 10, resp.TotalDiscount, 0.001)
	assert.Zero(t, cart.MerchandiseTotal, "caller's cart is not modified")
}

func TestPromotionService_EvaluateCartErrors(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil,
		thresholdPromotion("orderPromotion", "shop-1", 200, domain.StackNone, percentOff(5)),
	)

	tests := []struct {
		name string
		req  *EvaluateRequest
		want error
	}{
		{name: "nil request", req: nil, want: ErrInvalidRequest},
		{name: "missing shop", req: &EvaluateRequest{Cart: &domain.Cart{}}, want: ErrInvalidRequest},
		{name: "unknown shop", req: &EvaluateRequest{ShopID: "nope", Cart: &domain.Cart{}}, want: domain.ErrShopNotFound},
		{name: "missing cart", req: &EvaluateRequest{ShopID: "shop-1"}, want: domain.ErrMissingRootFact},
		{name: "cart in facts is ignored", req: &EvaluateRequest{ShopID: "shop-1", Facts: map[string]any{"cart": map[string]any{"merchandiseTotal": 500}}}, want: domain.ErrMissingRootFact},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, err := svc.EvaluateCart(context.Background(), tt.req)
			assert.Nil(t, resp)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestPromotionService_EvaluateBatch(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil,
		thresholdPromotion("orderPromotion", "shop-1", 200, domain.StackNone, percentOff(5)),
	)
	reqs := []*EvaluateRequest{
		{ShopID: "shop-1", Cart: &domain.Cart{ID: "a", MerchandiseTotal: 400}},
		{ShopID: "missing", Cart: &domain.Cart{ID: "b"}},
		{ShopID: "shop-1", Cart: &domain.Cart{ID: "c", MerchandiseTotal: 100}},
	}

	items, err := svc.EvaluateBatch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, items, 3)

	for i, item := range items {
		assert.Equal(t, i, item.Index)
	}
	require.NotNil(t, items[0].Response)
	assert.Equal(t, "a", items[0].Response.CartID)
	assert.InDelta(t, 20, items[0].Response.TotalDiscount, 0.001)

	assert.Nil(t, items[1].Response)
	assert.Contains(t, items[1].Error, "shop not found")

	require.NotNil(t, items[2].Response)
	assert.Empty(t, items[2].Response.Applied)
}

func TestPromotionService_HandleCartEvent(t *testing.T) {
	t.Parallel()

	publisher := &recordingPublisher{}
	svc := newTestService(t, publisher,
		thresholdPromotion("orderPromotion", "shop-1", 200, domain.StackNone, percentOff(5)),
	)

	err := svc.HandleCartEvent(context.Background(), &EvaluateRequest{
		ShopID: "shop-1",
		Cart:   &domain.Cart{ID: "cart-9", MerchandiseTotal: 250},
	})
	require.NoError(t, err)
	require.Len(t, publisher.messages, 1)

	msg := publisher.messages[0]
	assert.Equal(t, "cart-9", msg.CartID)
	assert.Equal(t, "shop-1", msg.ShopID)
	require.NotNil(t, msg.Result)
	require.Len(t, msg.Result.Events, 1)
	assert.Equal(t, "orderPromotion", msg.Result.Events[0].Params["promotionId"])

	publisher.err = errors.New("broker down")
	err = svc.HandleCartEvent(context.Background(), &EvaluateRequest{
		ShopID: "shop-1",
		Cart:   &domain.Cart{ID: "cart-9", MerchandiseTotal: 250},
	})
	assert.ErrorContains(t, err, "broker down")
}

func TestPromotionService_HandleCartEventWithoutPublisher(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil,
		thresholdPromotion("orderPromotion", "shop-1", 200, domain.StackNone, percentOff(5)),
	)
	assert.NoError(t, svc.HandleCartEvent(context.Background(), &EvaluateRequest{
		ShopID: "shop-1",
		Cart:   &domain.Cart{ID: "cart-9", MerchandiseTotal: 250},
	}))
}

func TestPromotionService_ReloadAndList(t *testing.T) {
	t.Parallel()

	broken := thresholdPromotion("broken", "shop-1", 10, domain.StackAll, percentOff(5))
	broken.OfferRule.Conditions = &domain.Condition{All: []*domain.Condition{}}
	svc := newTestService(t, nil,
		thresholdPromotion("orderPromotion", "shop-1", 200, domain.StackNone, percentOff(5)),
		thresholdPromotion("other", "shop-2", 50, domain.StackAll, domain.Action{ActionKey: domain.ActionNoop}),
		broken,
	)

	resp, err := svc.ReloadCatalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Promotions)
	assert.Equal(t, []string{"shop-1", "shop-2"}, resp.Shops)
	assert.Equal(t, []string{"broken"}, resp.Malformed)
	assert.Equal(t, testNow, resp.LoadedAt)

	views, err := svc.ListPromotions(context.Background(), "shop-1")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "broken", views[0].ID)
	assert.NotEqual(t, "ok", views[0].Status)
	assert.Equal(t, "orderPromotion", views[1].ID)
	assert.Equal(t, "ok", views[1].Status)
	assert.Equal(t, []string{"offers"}, views[1].Triggers)

	_, err = svc.ListPromotions(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
