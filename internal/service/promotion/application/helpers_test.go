package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"nexus-promotion/internal/pkg/config"
	"nexus-promotion/internal/service/promotion/domain"
	"nexus-promotion/internal/service/promotion/domain/port"
	"nexus-promotion/internal/service/promotion/infrastructure/action"
	"nexus-promotion/internal/service/promotion/infrastructure/fixture"
	"nexus-promotion/internal/service/promotion/infrastructure/rule"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testTracer() trace.Tracer { return noop.NewTracerProvider().Tracer("test") }

func testActions(t *testing.T) *domain.ActionSet {
	t.Helper()
	actions, err := action.NewActionSet()
	require.NoError(t, err)
	return actions
}

// thresholdPromotion 在商品总额达到 threshold 时生效
func thresholdPromotion(id, shopID string, threshold float64, stack domain.StackAbility, a domain.Action) domain.Promotion {
	return domain.Promotion{
		ID:       id,
		ShopID:   shopID,
		Label:    id,
		Enabled:  true,
		Triggers: []domain.Trigger{{TriggerKey: "offers"}},
		OfferRule: domain.OfferRule{
			Name: id,
			Conditions: &domain.Condition{All: []*domain.Condition{{
				Fact: "cart", Path: "$.merchandiseTotal", Operator: domain.OpGreaterThanInclusive, Value: threshold,
			}}},
		},
		Actions:      []domain.Action{a},
		StartDate:    testNow.Add(-time.Hour),
		StackAbility: stack,
	}
}

func percentOff(pct float64) domain.Action {
	return domain.Action{ActionKey: domain.ActionPercentageDiscount, ActionParameters: map[string]any{"percentage": pct}}
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []*port.AdjustmentMessage
	err      error
}

func (p *recordingPublisher) PublishAdjustments(_ context.Context, msg *port.AdjustmentMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

// newTestService 用内存仓储和真实的规则引擎组装服务
func newTestService(t *testing.T, publisher port.AdjustmentPublisher, promotions ...domain.Promotion) *PromotionService {
	t.Helper()
	repo := fixture.NewMemoryRepository()
	for i := range promotions {
		require.NoError(t, repo.Upsert(context.Background(), &promotions[i]))
	}
	actions := testActions(t)
	catalog := NewCatalog(repo, actions)
	catalog.now = func() time.Time { return testNow }
	_, err := catalog.Reload(context.Background())
	require.NoError(t, err)

	engine := domain.NewEngine(rule.NewJSONRuleEngineAdapter())
	svc := NewPromotionService(catalog, engine, publisher, testTracer(), config.EngineConfig{BatchConcurrency: 4})
	svc.now = func() time.Time { return testNow }
	svc.newID = func() string { return "eval-1" }
	return svc
}
