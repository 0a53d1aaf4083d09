package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nexus-promotion/internal/pkg/logger"
	"nexus-promotion/internal/pkg/metrics"
	"nexus-promotion/internal/service/promotion/domain"
)

// Locker 是写入 fixture 时持有的互斥锁，由 ZooKeeper 分布式锁实现。
type Locker interface {
	Lock(ctx context.Context) error
	Unlock() error
}

// Seeder 把 fixture 中的促销写入主店铺。
type Seeder struct {
	promotions domain.PromotionRepository
	shops      domain.ShopRepository
	actions    *domain.ActionSet
	tracer     trace.Tracer
	now        func() time.Time
}

func NewSeeder(promotions domain.PromotionRepository, shops domain.ShopRepository, actions *domain.ActionSet, tracer trace.Tracer) *Seeder {
	return &Seeder{promotions: promotions, shops: shops, actions: actions, tracer: tracer, now: time.Now}
}

// Seed 给每个促销打上主店铺 ID，补齐 startDate，全部校验通过后按 ID 逐个 upsert，重复执行结果相同。
// 没有主店铺时什么都不写，也不算错误。lock 不为空时在持锁期间写入。
func (s *Seeder) Seed(ctx context.Context, fixtures []domain.Promotion, lock Locker) (*SeedReport, error) {
	ctx, span := s.tracer.Start(ctx, "service.SeedPromotions")
	defer span.End()

	shop, err := s.shops.FindPrimary(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrShopNotFound) {
			logger.Ctx(ctx).Warn().Msg("no primary shop, skipping promotion fixtures")
			return &SeedReport{Upserted: []string{}, Skipped: true}, nil
		}
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("shop.id", shop.ID), attribute.Int("fixtures", len(fixtures)))

	now := s.now()
	prepared := make([]domain.Promotion, len(fixtures))
	for i, p := range fixtures {
		p.ShopID = shop.ID
		if p.StartDate.IsZero() {
			p.StartDate = now
		}
		if err := p.Validate(); err != nil {
			span.RecordError(err)
			return nil, err
		}
		if cp := domain.CompilePromotion(p, s.actions); cp.Err != nil {
			span.RecordError(cp.Err)
			return nil, errors.Wrapf(domain.ErrInvalidPromotion, "%v", cp.Err)
		}
		prepared[i] = p
	}

	if lock != nil {
		if err := lock.Lock(ctx); err != nil {
			return nil, errors.Wrap(err, "acquire seed lock")
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("release seed lock")
			}
		}()
	}

	report := &SeedReport{ShopID: shop.ID, Upserted: make([]string, 0, len(prepared))}
	for i := range prepared {
		if err := s.promotions.Upsert(ctx, &prepared[i]); err != nil {
			span.RecordError(err)
			return report, err
		}
		report.Upserted = append(report.Upserted, prepared[i].ID)
		metrics.SeededPromotionsTotal.Inc()
	}
	logger.Ctx(ctx).Info().Str("shop_id", shop.ID).Int("count", len(report.Upserted)).Msg("promotion fixtures upserted")
	return report, nil
}
