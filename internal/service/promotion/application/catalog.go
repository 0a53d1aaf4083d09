// internal/service/promotion/application/catalog.go
package application

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"nexus-promotion/internal/pkg/logger"
	"nexus-promotion/internal/pkg/metrics"
	"nexus-promotion/internal/service/promotion/domain"
)

// Catalog 持有当前生效的促销表。读取无锁，重新加载时整表原子替换，
// 正在进行的评估继续使用它开始时拿到的那张表。
type Catalog struct {
	repo    domain.PromotionRepository
	actions *domain.ActionSet
	now     func() time.Time

	table atomic.Pointer[domain.PromotionTable]
	mu    sync.Mutex // 串行化写入方
}

// NewCatalog 创建一个空的目录，调用 Reload 之后才有数据。
func NewCatalog(repo domain.PromotionRepository, actions *domain.ActionSet) *Catalog {
	c := &Catalog{repo: repo, actions: actions, now: time.Now}
	c.table.Store(domain.NewPromotionTable(nil, actions, time.Time{}))
	return c
}

// Table 返回当前的促销表快照。
func (c *Catalog) Table() *domain.PromotionTable {
	return c.table.Load()
}

// Reload 从仓储读取全部促销并替换整张表。读取失败时保留旧表。
func (c *Catalog) Reload(ctx context.Context) (*domain.PromotionTable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	promotions, err := c.repo.FindAll(ctx)
	if err != nil {
		metrics.CatalogReloadsTotal.WithLabelValues("error").Inc()
		return nil, errors.Wrap(err, "load promotions")
	}
	table := domain.NewPromotionTable(promotions, c.actions, c.now())
	c.swap(ctx, table)
	metrics.CatalogReloadsTotal.WithLabelValues("ok").Inc()
	return table, nil
}

// LoadShop 只加载一个店铺，用于评估时遇到表里还没有的店铺。
// 仓储里没有该店铺的促销时返回 ErrShopNotFound，表不变。
func (c *Catalog) LoadShop(ctx context.Context, shopID string) ([]*domain.CompiledPromotion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if list, ok := c.table.Load().Shop(shopID); ok {
		return list, nil
	}
	promotions, err := c.repo.FindByShop(ctx, shopID)
	if err != nil {
		return nil, errors.Wrapf(err, "load promotions of shop %s", shopID)
	}
	if len(promotions) == 0 {
		return nil, errors.Wrapf(domain.ErrShopNotFound, "shop %s has no promotions", shopID)
	}
	table := c.table.Load().WithShop(shopID, promotions, c.actions)
	c.swap(ctx, table)
	list, _ := table.Shop(shopID)
	return list, nil
}

// Promotions 返回店铺的促销，表中没有时按需加载。
func (c *Catalog) Promotions(ctx context.Context, shopID string) ([]*domain.CompiledPromotion, error) {
	if list, ok := c.Table().Shop(shopID); ok {
		return list, nil
	}
	return c.LoadShop(ctx, shopID)
}

func (c *Catalog) swap(ctx context.Context, table *domain.PromotionTable) {
	c.table.Store(table)
	metrics.CatalogSize.Set(float64(table.Size()))

	var malformed int
	for _, shopID := range table.Shops() {
		list, _ := table.Shop(shopID)
		for _, cp := range list {
			if cp.Err != nil {
				malformed++
				logger.Ctx(ctx).Warn().Err(cp.Err).Str("promotion_id", cp.ID()).Str("shop_id", shopID).Msg("promotion will be skipped")
			}
		}
	}
	logger.Ctx(ctx).Info().
		Int("promotions", table.Size()).
		Int("shops", len(table.Shops())).
		Int("malformed", malformed).
		Msg("promotion catalog swapped")
}

// AutoReload 按 interval 定期重新加载，直到 ctx 结束。interval <= 0 时直接返回。
func (c *Catalog) AutoReload(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Reload(ctx); err != nil && ctx.Err() == nil {
				logger.Ctx(ctx).Error().Err(err).Msg("periodic catalog reload failed, keeping previous table")
			}
		}
	}
}
