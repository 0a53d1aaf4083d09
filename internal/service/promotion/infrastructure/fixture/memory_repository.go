package fixture

import (
	"context"
	"sort"
	"sync"

	"nexus-promotion/internal/service/promotion/domain"
)

// MemoryRepository 是内存版的 PromotionRepository / ShopRepository。
// 未配置 MySQL 时服务直接从 fixture 文件加载促销，也用于测试。
type MemoryRepository struct {
	mu         sync.RWMutex
	promotions map[string]domain.Promotion
	shops      []domain.Shop
}

// NewMemoryRepository 创建内存仓储，shops 中 shopType 为 primary 的店铺作为主店铺。
func NewMemoryRepository(shops ...domain.Shop) *MemoryRepository {
	return &MemoryRepository{promotions: map[string]domain.Promotion{}, shops: shops}
}

func (r *MemoryRepository) FindAll(ctx context.Context) ([]domain.Promotion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filter(func(domain.Promotion) bool { return true }), nil
}

func (r *MemoryRepository) FindByShop(ctx context.Context, shopID string) ([]domain.Promotion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filter(func(p domain.Promotion) bool { return p.ShopID == shopID }), nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*domain.Promotion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.promotions[id]
	if !ok {
		return nil, domain.ErrPromotionNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) Upsert(ctx context.Context, promotion *domain.Promotion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.promotions[promotion.ID] = *promotion
	return nil
}

func (r *MemoryRepository) FindPrimary(ctx context.Context) (*domain.Shop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.shops {
		if s.ShopType == domain.ShopTypePrimary {
			shop := s
			return &shop, nil
		}
	}
	return nil, domain.ErrShopNotFound
}

func (r *MemoryRepository) filter(keep func(domain.Promotion) bool) []domain.Promotion {
	out := make([]domain.Promotion, 0, len(r.promotions))
	for _, p := range r.promotions {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ShopID != out[j].ShopID {
			return out[i].ShopID < out[j].ShopID
		}
		return out[i].ID < out[j].ID
	})
	return out
}
