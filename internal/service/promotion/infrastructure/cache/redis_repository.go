// internal/service/promotion/infrastructure/cache/redis_repository.go
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"nexus-promotion/internal/pkg/logger"
	"nexus-promotion/internal/service/promotion/domain"
)

const keyPrefix = "promotion:shop:"

// ShopKey 返回某个店铺促销列表的缓存 key。
func ShopKey(shopID string) string { return keyPrefix + shopID }

// CachedPromotionRepository 在 PromotionRepository 前面加一层 Redis 缓存。
// 只缓存按店铺查询的结果，写入时删除对应店铺的 key。Redis 不可用时直接回源。
type CachedPromotionRepository struct {
	next domain.PromotionRepository
	rdb  redis.Cmdable
	ttl  time.Duration
}

// NewCachedPromotionRepository 创建缓存装饰器
func NewCachedPromotionRepository(next domain.PromotionRepository, rdb redis.Cmdable, ttl time.Duration) *CachedPromotionRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedPromotionRepository{next: next, rdb: rdb, ttl: ttl}
}

// FindAll 用于整表重新加载，不走缓存
func (r *CachedPromotionRepository) FindAll(ctx context.Context) ([]domain.Promotion, error) {
	return r.next.FindAll(ctx)
}

// FindByShop 先读缓存，未命中时回源并回填
func (r *CachedPromotionRepository) FindByShop(ctx context.Context, shopID string) ([]domain.Promotion, error) {
	key := ShopKey(shopID)
	raw, err := r.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		promotions, decodeErr := DecodePromotions(raw)
		if decodeErr == nil {
			return promotions, nil
		}
		logger.Ctx(ctx).Warn().Err(decodeErr).Str("key", key).Msg("drop undecodable cache entry")
	case !errors.Is(err, redis.Nil):
		logger.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("redis get failed, falling back to store")
	}

	promotions, err := r.next.FindByShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	encoded, err := EncodePromotions(promotions)
	if err != nil {
		return promotions, nil
	}
	if err := r.rdb.Set(ctx, key, encoded, r.ttl).Err(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("redis set failed")
	}
	return promotions, nil
}

// FindByID 直接回源
func (r *CachedPromotionRepository) FindByID(ctx context.Context, id string) (*domain.Promotion, error) {
	return r.next.FindByID(ctx, id)
}

// Upsert 写入后删除该店铺的缓存
func (r *CachedPromotionRepository) Upsert(ctx context.Context, promotion *domain.Promotion) error {
	if err := r.next.Upsert(ctx, promotion); err != nil {
		return err
	}
	if err := r.rdb.Del(ctx, ShopKey(promotion.ShopID)).Err(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("shop_id", promotion.ShopID).Msg("invalidate promotion cache failed")
	}
	return nil
}

// EncodePromotions 序列化缓存值
func EncodePromotions(promotions []domain.Promotion) ([]byte, error) {
	if promotions == nil {
		promotions = []domain.Promotion{}
	}
	return json.Marshal(promotions)
}

// DecodePromotions 反序列化缓存值
func DecodePromotions(raw []byte) ([]domain.Promotion, error) {
	var promotions []domain.Promotion
	if err := json.Unmarshal(raw, &promotions); err != nil {
		return nil, errors.Wrap(err, "decode cached promotions")
	}
	return promotions, nil
}
