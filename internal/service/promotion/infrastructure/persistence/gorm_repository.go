// internal/service/promotion/infrastructure/persistence/gorm_repository.go
package persistence

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nexus-promotion/internal/service/promotion/domain"
)

// GormPromotionRepository 是 PromotionRepository 和 ShopRepository 的 GORM 实现
type GormPromotionRepository struct {
	db *gorm.DB
}

// NewGormPromotionRepository 创建一个新的 GORM 仓储实例
func NewGormPromotionRepository(db *gorm.DB) *GormPromotionRepository {
	return &GormPromotionRepository{db: db}
}

// AutoMigrate 创建或更新 promotions 和 shops 表
func (r *GormPromotionRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&PromotionModel{}, &ShopModel{})
}

// FindAll 返回全部促销，按店铺和 ID 排序
func (r *GormPromotionRepository) FindAll(ctx context.Context) ([]domain.Promotion, error) {
	var models []PromotionModel
	if err := r.db.WithContext(ctx).Order("shop_id, id").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "query promotions")
	}
	return toDomainPromotions(models)
}

// FindByShop 返回某个店铺的全部促销
func (r *GormPromotionRepository) FindByShop(ctx context.Context, shopID string) ([]domain.Promotion, error) {
	var models []PromotionModel
	err := r.db.WithContext(ctx).Where("shop_id = ?", shopID).Order("id").Find(&models).Error
	if err != nil {
		return nil, errors.Wrapf(err, "query promotions of shop %s", shopID)
	}
	return toDomainPromotions(models)
}

// FindByID 查找单个促销
func (r *GormPromotionRepository) FindByID(ctx context.Context, id string) (*domain.Promotion, error) {
	var model PromotionModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPromotionNotFound
		}
		return nil, errors.Wrapf(err, "query promotion %s", id)
	}
	return ToDomainPromotion(&model)
}

// Upsert 以主键 ID 写入促销，已存在时整行覆盖
func (r *GormPromotionRepository) Upsert(ctx context.Context, promotion *domain.Promotion) error {
	model, err := FromDomainPromotion(promotion)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(model).Error
	return errors.Wrapf(err, "upsert promotion %s", promotion.ID)
}

// FindPrimary 返回主店铺
func (r *GormPromotionRepository) FindPrimary(ctx context.Context) (*domain.Shop, error) {
	var model ShopModel
	err := r.db.WithContext(ctx).Where("shop_type = ?", domain.ShopTypePrimary).Order("id").First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrShopNotFound
		}
		return nil, errors.Wrap(err, "query primary shop")
	}
	return ToDomainShop(&model), nil
}

func toDomainPromotions(models []PromotionModel) ([]domain.Promotion, error) {
	out := make([]domain.Promotion, 0, len(models))
	for i := range models {
		p, err := ToDomainPromotion(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}
