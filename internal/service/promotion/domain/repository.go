// internal/service/promotion/domain/repository.go
package domain

import "context"

// ShopTypePrimary 是主店铺的类型，初始化数据只写入主店铺。
const ShopTypePrimary = "primary"

// Shop 是促销的归属店铺。
type Shop struct {
	ID       string
	Name     string
	ShopType string
}

// PromotionRepository 定义了促销文档的持久化接口，由基础设施层实现。
type PromotionRepository interface {
	// FindAll 返回所有店铺的促销，用于整表重新加载。
	FindAll(ctx context.Context) ([]Promotion, error)
	// FindByShop 返回某个店铺的促销。
	FindByShop(ctx context.Context, shopID string) ([]Promotion, error)
	// FindByID 查找单个促销，不存在时返回 ErrPromotionNotFound。
	FindByID(ctx context.Context, id string) (*Promotion, error)
	// Upsert 以 ID 为键写入促销，重复执行结果相同。
	Upsert(ctx context.Context, promotion *Promotion) error
}

// ShopRepository 定义了店铺查询接口。
type ShopRepository interface {
	// FindPrimary 返回主店铺，不存在时返回 ErrShopNotFound。
	FindPrimary(ctx context.Context) (*Shop, error)
}
