// internal/service/promotion/infrastructure/persistence/gorm_model.go
package persistence

import (
	"time"
)

// PromotionModel 对应数据库中的 promotions 表。
// triggers / offer_rule / actions 以 JSON 列保存，结构与管理端提交的文档一致。
type PromotionModel struct {
	ID              string `gorm:"primaryKey;type:varchar(64)"`
	ShopID          string `gorm:"type:varchar(64);index"`
	Label           string
	Description     string `gorm:"type:text"`
	Enabled         bool
	Triggers        string `gorm:"type:json"`
	OfferRule       string `gorm:"type:json"`
	Actions         string `gorm:"type:json"`
	StartDate       time.Time
	EndDate         *time.Time `gorm:"default:null"`
	StackAbility    string     `gorm:"type:varchar(32)"`
	ReportAsTaxable bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName 指定 GORM 应该使用的表名
func (PromotionModel) TableName() string {
	return "promotions"
}

// ShopModel 对应数据库中的 shops 表
type ShopModel struct {
	ID       string `gorm:"primaryKey;type:varchar(64)"`
	Name     string
	ShopType string `gorm:"type:varchar(32);index"`
}

// TableName 指定 GORM 应该使用的表名
func (ShopModel) TableName() string {
	return "shops"
}
