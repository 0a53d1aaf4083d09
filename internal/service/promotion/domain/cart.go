// internal/service/promotion/domain/cart.go
package domain

import "math"

// CartItem 是购物车中的一行商品。
type CartItem struct {
	ID        string  `json:"_id"`
	ProductID string  `json:"productId"`
	VariantID string  `json:"variantId,omitempty"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Subtotal  float64 `json:"subtotal"`
}

// Cart 是调用方提供的购物车文档，JSON 字段名即条件中 path 使用的名字，例如 $.merchandiseTotal。
type Cart struct {
	ID               string         `json:"_id"`
	ShopID           string         `json:"shopId"`
	AccountID        string         `json:"accountId,omitempty"`
	Currency         string         `json:"currencyCode,omitempty"`
	MerchandiseTotal float64        `json:"merchandiseTotal"`
	ShippingTotal    float64        `json:"shippingTotal"`
	ItemCount        int            `json:"itemCount"`
	Items            []CartItem     `json:"items"`
	Attributes       map[string]any `json:"attributes,omitempty"`
}

// HydrateTotals 根据商品行补齐小计、件数和商品总额。
// 调用方已经给出的 merchandiseTotal 不会被覆盖。
func (c *Cart) HydrateTotals() {
	var qty int
	var total float64
	for i := range c.Items {
		item := &c.Items[i]
		if item.Subtotal == 0 {
			item.Subtotal = RoundMoney(item.Price * float64(item.Quantity))
		}
		qty += item.Quantity
		total += item.Subtotal
	}
	c.ItemCount = qty
	if c.MerchandiseTotal == 0 {
		c.MerchandiseTotal = RoundMoney(total)
	}
}

// RoundMoney 四舍五入到分。
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// toCents 用于金额比较，避免浮点误差影响平局判断。
func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}
