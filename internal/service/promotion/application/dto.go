package application

import (
	"time"

	"nexus-promotion/internal/service/promotion/domain"
)

// EvaluateRequest 是一次评估的请求体，HTTP 接口和 cart-events 消息共用。
// facts 中的 cart 会被忽略，购物车以 cart 字段为准。
type EvaluateRequest struct {
	ShopID     string         `json:"shopId" validate:"required"`
	TriggerKey string         `json:"triggerKey,omitempty"`
	Cart       *domain.Cart   `json:"cart"`
	Facts      map[string]any `json:"facts,omitempty"`
}

// EvaluateResponse 是评估结果加上信封字段
type EvaluateResponse struct {
	EvaluationID string    `json:"evaluationId"`
	ShopID       string    `json:"shopId"`
	CartID       string    `json:"cartId,omitempty"`
	EvaluatedAt  time.Time `json:"evaluatedAt"`
	TraceID      string    `json:"traceId,omitempty"`
	domain.EvaluationResult
}

// BatchItem 是批量评估中单个购物车的结果，Error 不为空时 Response 为空。
type BatchItem struct {
	Index    int               `json:"index"`
	Response *EvaluateResponse `json:"response,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// ReloadResponse 是重新加载目录的结果
type ReloadResponse struct {
	Promotions int       `json:"promotions"`
	Shops      []string  `json:"shops"`
	Malformed  []string  `json:"malformed"`
	LoadedAt   time.Time `json:"loadedAt"`
}

// PromotionView 是目录中一个促销的只读视图，Status 为 ok 或者编译错误信息
type PromotionView struct {
	ID           string              `json:"_id"`
	Label        string              `json:"label"`
	Enabled      bool                `json:"enabled"`
	Triggers     []string            `json:"triggers"`
	Actions      []domain.ActionKey  `json:"actions"`
	StackAbility domain.StackAbility `json:"stackAbility"`
	StartDate    time.Time           `json:"startDate"`
	EndDate      *time.Time          `json:"endDate,omitempty"`
	Status       string              `json:"status"`
	ActionErrors []string            `json:"actionErrors,omitempty"`
}

// SeedReport 是一次 fixture 写入的结果
type SeedReport struct {
	ShopID   string   `json:"shopId,omitempty"`
	Upserted []string `json:"upserted"`
	Skipped  bool     `json:"skipped"`
}

func toPromotionView(cp *domain.CompiledPromotion) PromotionView {
	p := cp.Promotion
	v := PromotionView{
		ID:           p.ID,
		Label:        p.Label,
		Enabled:      p.Enabled,
		Triggers:     make([]string, 0, len(p.Triggers)),
		Actions:      make([]domain.ActionKey, 0, len(p.Actions)),
		StackAbility: p.StackAbility,
		StartDate:    p.StartDate,
		EndDate:      p.EndDate,
		Status:       "ok",
	}
	for _, t := range p.Triggers {
		v.Triggers = append(v.Triggers, t.TriggerKey)
	}
	for _, a := range cp.Actions {
		v.Actions = append(v.Actions, a.Action.ActionKey)
		if a.Err != nil {
			v.ActionErrors = append(v.ActionErrors, a.Err.Error())
		}
	}
	if cp.Err != nil {
		v.Status = cp.Err.Error()
	}
	return v
}
