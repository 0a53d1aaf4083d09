// internal/service/promotion/domain/port/publisher.go
package port

import (
	"context"
	"time"

	"nexus-promotion/internal/service/promotion/domain"
)

// AdjustmentMessage 是一轮评估结果的对外消息，EvaluationID 只出现在信封上，不影响结果本身。
type AdjustmentMessage struct {
	EvaluationID string                   `json:"evaluationId"`
	ShopID       string                   `json:"shopId"`
	CartID       string                   `json:"cartId"`
	EvaluatedAt  time.Time                `json:"evaluatedAt"`
	Result       *domain.EvaluationResult `json:"result"`
}

// AdjustmentPublisher 是评估结果的出站端口，由 Kafka 适配器实现。
type AdjustmentPublisher interface {
	PublishAdjustments(ctx context.Context, msg *AdjustmentMessage) error
}
