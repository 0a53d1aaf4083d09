// internal/service/promotion/infrastructure/event/kafka_publisher.go
package event

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"nexus-promotion/internal/pkg/logger"
	"nexus-promotion/internal/pkg/mq"
	"nexus-promotion/internal/service/promotion/domain/port"
)

// KafkaAdjustmentPublisher 把评估结果发送到 promotion-adjustments 主题，以购物车 ID 作为消息 key，
// 保证同一个购物车的结果落在同一个分区，按顺序消费。
type KafkaAdjustmentPublisher struct {
	writer mq.MessageWriter
}

func NewKafkaAdjustmentPublisher(writer mq.MessageWriter) *KafkaAdjustmentPublisher {
	return &KafkaAdjustmentPublisher{writer: writer}
}

// PublishAdjustments 实现了 port.AdjustmentPublisher 接口
func (p *KafkaAdjustmentPublisher) PublishAdjustments(ctx context.Context, msg *port.AdjustmentMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal adjustment message")
	}
	key := msg.CartID
	if key == "" {
		key = msg.EvaluationID
	}
	if err := mq.ProduceMessage(ctx, p.writer, []byte(key), body); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("evaluation_id", msg.EvaluationID).Msg("failed to produce adjustment message")
		return errors.Wrap(err, "produce adjustment message")
	}
	return nil
}
