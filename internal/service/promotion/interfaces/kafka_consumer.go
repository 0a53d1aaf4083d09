package interfaces

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"nexus-promotion/internal/pkg/logger"
	"nexus-promotion/internal/pkg/mq"
	"nexus-promotion/internal/service/promotion/application"
	"nexus-promotion/internal/service/promotion/domain"
)

// MessageReader 是 *kafka.Reader 的最小接口
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CartEventHandler 处理一条 cart-events 消息
type CartEventHandler interface {
	HandleCartEvent(ctx context.Context, req *application.EvaluateRequest) error
}

// CartEventConsumer 是一个驱动适配器，它监听 cart-events 并驱动应用服务。
type CartEventConsumer struct {
	reader  MessageReader
	handler CartEventHandler
	topic   string
	backoff time.Duration
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewCartEventConsumer 创建一个新的 Kafka 消费者适配器。
func NewCartEventConsumer(reader MessageReader, handler CartEventHandler, topic string) *CartEventConsumer {
	return &CartEventConsumer{reader: reader, handler: handler, topic: topic, backoff: time.Second}
}

// Start 开始监听 Kafka 主题，消息在后台 goroutine 中逐条处理。
func (a *CartEventConsumer) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("cart event consumer started")
		for {
			// 使用 FetchMessage 而不是 ReadMessage，处理完成后再手动提交 offset
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("cart event consumer shutting down")
					return
				}
				logger.Ctx(ctx).Error().Err(err).Msg("could not fetch message, retrying")
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			// 可重试的失败在原地重试，不提交 offset，直到成功或消费者停止
			for attempt := 1; ; attempt++ {
				err := a.processMessage(ctx, msg)
				if err == nil {
					break
				}
				logger.Ctx(ctx).Error().Err(err).Int64("offset", msg.Offset).Int("attempt", attempt).
					Msg("cart event failed, retrying")
				select {
				case <-ctx.Done():
					logger.Ctx(ctx).Info().Int64("offset", msg.Offset).Msg("consumer stopped before message succeeded, offset not committed")
					return
				case <-time.After(a.backoff):
				}
			}

			if err := a.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				logger.Ctx(ctx).Error().Err(err).Int64("offset", msg.Offset).Msg("failed to commit message")
			}
		}
	}()
}

// Stop 优雅地停止消费者。
func (a *CartEventConsumer) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	return a.reader.Close()
}

// processMessage 反序列化消息并调用应用服务。
// 无法解析或请求本身不合法的消息记录后跳过（返回 nil，offset 照常提交）；
// 其余失败（例如结果发布失败）返回 error，由调用方重试。
func (a *CartEventConsumer) processMessage(parent context.Context, msg kafka.Message) error {
	ctx := mq.ExtractContext(parent, msg)
	ctx = logger.WithContext(ctx, zlog.Logger.With().
		Str("topic", msg.Topic).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Logger())

	var req application.EvaluateRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal cart event, skipping")
		return nil
	}

	err := a.handler.HandleCartEvent(ctx, &req)
	switch {
	case err == nil:
		return nil
	case isPermanent(err):
		logger.Ctx(ctx).Warn().Err(err).Str("shop_id", req.ShopID).Msg("cart event not evaluated, skipping")
		return nil
	default:
		return errors.Wrapf(err, "handle cart event for shop %s", req.ShopID)
	}
}

// isPermanent 判断重试也不会成功的错误。
func isPermanent(err error) bool {
	return errors.Is(err, application.ErrInvalidRequest) ||
		errors.Is(err, domain.ErrMissingRootFact) ||
		errors.Is(err, domain.ErrShopNotFound) ||
		errors.Is(err, domain.ErrEmptyTrigger)
}
