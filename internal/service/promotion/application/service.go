package application

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"nexus-promotion/internal/pkg/config"
	"nexus-promotion/internal/pkg/logger"
	"nexus-promotion/internal/pkg/metrics"
	"nexus-promotion/internal/pkg/tracing"
	"nexus-promotion/internal/service/promotion/domain"
	"nexus-promotion/internal/service/promotion/domain/port"
)

// ErrInvalidRequest 表示请求体本身不合法
var ErrInvalidRequest = errors.New("invalid request")

// PromotionService 定义了促销服务提供的所有业务用例
type PromotionService struct {
	catalog   *Catalog
	engine    *domain.Engine
	publisher port.AdjustmentPublisher
	tracer    trace.Tracer
	cfg       config.EngineConfig
	validate  *validator.Validate

	now   func() time.Time
	newID func() string
}

// NewPromotionService 创建一个新的促销服务实例。publisher 可以为空，此时 HandleCartEvent 只评估不发送。
func NewPromotionService(catalog *Catalog, engine *domain.Engine, publisher port.AdjustmentPublisher, tracer trace.Tracer, cfg config.EngineConfig) *PromotionService {
	if cfg.DefaultTrigger == "" {
		cfg.DefaultTrigger = "offers"
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 1
	}
	return &PromotionService{
		catalog:   catalog,
		engine:    engine,
		publisher: publisher,
		tracer:    tracer,
		cfg:       cfg,
		validate:  validator.New(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// EvaluateCart 对一个购物车执行一轮评估。
// 只有请求不合法、店铺不存在、缺少根事实或触发器为空时返回错误，规则层面的问题都在 Diagnostics 里。
func (s *PromotionService) EvaluateCart(ctx context.Context, req *EvaluateRequest) (*EvaluateResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.EvaluateCart")
	defer span.End()

	if req == nil {
		return nil, errors.Wrap(ErrInvalidRequest, "empty request")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Wrap(ErrInvalidRequest, err.Error())
	}
	trigger := req.TriggerKey
	if trigger == "" {
		trigger = s.cfg.DefaultTrigger
	}
	span.SetAttributes(
		attribute.String("shop.id", req.ShopID),
		attribute.String("promotion.trigger", trigger),
	)

	loadCtx := ctx
	if s.cfg.EvaluationTimeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, s.cfg.EvaluationTimeout)
		defer cancel()
	}
	promotions, err := s.catalog.Promotions(loadCtx, req.ShopID)
	if err != nil {
		s.fail(span, trigger, "rejected", err)
		return nil, err
	}

	var cart *domain.Cart
	if req.Cart != nil {
		c := *req.Cart
		c.Items = append([]domain.CartItem(nil), req.Cart.Items...)
		c.HydrateTotals()
		cart = &c
	}
	facts, err := domain.NewCartSnapshot(cart, req.Facts)
	if err != nil {
		err = errors.Wrap(ErrInvalidRequest, err.Error())
		s.fail(span, trigger, "rejected", err)
		return nil, err
	}

	evaluatedAt := s.now()
	start := time.Now()
	result, err := s.engine.Evaluate(domain.EvaluationInput{
		TriggerKey: trigger,
		Promotions: promotions,
		Cart:       cart,
		Facts:      facts,
		Now:        evaluatedAt,
	})
	metrics.EvaluationDuration.WithLabelValues(trigger).Observe(time.Since(start).Seconds())
	if err != nil {
		s.fail(span, trigger, "rejected", err)
		return nil, err
	}

	resp := &EvaluateResponse{
		EvaluationID:     s.newID(),
		ShopID:           req.ShopID,
		EvaluatedAt:      evaluatedAt,
		TraceID:          tracing.GetTraceIDFromContext(ctx),
		EvaluationResult: *result,
	}
	if cart != nil {
		resp.CartID = cart.ID
	}
	s.observe(ctx, resp)
	span.SetAttributes(
		attribute.String("evaluation.id", resp.EvaluationID),
		attribute.Int("promotion.candidates", len(result.Candidates)),
		attribute.Int("promotion.applied", len(result.Applied)),
	)
	return resp, nil
}

func (s *PromotionService) fail(span trace.Span, trigger, outcome string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	metrics.EvaluationsTotal.WithLabelValues(trigger, outcome).Inc()
}

// observe 记录指标，诊断信息逐条以 WARN 输出。
func (s *PromotionService) observe(ctx context.Context, resp *EvaluateResponse) {
	metrics.EvaluationsTotal.WithLabelValues(resp.TriggerKey, "ok").Inc()
	metrics.QualifiedPromotions.Observe(float64(len(resp.Events)))
	metrics.AppliedPromotions.Observe(float64(len(resp.Applied)))

	for _, d := range resp.Diagnostics {
		metrics.DiagnosticsTotal.WithLabelValues(string(d.Code)).Inc()
		logger.Ctx(ctx).Warn().
			Str("evaluation_id", resp.EvaluationID).
			Str("promotion_id", d.PromotionID).
			Str("code", string(d.Code)).
			Msg(d.Message)
	}
	logger.Ctx(ctx).Debug().
		Str("evaluation_id", resp.EvaluationID).
		Str("shop_id", resp.ShopID).
		Str("trigger", resp.TriggerKey).
		Int("applied", len(resp.Applied)).
		Float64("total_discount", resp.TotalDiscount).
		Msg("cart evaluated")
}

// EvaluateBatch 并发评估多个购物车，单个购物车失败不影响其他购物车，结果与请求顺序一致。
func (s *PromotionService) EvaluateBatch(ctx context.Context, reqs []*EvaluateRequest) ([]BatchItem, error) {
	ctx, span := s.tracer.Start(ctx, "service.EvaluateBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(reqs)))

	items := make([]BatchItem, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchConcurrency)
	for i, req := range reqs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			items[i].Index = i
			resp, err := s.EvaluateCart(gctx, req)
			if err != nil {
				items[i].Error = err.Error()
				return nil
			}
			items[i].Response = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return items, nil
}

// HandleCartEvent 处理 cart-events 消息：评估后把结果发送到 promotion-adjustments。
func (s *PromotionService) HandleCartEvent(ctx context.Context, req *EvaluateRequest) error {
	ctx, span := s.tracer.Start(ctx, "service.HandleCartEvent")
	defer span.End()

	resp, err := s.EvaluateCart(ctx, req)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if s.publisher == nil {
		return nil
	}
	msg := &port.AdjustmentMessage{
		EvaluationID: resp.EvaluationID,
		ShopID:       resp.ShopID,
		CartID:       resp.CartID,
		EvaluatedAt:  resp.EvaluatedAt,
		Result:       &resp.EvaluationResult,
	}
	if err := s.publisher.PublishAdjustments(ctx, msg); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "publish adjustments")
	}
	span.AddEvent("adjustments published")
	return nil
}

// ReloadCatalog 从仓储重新加载全部促销
func (s *PromotionService) ReloadCatalog(ctx context.Context) (*ReloadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.ReloadCatalog")
	defer span.End()

	table, err := s.catalog.Reload(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	resp := &ReloadResponse{
		Promotions: table.Size(),
		Shops:      table.Shops(),
		Malformed:  []string{},
		LoadedAt:   table.LoadedAt(),
	}
	for _, shopID := range resp.Shops {
		list, _ := table.Shop(shopID)
		for _, cp := range list {
			if cp.Err != nil {
				resp.Malformed = append(resp.Malformed, cp.ID())
			}
		}
	}
	span.SetAttributes(attribute.Int("catalog.size", resp.Promotions))
	return resp, nil
}

// ListPromotions 列出店铺已加载的促销及其编译状态
func (s *PromotionService) ListPromotions(ctx context.Context, shopID string) ([]PromotionView, error) {
	if shopID == "" {
		return nil, errors.Wrap(ErrInvalidRequest, "shopId is required")
	}
	list, err := s.catalog.Promotions(ctx, shopID)
	if err != nil {
		return nil, err
	}
	views := make([]PromotionView, 0, len(list))
	for _, cp := range list {
		views = append(views, toPromotionView(cp))
	}
	return views, nil
}

// Catalog 返回服务使用的目录，供启动流程做首次加载和定时重载。
func (s *PromotionService) Catalog() *Catalog { return s.catalog }
