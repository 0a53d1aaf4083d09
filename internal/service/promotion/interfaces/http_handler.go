package interfaces

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"nexus-promotion/internal/pkg/logger"
	"nexus-promotion/internal/service/promotion/application"
	"nexus-promotion/internal/service/promotion/domain"
)

const maxBodyBytes = 4 << 20

// PromotionHandler 封装了 promotion 服务的 HTTP 处理器
type PromotionHandler struct {
	service *application.PromotionService
}

// NewPromotionHandler 创建一个新的 HTTP 处理器实例
func NewPromotionHandler(service *application.PromotionService) *PromotionHandler {
	return &PromotionHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *PromotionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/promotions/evaluate", h.handleEvaluate)
	mux.HandleFunc("POST /api/v1/promotions/evaluate/batch", h.handleEvaluateBatch)
	mux.HandleFunc("POST /api/v1/promotions/reload", h.handleReload)
	mux.HandleFunc("GET /api/v1/promotions", h.handleList)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
}

func (h *PromotionHandler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var req application.EvaluateRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.EvaluateCart(ctx, &req)
	if err != nil {
		logger.Ctx(ctx).Info().Err(err).Str("shop_id", req.ShopID).Msg("evaluation rejected")
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PromotionHandler) handleEvaluateBatch(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var reqs []*application.EvaluateRequest
	if err := decodeBody(w, r, &reqs); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	items, err := h.service.EvaluateBatch(ctx, reqs)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *PromotionHandler) handleReload(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	resp, err := h.service.ReloadCatalog(ctx)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("catalog reload failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PromotionHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	views, err := h.service.ListPromotions(ctx, r.URL.Query().Get("shopId"))
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *PromotionHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// statusFor 根据错误类型返回不同的 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrShopNotFound), errors.Is(err, domain.ErrPromotionNotFound):
		return http.StatusNotFound
	case errors.Is(err, application.ErrInvalidRequest),
		errors.Is(err, domain.ErrEmptyTrigger),
		errors.Is(err, domain.ErrMissingRootFact):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
