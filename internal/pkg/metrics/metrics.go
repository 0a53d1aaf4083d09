// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "promotion"

var (
	// EvaluationsTotal 按触发器和结果统计评估次数，outcome 取值 ok / rejected / error。
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "evaluations_total",
		Help:      "Number of engine passes by trigger and outcome.",
	}, []string{"trigger", "outcome"})

	EvaluationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "evaluation_duration_seconds",
		Help:      "Latency of a single engine pass.",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"trigger"})

	QualifiedPromotions = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "qualified_promotions",
		Help:      "Promotions whose conditions passed in a pass.",
		Buckets:   prometheus.LinearBuckets(0, 1, 10),
	})

	AppliedPromotions = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "applied_promotions",
		Help:      "Promotions applied after stacking resolution in a pass.",
		Buckets:   prometheus.LinearBuckets(0, 1, 10),
	})

	DiagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "diagnostics_total",
		Help:      "Non-fatal diagnostics emitted by the engine, by code.",
	}, []string{"code"})

	CatalogSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "catalog_promotions",
		Help:      "Promotions currently loaded in the in-memory table.",
	})

	CatalogReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "catalog_reloads_total",
		Help:      "Catalog reloads by result.",
	}, []string{"result"})

	SeededPromotionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "seeded_promotions_total",
		Help:      "Fixture promotions upserted by the seeder.",
	})
)
