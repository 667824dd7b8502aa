package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// PredictionsTotal counts answered analyze requests by top-1 class.
	PredictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sopp",
		Subsystem: "api",
		Name:      "predictions_total",
		Help:      "Total number of classified images, labeled by the top-ranked class.",
	}, []string{"class"})

	// AnalyzeDurationSeconds is the time spent inside the analyze handler.
	AnalyzeDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sopp",
		Subsystem: "api",
		Name:      "analyze_duration_seconds",
		Help:      "Time to decode, classify and rank one uploaded image.",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	// InferenceErrorsTotal counts failed analyze requests by reason.
	InferenceErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sopp",
		Subsystem: "api",
		Name:      "inference_errors_total",
		Help:      "Total number of analyze requests that failed, labeled by reason.",
	}, []string{"reason"})

	// CacheLookupsTotal counts prediction cache lookups by result (hit, miss, error).
	CacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sopp",
		Subsystem: "api",
		Name:      "cache_lookups_total",
		Help:      "Prediction cache lookups, labeled by result.",
	}, []string{"result"})
)

// Init registers all collectors with the default registry. Safe to call
// more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			PredictionsTotal,
			AnalyzeDurationSeconds,
			InferenceErrorsTotal,
			CacheLookupsTotal,
		)
	})
}
