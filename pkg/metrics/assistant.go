package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type assistantMetrics struct {
	turnsTotal        *prometheus.CounterVec
	confidence        *prometheus.HistogramVec
	processingLatency *prometheus.HistogramVec
	planComplexity    *prometheus.HistogramVec
	snapshotFailures  *prometheus.CounterVec
	sweepEvictions    prometheus.Counter
	cacheLookups      *prometheus.CounterVec
	rateLimited       prometheus.Counter
	memoryRecords     prometheus.Gauge
}

var assistantSingleton = sync.OnceValue(func() *assistantMetrics {
	return &assistantMetrics{
		turnsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistant",
			Name:      "turns_total",
			Help:      "Total number of processed turns broken down by intent and result.",
		}, []string{"intent", "result"}),
		confidence: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "assistant",
			Name:      "confidence",
			Help:      "Distribution of classification confidence per intent.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95},
		}, []string{"intent"}),
		processingLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "assistant",
			Name:      "processing_latency_seconds",
			Help:      "Latency distribution for end-to-end query processing.",
			Buckets: []float64{
				0.001, 0.002, 0.005,
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5, 10,
			},
		}, []string{"result"}),
		planComplexity: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "assistant",
			Subsystem: "planner",
			Name:      "complexity",
			Help:      "Complexity score of generated query plans.",
			Buckets:   []float64{1, 1.5, 2, 2.5, 3, 3.5, 4, 4.5, 5},
		}, []string{"table"}),
		snapshotFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistant",
			Subsystem: "memory",
			Name:      "snapshot_failures_total",
			Help:      "Total number of failed conversation snapshot writes.",
		}, []string{"op"}),
		sweepEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "assistant",
			Subsystem: "memory",
			Name:      "sweep_evictions_total",
			Help:      "Total number of conversation records removed by the expiry sweep.",
		}),
		cacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistant",
			Subsystem: "executor",
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups broken down by outcome (hit, miss, error).",
		}, []string{"outcome"}),
		rateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "assistant",
			Name:      "rate_limited_total",
			Help:      "Total number of turns rejected by the per-user rate limit.",
		}),
		memoryRecords: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "assistant",
			Subsystem: "memory",
			Name:      "records",
			Help:      "Conversation records currently held by the repository.",
		}),
	}
})

func assistant() *assistantMetrics {
	return assistantSingleton()
}

// ObserveTurn records one processed turn.
func ObserveTurn(intent string, ok bool, confidence float64, latency time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m := assistant()
	m.turnsTotal.WithLabelValues(intent, result).Inc()
	m.confidence.WithLabelValues(intent).Observe(confidence)
	m.processingLatency.WithLabelValues(result).Observe(latency.Seconds())
}

func ObservePlan(table string, complexity float64) {
	if table == "" {
		table = "none"
	}
	assistant().planComplexity.WithLabelValues(table).Observe(complexity)
}

func SnapshotFailed(op string) {
	assistant().snapshotFailures.WithLabelValues(op).Inc()
}

func SweepEvicted(n int) {
	if n <= 0 {
		return
	}
	assistant().sweepEvictions.Add(float64(n))
}

func CacheLookup(outcome string) {
	assistant().cacheLookups.WithLabelValues(outcome).Inc()
}

func RateLimited() {
	assistant().rateLimited.Inc()
}

func SetMemoryRecords(n int) {
	assistant().memoryRecords.Set(float64(n))
}
