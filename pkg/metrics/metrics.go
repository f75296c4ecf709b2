package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Query pipeline metrics
	QueriesProcessed *prometheus.CounterVec
	QueryDuration    *prometheus.HistogramVec
	PipelineErrors   *prometheus.CounterVec

	// External service metrics
	ExternalCalls   *prometheus.CounterVec
	ExternalLatency *prometheus.HistogramVec

	// Retrieval metrics
	SearchesTotal    prometheus.Counter
	SearchCacheHits  prometheus.Counter
	MatchesRetained  prometheus.Histogram
	DocumentsIndexed prometheus.Counter
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		QueriesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queries_processed_total",
			Help:      "Total number of processed medication queries",
		}, []string{"kind", "status"}),
		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "query_duration_seconds",
			Help:      "Time spent processing a medication query end to end",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),
		PipelineErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pipeline_errors_total",
			Help:      "Total number of pipeline stage errors",
		}, []string{"stage"}),

		ExternalCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "external_calls_total",
			Help:      "Total number of calls to external services",
		}, []string{"service", "status"}),
		ExternalLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "external_call_duration_seconds",
			Help:      "Duration of external service calls",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"service"}),

		SearchesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "searches_total",
			Help:      "Total number of similarity searches",
		}),
		SearchCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "search_cache_hits_total",
			Help:      "Total number of similarity searches served from cache",
		}),
		MatchesRetained: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "matches_retained",
			Help:      "Number of matches retained after threshold filtering",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 10, 15},
		}),
		DocumentsIndexed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "documents_indexed_total",
			Help:      "Total number of embedding documents ingested",
		}),
	}
}
