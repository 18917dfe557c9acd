package observability

import "github.com/prometheus/client_golang/prometheus"

const metricNamespace = "querypilot"

// Collectors are registered with the default registry, which /metrics serves.
var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	httpRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served.",
		},
	)

	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "questions_total",
			Help:      "Total number of answered questions by outcome.",
		},
		[]string{"outcome"},
	)
	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: "sql",
			Name:      "rejections_total",
			Help:      "Total number of generated statements rejected by the SQL guard, by reason.",
		},
		[]string{"reason"},
	)
	executionSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Subsystem: "query",
			Name:      "execution_seconds",
			Help:      "Wall-clock time spent executing validated statements.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2.5, 10),
		},
	)
	translationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Name:      "translation_seconds",
			Help:      "Latency of the text-generation call that turns a question into SQL.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
	)
	queryLogEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: "query_log",
			Name:      "entries",
			Help:      "Number of entries in the in-memory query log.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		httpRequestsInFlight,
		questionsTotal,
		rejectionsTotal,
		executionSeconds,
		translationSeconds,
		queryLogEntries,
	)
}
