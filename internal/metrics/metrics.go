package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

// Tracer is the OpenTelemetry tracer for validation spans. It is a no-op
// unless the host process installs a tracer provider.
var Tracer = otel.Tracer("github.com/ppiankov/citecheck")

var (
	ValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citecheck_validations_total",
			Help: "Citation validations by resulting status",
		},
		[]string{"status"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citecheck_cache_hits_total",
			Help: "Read-through cache hits by lookup kind",
		},
		[]string{"kind"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citecheck_cache_misses_total",
			Help: "Read-through cache misses by lookup kind",
		},
		[]string{"kind"},
	)

	OracleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "citecheck_oracle_duration_seconds",
			Help:    "Latency of reasoning oracle calls",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"provider"},
	)

	OracleFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citecheck_oracle_failures_total",
			Help: "Oracle calls that failed or returned an unusable response",
		},
		[]string{"provider"},
	)

	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citecheck_tokens_total",
			Help: "Tokens consumed by oracle calls",
		},
		[]string{"direction"},
	)

	CostUSD = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "citecheck_cost_usd_total",
			Help: "Estimated oracle spend in US dollars",
		},
	)

	CorpusCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citecheck_corpus_calls_total",
			Help: "Corpus CLI invocations by command and outcome",
		},
		[]string{"command", "outcome"},
	)
)
