package analyzer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

const tracerName = "veil.analyzer"

var tracer = otel.Tracer(tracerName)

// Recognizer invocation outcomes.
const (
	outcomeSuccess = "success"
	outcomeError   = "error"
	outcomeTimeout = "timeout"
	outcomePanic   = "panic"
)

var (
	recognizerInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veil",
		Name:      "recognizer_invocations_total",
		Help:      "Recognizer invocations by recognizer and outcome.",
	}, []string{"recognizer", "outcome"})

	recognizerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "veil",
		Name:      "recognizer_duration_seconds",
		Help:      "Time spent in a single recognizer invocation.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	}, []string{"recognizer"})

	analyzeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veil",
		Name:      "analyze_requests_total",
		Help:      "Analyze calls by language and outcome.",
	}, []string{"language", "outcome"})

	matchesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veil",
		Name:      "matches_dropped_total",
		Help:      "Matches removed during conflict resolution, by reason.",
	}, []string{"reason"})
)

func recordInvocation(recognizer, outcome string, elapsed time.Duration) {
	recognizerInvocations.WithLabelValues(recognizer, outcome).Inc()
	recognizerDuration.WithLabelValues(recognizer).Observe(elapsed.Seconds())
}

func recordResolveStats(stats ResolveStats) {
	for reason, n := range map[string]int{
		"invalid":           stats.Invalid,
		"below_threshold":   stats.BelowThreshold,
		"not_requested":     stats.NotRequested,
		"same_type_overlap": stats.SameTypeOverlap,
		"contained":         stats.Contained,
	} {
		if n > 0 {
			matchesDropped.WithLabelValues(reason).Add(float64(n))
		}
	}
}
