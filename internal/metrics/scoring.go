package metrics

import "github.com/prometheus/client_golang/prometheus"

// Scoring pipeline metrics.
var (
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phishguard",
			Name:      "scans_total",
			Help:      "Total number of scored URLs",
		},
		[]string{"mode"}, // "single" / "batch"
	)

	ScanErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phishguard",
			Name:      "scan_errors_total",
			Help:      "Scans that ended without a risk score",
		},
		[]string{"mode", "kind"}, // kind: "input" / "classifier"
	)

	PageFetchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "phishguard",
			Name:      "page_fetch_failures_total",
			Help:      "Page fetches that fell back to the empty document",
		},
	)

	InferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "phishguard",
			Name:      "inference_duration_seconds",
			Help:      "Classifier invocation duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"model"},
	)

	RuleHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phishguard",
			Name:      "heuristic_rule_hits_total",
			Help:      "Heuristic rules triggered, by rule name",
		},
		[]string{"rule"},
	)

	VerdictCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phishguard",
			Name:      "verdict_cache_lookups_total",
			Help:      "Single-URL verdict cache lookups",
		},
		[]string{"result"}, // "hit" / "miss" / "shared"
	)
)

func init() {
	prometheus.MustRegister(ScansTotal)
	prometheus.MustRegister(ScanErrorsTotal)
	prometheus.MustRegister(PageFetchFailures)
	prometheus.MustRegister(InferenceDuration)
	prometheus.MustRegister(RuleHitsTotal)
	prometheus.MustRegister(VerdictCacheLookups)
}
