// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quality_records_processed_total",
			Help: "Total number of change records processed, by terminal state",
		},
		[]string{"outcome"},
	)

	RecordErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quality_record_errors_total",
			Help: "Total number of per-record errors, by error code",
		},
		[]string{"error_code"},
	)

	RecordDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quality_record_duration_seconds",
			Help:    "Duration of change record processing in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)

	ValidatorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quality_validator_calls_total",
			Help: "Total number of validator calls, by provider and result",
		},
		[]string{"provider", "result"},
	)

	ValidatorCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quality_validator_cache_lookups_total",
			Help: "Validation cache lookups, by result",
		},
		[]string{"result"},
	)

	ContentFetchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quality_content_fetch_failures_total",
			Help: "Total number of blob store fetches that returned no content due to an error",
		},
	)

	RecordsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quality_records_published_total",
			Help: "Total number of enriched records written to the output topic",
		},
		[]string{"topic"},
	)

	QualityScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quality_overall_score",
			Help:    "Distribution of overall quality scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	ConsumersActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quality_consumers_active",
			Help: "Number of running consumer loops per topic",
		},
		[]string{"topic"},
	)
)
