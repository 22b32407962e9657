// Package telemetry exposes Prometheus instrumentation for the detection
// engine. Callers scrape the default registry; engine code only increments.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/singura/singura-go/internal/models"
)

var (
	// Normalization boundary
	EventsNormalizedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "singura_events_normalized_total",
			Help: "Total platform records normalized into canonical events",
		},
		[]string{"platform"},
	)

	EventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "singura_events_dropped_total",
			Help: "Total platform records dropped as invalid, by reason",
		},
		[]string{"platform", "reason"},
	)

	// Detection passes
	DetectionPassesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "singura_detection_passes_total",
			Help: "Total detection passes executed by the engine",
		},
	)

	DetectionPassDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "singura_detection_pass_duration_seconds",
			Help:    "Wall-clock duration of a detection pass",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
	)

	DetectorRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "singura_detector_runs_total",
			Help: "Total detector executions, by detector",
		},
		[]string{"detector"},
	)

	DetectorSkipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "singura_detector_skips_total",
			Help: "Total detector executions returning no findings for lack of data",
		},
		[]string{"detector"},
	)

	DetectorErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "singura_detector_errors_total",
			Help: "Total isolated detector failures, by detector",
		},
		[]string{"detector"},
	)

	// Findings
	PatternsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "singura_patterns_emitted_total",
			Help: "Total activity patterns emitted, by pattern type",
		},
		[]string{"type"},
	)

	SignaturesEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "singura_signatures_emitted_total",
			Help: "Total automation signatures emitted, by provider and risk level",
		},
		[]string{"provider", "risk"},
	)

	// Threshold store
	ThresholdLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "singura_threshold_loads_total",
			Help: "Total threshold set loads, by source",
		},
		[]string{"source"},
	)

	ThresholdLoadFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "singura_threshold_load_failures_total",
			Help: "Total threshold loads that fell back to defaults",
		},
	)

	ThresholdSetsCached = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "singura_threshold_sets_cached",
			Help: "Per-organization threshold sets currently cached",
		},
	)

	// Feedback pipeline
	FeedbackLabelsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "singura_feedback_labels_total",
			Help: "Total ground-truth labels ingested, by feedback type",
		},
		[]string{"feedback_type"},
	)

	ThresholdUpdatesProposedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "singura_threshold_updates_proposed_total",
			Help: "Total threshold updates proposed by the feedback learner",
		},
	)
)

// RecordEventNormalized records a platform record accepted at the boundary.
func RecordEventNormalized(platform models.Platform) {
	EventsNormalizedTotal.WithLabelValues(string(platform)).Inc()
}

// RecordEventDropped records a platform record rejected at the boundary.
func RecordEventDropped(platform models.Platform, reason string) {
	EventsDroppedTotal.WithLabelValues(string(platform), reason).Inc()
}

// RecordDetectionPass records one completed engine pass.
func RecordDetectionPass(duration time.Duration) {
	DetectionPassesTotal.Inc()
	DetectionPassDurationSeconds.Observe(duration.Seconds())
}

// RecordDetectorRun records one detector execution.
func RecordDetectorRun(detector string) {
	DetectorRunsTotal.WithLabelValues(detector).Inc()
}

// RecordDetectorSkip records a detector that had too little data to judge.
func RecordDetectorSkip(detector string) {
	DetectorSkipsTotal.WithLabelValues(detector).Inc()
}

// RecordDetectorError records a detector failure that was isolated from the pass.
func RecordDetectorError(detector string) {
	DetectorErrorsTotal.WithLabelValues(detector).Inc()
}

// RecordPattern records an emitted activity pattern.
func RecordPattern(p *models.ActivityPattern) {
	PatternsEmittedTotal.WithLabelValues(string(p.PatternType)).Inc()
}

// RecordSignature records an emitted automation signature.
func RecordSignature(sig *models.AutomationSignature) {
	SignaturesEmittedTotal.WithLabelValues(string(sig.AIProvider), string(sig.RiskLevel)).Inc()
}

// RecordThresholdLoad records a threshold set load by source.
func RecordThresholdLoad(source string) {
	ThresholdLoadsTotal.WithLabelValues(source).Inc()
}

// RecordThresholdLoadFailure records a load that fell back to defaults.
func RecordThresholdLoadFailure() {
	ThresholdLoadFailuresTotal.Inc()
}

// UpdateThresholdSetsCached publishes the current cache size.
func UpdateThresholdSetsCached(n int) {
	ThresholdSetsCached.Set(float64(n))
}

// RecordFeedbackLabel records one ingested ground-truth label.
func RecordFeedbackLabel(feedbackType models.FeedbackType) {
	FeedbackLabelsTotal.WithLabelValues(string(feedbackType)).Inc()
}

// RecordThresholdUpdateProposed records one update proposed by the learner.
func RecordThresholdUpdateProposed() {
	ThresholdUpdatesProposedTotal.Inc()
}
