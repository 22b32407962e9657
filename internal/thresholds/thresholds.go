// Package thresholds owns detector tuning values: compiled-in defaults, the
// optional calibration file, per-organization overrides proposed by the
// feedback learner, and the cache that hands a consistent set to every
// detector in a pass.
package thresholds

import (
	"fmt"
	"math"
	"time"

	"github.com/oklog/ulid/v2"

	internalerrors "github.com/singura/singura-go/internal/errors"
	"github.com/singura/singura-go/internal/models"
)

// Source identifies where a threshold set came from.
type Source string

const (
	SourceDefault     Source = "default"
	SourceRLOptimized Source = "rl_optimized"
)

const (
	MiB = int64(1024 * 1024)
)

// VelocityThresholds bounds sustained event rates per event type.
type VelocityThresholds struct {
	// Rates holds the maximum human-plausible events per second for each
	// event type. Types without an entry never trigger velocity patterns.
	Rates     map[models.EventType]float64 `json:"rates"`
	MinEvents int                          `json:"minEvents"`
}

// TimingThresholds tunes the regular-interval detector.
type TimingThresholds struct {
	MinEvents     int     `json:"minEvents"`
	MaxIntervalMs int64   `json:"maxIntervalMs"`
	SuspiciousCV  float64 `json:"suspiciousCV"`
	CriticalCV    float64 `json:"criticalCV"`
}

// OffHoursThresholds tunes the off-hours detector.
type OffHoursThresholds struct {
	SuspiciousPercent float64 `json:"suspiciousPercent"`
	CriticalPercent   float64 `json:"criticalPercent"`
	MinEvents         int     `json:"minEvents"`
}

// BatchThresholds tunes the batch-operation detector.
type BatchThresholds struct {
	ClusterGapSeconds int     `json:"clusterGapSeconds"`
	MinClusterSize    int     `json:"minClusterSize"`
	MinNameSimilarity float64 `json:"minNameSimilarity"`
}

// EscalationThresholds tunes the permission-escalation detector.
type EscalationThresholds struct {
	MaxEscalationsPerMonth int     `json:"maxEscalationsPerMonth"`
	MaxLevelJump           int     `json:"maxLevelJump"`
	SuspiciousVelocity     float64 `json:"suspiciousVelocity"`
	MinEvents              int     `json:"minEvents"`
}

// DataVolumeThresholds tunes the data-volume detector.
type DataVolumeThresholds struct {
	DailyWarnBytes     int64   `json:"dailyWarnBytes"`
	DailyCriticalBytes int64   `json:"dailyCriticalBytes"`
	AbnormalMultiplier float64 `json:"abnormalMultiplier"`
	MinBaselineDays    int     `json:"minBaselineDays"`
	FileCountThreshold int     `json:"fileCountThreshold"`
}

// ThresholdSet is the complete tuning state for one organization. Detectors
// receive it by reference and must treat it as read-only; the store replaces
// whole sets rather than mutating fields in place.
type ThresholdSet struct {
	Velocity   VelocityThresholds   `json:"velocity"`
	Timing     TimingThresholds     `json:"timing"`
	OffHours   OffHoursThresholds   `json:"offHours"`
	Batch      BatchThresholds      `json:"batch"`
	Escalation EscalationThresholds `json:"escalation"`
	DataVolume DataVolumeThresholds `json:"dataVolume"`

	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
	Source    Source    `json:"source"`
}

// Defaults returns the compiled-in threshold set. Velocity rates are
// calibration constants: the fastest sustained per-type rates observed from
// human operators, with bot traffic typically an order of magnitude above.
func Defaults() *ThresholdSet {
	return &ThresholdSet{
		Velocity: VelocityThresholds{
			Rates: map[models.EventType]float64{
				models.EventFileCreate:       1.5,
				models.EventFileEdit:         1.0,
				models.EventFileShare:        0.25,
				models.EventFileDownload:     1.0,
				models.EventPermissionChange: 0.1,
				models.EventEmailSend:        0.2,
				models.EventScriptExecution:  0.5,
				models.EventLogin:            0.1,
			},
			MinEvents: 5,
		},
		Timing: TimingThresholds{
			MinEvents:     5,
			MaxIntervalMs: 10_000,
			SuspiciousCV:  0.15,
			CriticalCV:    0.05,
		},
		OffHours: OffHoursThresholds{
			SuspiciousPercent: 30,
			CriticalPercent:   60,
			MinEvents:         10,
		},
		Batch: BatchThresholds{
			ClusterGapSeconds: 10,
			MinClusterSize:    3,
			MinNameSimilarity: 0.7,
		},
		Escalation: EscalationThresholds{
			MaxEscalationsPerMonth: 2,
			MaxLevelJump:           2,
			SuspiciousVelocity:     0.1,
			MinEvents:              3,
		},
		DataVolume: DataVolumeThresholds{
			DailyWarnBytes:     100 * MiB,
			DailyCriticalBytes: 500 * MiB,
			AbnormalMultiplier: 3.0,
			MinBaselineDays:    7,
			FileCountThreshold: 100,
		},
		Version:   ulid.Make().String(),
		UpdatedAt: time.Now().UTC(),
		Source:    SourceDefault,
	}
}

// Clone returns a deep copy of the set.
func (t *ThresholdSet) Clone() *ThresholdSet {
	if t == nil {
		return nil
	}
	clone := *t
	clone.Velocity.Rates = make(map[models.EventType]float64, len(t.Velocity.Rates))
	for k, v := range t.Velocity.Rates {
		clone.Velocity.Rates[k] = v
	}
	return &clone
}

// Validate checks that every bound is finite and strictly positive and that
// paired bounds are ordered. Invalid sets are rejected before they can reach
// a detector.
func (t *ThresholdSet) Validate() error {
	for eventType, rate := range t.Velocity.Rates {
		if !positiveFinite(rate) {
			return invalid(fmt.Sprintf("velocity rate for %s must be positive and finite, got %v", eventType, rate))
		}
	}
	if t.Velocity.MinEvents < 1 {
		return invalid(fmt.Sprintf("velocity minEvents must be at least 1, got %d", t.Velocity.MinEvents))
	}

	if t.Timing.MinEvents < 1 {
		return invalid(fmt.Sprintf("timing minEvents must be at least 1, got %d", t.Timing.MinEvents))
	}
	if t.Timing.MaxIntervalMs <= 0 {
		return invalid(fmt.Sprintf("timing maxIntervalMs must be positive, got %d", t.Timing.MaxIntervalMs))
	}
	if !positiveFinite(t.Timing.SuspiciousCV) || !positiveFinite(t.Timing.CriticalCV) {
		return invalid("timing CV bounds must be positive and finite")
	}
	if t.Timing.CriticalCV >= t.Timing.SuspiciousCV {
		return invalid(fmt.Sprintf("timing criticalCV (%v) must be below suspiciousCV (%v)", t.Timing.CriticalCV, t.Timing.SuspiciousCV))
	}

	if !positiveFinite(t.OffHours.SuspiciousPercent) || t.OffHours.SuspiciousPercent > 100 {
		return invalid(fmt.Sprintf("offHours suspiciousPercent must be in (0,100], got %v", t.OffHours.SuspiciousPercent))
	}
	if !positiveFinite(t.OffHours.CriticalPercent) || t.OffHours.CriticalPercent > 100 {
		return invalid(fmt.Sprintf("offHours criticalPercent must be in (0,100], got %v", t.OffHours.CriticalPercent))
	}
	if t.OffHours.SuspiciousPercent >= t.OffHours.CriticalPercent {
		return invalid(fmt.Sprintf("offHours suspiciousPercent (%v) must be below criticalPercent (%v)", t.OffHours.SuspiciousPercent, t.OffHours.CriticalPercent))
	}
	if t.OffHours.MinEvents < 1 {
		return invalid(fmt.Sprintf("offHours minEvents must be at least 1, got %d", t.OffHours.MinEvents))
	}

	if t.Batch.ClusterGapSeconds <= 0 {
		return invalid(fmt.Sprintf("batch clusterGapSeconds must be positive, got %d", t.Batch.ClusterGapSeconds))
	}
	if t.Batch.MinClusterSize < 2 {
		return invalid(fmt.Sprintf("batch minClusterSize must be at least 2, got %d", t.Batch.MinClusterSize))
	}
	if t.Batch.MinNameSimilarity <= 0 || t.Batch.MinNameSimilarity > 1 {
		return invalid(fmt.Sprintf("batch minNameSimilarity must be in (0,1], got %v", t.Batch.MinNameSimilarity))
	}

	if t.Escalation.MaxEscalationsPerMonth < 1 {
		return invalid(fmt.Sprintf("escalation maxEscalationsPerMonth must be at least 1, got %d", t.Escalation.MaxEscalationsPerMonth))
	}
	if t.Escalation.MaxLevelJump < 1 {
		return invalid(fmt.Sprintf("escalation maxLevelJump must be at least 1, got %d", t.Escalation.MaxLevelJump))
	}
	if !positiveFinite(t.Escalation.SuspiciousVelocity) {
		return invalid(fmt.Sprintf("escalation suspiciousVelocity must be positive and finite, got %v", t.Escalation.SuspiciousVelocity))
	}
	if t.Escalation.MinEvents < 1 {
		return invalid(fmt.Sprintf("escalation minEvents must be at least 1, got %d", t.Escalation.MinEvents))
	}

	if t.DataVolume.DailyWarnBytes <= 0 || t.DataVolume.DailyCriticalBytes <= 0 {
		return invalid("dataVolume byte bounds must be positive")
	}
	if t.DataVolume.DailyWarnBytes >= t.DataVolume.DailyCriticalBytes {
		return invalid(fmt.Sprintf("dataVolume dailyWarnBytes (%d) must be below dailyCriticalBytes (%d)", t.DataVolume.DailyWarnBytes, t.DataVolume.DailyCriticalBytes))
	}
	if !positiveFinite(t.DataVolume.AbnormalMultiplier) {
		return invalid(fmt.Sprintf("dataVolume abnormalMultiplier must be positive and finite, got %v", t.DataVolume.AbnormalMultiplier))
	}
	if t.DataVolume.MinBaselineDays < 1 {
		return invalid(fmt.Sprintf("dataVolume minBaselineDays must be at least 1, got %d", t.DataVolume.MinBaselineDays))
	}
	if t.DataVolume.FileCountThreshold < 1 {
		return invalid(fmt.Sprintf("dataVolume fileCountThreshold must be at least 1, got %d", t.DataVolume.FileCountThreshold))
	}

	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func invalid(msg string) error {
	return internalerrors.WrapInvalidInput("thresholds.Validate", fmt.Errorf("%s", msg))
}

// Partial carries a sparse override of a ThresholdSet. Nil fields leave the
// base value untouched. It is the wire shape of both the calibration file and
// the feedback learner's proposals.
type Partial struct {
	Velocity   *VelocityPartial   `json:"velocity,omitempty"`
	Timing     *TimingPartial     `json:"timing,omitempty"`
	OffHours   *OffHoursPartial   `json:"offHours,omitempty"`
	Batch      *BatchPartial      `json:"batch,omitempty"`
	Escalation *EscalationPartial `json:"escalation,omitempty"`
	DataVolume *DataVolumePartial `json:"dataVolume,omitempty"`
}

// VelocityPartial overrides velocity tuning. Rates merge per event type.
type VelocityPartial struct {
	Rates     map[models.EventType]float64 `json:"rates,omitempty"`
	MinEvents *int                         `json:"minEvents,omitempty"`
}

type TimingPartial struct {
	MinEvents     *int     `json:"minEvents,omitempty"`
	MaxIntervalMs *int64   `json:"maxIntervalMs,omitempty"`
	SuspiciousCV  *float64 `json:"suspiciousCV,omitempty"`
	CriticalCV    *float64 `json:"criticalCV,omitempty"`
}

type OffHoursPartial struct {
	SuspiciousPercent *float64 `json:"suspiciousPercent,omitempty"`
	CriticalPercent   *float64 `json:"criticalPercent,omitempty"`
	MinEvents         *int     `json:"minEvents,omitempty"`
}

type BatchPartial struct {
	ClusterGapSeconds *int     `json:"clusterGapSeconds,omitempty"`
	MinClusterSize    *int     `json:"minClusterSize,omitempty"`
	MinNameSimilarity *float64 `json:"minNameSimilarity,omitempty"`
}

type EscalationPartial struct {
	MaxEscalationsPerMonth *int     `json:"maxEscalationsPerMonth,omitempty"`
	MaxLevelJump           *int     `json:"maxLevelJump,omitempty"`
	SuspiciousVelocity     *float64 `json:"suspiciousVelocity,omitempty"`
	MinEvents              *int     `json:"minEvents,omitempty"`
}

type DataVolumePartial struct {
	DailyWarnBytes     *int64   `json:"dailyWarnBytes,omitempty"`
	DailyCriticalBytes *int64   `json:"dailyCriticalBytes,omitempty"`
	AbnormalMultiplier *float64 `json:"abnormalMultiplier,omitempty"`
	MinBaselineDays    *int     `json:"minBaselineDays,omitempty"`
	FileCountThreshold *int     `json:"fileCountThreshold,omitempty"`
}

// IsZero reports whether the partial overrides nothing.
func (p *Partial) IsZero() bool {
	if p == nil {
		return true
	}
	return p.Velocity == nil && p.Timing == nil && p.OffHours == nil &&
		p.Batch == nil && p.Escalation == nil && p.DataVolume == nil
}

// Merge returns a new set with the partial applied atop base. The base is
// never mutated.
func Merge(base *ThresholdSet, p *Partial) *ThresholdSet {
	merged := base.Clone()
	if p == nil {
		return merged
	}

	if p.Velocity != nil {
		for eventType, rate := range p.Velocity.Rates {
			merged.Velocity.Rates[eventType] = rate
		}
		if p.Velocity.MinEvents != nil {
			merged.Velocity.MinEvents = *p.Velocity.MinEvents
		}
	}
	if p.Timing != nil {
		if p.Timing.MinEvents != nil {
			merged.Timing.MinEvents = *p.Timing.MinEvents
		}
		if p.Timing.MaxIntervalMs != nil {
			merged.Timing.MaxIntervalMs = *p.Timing.MaxIntervalMs
		}
		if p.Timing.SuspiciousCV != nil {
			merged.Timing.SuspiciousCV = *p.Timing.SuspiciousCV
		}
		if p.Timing.CriticalCV != nil {
			merged.Timing.CriticalCV = *p.Timing.CriticalCV
		}
	}
	if p.OffHours != nil {
		if p.OffHours.SuspiciousPercent != nil {
			merged.OffHours.SuspiciousPercent = *p.OffHours.SuspiciousPercent
		}
		if p.OffHours.CriticalPercent != nil {
			merged.OffHours.CriticalPercent = *p.OffHours.CriticalPercent
		}
		if p.OffHours.MinEvents != nil {
			merged.OffHours.MinEvents = *p.OffHours.MinEvents
		}
	}
	if p.Batch != nil {
		if p.Batch.ClusterGapSeconds != nil {
			merged.Batch.ClusterGapSeconds = *p.Batch.ClusterGapSeconds
		}
		if p.Batch.MinClusterSize != nil {
			merged.Batch.MinClusterSize = *p.Batch.MinClusterSize
		}
		if p.Batch.MinNameSimilarity != nil {
			merged.Batch.MinNameSimilarity = *p.Batch.MinNameSimilarity
		}
	}
	if p.Escalation != nil {
		if p.Escalation.MaxEscalationsPerMonth != nil {
			merged.Escalation.MaxEscalationsPerMonth = *p.Escalation.MaxEscalationsPerMonth
		}
		if p.Escalation.MaxLevelJump != nil {
			merged.Escalation.MaxLevelJump = *p.Escalation.MaxLevelJump
		}
		if p.Escalation.SuspiciousVelocity != nil {
			merged.Escalation.SuspiciousVelocity = *p.Escalation.SuspiciousVelocity
		}
		if p.Escalation.MinEvents != nil {
			merged.Escalation.MinEvents = *p.Escalation.MinEvents
		}
	}
	if p.DataVolume != nil {
		if p.DataVolume.DailyWarnBytes != nil {
			merged.DataVolume.DailyWarnBytes = *p.DataVolume.DailyWarnBytes
		}
		if p.DataVolume.DailyCriticalBytes != nil {
			merged.DataVolume.DailyCriticalBytes = *p.DataVolume.DailyCriticalBytes
		}
		if p.DataVolume.AbnormalMultiplier != nil {
			merged.DataVolume.AbnormalMultiplier = *p.DataVolume.AbnormalMultiplier
		}
		if p.DataVolume.MinBaselineDays != nil {
			merged.DataVolume.MinBaselineDays = *p.DataVolume.MinBaselineDays
		}
		if p.DataVolume.FileCountThreshold != nil {
			merged.DataVolume.FileCountThreshold = *p.DataVolume.FileCountThreshold
		}
	}

	return merged
}
