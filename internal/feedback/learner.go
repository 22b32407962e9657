package feedback

import (
	"context"
	"errors"
	"math"

	"github.com/rs/zerolog/log"

	internalerrors "github.com/singura/singura-go/internal/errors"
	"github.com/singura/singura-go/internal/models"
	"github.com/singura/singura-go/internal/stats"
	"github.com/singura/singura-go/internal/telemetry"
	"github.com/singura/singura-go/internal/thresholds"
)

const (
	// MinLabelsPerOrg is the actionable-label floor before any threshold
	// moves for an organization.
	MinLabelsPerOrg = 50

	// MaxChangePerCycle clips every proposed value to within 25% of its
	// current value per update cycle.
	MaxChangePerCycle = 0.25

	// adjustmentGain converts label imbalance into a relative move. At half
	// gain the clip binds once half the labels disagree with the engine.
	adjustmentGain = 0.5

	// minAdjustment is the smallest relative move worth a version bump.
	minAdjustment = 0.01
)

var errMissingOrganization = errors.New("organizationId is required")

// Learner proposes bounded per-organization threshold updates from the
// accumulated ground-truth labels.
type Learner struct {
	labels     *Store
	thresholds *thresholds.Store
	minLabels  int
	maxChange  float64
}

// NewLearner wires the ground-truth store to the threshold store it tunes.
func NewLearner(labels *Store, thresholdStore *thresholds.Store) *Learner {
	return &Learner{
		labels:     labels,
		thresholds: thresholdStore,
		minLabels:  MinLabelsPerOrg,
		maxChange:  MaxChangePerCycle,
	}
}

// Propose computes the organization's next threshold override from its
// actionable labels. It returns nil without error when the label floor is
// not met or the labels are too balanced to justify a move.
func (l *Learner) Propose(ctx context.Context, organizationID string) (*thresholds.Partial, error) {
	if organizationID == "" {
		return nil, internalerrors.WrapInvalidInput("feedback.Propose", errMissingOrganization)
	}

	actionable := l.labels.ActionableFor(organizationID)
	if len(actionable) < l.minLabels {
		log.Debug().
			Str("orgId", organizationID).
			Int("labels", len(actionable)).
			Int("floor", l.minLabels).
			Msg("Label floor not met, no threshold proposal")
		return nil, nil
	}

	falsePositives, falseNegatives := tallyVerdicts(actionable)
	net := float64(falsePositives-falseNegatives) / float64(len(actionable))
	adjustment := stats.Clamp(net*adjustmentGain, -l.maxChange, l.maxChange)
	if math.Abs(adjustment) < minAdjustment {
		return nil, nil
	}

	base := l.thresholds.GetFor(ctx, organizationID)
	proposal := scaledPartial(base, adjustment)

	telemetry.RecordThresholdUpdateProposed()
	log.Info().
		Str("orgId", organizationID).
		Int("falsePositives", falsePositives).
		Int("falseNegatives", falseNegatives).
		Float64("adjustment", adjustment).
		Msg("Threshold update proposed")
	return proposal, nil
}

// ProposeAndApply installs the proposal through the threshold store, which
// validates and versions the merged set. A nil proposal applies nothing and
// returns nil.
func (l *Learner) ProposeAndApply(ctx context.Context, organizationID string) (*thresholds.ThresholdSet, error) {
	proposal, err := l.Propose(ctx, organizationID)
	if err != nil || proposal == nil {
		return nil, err
	}
	return l.thresholds.Apply(organizationID, proposal)
}

// tallyVerdicts splits labels into the engine's mistakes. A legitimate label
// marks a false positive; a malicious label below full confidence is the
// retrospective false-negative report.
func tallyVerdicts(labels []models.GroundTruthLabel) (falsePositives, falseNegatives int) {
	for i := range labels {
		switch {
		case labels[i].Actual == models.ClassLegitimate:
			falsePositives++
		case labels[i].Confidence < fullConfidence:
			falseNegatives++
		}
	}
	return falsePositives, falseNegatives
}

// scaledPartial scales the sensitivity knobs of base by (1 + adjustment).
// A positive adjustment (false-positive heavy) raises every trigger bar;
// the timing CV bands shrink instead, because a narrower band is the one
// that fires less.
func scaledPartial(base *thresholds.ThresholdSet, adjustment float64) *thresholds.Partial {
	scale := 1 + adjustment
	inverse := 1 - adjustment

	rates := make(map[models.EventType]float64, len(base.Velocity.Rates))
	for eventType, rate := range base.Velocity.Rates {
		rates[eventType] = rate * scale
	}

	criticalPercent := math.Min(base.OffHours.CriticalPercent*scale, 100)
	suspiciousPercent := math.Min(base.OffHours.SuspiciousPercent*scale, criticalPercent*0.99)

	suspiciousCV := base.Timing.SuspiciousCV * inverse
	criticalCV := base.Timing.CriticalCV * inverse

	escalationVelocity := base.Escalation.SuspiciousVelocity * scale
	multiplier := base.DataVolume.AbnormalMultiplier * scale
	warnBytes := int64(float64(base.DataVolume.DailyWarnBytes) * scale)
	criticalBytes := int64(float64(base.DataVolume.DailyCriticalBytes) * scale)

	return &thresholds.Partial{
		Velocity: &thresholds.VelocityPartial{Rates: rates},
		Timing: &thresholds.TimingPartial{
			SuspiciousCV: &suspiciousCV,
			CriticalCV:   &criticalCV,
		},
		OffHours: &thresholds.OffHoursPartial{
			SuspiciousPercent: &suspiciousPercent,
			CriticalPercent:   &criticalPercent,
		},
		Escalation: &thresholds.EscalationPartial{SuspiciousVelocity: &escalationVelocity},
		DataVolume: &thresholds.DataVolumePartial{
			DailyWarnBytes:     &warnBytes,
			DailyCriticalBytes: &criticalBytes,
			AbnormalMultiplier: &multiplier,
		},
	}
}
