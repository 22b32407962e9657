package detectors

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/singura/singura-go/internal/models"
	"github.com/singura/singura-go/internal/stats"
)

// NameTimingVariance labels the timing-variance detector.
const NameTimingVariance = "timing_variance"

// actionWeights boosts confidence for action types where scripted cadence
// is more consequential. Types not listed weigh 1.0.
var actionWeights = map[models.EventType]float64{
	models.EventScriptExecution:  1.30,
	models.EventPermissionChange: 1.25,
	models.EventFileCreate:       1.20,
	models.EventFileEdit:         1.15,
	models.EventFileShare:        1.15,
	models.EventEmailSend:        1.10,
}

// TimingVariance flags metronomic activity. Humans produce jittery
// inter-event intervals; schedulers and scripts do not. Per user, events are
// split into sequences wherever the gap exceeds maxIntervalMs, and each
// sequence with enough intervals is scored by its coefficient of variation.
type TimingVariance struct{}

func (TimingVariance) Name() string { return NameTimingVariance }

func (TimingVariance) Detect(ctx context.Context, batch Batch) (Outcome, error) {
	cfg := batch.Thresholds.Timing
	groups, users := groupByUser(batch.Events)

	now := time.Now().UTC()
	var out Outcome
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		events := groups[userID]
		sortByTime(events)

		for _, seq := range splitSequences(events, cfg.MaxIntervalMs) {
			intervals := intervalsMs(seq)
			if len(intervals) < cfg.MinEvents {
				continue
			}
			out.Evaluated++

			cv := stats.CV(intervals)
			if cv >= cfg.SuspiciousCV {
				continue
			}
			if !hasKnownType(seq) {
				continue
			}

			var confidence float64
			if cv < cfg.CriticalCV {
				confidence = 95 + 5*(1-cv/cfg.CriticalCV)
			} else {
				confidence = 70 + 25*(cfg.SuspiciousCV-cv)/(cfg.SuspiciousCV-cfg.CriticalCV)
			}
			dominant := dominantAction(seq)
			weight := actionWeights[dominant]
			if weight == 0 {
				weight = 1.0
			}
			confidence = stats.Clamp(confidence*weight, 0, 100)

			mean := stats.Mean(intervals)
			log.Debug().
				Str("userId", userID).
				Float64("coefficientOfVariation", cv).
				Float64("meanIntervalMs", mean).
				Int("intervals", len(intervals)).
				Msg("regular interval sequence detected")

			out.Patterns = append(out.Patterns, models.ActivityPattern{
				PatternID:   uuid.NewString(),
				PatternType: models.PatternRegularInterval,
				DetectedAt:  now,
				Confidence:  confidence,
				Metadata: models.PatternMetadata{
					UserID:       userID,
					UserEmail:    firstEmail(seq),
					ResourceType: seq[0].ResourceType,
					ActionType:   dominant,
					Timestamp:    seq[len(seq)-1].Timestamp,
				},
				Evidence: models.PatternEvidence{
					Description: fmt.Sprintf("%d events at near-constant %.0fms intervals (CV %.3f)",
						len(seq), mean, cv),
					DataPoints: map[string]interface{}{
						"coefficientOfVariation": cv,
						"meanIntervalMs":         mean,
						"stdDevMs":               stats.StdDev(intervals),
						"intervalCount":          len(intervals),
						"actionTypeWeight":       weight,
					},
					SupportingEvents: eventIDs(seq),
				},
			})
		}
	}
	return out, nil
}

// splitSequences cuts a chronologically sorted event list into runs whose
// consecutive gaps stay within maxIntervalMs. Gaps beyond the cap mean the
// user walked away; cadence across them is meaningless.
func splitSequences(events []*models.Event, maxIntervalMs int64) [][]*models.Event {
	if len(events) == 0 {
		return nil
	}
	maxGap := time.Duration(maxIntervalMs) * time.Millisecond
	var sequences [][]*models.Event
	start := 0
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Sub(events[i-1].Timestamp) > maxGap {
			sequences = append(sequences, events[start:i])
			start = i
		}
	}
	return append(sequences, events[start:])
}

// intervalsMs returns the consecutive inter-event gaps in milliseconds.
func intervalsMs(events []*models.Event) []float64 {
	if len(events) < 2 {
		return nil
	}
	intervals := make([]float64, 0, len(events)-1)
	for i := 1; i < len(events); i++ {
		gap := events[i].Timestamp.Sub(events[i-1].Timestamp)
		intervals = append(intervals, float64(gap)/float64(time.Millisecond))
	}
	return intervals
}

// dominantAction returns the most frequent event type in the sequence.
// Unknown-typed events count in the tally. Ties go to the type with the
// higher action weight, then alphabetically, so the choice is stable.
func dominantAction(events []*models.Event) models.EventType {
	counts := make(map[models.EventType]int)
	for _, ev := range events {
		counts[ev.EventType]++
	}
	var best models.EventType
	bestCount := -1
	for eventType, count := range counts {
		switch {
		case count > bestCount:
			best, bestCount = eventType, count
		case count == bestCount:
			if actionWeights[eventType] > actionWeights[best] ||
				(actionWeights[eventType] == actionWeights[best] && eventType < best) {
				best = eventType
			}
		}
	}
	return best
}
