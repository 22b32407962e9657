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

// NameOffHours labels the off-hours detector.
const NameOffHours = "off_hours"

// OffHours flags users whose activity concentrates outside the
// organization's business hours. Classification happens in the timeframe's
// IANA zone, so daylight-saving shifts move the window with the clock.
type OffHours struct{}

func (OffHours) Name() string { return NameOffHours }

func (OffHours) Detect(ctx context.Context, batch Batch) (Outcome, error) {
	cfg := batch.Thresholds.OffHours
	groups, users := groupByUser(batch.Events)

	now := time.Now().UTC()
	var out Outcome
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		events := groups[userID]
		if len(events) < cfg.MinEvents {
			continue
		}
		out.Evaluated++

		var offEvents []*models.Event
		for _, ev := range events {
			if !batch.Hours.Contains(ev.Timestamp) {
				offEvents = append(offEvents, ev)
			}
		}
		percentage := float64(len(offEvents)) / float64(len(events)) * 100
		if percentage < cfg.SuspiciousPercent {
			continue
		}
		if !hasKnownType(offEvents) {
			continue
		}

		confidence := stats.Clamp(
			100*(percentage-cfg.SuspiciousPercent)/(cfg.CriticalPercent-cfg.SuspiciousPercent),
			0, 100)

		sortByTime(offEvents)
		log.Debug().
			Str("userId", userID).
			Float64("offHoursPercentage", percentage).
			Int("offHoursCount", len(offEvents)).
			Msg("off-hours activity concentration detected")

		out.Patterns = append(out.Patterns, models.ActivityPattern{
			PatternID:   uuid.NewString(),
			PatternType: models.PatternOffHours,
			DetectedAt:  now,
			Confidence:  confidence,
			Metadata: models.PatternMetadata{
				UserID:       userID,
				UserEmail:    firstEmail(events),
				ResourceType: offEvents[0].ResourceType,
				ActionType:   dominantAction(offEvents),
				Timestamp:    offEvents[len(offEvents)-1].Timestamp,
			},
			Evidence: models.PatternEvidence{
				Description: fmt.Sprintf("%.0f%% of activity outside business hours (%d of %d events)",
					percentage, len(offEvents), len(events)),
				DataPoints: map[string]interface{}{
					"offHoursPercentage": percentage,
					"offHoursCount":      len(offEvents),
					"totalEvents":        len(events),
					"businessHoursStart": batch.Hours.StartHour,
					"businessHoursEnd":   batch.Hours.EndHour,
					"timezone":           batch.Hours.Timezone,
				},
				SupportingEvents: eventIDs(offEvents),
			},
		})
	}
	return out, nil
}
