package detectors

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/singura/singura-go/internal/models"
	"github.com/singura/singura-go/internal/stats"
)

// NameVelocity labels the velocity detector in outcomes and metrics.
const NameVelocity = "velocity"

// Velocity flags event rates no human operator sustains. Events are grouped
// per (userId, eventType); a group emits when its observed events-per-second
// exceeds the calibrated rate for that event type.
type Velocity struct{}

func (Velocity) Name() string { return NameVelocity }

func (Velocity) Detect(ctx context.Context, batch Batch) (Outcome, error) {
	cfg := batch.Thresholds.Velocity

	type groupKey struct {
		userID    string
		eventType models.EventType
	}
	groups := make(map[groupKey][]*models.Event)
	for i := range batch.Events {
		ev := &batch.Events[i]
		if !ev.EventType.Known() {
			continue
		}
		if _, ok := cfg.Rates[ev.EventType]; !ok {
			continue
		}
		k := groupKey{userID: ev.UserID, eventType: ev.EventType}
		groups[k] = append(groups[k], ev)
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].userID != keys[j].userID {
			return keys[i].userID < keys[j].userID
		}
		return keys[i].eventType < keys[j].eventType
	})

	now := time.Now().UTC()
	var out Outcome
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		group := groups[k]
		if len(group) < cfg.MinEvents {
			continue
		}
		out.Evaluated++

		sortByTime(group)
		window := group[len(group)-1].Timestamp.Sub(group[0].Timestamp)
		if window <= 0 {
			// All events share one timestamp; a rate is undefined.
			continue
		}

		rate := float64(len(group)) / window.Seconds()
		limit := cfg.Rates[k.eventType]
		if rate <= limit {
			continue
		}

		ratio := rate / limit
		confidence := stats.Clamp(50+50*(ratio-1)/9, 0, 100)

		log.Debug().
			Str("userId", k.userID).
			Str("eventType", string(k.eventType)).
			Float64("eventsPerSecond", rate).
			Float64("threshold", limit).
			Msg("velocity threshold exceeded")

		out.Patterns = append(out.Patterns, models.ActivityPattern{
			PatternID:   uuid.NewString(),
			PatternType: models.PatternVelocity,
			DetectedAt:  now,
			Confidence:  confidence,
			Metadata: models.PatternMetadata{
				UserID:       k.userID,
				UserEmail:    firstEmail(group),
				ResourceType: group[0].ResourceType,
				ActionType:   k.eventType,
				Timestamp:    group[len(group)-1].Timestamp,
			},
			Evidence: models.PatternEvidence{
				Description: fmt.Sprintf("%d %s events in %.1fs (%.2f/s, threshold %.2f/s)",
					len(group), k.eventType, window.Seconds(), rate, limit),
				DataPoints: map[string]interface{}{
					"eventsPerSecond":    rate,
					"thresholdPerSecond": limit,
					"eventCount":         len(group),
					"windowSeconds":      window.Seconds(),
				},
				SupportingEvents: eventIDs(group),
			},
		})
	}
	return out, nil
}
