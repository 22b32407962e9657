// Package detectors holds the statistical pattern detectors that turn a
// batch of normalized audit events into ActivityPattern findings. Every
// detector sees the full batch read-only and works from the ThresholdSet
// resolved for the pass; insufficient data yields an empty outcome, never
// an error. Detectors are stateless values safe for concurrent use.
package detectors

import (
	"context"
	"sort"

	"github.com/singura/singura-go/internal/models"
	"github.com/singura/singura-go/internal/thresholds"
)

// Batch is the read-only input one detection pass hands to every detector.
type Batch struct {
	Events     []models.Event
	Thresholds *thresholds.ThresholdSet
	Hours      models.ActivityTimeframe
}

// Outcome is what one detector produced over a batch. Evaluated counts the
// per-user (or per-group) series that met the detector's minimum data
// requirements; a zero means the detector had nothing it could judge.
type Outcome struct {
	Patterns  []models.ActivityPattern
	Evaluated int
}

// Detector is one behavioral analyzer. Implementations must not mutate the
// batch and must return patterns in a stable order for identical input.
type Detector interface {
	Name() string
	Detect(ctx context.Context, batch Batch) (Outcome, error)
}

// All returns the detector roster in its canonical order. The engine
// aggregates results in this order, so it is part of the output contract.
func All() []Detector {
	return []Detector{
		Velocity{},
		TimingVariance{},
		OffHours{},
		BatchOperation{},
		PermissionEscalation{},
		DataVolume{},
	}
}

// groupByUser buckets events per user, keeping pointers into the input
// slice rather than copies. The returned user IDs are sorted so callers
// iterate deterministically.
func groupByUser(events []models.Event) (map[string][]*models.Event, []string) {
	groups := make(map[string][]*models.Event)
	for i := range events {
		ev := &events[i]
		groups[ev.UserID] = append(groups[ev.UserID], ev)
	}
	users := make([]string, 0, len(groups))
	for id := range groups {
		users = append(users, id)
	}
	sort.Strings(users)
	return groups, users
}

// sortByTime orders event pointers chronologically, breaking timestamp ties
// by event ID so equal inputs always produce equal output.
func sortByTime(events []*models.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].EventID < events[j].EventID
		}
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}

// eventIDs collects the IDs of the events that back a pattern.
func eventIDs(events []*models.Event) []string {
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.EventID)
	}
	return ids
}

// hasKnownType reports whether at least one event carries a recognized
// event type. Events coerced to unknown count as activity but must never
// be the sole trigger of a pattern.
func hasKnownType(events []*models.Event) bool {
	for _, ev := range events {
		if ev.EventType.Known() {
			return true
		}
	}
	return false
}

// firstEmail returns the first non-empty user email in the group, used to
// enrich pattern metadata when the platform supplied one.
func firstEmail(events []*models.Event) string {
	for _, ev := range events {
		if ev.UserEmail != "" {
			return ev.UserEmail
		}
	}
	return ""
}
