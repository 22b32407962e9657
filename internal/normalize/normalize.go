// Package normalize is the event boundary: it maps per-platform audit records
// onto the canonical Event type, validates required fields, and produces the
// secondary AIActivity view for AI-platform feeds. Invalid records are
// dropped and counted, never silently repaired.
package normalize

import (
	"fmt"

	"github.com/rs/zerolog/log"

	internalerrors "github.com/singura/singura-go/internal/errors"
	"github.com/singura/singura-go/internal/models"
	"github.com/singura/singura-go/internal/telemetry"
)

// Drop reasons reported per invalid record.
const (
	ReasonMissingTimestamp = "missing_timestamp"
	ReasonMissingUserID    = "missing_user_id"
	ReasonMissingEventType = "missing_event_type"
)

// validationReason returns the first missing required field, or "" when the
// event is acceptable.
func validationReason(e *models.Event) string {
	if e.Timestamp.IsZero() {
		return ReasonMissingTimestamp
	}
	if e.UserID == "" {
		return ReasonMissingUserID
	}
	if e.EventType == "" {
		return ReasonMissingEventType
	}
	return ""
}

// ValidateEvent checks the required fields of a canonical event: a non-zero
// timestamp, a user ID, and an event type.
func ValidateEvent(e *models.Event) error {
	if reason := validationReason(e); reason != "" {
		return internalerrors.WrapInvalidEvent("normalize.ValidateEvent", fmt.Errorf("%s", reason))
	}
	return nil
}

// Canonicalize validates an event and coerces out-of-set event types to
// "unknown". The input is not mutated; the returned copy is safe to feed to
// detectors.
func Canonicalize(e models.Event) (models.Event, error) {
	if err := ValidateEvent(&e); err != nil {
		return models.Event{}, err
	}
	e.EventType = models.CoerceEventType(string(e.EventType))
	return e, nil
}

// BatchStats summarizes one normalization batch.
type BatchStats struct {
	Normalized      int            `json:"normalized"`
	Dropped         int            `json:"dropped"`
	DroppedByReason map[string]int `json:"droppedByReason,omitempty"`
}

func (s *BatchStats) drop(platform models.Platform, reason string) {
	s.Dropped++
	if s.DroppedByReason == nil {
		s.DroppedByReason = make(map[string]int)
	}
	s.DroppedByReason[reason]++
	telemetry.RecordEventDropped(platform, reason)
}

// NormalizeBatch maps a slice of raw platform records onto canonical events.
// Invalid records are dropped and counted; the rest are emitted in input
// order so per-user ordering from the source feed is preserved.
func NormalizeBatch(platform models.Platform, records []map[string]interface{}) ([]models.Event, BatchStats) {
	events := make([]models.Event, 0, len(records))
	var stats BatchStats

	for _, record := range records {
		event, err := NormalizeRecord(platform, record)
		if err != nil {
			reason := ReasonMissingEventType
			if r := dropReason(err); r != "" {
				reason = r
			}
			stats.drop(platform, reason)
			continue
		}
		events = append(events, event)
		stats.Normalized++
		telemetry.RecordEventNormalized(platform)
	}

	if stats.Dropped > 0 {
		log.Debug().
			Str("platform", string(platform)).
			Int("normalized", stats.Normalized).
			Int("dropped", stats.Dropped).
			Msg("Normalized batch with drops")
	}

	return events, stats
}

// dropError carries the drop reason through the error chain so batch counters
// can attribute it.
type dropError struct {
	reason string
	err    error
}

func (e *dropError) Error() string { return e.err.Error() }
func (e *dropError) Unwrap() error { return e.err }

func newDropError(reason string) error {
	return &dropError{
		reason: reason,
		err:    internalerrors.WrapInvalidEvent("normalize.NormalizeRecord", fmt.Errorf("%s", reason)),
	}
}

func dropReason(err error) string {
	for err != nil {
		if de, ok := err.(*dropError); ok {
			return de.reason
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
