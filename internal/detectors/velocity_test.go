package detectors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/singura/singura-go/internal/models"
)

func burstEvents(userID string, eventType models.EventType, count int, gap time.Duration, start time.Time) []models.Event {
	events := make([]models.Event, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, testEvent(
			fmt.Sprintf("%s-%s-%d", userID, eventType, i), userID, start.Add(time.Duration(i)*gap), eventType))
	}
	return events
}

func TestVelocity_EmitsAboveThreshold(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	events := burstEvents("user-1", models.EventFileEdit, 20, 200*time.Millisecond, base)

	out, err := Velocity{}.Detect(context.Background(), testBatch(events))
	require.NoError(t, err)
	require.Len(t, out.Patterns, 1)
	assert.Equal(t, 1, out.Evaluated)

	p := out.Patterns[0]
	assert.Equal(t, models.PatternVelocity, p.PatternType)
	assert.Equal(t, "user-1", p.Metadata.UserID)
	assert.Equal(t, models.EventFileEdit, p.Metadata.ActionType)

	// 20 events over 3.8s against the 1.0/s file_edit rate.
	rate := 20.0 / 3.8
	expected := 50 + 50*(rate-1)/9
	assert.InDelta(t, expected, p.Confidence, 1e-9)
	assert.Equal(t, 20, p.Evidence.DataPoints["eventCount"])
	assert.Len(t, p.Evidence.SupportingEvents, 20)
}

func TestVelocity_BelowThresholdSilent(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	events := burstEvents("user-1", models.EventFileEdit, 6, 10*time.Second, base)

	out, err := Velocity{}.Detect(context.Background(), testBatch(events))
	require.NoError(t, err)
	assert.Empty(t, out.Patterns)
	assert.Equal(t, 1, out.Evaluated)
}

func TestVelocity_ZeroWindowNeverEmits(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	events := burstEvents("user-1", models.EventFileEdit, 5, 0, base)

	out, err := Velocity{}.Detect(context.Background(), testBatch(events))
	require.NoError(t, err)
	assert.Empty(t, out.Patterns)
	assert.Equal(t, 1, out.Evaluated)
}

func TestVelocity_BelowMinEventsSkips(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	events := burstEvents("user-1", models.EventFileEdit, 4, 100*time.Millisecond, base)

	out, err := Velocity{}.Detect(context.Background(), testBatch(events))
	require.NoError(t, err)
	assert.Empty(t, out.Patterns)
	assert.Zero(t, out.Evaluated)
}

func TestVelocity_ReportsEachEventTypeSeparately(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	events := burstEvents("user-1", models.EventFileEdit, 10, 100*time.Millisecond, base)
	events = append(events, burstEvents("user-1", models.EventEmailSend, 10, 100*time.Millisecond, base.Add(time.Hour))...)

	out, err := Velocity{}.Detect(context.Background(), testBatch(events))
	require.NoError(t, err)
	require.Len(t, out.Patterns, 2)
	assert.Equal(t, 2, out.Evaluated)

	// Stable order: event types sort within the user.
	assert.Equal(t, models.EventEmailSend, out.Patterns[0].Metadata.ActionType)
	assert.Equal(t, models.EventFileEdit, out.Patterns[1].Metadata.ActionType)
}

func TestVelocity_UnknownTypeNeverTriggers(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	events := burstEvents("user-1", models.EventUnknown, 10, 100*time.Millisecond, base)

	out, err := Velocity{}.Detect(context.Background(), testBatch(events))
	require.NoError(t, err)
	assert.Empty(t, out.Patterns)
	assert.Zero(t, out.Evaluated)
}

func TestVelocity_ConfidenceSaturatesAtTenfold(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	events := burstEvents("user-1", models.EventFileShare, 20, 50*time.Millisecond, base)

	out, err := Velocity{}.Detect(context.Background(), testBatch(events))
	require.NoError(t, err)
	require.Len(t, out.Patterns, 1)
	assert.Equal(t, 100.0, out.Patterns[0].Confidence)
}
