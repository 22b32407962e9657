package detectors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/singura/singura-go/internal/models"
	"github.com/singura/singura-go/internal/thresholds"
)

func testBatch(events []models.Event) Batch {
	return Batch{
		Events:     events,
		Thresholds: thresholds.Defaults(),
		Hours:      models.DefaultBusinessHours(),
	}
}

func testEvent(id, userID string, ts time.Time, eventType models.EventType) models.Event {
	return models.Event{
		EventID:   id,
		Timestamp: ts,
		UserID:    userID,
		EventType: eventType,
	}
}

func TestAll_CanonicalOrder(t *testing.T) {
	t.Parallel()

	var names []string
	for _, d := range All() {
		names = append(names, d.Name())
	}
	assert.Equal(t, []string{
		NameVelocity,
		NameTimingVariance,
		NameOffHours,
		NameBatchOperation,
		NamePermissionEscalation,
		NameDataVolume,
	}, names)
}

func TestGroupByUser_SortedAndShared(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	events := []models.Event{
		testEvent("e-1", "zoe", base, models.EventFileEdit),
		testEvent("e-2", "amy", base.Add(time.Second), models.EventFileEdit),
		testEvent("e-3", "zoe", base.Add(2*time.Second), models.EventLogin),
	}

	groups, users := groupByUser(events)
	assert.Equal(t, []string{"amy", "zoe"}, users)
	require.Len(t, groups["zoe"], 2)
	// Pointers reference the input slice, not copies.
	assert.Same(t, &events[0], groups["zoe"][0])
}

func TestDetectors_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	base := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	events := []models.Event{
		testEvent("e-1", "user-1", base, models.EventFileEdit),
		testEvent("e-2", "user-1", base.Add(time.Second), models.EventFileEdit),
	}

	for _, d := range All() {
		_, err := d.Detect(ctx, testBatch(events))
		assert.ErrorIs(t, err, context.Canceled, d.Name())
	}
}

func TestDetectors_EmptyBatch(t *testing.T) {
	t.Parallel()

	for _, d := range All() {
		out, err := d.Detect(context.Background(), testBatch(nil))
		require.NoError(t, err, d.Name())
		assert.Empty(t, out.Patterns, d.Name())
		assert.Zero(t, out.Evaluated, d.Name())
	}
}
