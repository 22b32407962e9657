package detectors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/singura/singura-go/internal/models"
	"github.com/singura/singura-go/internal/stats"
)

// eventsAtIntervals builds one event at start plus one per interval.
func eventsAtIntervals(userID string, eventType models.EventType, start time.Time, intervalsMs []int) []models.Event {
	events := []models.Event{testEvent(fmt.Sprintf("%s-0", userID), userID, start, eventType)}
	ts := start
	for i, gap := range intervalsMs {
		ts = ts.Add(time.Duration(gap) * time.Millisecond)
		events = append(events, testEvent(fmt.Sprintf("%s-%d", userID, i+1), userID, ts, eventType))
	}
	return events
}

func TestTimingVariance_MetronomicBot(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	intervals := make([]int, 9)
	for i := range intervals {
		intervals[i] = 1100
	}
	events := eventsAtIntervals("user-1", models.EventFileCreate, base, intervals)

	out, err := TimingVariance{}.Detect(context.Background(), testBatch(events))
	require.NoError(t, err)
	require.Len(t, out.Patterns, 1)
	assert.Equal(t, 1, out.Evaluated)

	p := out.Patterns[0]
	assert.Equal(t, models.PatternRegularInterval, p.PatternType)
	assert.Equal(t, "user-1", p.Metadata.UserID)
	assert.Equal(t, models.EventFileCreate, p.Metadata.ActionType)
	assert.InDelta(t, 0, p.Evidence.DataPoints["coefficientOfVariation"].(float64), 1e-9)
	assert.GreaterOrEqual(t, p.Confidence, 90.0)
	assert.Len(t, p.Evidence.SupportingEvents, 10)
}

func TestTimingVariance_HumanJitterSilent(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	events := eventsAtIntervals("user-1", models.EventFileEdit, base, []int{1200, 800, 2100, 1500, 900})

	out, err := TimingVariance{}.Detect(context.Background(), testBatch(events))
	require.NoError(t, err)
	assert.Empty(t, out.Patterns)
	assert.Equal(t, 1, out.Evaluated)
}

func TestTimingVariance_FewIntervalsSkips(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	events := eventsAtIntervals("user-1", models.EventFileEdit, base, []int{1000, 1000, 1000, 1000})

	out, err := TimingVariance{}.Detect(context.Background(), testBatch(events))
	require.NoError(t, err)
	assert.Empty(t, out.Patterns)
	assert.Zero(t, out.Evaluated)
}

func TestTimingVariance_LongGapSplitsSequences(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	intervals := []int{1000, 1000, 1000, 1000, 60_000, 1000, 1000, 1000, 1000}
	events := eventsAtIntervals("user-1", models.EventFileEdit, base, intervals)

	// Each half carries only four intervals once the gap splits them.
	out, err := TimingVariance{}.Detect(context.Background(), testBatch(events))
	require.NoError(t, err)
	assert.Empty(t, out.Patterns)
	assert.Zero(t, out.Evaluated)
}

func TestTimingVariance_ActionTypeWeighting(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	intervals := []int{900, 1100, 900, 1100, 900, 1100}

	intervalValues := make([]float64, len(intervals))
	for i, v := range intervals {
		intervalValues[i] = float64(v)
	}
	cv := stats.CV(intervalValues)
	baseConfidence := 70 + 25*(0.15-cv)/(0.15-0.05)

	login, err := TimingVariance{}.Detect(context.Background(),
		testBatch(eventsAtIntervals("user-1", models.EventLogin, base, intervals)))
	require.NoError(t, err)
	require.Len(t, login.Patterns, 1)
	assert.InDelta(t, baseConfidence, login.Patterns[0].Confidence, 1e-9)

	email, err := TimingVariance{}.Detect(context.Background(),
		testBatch(eventsAtIntervals("user-1", models.EventEmailSend, base, intervals)))
	require.NoError(t, err)
	require.Len(t, email.Patterns, 1)
	assert.InDelta(t, baseConfidence*1.10, email.Patterns[0].Confidence, 1e-9)

	assert.Greater(t, email.Patterns[0].Confidence, login.Patterns[0].Confidence)
}

func TestTimingVariance_UnknownOnlyNeverFires(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	intervals := []int{1000, 1000, 1000, 1000, 1000, 1000}
	events := eventsAtIntervals("user-1", models.EventUnknown, base, intervals)

	out, err := TimingVariance{}.Detect(context.Background(), testBatch(events))
	require.NoError(t, err)
	assert.Empty(t, out.Patterns)
	assert.Equal(t, 1, out.Evaluated)
}

func TestTimingVariance_DominantActionWins(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	var events []models.Event
	for i := 0; i < 10; i++ {
		eventType := models.EventFileCreate
		if i%3 == 2 {
			eventType = models.EventLogin
		}
		events = append(events, testEvent(fmt.Sprintf("e-%d", i), "user-1", base.Add(time.Duration(i)*time.Second), eventType))
	}

	out, err := TimingVariance{}.Detect(context.Background(), testBatch(events))
	require.NoError(t, err)
	require.Len(t, out.Patterns, 1)

	p := out.Patterns[0]
	assert.Equal(t, models.EventFileCreate, p.Metadata.ActionType)
	assert.Equal(t, 1.20, p.Evidence.DataPoints["actionTypeWeight"])
}
