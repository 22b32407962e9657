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

func downloadEvent(id, userID string, ts time.Time, sizeBytes float64) models.Event {
	ev := testEvent(id, userID, ts, models.EventFileDownload)
	ev.ActionDetails.AdditionalMetadata = map[string]interface{}{"fileSize": sizeBytes}
	return ev
}

const mib = 1024 * 1024

func TestDataVolume_ExfiltrationBurst(t *testing.T) {
	t.Parallel()

	today := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	var events []models.Event
	// Seven prior days with a quiet 5 MiB each.
	for d := 7; d >= 1; d-- {
		ts := today.AddDate(0, 0, -d)
		events = append(events, downloadEvent(fmt.Sprintf("prior-%d", d), "user-1", ts, 5*mib))
	}
	// Today: 50 downloads of 5 MiB.
	for i := 0; i < 50; i++ {
		events = append(events, downloadEvent(fmt.Sprintf("today-%d", i), "user-1",
			today.Add(time.Duration(i)*5*time.Minute), 5*mib))
	}

	out, err := DataVolume{}.Detect(context.Background(), testBatch(events))
	require.NoError(t, err)
	require.Len(t, out.Patterns, 1)
	assert.Equal(t, 1, out.Evaluated)

	p := out.Patterns[0]
	assert.Equal(t, models.PatternFileDownload, p.PatternType)
	assert.Equal(t, "user-1", p.Metadata.UserID)
	assert.GreaterOrEqual(t, p.Confidence, 90.0)
	// 250 MiB sits 37.5% of the way from warn to critical.
	assert.InDelta(t, 91.875, p.Confidence, 1e-9)

	dp := p.Evidence.DataPoints
	assert.Equal(t, int64(250*mib), dp["totalBytes"])
	assert.Equal(t, 50, dp["fileCount"])
	assert.Equal(t, 7, dp["baselineDays"])
	assert.InDelta(t, 5*mib, dp["baselineMeanBytes"].(float64), 1e-6)
	assert.InDelta(t, 50.0, dp["volumeMultiplier"].(float64), 1e-9)
	assert.Len(t, p.Evidence.SupportingEvents, 50)
}

func TestDataVolume_CriticalWithoutBaseline(t *testing.T) {
	t.Parallel()

	today := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	events := []models.Event{
		downloadEvent("d-0", "user-1", today, 300*mib),
		downloadEvent("d-1", "user-1", today.Add(time.Hour), 250*mib),
	}

	out, err := DataVolume{}.Detect(context.Background(), testBatch(events))
	require.NoError(t, err)
	require.Len(t, out.Patterns, 1)

	p := out.Patterns[0]
	// 550 MiB is 10% past critical.
	assert.InDelta(t, 95.5, p.Confidence, 1e-9)
	assert.Equal(t, 0, p.Evidence.DataPoints["baselineDays"])
	_, hasBaseline := p.Evidence.DataPoints["baselineMeanBytes"]
	assert.False(t, hasBaseline)
}

func TestDataVolume_FileCountTrigger(t *testing.T) {
	t.Parallel()

	today := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	var events []models.Event
	for i := 0; i < 100; i++ {
		events = append(events, downloadEvent(fmt.Sprintf("d-%d", i), "user-1",
			today.Add(time.Duration(i)*time.Minute), 1024))
	}

	out, err := DataVolume{}.Detect(context.Background(), testBatch(events))
	require.NoError(t, err)
	require.Len(t, out.Patterns, 1)

	p := out.Patterns[0]
	assert.Equal(t, 100, p.Evidence.DataPoints["fileCount"])
	// Tiny byte total keeps confidence on the sub-warn ramp.
	total := 100.0 * 1024
	warn := 100.0 * mib
	assert.InDelta(t, 60+30*total/warn, p.Confidence, 1e-9)
}

func TestDataVolume_NormalActivitySilent(t *testing.T) {
	t.Parallel()

	today := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	var events []models.Event
	for d := 7; d >= 1; d-- {
		events = append(events, downloadEvent(fmt.Sprintf("prior-%d", d), "user-1",
			today.AddDate(0, 0, -d), 5*mib))
	}
	events = append(events, downloadEvent("today-0", "user-1", today, 8*mib))

	out, err := DataVolume{}.Detect(context.Background(), testBatch(events))
	require.NoError(t, err)
	assert.Empty(t, out.Patterns)
	assert.Equal(t, 1, out.Evaluated)
}

func TestDataVolume_ShortBaselineSkipsMultiplier(t *testing.T) {
	t.Parallel()

	today := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	var events []models.Event
	for d := 3; d >= 1; d-- {
		events = append(events, downloadEvent(fmt.Sprintf("prior-%d", d), "user-1",
			today.AddDate(0, 0, -d), 1*mib))
	}
	// Ten times the observed mean, but only three days of history.
	events = append(events, downloadEvent("today-0", "user-1", today, 10*mib))

	out, err := DataVolume{}.Detect(context.Background(), testBatch(events))
	require.NoError(t, err)
	assert.Empty(t, out.Patterns)
	assert.Equal(t, 1, out.Evaluated)
}

func TestDataVolume_ExtensionHeuristic(t *testing.T) {
	t.Parallel()

	today := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	var events []models.Event
	for i := 0; i < 100; i++ {
		ev := testEvent(fmt.Sprintf("d-%d", i), "user-1", today.Add(time.Duration(i)*time.Minute), models.EventFileDownload)
		ev.ActionDetails.ResourceName = "report.pdf"
		events = append(events, ev)
	}

	out, err := DataVolume{}.Detect(context.Background(), testBatch(events))
	require.NoError(t, err)
	require.Len(t, out.Patterns, 1)

	// 100 PDFs at the 200 KiB estimate.
	assert.Equal(t, int64(100*200*1024), out.Patterns[0].Evidence.DataPoints["totalBytes"])
}

func TestFileSizeOf(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		metadata map[string]interface{}
		resource string
		want     int64
	}{
		{"explicit fileSize", map[string]interface{}{"fileSize": float64(4096)}, "", 4096},
		{"snake case size", map[string]interface{}{"file_size": float64(2048)}, "", 2048},
		{"string size", map[string]interface{}{"size": "1024"}, "", 1024},
		{"zip extension", nil, "backup.zip", 5 * 1024 * 1024},
		{"unknown extension", nil, "payload.bin", defaultFileSize},
		{"no hints at all", nil, "", defaultFileSize},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev := testEvent("e-1", "user-1", base, models.EventFileDownload)
			ev.ActionDetails.AdditionalMetadata = tt.metadata
			ev.ActionDetails.ResourceName = tt.resource
			assert.Equal(t, tt.want, fileSizeOf(&ev))
		})
	}
}
