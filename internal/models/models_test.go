package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCoerceEventType(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want EventType
	}{
		{name: "known type passes through", raw: "file_create", want: EventFileCreate},
		{name: "permission change", raw: "permission_change", want: EventPermissionChange},
		{name: "platform-specific value coerced", raw: "drive_item_viewed", want: EventUnknown},
		{name: "empty string coerced", raw: "", want: EventUnknown},
		{name: "unknown is not a known type", raw: "unknown", want: EventUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CoerceEventType(tt.raw))
		})
	}
}

func TestPlatformIsAIPlatform(t *testing.T) {
	assert.True(t, PlatformChatGPTEnterprise.IsAIPlatform())
	assert.True(t, PlatformClaudeEnterprise.IsAIPlatform())
	assert.True(t, PlatformGeminiEnterprise.IsAIPlatform())
	assert.False(t, PlatformGoogleWorkspace.IsAIPlatform())
	assert.False(t, PlatformSlack.IsAIPlatform())
}

func TestActivityTimeframeContains(t *testing.T) {
	weekdays := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

	tests := []struct {
		name string
		tf   ActivityTimeframe
		at   time.Time
		want bool
	}{
		{
			name: "weekday inside window",
			tf:   ActivityTimeframe{StartHour: 9, EndHour: 17, DaysOfWeek: weekdays, Timezone: "UTC"},
			at:   time.Date(2024, 7, 16, 14, 0, 0, 0, time.UTC), // Tuesday
			want: true,
		},
		{
			name: "weekday before window",
			tf:   ActivityTimeframe{StartHour: 9, EndHour: 17, DaysOfWeek: weekdays, Timezone: "UTC"},
			at:   time.Date(2024, 7, 16, 8, 59, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "end hour is exclusive",
			tf:   ActivityTimeframe{StartHour: 9, EndHour: 17, DaysOfWeek: weekdays, Timezone: "UTC"},
			at:   time.Date(2024, 7, 16, 17, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "weekend outside working days",
			tf:   ActivityTimeframe{StartHour: 9, EndHour: 17, DaysOfWeek: weekdays, Timezone: "UTC"},
			at:   time.Date(2024, 7, 13, 12, 0, 0, 0, time.UTC), // Saturday
			want: false,
		},
		{
			name: "overnight window late evening",
			tf:   ActivityTimeframe{StartHour: 22, EndHour: 6, DaysOfWeek: weekdays, Timezone: "UTC"},
			at:   time.Date(2024, 7, 16, 23, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "overnight window early morning",
			tf:   ActivityTimeframe{StartHour: 22, EndHour: 6, DaysOfWeek: weekdays, Timezone: "UTC"},
			at:   time.Date(2024, 7, 16, 3, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "overnight window midday",
			tf:   ActivityTimeframe{StartHour: 22, EndHour: 6, DaysOfWeek: weekdays, Timezone: "UTC"},
			at:   time.Date(2024, 7, 16, 12, 0, 0, 0, time.UTC),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tf.Contains(tt.at))
		})
	}
}

// The same UTC instant lands on different sides of the business-hours
// boundary depending on daylight saving, so classification must be DST aware.
func TestActivityTimeframeContainsDST(t *testing.T) {
	tf := ActivityTimeframe{
		StartHour:  9,
		EndHour:    17,
		DaysOfWeek: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Timezone:   "America/New_York",
	}

	winter := time.Date(2024, 1, 8, 13, 5, 0, 0, time.UTC)  // Monday 08:05 EST
	summer := time.Date(2024, 3, 11, 13, 5, 0, 0, time.UTC) // Monday 09:05 EDT

	assert.False(t, tf.Contains(winter))
	assert.True(t, tf.Contains(summer))
}

func TestActivityTimeframeLocationFallback(t *testing.T) {
	tf := ActivityTimeframe{Timezone: "Not/AZone"}
	assert.Equal(t, time.UTC, tf.Location())

	tf.Timezone = ""
	assert.Equal(t, time.UTC, tf.Location())
}

func TestGroundTruthLabelActionable(t *testing.T) {
	label := GroundTruthLabel{AutomationID: "auto-1", Actual: ClassMalicious, Confidence: 1.0}
	assert.False(t, label.Actionable())

	label.Reviewers = []string{"analyst@example.com"}
	assert.True(t, label.Actionable())
}

func TestActivityPatternClone(t *testing.T) {
	orig := ActivityPattern{
		PatternID:   "pat-1",
		PatternType: PatternVelocity,
		Confidence:  80,
		Evidence: PatternEvidence{
			Description:      "rate exceeded",
			DataPoints:       map[string]interface{}{"eventsPerSecond": 4.2},
			SupportingEvents: []string{"ev-1", "ev-2"},
		},
	}

	clone := orig.Clone()
	clone.Evidence.DataPoints["eventsPerSecond"] = 9.9
	clone.Evidence.SupportingEvents[0] = "ev-x"

	assert.Equal(t, 4.2, orig.Evidence.DataPoints["eventsPerSecond"])
	assert.Equal(t, "ev-1", orig.Evidence.SupportingEvents[0])
}
