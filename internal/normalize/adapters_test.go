package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/singura/singura-go/internal/models"
)

func TestNormalizeRecord_GoogleWorkspace(t *testing.T) {
	t.Parallel()

	record := map[string]interface{}{
		"id": map[string]interface{}{
			"time":            "2024-03-01T10:15:30.250Z",
			"uniqueQualifier": "g-123",
		},
		"actor": map[string]interface{}{
			"profileId": "114250",
			"email":     "maria@example.com",
		},
		"eventName": "acl_change",
		"ipAddress": "203.0.113.7",
	}

	event, err := NormalizeRecord(models.PlatformGoogleWorkspace, record)
	require.NoError(t, err)

	assert.Equal(t, "g-123", event.EventID)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 15, 30, 250_000_000, time.UTC), event.Timestamp.UTC())
	assert.Equal(t, "114250", event.UserID)
	assert.Equal(t, "maria@example.com", event.UserEmail)
	assert.Equal(t, models.EventPermissionChange, event.EventType)
	assert.Equal(t, models.ResourcePermission, event.ResourceType)
	assert.Equal(t, "acl_change", event.ActionDetails.Action)
	assert.Equal(t, "203.0.113.7", event.IPAddress)
}

func TestNormalizeRecord_Slack(t *testing.T) {
	t.Parallel()

	record := map[string]interface{}{
		"id":          "slack-1",
		"date_create": float64(1709290800),
		"action":      "file_downloaded",
		"actor": map[string]interface{}{
			"user": map[string]interface{}{"id": "U042", "email": "jo@example.com"},
		},
		"entity": map[string]interface{}{
			"file": map[string]interface{}{"id": "F9", "name": "report.pdf"},
		},
		"context": map[string]interface{}{
			"ua":         "slack-api-client",
			"ip_address": "198.51.100.4",
		},
	}

	event, err := NormalizeRecord(models.PlatformSlack, record)
	require.NoError(t, err)

	assert.Equal(t, models.EventFileDownload, event.EventType)
	assert.Equal(t, "U042", event.UserID)
	assert.Equal(t, "F9", event.ResourceID)
	assert.Equal(t, "report.pdf", event.ActionDetails.ResourceName)
	assert.Equal(t, "slack-api-client", event.UserAgent)
	assert.Equal(t, time.Unix(1709290800, 0).UTC(), event.Timestamp.UTC())
}

func TestNormalizeRecord_Microsoft365(t *testing.T) {
	t.Parallel()

	record := map[string]interface{}{
		"Id":             "ms-1",
		"CreationTime":   "2024-03-01T08:00:00Z",
		"UserId":         "liam@example.com",
		"Operation":      "SharingSet",
		"ObjectId":       "doc-77",
		"SourceFileName": "forecast.xlsx",
		"ClientIP":       "192.0.2.11",
	}

	event, err := NormalizeRecord(models.PlatformMicrosoft365, record)
	require.NoError(t, err)

	assert.Equal(t, models.EventFileShare, event.EventType)
	assert.Equal(t, models.ResourceFile, event.ResourceType)
	assert.Equal(t, "liam@example.com", event.UserID)
	assert.Equal(t, "forecast.xlsx", event.ActionDetails.ResourceName)
}

func TestNormalizeRecord_AIFeed(t *testing.T) {
	t.Parallel()

	record := map[string]interface{}{
		"event_id":   "ai-1",
		"timestamp":  "2024-03-01T12:00:00Z",
		"user_id":    "user-9",
		"user_email": "nina@example.com",
		"event_type": "message_sent",
		"metadata": map[string]interface{}{
			"model":       "claude-3-opus",
			"tokens_used": float64(1350),
		},
	}

	event, err := NormalizeRecord(models.PlatformClaudeEnterprise, record)
	require.NoError(t, err)
	assert.Equal(t, models.EventUnknown, event.EventType)

	activity, ok := AIView(&event)
	require.True(t, ok)
	assert.Equal(t, models.AIActivityPrompt, activity.ActivityType)
	assert.Equal(t, "claude-3-opus", activity.Model)
	assert.Equal(t, int64(1350), activity.TokensUsed)
	assert.Equal(t, "user-9", activity.UserID)
}

func TestNormalizeRecord_CanonicalPassthrough(t *testing.T) {
	t.Parallel()

	record := map[string]interface{}{
		"eventId":   "c-1",
		"timestamp": "2024-03-01T09:30:00Z",
		"userId":    "user-3",
		"eventType": "file_create",
	}

	event, err := NormalizeRecord(models.Platform("unknown_platform"), record)
	require.NoError(t, err)

	assert.Equal(t, "c-1", event.EventID)
	assert.Equal(t, models.EventFileCreate, event.EventType)
}

func TestNormalizeRecord_GeneratesEventID(t *testing.T) {
	t.Parallel()

	record := map[string]interface{}{
		"timestamp": "2024-03-01T09:30:00Z",
		"userId":    "user-3",
		"eventType": "file_create",
	}

	event, err := NormalizeRecord("", record)
	require.NoError(t, err)
	assert.NotEmpty(t, event.EventID)
}

func TestNormalizeRecord_UnknownVerbCoerced(t *testing.T) {
	t.Parallel()

	record := map[string]interface{}{
		"id":          "slack-2",
		"date_create": float64(1709290800),
		"action":      "huddle_started",
		"actor": map[string]interface{}{
			"user": map[string]interface{}{"id": "U042"},
		},
	}

	event, err := NormalizeRecord(models.PlatformSlack, record)
	require.NoError(t, err)
	assert.Equal(t, models.EventUnknown, event.EventType)
	assert.Equal(t, "huddle_started", event.ActionDetails.Action)
}

func TestAIView_NonAIPlatform(t *testing.T) {
	t.Parallel()

	event := models.Event{
		EventID:   "e-1",
		Timestamp: time.Now(),
		UserID:    "user-1",
		Platform:  models.PlatformSlack,
		EventType: models.EventFileCreate,
	}

	_, ok := AIView(&event)
	assert.False(t, ok)
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		value  interface{}
		wantOK bool
		want   time.Time
	}{
		{
			name:   "rfc3339",
			value:  "2024-03-01T10:00:00Z",
			wantOK: true,
			want:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:   "rfc3339 with millis",
			value:  "2024-03-01T10:00:00.123Z",
			wantOK: true,
			want:   time.Date(2024, 3, 1, 10, 0, 0, 123_000_000, time.UTC),
		},
		{
			name:   "unix seconds",
			value:  float64(1709290800),
			wantOK: true,
			want:   time.Unix(1709290800, 0).UTC(),
		},
		{
			name:   "unix milliseconds",
			value:  float64(1709290800123),
			wantOK: true,
			want:   time.UnixMilli(1709290800123).UTC(),
		},
		{
			name:   "unix seconds as string",
			value:  "1709290800",
			wantOK: true,
			want:   time.Unix(1709290800, 0).UTC(),
		},
		{
			name:   "zero",
			value:  float64(0),
			wantOK: false,
		},
		{
			name:   "negative",
			value:  float64(-5),
			wantOK: false,
		},
		{
			name:   "garbage",
			value:  "not-a-time",
			wantOK: false,
		},
		{
			name:   "nil-ish type",
			value:  []string{"x"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := parseTimestamp(tt.value)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
			}
		})
	}
}
