package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/singura/singura-go/internal/models"
)

// adapter describes how one platform's audit records map onto the canonical
// Event. Field entries are dotted paths into the record, tried in order.
type adapter struct {
	eventID      []string
	timestamp    []string
	userID       []string
	userEmail    []string
	eventType    []string
	resourceID   []string
	resourceName []string
	userAgent    []string
	ipAddress    []string
	metadata     []string
	// typeMap translates platform verbs to canonical event types. Verbs
	// outside the map fall through to direct coercion.
	typeMap map[string]models.EventType
	// aiTypeMap translates platform verbs to AI activity types for the
	// secondary AIActivity view. Empty for non-AI platforms.
	aiTypeMap map[string]models.AIActivityType
}

// aiFeedAdapter is shared by the ChatGPT/Claude/Gemini enterprise compliance
// feeds, which use near-identical schemas.
var aiFeedAdapter = adapter{
	eventID:      []string{"event_id", "id"},
	timestamp:    []string{"timestamp", "created_at", "time"},
	userID:       []string{"user_id", "actor_id"},
	userEmail:    []string{"user_email", "actor_email"},
	eventType:    []string{"event_type", "type", "action"},
	resourceID:   []string{"resource_id", "conversation_id"},
	resourceName: []string{"resource_name", "conversation_title", "file_name"},
	userAgent:    []string{"user_agent"},
	ipAddress:    []string{"ip_address", "ip"},
	metadata:     []string{"metadata", "details"},
	typeMap: map[string]models.EventType{
		"file_uploaded":      models.EventFileCreate,
		"file_downloaded":    models.EventFileDownload,
		"login":              models.EventLogin,
		"session_started":    models.EventLogin,
		"message_sent":       models.EventUnknown,
		"response_generated": models.EventUnknown,
	},
	aiTypeMap: map[string]models.AIActivityType{
		"message_sent":       models.AIActivityPrompt,
		"prompt_submitted":   models.AIActivityPrompt,
		"response_generated": models.AIActivityCompletion,
		"completion":         models.AIActivityCompletion,
		"file_uploaded":      models.AIActivityFileUpload,
	},
}

// adapters is the platform mapping table. The zero-key entry handles records
// already using canonical field names.
var adapters = map[models.Platform]adapter{
	models.PlatformGoogleWorkspace: {
		eventID:      []string{"id.uniqueQualifier", "id"},
		timestamp:    []string{"id.time", "timestamp"},
		userID:       []string{"actor.profileId", "actor.email"},
		userEmail:    []string{"actor.email"},
		eventType:    []string{"eventName", "name"},
		resourceID:   []string{"resourceId"},
		resourceName: []string{"resourceName", "doc_title"},
		userAgent:    []string{"userAgent"},
		ipAddress:    []string{"ipAddress"},
		metadata:     []string{"parameters", "metadata"},
		typeMap: map[string]models.EventType{
			"create":           models.EventFileCreate,
			"upload":           models.EventFileCreate,
			"edit":             models.EventFileEdit,
			"download":         models.EventFileDownload,
			"view":             models.EventUnknown,
			"acl_change":       models.EventPermissionChange,
			"change_user_access": models.EventPermissionChange,
			"shared_drive_membership_change": models.EventPermissionChange,
			"share":            models.EventFileShare,
			"email_send":       models.EventEmailSend,
			"login_success":    models.EventLogin,
			"run_script":       models.EventScriptExecution,
			"execute_function": models.EventScriptExecution,
		},
	},
	models.PlatformSlack: {
		eventID:      []string{"id"},
		timestamp:    []string{"date_create", "event_ts"},
		userID:       []string{"actor.user.id", "user"},
		userEmail:    []string{"actor.user.email"},
		eventType:    []string{"action"},
		resourceID:   []string{"entity.file.id", "entity.channel.id"},
		resourceName: []string{"entity.file.name", "entity.channel.name"},
		userAgent:    []string{"context.ua"},
		ipAddress:    []string{"context.ip_address"},
		metadata:     []string{"details", "metadata"},
		typeMap: map[string]models.EventType{
			"file_uploaded":      models.EventFileCreate,
			"file_downloaded":    models.EventFileDownload,
			"file_shared":        models.EventFileShare,
			"file_public_link_created": models.EventFileShare,
			"message_post":       models.EventUnknown,
			"user_login":         models.EventLogin,
			"workflow_executed":  models.EventScriptExecution,
			"app_script_run":     models.EventScriptExecution,
			"permissions_updated": models.EventPermissionChange,
			"role_change":        models.EventPermissionChange,
		},
	},
	models.PlatformMicrosoft365: {
		eventID:      []string{"Id", "id"},
		timestamp:    []string{"CreationTime", "creationTime", "timestamp"},
		userID:       []string{"UserId", "userId", "UserKey"},
		userEmail:    []string{"UserId", "userPrincipalName"},
		eventType:    []string{"Operation", "operation"},
		resourceID:   []string{"ObjectId", "objectId"},
		resourceName: []string{"SourceFileName", "ItemName"},
		userAgent:    []string{"UserAgent", "ClientInfoString"},
		ipAddress:    []string{"ClientIP", "ClientIPAddress"},
		metadata:     []string{"ExtendedProperties", "metadata"},
		typeMap: map[string]models.EventType{
			"FileUploaded":         models.EventFileCreate,
			"FileModified":         models.EventFileEdit,
			"FileDownloaded":       models.EventFileDownload,
			"FileSyncDownloadedFull": models.EventFileDownload,
			"SharingSet":           models.EventFileShare,
			"AnonymousLinkCreated": models.EventFileShare,
			"PermissionLevelAdded": models.EventPermissionChange,
			"SiteCollectionAdminAdded": models.EventPermissionChange,
			"Send":                 models.EventEmailSend,
			"SendAs":               models.EventEmailSend,
			"UserLoggedIn":         models.EventLogin,
			"AddFlow":              models.EventScriptExecution,
			"RunFlow":              models.EventScriptExecution,
		},
	},
	models.PlatformChatGPTEnterprise: aiFeedAdapter,
	models.PlatformClaudeEnterprise:  aiFeedAdapter,
	models.PlatformGeminiEnterprise:  aiFeedAdapter,
	// Canonical passthrough for pre-normalized records.
	"": {
		eventID:      []string{"eventId"},
		timestamp:    []string{"timestamp"},
		userID:       []string{"userId"},
		userEmail:    []string{"userEmail"},
		eventType:    []string{"eventType"},
		resourceID:   []string{"resourceId"},
		resourceName: []string{"actionDetails.resourceName", "resourceName"},
		userAgent:    []string{"userAgent"},
		ipAddress:    []string{"ipAddress"},
		metadata:     []string{"actionDetails.additionalMetadata", "metadata"},
	},
}

// NormalizeRecord maps one raw platform record onto the canonical Event.
// Unknown platforms use the canonical passthrough mapping.
func NormalizeRecord(platform models.Platform, record map[string]interface{}) (models.Event, error) {
	a, ok := adapters[platform]
	if !ok {
		a = adapters[""]
	}

	ts, ok := lookupTimestamp(record, a.timestamp)
	if !ok {
		return models.Event{}, newDropError(ReasonMissingTimestamp)
	}

	userID := lookupString(record, a.userID)
	if userID == "" {
		return models.Event{}, newDropError(ReasonMissingUserID)
	}

	rawType := lookupString(record, a.eventType)
	if rawType == "" {
		return models.Event{}, newDropError(ReasonMissingEventType)
	}

	eventID := lookupString(record, a.eventID)
	if eventID == "" {
		eventID = uuid.NewString()
	}

	eventType := translateEventType(a, rawType)
	event := models.Event{
		EventID:      eventID,
		Timestamp:    ts,
		UserID:       userID,
		UserEmail:    lookupString(record, a.userEmail),
		Platform:     platform,
		EventType:    eventType,
		ResourceID:   lookupString(record, a.resourceID),
		ResourceType: resourceTypeFor(eventType),
		ActionDetails: models.ActionDetails{
			Action:             rawType,
			ResourceName:       lookupString(record, a.resourceName),
			AdditionalMetadata: lookupMetadata(record, a.metadata),
		},
		UserAgent: lookupString(record, a.userAgent),
		IPAddress: lookupString(record, a.ipAddress),
	}
	if orgID := lookupString(record, []string{"organizationId", "organization_id", "org_id"}); orgID != "" {
		event.OrganizationID = orgID
	}

	return event, nil
}

// translateEventType runs the platform verb through the adapter's type map,
// then coerces anything still outside the closed set to "unknown".
func translateEventType(a adapter, raw string) models.EventType {
	if mapped, ok := a.typeMap[raw]; ok {
		return mapped
	}
	return models.CoerceEventType(raw)
}

// resourceTypeFor derives the coarse resource class from the event type.
func resourceTypeFor(t models.EventType) models.ResourceType {
	switch t {
	case models.EventFileCreate, models.EventFileEdit, models.EventFileShare, models.EventFileDownload:
		return models.ResourceFile
	case models.EventEmailSend:
		return models.ResourceEmail
	case models.EventScriptExecution:
		return models.ResourceScript
	case models.EventPermissionChange:
		return models.ResourcePermission
	}
	return models.ResourceUnknown
}

// AIView produces the secondary AIActivity view for events from AI-platform
// compliance feeds. Non-AI platforms return false.
func AIView(e *models.Event) (models.AIActivity, bool) {
	if !e.Platform.IsAIPlatform() {
		return models.AIActivity{}, false
	}

	a := adapters[e.Platform]
	activityType := models.AIActivityUnknown
	if mapped, ok := a.aiTypeMap[e.ActionDetails.Action]; ok {
		activityType = mapped
	}

	activity := models.AIActivity{
		EventID:        e.EventID,
		Timestamp:      e.Timestamp,
		UserID:         e.UserID,
		UserEmail:      e.UserEmail,
		OrganizationID: e.OrganizationID,
		Platform:       e.Platform,
		ActivityType:   activityType,
		ResourceName:   e.ActionDetails.ResourceName,
	}

	if meta := e.ActionDetails.AdditionalMetadata; meta != nil {
		if model, ok := meta["model"].(string); ok {
			activity.Model = model
		}
		if tokens, ok := numericValue(meta["tokens_used"]); ok {
			activity.TokensUsed = int64(tokens)
		} else if tokens, ok := numericValue(meta["tokensUsed"]); ok {
			activity.TokensUsed = int64(tokens)
		}
	}

	return activity, true
}

// lookupString resolves the first candidate dotted path to a non-empty
// string.
func lookupString(record map[string]interface{}, paths []string) string {
	for _, path := range paths {
		if v, ok := lookupValue(record, path); ok {
			switch s := v.(type) {
			case string:
				if s != "" {
					return s
				}
			case float64:
				return strconv.FormatFloat(s, 'f', -1, 64)
			}
		}
	}
	return ""
}

// lookupMetadata resolves the first candidate path to a map value.
func lookupMetadata(record map[string]interface{}, paths []string) map[string]interface{} {
	for _, path := range paths {
		if v, ok := lookupValue(record, path); ok {
			if m, ok := v.(map[string]interface{}); ok && len(m) > 0 {
				return m
			}
		}
	}
	return nil
}

// lookupTimestamp resolves and parses the first candidate path that yields a
// valid instant.
func lookupTimestamp(record map[string]interface{}, paths []string) (time.Time, bool) {
	for _, path := range paths {
		if v, ok := lookupValue(record, path); ok {
			if ts, ok := parseTimestamp(v); ok {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

// lookupValue walks a dotted path through nested maps.
func lookupValue(record map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = record
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// parseTimestamp accepts RFC 3339 strings, unix seconds, and unix
// milliseconds. Millisecond precision is preserved.
func parseTimestamp(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts, true
			}
		}
		if n, err := strconv.ParseFloat(t, 64); err == nil {
			ts := unixToTime(n)
			return ts, !ts.IsZero()
		}
	case float64:
		ts := unixToTime(t)
		return ts, !ts.IsZero()
	case int64:
		ts := unixToTime(float64(t))
		return ts, !ts.IsZero()
	case int:
		ts := unixToTime(float64(t))
		return ts, !ts.IsZero()
	}
	return time.Time{}, false
}

// unixToTime treats values above 1e12 as milliseconds, otherwise seconds.
// Zero and negative values are rejected as missing.
func unixToTime(n float64) time.Time {
	if n <= 0 {
		return time.Time{}
	}
	if n > 1e12 {
		return time.UnixMilli(int64(n)).UTC()
	}
	sec := int64(n)
	frac := n - float64(sec)
	return time.Unix(sec, int64(frac*1e9)).UTC()
}

func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
