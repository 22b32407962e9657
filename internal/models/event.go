package models

import (
	"time"
)

// Platform identifies the SaaS tenant type a normalized audit record came from.
type Platform string

const (
	PlatformGoogleWorkspace   Platform = "google_workspace"
	PlatformSlack             Platform = "slack"
	PlatformMicrosoft365      Platform = "microsoft_365"
	PlatformChatGPTEnterprise Platform = "chatgpt_enterprise"
	PlatformClaudeEnterprise  Platform = "claude_enterprise"
	PlatformGeminiEnterprise  Platform = "gemini_enterprise"
)

// IsAIPlatform reports whether the platform is an AI provider's enterprise
// surface, which additionally yields an AIActivity view during normalization.
func (p Platform) IsAIPlatform() bool {
	switch p {
	case PlatformChatGPTEnterprise, PlatformClaudeEnterprise, PlatformGeminiEnterprise:
		return true
	}
	return false
}

// EventType classifies a normalized audit event. The set is closed; records
// with unrecognized types are coerced to EventUnknown at the normalization
// boundary and never trigger detectors on their own.
type EventType string

const (
	EventFileCreate       EventType = "file_create"
	EventFileEdit         EventType = "file_edit"
	EventFileShare        EventType = "file_share"
	EventFileDownload     EventType = "file_download"
	EventPermissionChange EventType = "permission_change"
	EventScriptExecution  EventType = "script_execution"
	EventEmailSend        EventType = "email_send"
	EventLogin            EventType = "login"
	EventUnknown          EventType = "unknown"
)

// knownEventTypes is the closed set accepted without coercion.
var knownEventTypes = map[EventType]struct{}{
	EventFileCreate:       {},
	EventFileEdit:         {},
	EventFileShare:        {},
	EventFileDownload:     {},
	EventPermissionChange: {},
	EventScriptExecution:  {},
	EventEmailSend:        {},
	EventLogin:            {},
}

// Known reports whether the event type belongs to the closed set.
// EventUnknown itself is not "known"; it is the coercion target.
func (t EventType) Known() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// CoerceEventType maps an arbitrary platform value onto the closed set,
// returning EventUnknown for anything outside it.
func CoerceEventType(raw string) EventType {
	t := EventType(raw)
	if t.Known() {
		return t
	}
	return EventUnknown
}

// ResourceType classifies the resource an event acted on.
type ResourceType string

const (
	ResourceFile       ResourceType = "file"
	ResourceEmail      ResourceType = "email"
	ResourceCalendar   ResourceType = "calendar"
	ResourceScript     ResourceType = "script"
	ResourcePermission ResourceType = "permission"
	ResourceChat       ResourceType = "chat"
	ResourceUnknown    ResourceType = "unknown"
)

// ActionDetails carries the action-specific payload of an event. The
// normalizer preserves unrecognized platform fields in AdditionalMetadata so
// downstream matchers (content signatures in particular) see the full record.
type ActionDetails struct {
	Action             string                 `json:"action"`
	ResourceName       string                 `json:"resourceName"`
	AdditionalMetadata map[string]interface{} `json:"additionalMetadata,omitempty"`
}

// Event is one normalized audit record. Events are immutable after creation;
// detectors receive them read-only and must not mutate them.
type Event struct {
	EventID        string        `json:"eventId"`
	Timestamp      time.Time     `json:"timestamp"`
	UserID         string        `json:"userId"`
	UserEmail      string        `json:"userEmail,omitempty"`
	OrganizationID string        `json:"organizationId,omitempty"`
	Platform       Platform      `json:"platform,omitempty"`
	EventType      EventType     `json:"eventType"`
	ResourceID     string        `json:"resourceId,omitempty"`
	ResourceType   ResourceType  `json:"resourceType,omitempty"`
	ActionDetails  ActionDetails `json:"actionDetails"`
	UserAgent      string        `json:"userAgent,omitempty"`
	IPAddress      string        `json:"ipAddress,omitempty"`
	Location       string        `json:"location,omitempty"`
}

// AIActivityType classifies activity on an AI platform's enterprise feed.
type AIActivityType string

const (
	AIActivityPrompt     AIActivityType = "prompt"
	AIActivityCompletion AIActivityType = "completion"
	AIActivityFileUpload AIActivityType = "file_upload"
	AIActivityUnknown    AIActivityType = "unknown"
)

// AIActivity is the secondary view the normalizer emits for events from AI
// platforms (ChatGPT/Claude/Gemini enterprise compliance feeds).
type AIActivity struct {
	EventID        string         `json:"eventId"`
	Timestamp      time.Time      `json:"timestamp"`
	UserID         string         `json:"userId"`
	UserEmail      string         `json:"userEmail,omitempty"`
	OrganizationID string         `json:"organizationId,omitempty"`
	Platform       Platform       `json:"platform"`
	ActivityType   AIActivityType `json:"activityType"`
	Model          string         `json:"model,omitempty"`
	TokensUsed     int64          `json:"tokensUsed,omitempty"`
	ResourceName   string         `json:"resourceName,omitempty"`
}
