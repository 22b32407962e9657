package models

import (
	"time"
)

// PatternType names the behavioral anomaly a detector found.
type PatternType string

const (
	PatternVelocity         PatternType = "velocity"
	PatternRegularInterval  PatternType = "regular_interval"
	PatternOffHours         PatternType = "off_hours"
	PatternBatchOperation   PatternType = "batch_operation"
	PatternPermissionChange PatternType = "permission_change"
	PatternFileDownload     PatternType = "file_download"
)

// PatternMetadata identifies the subject of a pattern: who did what, where.
type PatternMetadata struct {
	UserID       string       `json:"userId"`
	UserEmail    string       `json:"userEmail,omitempty"`
	ResourceType ResourceType `json:"resourceType,omitempty"`
	ActionType   EventType    `json:"actionType,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
}

// PatternEvidence explains why a pattern fired. DataPoints holds the numbers
// the detector computed (rates, CVs, percentages); SupportingEvents lists the
// event IDs that contributed.
type PatternEvidence struct {
	Description      string                 `json:"description"`
	DataPoints       map[string]interface{} `json:"dataPoints,omitempty"`
	SupportingEvents []string               `json:"supportingEvents,omitempty"`
}

// ActivityPattern is a statistical finding describing anomalous behavior of a
// user. Confidence is always within [0,100].
type ActivityPattern struct {
	PatternID   string          `json:"patternId"`
	PatternType PatternType     `json:"patternType"`
	DetectedAt  time.Time       `json:"detectedAt"`
	Confidence  float64         `json:"confidence"`
	Metadata    PatternMetadata `json:"metadata"`
	Evidence    PatternEvidence `json:"evidence"`
}

// Clone returns a deep copy so callers can retain patterns past the batch
// that produced them.
func (p ActivityPattern) Clone() ActivityPattern {
	clone := p
	if p.Evidence.DataPoints != nil {
		clone.Evidence.DataPoints = make(map[string]interface{}, len(p.Evidence.DataPoints))
		for k, v := range p.Evidence.DataPoints {
			clone.Evidence.DataPoints[k] = v
		}
	}
	if p.Evidence.SupportingEvents != nil {
		clone.Evidence.SupportingEvents = append([]string(nil), p.Evidence.SupportingEvents...)
	}
	return clone
}
