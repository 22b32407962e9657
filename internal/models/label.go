package models

import (
	"time"
)

// Classification is an analyst-assigned or predicted verdict for a finding.
type Classification string

const (
	ClassMalicious  Classification = "malicious"
	ClassLegitimate Classification = "legitimate"
)

// GroundTruthLabel is the correct classification for a previously emitted
// finding. A label is actionable only when at least one reviewer is present.
type GroundTruthLabel struct {
	AutomationID   string         `json:"automationId"`
	OrganizationID string         `json:"organizationId,omitempty"`
	Actual         Classification `json:"actual"`
	Confidence     float64        `json:"confidence"`
	Reviewers      []string       `json:"reviewers"`
	Rationale      string         `json:"rationale,omitempty"`
	LabeledAt      time.Time      `json:"labeledAt"`
}

// Actionable reports whether the label may influence metrics or thresholds.
func (l *GroundTruthLabel) Actionable() bool {
	return len(l.Reviewers) > 0
}

// Prediction pairs a finding with the engine's verdict and its confidence
// in [0,1], for evaluation against ground truth.
type Prediction struct {
	AutomationID string         `json:"automationId"`
	Predicted    Classification `json:"predicted"`
	Confidence   float64        `json:"confidence"`
}
