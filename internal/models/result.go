package models

import (
	"time"
)

// RiskType classifies a risk indicator derived from a signature.
type RiskType string

const (
	RiskExternalAccess RiskType = "external_access"
)

// ComplianceImpact flags the regulatory frameworks a finding touches.
// PCI is carried for downstream reviewers but never auto-flagged here.
type ComplianceImpact struct {
	GDPR  bool `json:"gdpr"`
	SOX   bool `json:"sox"`
	HIPAA bool `json:"hipaa"`
	PCI   bool `json:"pci"`
}

// RiskIndicator is the triage view of one automation signature: severity,
// a provider-specific mitigation recommendation, and compliance flags.
type RiskIndicator struct {
	IndicatorID      string           `json:"indicatorId"`
	RiskType         RiskType         `json:"riskType"`
	Severity         float64          `json:"severity"`
	AIProvider       AIProvider       `json:"aiProvider"`
	UserID           string           `json:"userId,omitempty"`
	Description      string           `json:"description"`
	Recommendation   string           `json:"recommendation"`
	ComplianceImpact ComplianceImpact `json:"complianceImpact"`
	DetectedAt       time.Time        `json:"detectedAt"`
}

// DetectionResultSchemaVersion is bumped when the serialized shape of
// DetectionResult changes incompatibly.
const DetectionResultSchemaVersion = "1"

// DetectionResult is everything one engine invocation found: behavioral
// patterns, provider signatures, the risk indicators derived from those
// signatures, and the fused overall risk in [0,100].
type DetectionResult struct {
	SchemaVersion        string                `json:"schemaVersion"`
	ActivityPatterns     []ActivityPattern     `json:"activityPatterns"`
	AutomationSignatures []AutomationSignature `json:"automationSignatures"`
	RiskIndicators       []RiskIndicator       `json:"riskIndicators"`
	OverallRisk          float64               `json:"overallRisk"`
}
