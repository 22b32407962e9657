package models

import (
	"time"
)

// FeedbackType is the analyst's assessment of a finding.
type FeedbackType string

const (
	FeedbackCorrectDetection        FeedbackType = "correct_detection"
	FeedbackFalsePositive           FeedbackType = "false_positive"
	FeedbackFalseNegative           FeedbackType = "false_negative"
	FeedbackIncorrectClassification FeedbackType = "incorrect_classification"
	FeedbackIncorrectProvider       FeedbackType = "incorrect_provider"
	FeedbackIncorrectRisk           FeedbackType = "incorrect_risk"
)

// Sentiment captures the reviewer's overall stance alongside the typed
// assessment.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// SuggestedCorrection carries the reviewer's proposed fix for incorrect
// classification, provider, or risk findings. Only the relevant field is set.
type SuggestedCorrection struct {
	Classification Classification `json:"classification,omitempty"`
	AIProvider     AIProvider     `json:"aiProvider,omitempty"`
	RiskLevel      RiskLevel      `json:"riskLevel,omitempty"`
}

// AutomationFeedback is one analyst review of an emitted finding, as received
// over the feedback channel.
type AutomationFeedback struct {
	AutomationID        string               `json:"automationId"`
	OrganizationID      string               `json:"organizationId,omitempty"`
	FeedbackType        FeedbackType         `json:"feedbackType"`
	SuggestedCorrection *SuggestedCorrection `json:"suggestedCorrection,omitempty"`
	Sentiment           Sentiment            `json:"sentiment"`
	Comment             string               `json:"comment,omitempty"`
	Reviewers           []string             `json:"reviewers"`
	Rationale           string               `json:"rationale,omitempty"`
	ReceivedAt          time.Time            `json:"receivedAt"`
}
