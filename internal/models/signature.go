package models

import (
	"time"
)

// AIProvider names the vendor behind a detected integration.
type AIProvider string

const (
	ProviderOpenAI      AIProvider = "openai"
	ProviderAnthropic   AIProvider = "anthropic"
	ProviderGoogleAI    AIProvider = "google_ai"
	ProviderCohere      AIProvider = "cohere"
	ProviderHuggingFace AIProvider = "huggingface"
	ProviderReplicate   AIProvider = "replicate"
	ProviderMistral     AIProvider = "mistral"
	ProviderTogetherAI  AIProvider = "together_ai"
	ProviderUnknown     AIProvider = "unknown"
)

// DetectionMethod names the evidence channel that matched.
type DetectionMethod string

const (
	MethodAPIEndpoint      DetectionMethod = "api_endpoint"
	MethodUserAgent        DetectionMethod = "user_agent"
	MethodOAuthScope       DetectionMethod = "oauth_scope"
	MethodWebhookPattern   DetectionMethod = "webhook_pattern"
	MethodContentSignature DetectionMethod = "content_signature"
	MethodIPRange          DetectionMethod = "ip_range"
)

// RiskLevel buckets a signature's confidence for triage.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// SignatureTypeAIIntegration is the only signature type currently emitted.
const SignatureTypeAIIntegration = "ai_integration"

// SignatureIndicators lists the concrete evidence matched per channel.
type SignatureIndicators struct {
	Endpoints         []string `json:"endpoints,omitempty"`
	UserAgents        []string `json:"userAgents,omitempty"`
	OAuthScopes       []string `json:"oauthScopes,omitempty"`
	WebhookPaths      []string `json:"webhookPaths,omitempty"`
	ContentSignatures []string `json:"contentSignatures,omitempty"`
	IPRanges          []string `json:"ipRanges,omitempty"`
}

// SignatureMetadata tracks when and how often the integration was observed.
type SignatureMetadata struct {
	FirstDetected     time.Time `json:"firstDetected"`
	LastDetected      time.Time `json:"lastDetected"`
	OccurrenceCount   int       `json:"occurrenceCount"`
	AffectedResources []string  `json:"affectedResources,omitempty"`
}

// AutomationSignature is evidence that a specific AI provider is being called
// from inside the tenant. One signature is emitted per (provider, user) per
// engine invocation; repeat matches fold into Metadata.OccurrenceCount.
type AutomationSignature struct {
	SignatureID     string              `json:"signatureId"`
	SignatureType   string              `json:"signatureType"`
	AIProvider      AIProvider          `json:"aiProvider"`
	UserID          string              `json:"userId"`
	DetectionMethod DetectionMethod     `json:"detectionMethod"`
	Confidence      float64             `json:"confidence"`
	RiskLevel       RiskLevel           `json:"riskLevel"`
	Model           string              `json:"model,omitempty"`
	Indicators      SignatureIndicators `json:"indicators"`
	Metadata        SignatureMetadata   `json:"metadata"`
}
