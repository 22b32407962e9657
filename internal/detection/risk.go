package detection

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/singura/singura-go/internal/models"
)

// providerNames maps registry identifiers to the display names used in
// indicator text.
var providerNames = map[models.AIProvider]string{
	models.ProviderOpenAI:      "OpenAI",
	models.ProviderAnthropic:   "Anthropic",
	models.ProviderGoogleAI:    "Google AI",
	models.ProviderCohere:      "Cohere",
	models.ProviderHuggingFace: "Hugging Face",
	models.ProviderReplicate:   "Replicate",
	models.ProviderMistral:     "Mistral",
	models.ProviderTogetherAI:  "Together AI",
}

// recommendations holds the per-provider mitigation template attached to
// derived risk indicators.
var recommendations = map[models.AIProvider]string{
	models.ProviderOpenAI:      "Review OpenAI API usage for this account, rotate any exposed API keys, and move approved workloads behind the sanctioned OpenAI organization.",
	models.ProviderAnthropic:   "Audit Claude API access for this account, rotate any exposed API keys, and restrict approved usage to the managed Anthropic workspace.",
	models.ProviderGoogleAI:    "Review Gemini API access for this account and revoke the generative-language OAuth scopes from unsanctioned clients.",
	models.ProviderCohere:      "Review Cohere API usage for this account and rotate any exposed API keys.",
	models.ProviderHuggingFace: "Audit Hugging Face access tokens for this account and restrict inference endpoints to vetted models.",
	models.ProviderReplicate:   "Review Replicate API usage for this account and rotate any exposed tokens.",
	models.ProviderMistral:     "Review Mistral API usage for this account and rotate any exposed API keys.",
	models.ProviderTogetherAI:  "Review Together AI usage for this account and rotate any exposed API keys.",
}

const defaultRecommendation = "Confirm whether this AI integration is sanctioned, rotate any credentials it exposed, and route approved usage through a managed account."

// deriveIndicators produces one external-access risk indicator per
// signature. Severity carries the signature confidence unchanged so risk
// fusion sees patterns and indicators on the same scale.
func deriveIndicators(signatures []models.AutomationSignature) []models.RiskIndicator {
	indicators := make([]models.RiskIndicator, 0, len(signatures))
	for i := range signatures {
		sig := &signatures[i]
		indicators = append(indicators, models.RiskIndicator{
			IndicatorID:      uuid.NewString(),
			RiskType:         models.RiskExternalAccess,
			Severity:         sig.Confidence,
			AIProvider:       sig.AIProvider,
			UserID:           sig.UserID,
			Description:      describeSignature(sig),
			Recommendation:   recommendationFor(sig.AIProvider),
			ComplianceImpact: complianceFor(sig.RiskLevel),
			DetectedAt:       sig.Metadata.LastDetected,
		})
	}
	return indicators
}

func describeSignature(sig *models.AutomationSignature) string {
	name := providerDisplayName(sig.AIProvider)
	method := strings.ReplaceAll(string(sig.DetectionMethod), "_", " ")
	if sig.UserID == "" {
		return fmt.Sprintf("%s integration detected via %s", name, method)
	}
	return fmt.Sprintf("%s integration detected for user %s via %s", name, sig.UserID, method)
}

func providerDisplayName(p models.AIProvider) string {
	if name, ok := providerNames[p]; ok {
		return name
	}
	return "Unrecognized AI provider"
}

// recommendationFor returns the provider's mitigation template, or the
// generic one for providers without a tailored entry.
func recommendationFor(p models.AIProvider) string {
	if r, ok := recommendations[p]; ok {
		return r
	}
	return defaultRecommendation
}

// complianceFor maps a signature's risk level onto regulatory flags. Any
// non-low external AI access is a GDPR processing concern; high and critical
// findings additionally touch SOX and HIPAA. PCI is left to reviewers.
func complianceFor(level models.RiskLevel) models.ComplianceImpact {
	impact := models.ComplianceImpact{}
	if level != models.RiskLow {
		impact.GDPR = true
	}
	if level == models.RiskHigh || level == models.RiskCritical {
		impact.SOX = true
		impact.HIPAA = true
	}
	return impact
}
