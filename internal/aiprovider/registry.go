package aiprovider

import (
	"net/netip"
	"regexp"

	"github.com/singura/singura-go/internal/models"
)

// methodWeights are the per-channel base scores. A method's accumulated
// contribution never exceeds its weight regardless of how many indicators
// hit within it.
var methodWeights = map[models.DetectionMethod]float64{
	models.MethodAPIEndpoint:      40,
	models.MethodOAuthScope:       40,
	models.MethodUserAgent:        30,
	models.MethodContentSignature: 30,
	models.MethodWebhookPattern:   25,
	models.MethodIPRange:          20,
}

// methodPriority orders methods by weight, with api_endpoint ahead of
// oauth_scope on the 40-point tie. The first matched method in this order
// becomes a signature's primary detection method, and the same order breaks
// equal-score ties between providers.
var methodPriority = []models.DetectionMethod{
	models.MethodAPIEndpoint,
	models.MethodOAuthScope,
	models.MethodUserAgent,
	models.MethodContentSignature,
	models.MethodWebhookPattern,
	models.MethodIPRange,
}

// providerSignature is one registry row: everything known to identify a
// provider across the six detection channels. Endpoint and webhook entries
// are wildcard patterns matched against lowercased URLs; user agents are
// lowercased substrings; OAuth scopes match exactly.
type providerSignature struct {
	provider          models.AIProvider
	endpointPatterns  []string
	userAgentParts    []string
	oauthScopes       []string
	webhookPatterns   []string
	contentSignatures []*regexp.Regexp
	ipRanges          []netip.Prefix
}

// modelPatterns extracts a model identifier from event content. First match
// wins, so more specific families come first.
var modelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`gpt-4[A-Za-z0-9.-]*`),
	regexp.MustCompile(`gpt-3\.5-turbo[A-Za-z0-9.-]*`),
	regexp.MustCompile(`o[13]-(?:mini|preview)[A-Za-z0-9.-]*`),
	regexp.MustCompile(`claude-3-[a-z]+`),
	regexp.MustCompile(`gemini-1\.5-[a-z]+`),
	regexp.MustCompile(`command-r(?:-plus)?`),
	regexp.MustCompile(`mistral-(?:large|medium|small|tiny)[A-Za-z0-9.-]*`),
	regexp.MustCompile(`llama-[0-9][A-Za-z0-9.-]*`),
}

func defaultRegistry() []providerSignature {
	return []providerSignature{
		{
			provider:         models.ProviderOpenAI,
			endpointPatterns: []string{"*api.openai.com*"},
			userAgentParts:   []string{"openai"},
			oauthScopes:      []string{"openai.api.read", "openai.api.write"},
			webhookPatterns:  []string{"*openai*"},
			contentSignatures: []*regexp.Regexp{
				regexp.MustCompile(`(?i)api\.openai\.com/v1/(?:chat/completions|completions|embeddings|assistants)`),
				regexp.MustCompile(`sk-[A-Za-z0-9]{32,}`),
			},
			ipRanges: []netip.Prefix{
				netip.MustParsePrefix("23.102.140.112/28"),
				netip.MustParsePrefix("13.66.11.96/28"),
			},
		},
		{
			provider:         models.ProviderAnthropic,
			endpointPatterns: []string{"*api.anthropic.com*"},
			userAgentParts:   []string{"anthropic"},
			oauthScopes:      []string{"anthropic.claude.messages"},
			webhookPatterns:  []string{"*anthropic*", "*claude*"},
			contentSignatures: []*regexp.Regexp{
				regexp.MustCompile(`(?i)api\.anthropic\.com/v1/messages`),
				regexp.MustCompile(`(?i)anthropic-version`),
			},
			ipRanges: []netip.Prefix{
				netip.MustParsePrefix("160.79.104.0/21"),
			},
		},
		{
			provider: models.ProviderGoogleAI,
			endpointPatterns: []string{
				"*generativelanguage.googleapis.com*",
				"*aiplatform.googleapis.com*",
			},
			userAgentParts: []string{"google-genai", "generative-ai"},
			oauthScopes: []string{
				"https://www.googleapis.com/auth/generative-language",
				"https://www.googleapis.com/auth/generative-language.tuning",
			},
			webhookPatterns: []string{"*generativelanguage*"},
			contentSignatures: []*regexp.Regexp{
				regexp.MustCompile(`(?i)generativelanguage\.googleapis\.com`),
				regexp.MustCompile(`(?i)gemini-1\.5`),
			},
		},
		{
			provider:         models.ProviderCohere,
			endpointPatterns: []string{"*api.cohere.ai*", "*api.cohere.com*"},
			userAgentParts:   []string{"cohere"},
			oauthScopes:      []string{"cohere.generate", "cohere.embed"},
			webhookPatterns:  []string{"*cohere*"},
			contentSignatures: []*regexp.Regexp{
				regexp.MustCompile(`(?i)api\.cohere\.(?:ai|com)/v[12]`),
			},
		},
		{
			provider: models.ProviderHuggingFace,
			endpointPatterns: []string{
				"*api-inference.huggingface.co*",
				"*huggingface.co/api*",
			},
			userAgentParts:  []string{"huggingface_hub", "transformers"},
			oauthScopes:     []string{"huggingface.inference-api"},
			webhookPatterns: []string{"*huggingface*"},
			contentSignatures: []*regexp.Regexp{
				regexp.MustCompile(`(?i)api-inference\.huggingface\.co`),
				regexp.MustCompile(`hf_[A-Za-z0-9]{30,}`),
			},
		},
		{
			provider:         models.ProviderReplicate,
			endpointPatterns: []string{"*api.replicate.com*"},
			userAgentParts:   []string{"replicate"},
			oauthScopes:      []string{"replicate.predictions"},
			webhookPatterns:  []string{"*replicate*"},
			contentSignatures: []*regexp.Regexp{
				regexp.MustCompile(`(?i)api\.replicate\.com/v1/predictions`),
				regexp.MustCompile(`r8_[A-Za-z0-9]{20,}`),
			},
		},
		{
			provider:         models.ProviderMistral,
			endpointPatterns: []string{"*api.mistral.ai*"},
			userAgentParts:   []string{"mistralai", "mistral-client"},
			oauthScopes:      []string{"mistral.chat.completions"},
			webhookPatterns:  []string{"*mistral*"},
			contentSignatures: []*regexp.Regexp{
				regexp.MustCompile(`(?i)api\.mistral\.ai/v1`),
			},
		},
		{
			provider:         models.ProviderTogetherAI,
			endpointPatterns: []string{"*api.together.xyz*", "*api.together.ai*"},
			userAgentParts:   []string{"together"},
			oauthScopes:      []string{"together.inference"},
			webhookPatterns:  []string{"*together*"},
			contentSignatures: []*regexp.Regexp{
				regexp.MustCompile(`(?i)api\.together\.(?:xyz|ai)/v1`),
			},
		},
	}
}
