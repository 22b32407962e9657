// Package aiprovider identifies traffic to AI vendors inside normalized
// audit events. Detection is table-driven: each provider contributes one
// registry row of endpoint, user-agent, OAuth-scope, webhook, content and
// IP indicators, and events are scored against every row across those six
// channels.
package aiprovider

import (
	"context"
	"encoding/json"
	"net/netip"
	"sort"
	"strings"

	"github.com/IGLOU-EU/go-wildcard/v2"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/singura/singura-go/internal/models"
	"github.com/singura/singura-go/internal/stats"
)

// maxContentBytes caps the JSON content a signature regex may scan. Content
// is attacker-influenceable, so longer payloads are truncated, never grown.
const maxContentBytes = 64 * 1024

// DetectionInput is the per-event projection the scoring channels consume.
// Absent fields simply leave their channel silent.
type DetectionInput struct {
	APIEndpoint string
	UserAgent   string
	Scopes      []string
	IP          string
	WebhookURL  string
	Content     string
}

// Detector scores events against the provider registry. The zero value is
// not usable; construct with NewDetector.
type Detector struct {
	registry []providerSignature
}

// NewDetector returns a detector backed by the built-in provider registry.
func NewDetector() *Detector {
	return &Detector{registry: defaultRegistry()}
}

// Detect scans the batch and returns one AutomationSignature per
// (provider, user) pair with any matching evidence, ordered by user then
// provider. Events with no matching evidence yield nothing.
func (d *Detector) Detect(ctx context.Context, events []models.Event) ([]models.AutomationSignature, error) {
	type sigKey struct {
		provider models.AIProvider
		userID   string
	}
	found := make(map[sigKey]*models.AutomationSignature)
	seen := make(map[sigKey]map[string]struct{})

	for i := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ev := &events[i]
		in := projectEvent(ev)

		match := d.bestMatch(in)
		if match == nil {
			continue
		}

		key := sigKey{provider: match.provider, userID: ev.UserID}
		sig := found[key]
		if sig == nil {
			sig = &models.AutomationSignature{
				SignatureID:     ulid.Make().String(),
				SignatureType:   models.SignatureTypeAIIntegration,
				AIProvider:      match.provider,
				UserID:          ev.UserID,
				DetectionMethod: match.primaryMethod,
				Confidence:      match.score,
				RiskLevel:       RiskLevelFor(match.score),
				Model:           extractModel(in.Content),
				Indicators:      models.SignatureIndicators{},
				Metadata: models.SignatureMetadata{
					FirstDetected:   ev.Timestamp,
					LastDetected:    ev.Timestamp,
					OccurrenceCount: 0,
				},
			}
			found[key] = sig
			seen[key] = make(map[string]struct{})
		}

		sig.Metadata.OccurrenceCount++
		if ev.Timestamp.Before(sig.Metadata.FirstDetected) {
			sig.Metadata.FirstDetected = ev.Timestamp
		}
		if ev.Timestamp.After(sig.Metadata.LastDetected) {
			sig.Metadata.LastDetected = ev.Timestamp
		}
		if match.score > sig.Confidence {
			sig.Confidence = match.score
			sig.DetectionMethod = match.primaryMethod
			sig.RiskLevel = RiskLevelFor(match.score)
		}
		if sig.Model == "" {
			sig.Model = extractModel(in.Content)
		}
		mergeIndicators(sig, &match.indicators, seen[key])
		if resource := resourceRef(ev); resource != "" {
			if _, dup := seen[key]["resource:"+resource]; !dup {
				seen[key]["resource:"+resource] = struct{}{}
				sig.Metadata.AffectedResources = append(sig.Metadata.AffectedResources, resource)
			}
		}
	}

	signatures := make([]models.AutomationSignature, 0, len(found))
	for _, sig := range found {
		signatures = append(signatures, *sig)
	}
	sort.Slice(signatures, func(i, j int) bool {
		if signatures[i].UserID != signatures[j].UserID {
			return signatures[i].UserID < signatures[j].UserID
		}
		return signatures[i].AIProvider < signatures[j].AIProvider
	})

	for i := range signatures {
		log.Debug().
			Str("userId", signatures[i].UserID).
			Str("aiProvider", string(signatures[i].AIProvider)).
			Str("detectionMethod", string(signatures[i].DetectionMethod)).
			Float64("confidence", signatures[i].Confidence).
			Msg("ai integration signature emitted")
	}
	return signatures, nil
}

// providerMatch is the best-scoring provider for one event.
type providerMatch struct {
	provider      models.AIProvider
	score         float64
	primaryMethod models.DetectionMethod
	methodRank    int
	indicators    models.SignatureIndicators
}

// bestMatch scores the input against every registry row and returns the
// winning provider, or nil when nothing matched. Equal scores fall to the
// provider whose primary method ranks higher; a full tie goes alphabetical
// so results stay stable.
func (d *Detector) bestMatch(in DetectionInput) *providerMatch {
	var best *providerMatch
	var addr netip.Addr
	hasAddr := false
	if in.IP != "" {
		if parsed, err := netip.ParseAddr(in.IP); err == nil {
			addr, hasAddr = parsed, true
		}
	}

	for i := range d.registry {
		row := &d.registry[i]
		m := scoreRow(row, in, addr, hasAddr)
		if m == nil {
			continue
		}
		switch {
		case best == nil,
			m.score > best.score,
			m.score == best.score && m.methodRank < best.methodRank,
			m.score == best.score && m.methodRank == best.methodRank && m.provider < best.provider:
			best = m
		}
	}
	return best
}

// scoreRow accumulates per-method scores for one provider row, capping each
// method at its base weight and the total at 100.
func scoreRow(row *providerSignature, in DetectionInput, addr netip.Addr, hasAddr bool) *providerMatch {
	methods := make(map[models.DetectionMethod]float64)
	var indicators models.SignatureIndicators

	hit := func(method models.DetectionMethod) {
		weight := methodWeights[method]
		if methods[method]+weight > weight {
			methods[method] = weight
			return
		}
		methods[method] += weight
	}

	if in.APIEndpoint != "" {
		lower := strings.ToLower(in.APIEndpoint)
		for _, pattern := range row.endpointPatterns {
			if wildcard.Match(pattern, lower) {
				hit(models.MethodAPIEndpoint)
				indicators.Endpoints = append(indicators.Endpoints, in.APIEndpoint)
				break
			}
		}
	}
	if in.UserAgent != "" {
		lower := strings.ToLower(in.UserAgent)
		for _, part := range row.userAgentParts {
			if strings.Contains(lower, part) {
				hit(models.MethodUserAgent)
				indicators.UserAgents = append(indicators.UserAgents, in.UserAgent)
				break
			}
		}
	}
	for _, scope := range in.Scopes {
		for _, exact := range row.oauthScopes {
			if scope == exact {
				hit(models.MethodOAuthScope)
				indicators.OAuthScopes = append(indicators.OAuthScopes, scope)
			}
		}
	}
	if in.WebhookURL != "" {
		lower := strings.ToLower(in.WebhookURL)
		for _, pattern := range row.webhookPatterns {
			if wildcard.Match(pattern, lower) {
				hit(models.MethodWebhookPattern)
				indicators.WebhookPaths = append(indicators.WebhookPaths, in.WebhookURL)
				break
			}
		}
	}
	if in.Content != "" {
		for _, re := range row.contentSignatures {
			if m := re.FindString(in.Content); m != "" {
				hit(models.MethodContentSignature)
				indicators.ContentSignatures = append(indicators.ContentSignatures, m)
			}
		}
	}
	if hasAddr {
		for _, prefix := range row.ipRanges {
			if prefix.Contains(addr) {
				hit(models.MethodIPRange)
				indicators.IPRanges = append(indicators.IPRanges, prefix.String())
			}
		}
	}

	if len(methods) == 0 {
		return nil
	}
	var total float64
	for _, v := range methods {
		total += v
	}
	primary, rank := primaryMethod(methods)
	return &providerMatch{
		provider:      row.provider,
		score:         stats.Clamp(total, 0, 100),
		primaryMethod: primary,
		methodRank:    rank,
		indicators:    indicators,
	}
}

// primaryMethod returns the highest-priority method that scored, alongside
// its rank for tie-breaking.
func primaryMethod(methods map[models.DetectionMethod]float64) (models.DetectionMethod, int) {
	for rank, method := range methodPriority {
		if methods[method] > 0 {
			return method, rank
		}
	}
	return models.MethodContentSignature, len(methodPriority)
}

// RiskLevelFor buckets a confidence score for triage.
func RiskLevelFor(confidence float64) models.RiskLevel {
	switch {
	case confidence < 30:
		return models.RiskLow
	case confidence < 60:
		return models.RiskMedium
	case confidence < 90:
		return models.RiskHigh
	default:
		return models.RiskCritical
	}
}

// extractModel runs the model regex family over content; first match wins.
func extractModel(content string) string {
	for _, re := range modelPatterns {
		if m := re.FindString(content); m != "" {
			return m
		}
	}
	return ""
}

// projectEvent pulls the six detection channels out of one event. Content
// is the JSON rendering of actionDetails, truncated at the scan cap.
func projectEvent(ev *models.Event) DetectionInput {
	in := DetectionInput{
		UserAgent: ev.UserAgent,
		IP:        ev.IPAddress,
	}
	meta := ev.ActionDetails.AdditionalMetadata
	if meta != nil {
		for _, key := range []string{"apiEndpoint", "api_endpoint", "endpoint", "url", "requestUrl", "request_url", "destinationUrl", "destination_url"} {
			if s, ok := meta[key].(string); ok && s != "" {
				in.APIEndpoint = s
				break
			}
		}
		for _, key := range []string{"webhookUrl", "webhook_url", "callbackUrl", "callback_url"} {
			if s, ok := meta[key].(string); ok && s != "" {
				in.WebhookURL = s
				break
			}
		}
		for _, key := range []string{"scopes", "oauthScopes", "oauth_scopes", "scope"} {
			if scopes := stringList(meta[key]); len(scopes) > 0 {
				in.Scopes = scopes
				break
			}
		}
		if in.UserAgent == "" {
			for _, key := range []string{"userAgent", "user_agent"} {
				if s, ok := meta[key].(string); ok && s != "" {
					in.UserAgent = s
					break
				}
			}
		}
	}

	if raw, err := json.Marshal(ev.ActionDetails); err == nil {
		content := string(raw)
		if len(content) > maxContentBytes {
			content = content[:maxContentBytes]
		}
		in.Content = content
	}
	return in
}

// stringList coerces a metadata value into a string slice: either a JSON
// array or a single space- or comma-separated string.
func stringList(v interface{}) []string {
	switch val := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return val
	case string:
		fields := strings.FieldsFunc(val, func(r rune) bool { return r == ' ' || r == ',' })
		out := make([]string, 0, len(fields))
		for _, f := range fields {
			if f != "" {
				out = append(out, f)
			}
		}
		return out
	}
	return nil
}

// mergeIndicators folds a match's evidence into the signature, skipping
// strings already recorded for the pair.
func mergeIndicators(sig *models.AutomationSignature, add *models.SignatureIndicators, seen map[string]struct{}) {
	appendUnique := func(dst *[]string, channel string, values []string) {
		for _, v := range values {
			key := channel + ":" + v
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			*dst = append(*dst, v)
		}
	}
	appendUnique(&sig.Indicators.Endpoints, "endpoint", add.Endpoints)
	appendUnique(&sig.Indicators.UserAgents, "userAgent", add.UserAgents)
	appendUnique(&sig.Indicators.OAuthScopes, "oauthScope", add.OAuthScopes)
	appendUnique(&sig.Indicators.WebhookPaths, "webhook", add.WebhookPaths)
	appendUnique(&sig.Indicators.ContentSignatures, "contentSignature", add.ContentSignatures)
	appendUnique(&sig.Indicators.IPRanges, "ipRange", add.IPRanges)
}

// resourceRef names the resource an event touched, preferring the human
// name over the opaque ID.
func resourceRef(ev *models.Event) string {
	if ev.ActionDetails.ResourceName != "" {
		return ev.ActionDetails.ResourceName
	}
	return ev.ResourceID
}
