// Package detection runs shadow-AI detection passes: each pass resolves the
// organization's thresholds, fans the event batch out to the behavioral
// detectors and the AI-provider detector concurrently, derives risk
// indicators from the signatures, and fuses everything into one versioned
// DetectionResult. The Engine carries immutable handles only, so a single
// value serves concurrent passes.
package detection

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/singura/singura-go/internal/aiprovider"
	"github.com/singura/singura-go/internal/detectors"
	internalerrors "github.com/singura/singura-go/internal/errors"
	"github.com/singura/singura-go/internal/logging"
	"github.com/singura/singura-go/internal/models"
	"github.com/singura/singura-go/internal/normalize"
	"github.com/singura/singura-go/internal/stats"
	"github.com/singura/singura-go/internal/telemetry"
	"github.com/singura/singura-go/internal/thresholds"
)

// Fusion weights. Behavioral patterns carry more signal than single-event
// provider matches, so they dominate the overall risk.
const (
	patternWeight   = 0.6
	indicatorWeight = 0.4
)

// providerDetectorName labels the AI-provider detector in run stats and
// telemetry alongside the behavioral detectors.
const providerDetectorName = "ai_provider"

// Options configures an Engine.
type Options struct {
	// Store resolves per-organization threshold sets. Nil runs every pass on
	// compiled-in defaults.
	Store *thresholds.Store

	// MaxParallelDetectors bounds detector fan-out per pass. Zero runs one
	// goroutine per detector.
	MaxParallelDetectors int
}

// Engine orchestrates detection passes over normalized event batches.
type Engine struct {
	store       *thresholds.Store
	roster      []detectors.Detector
	providers   *aiprovider.Detector
	maxParallel int
}

// NewEngine assembles an engine with the full detector roster and the
// built-in AI-provider registry.
func NewEngine(opts Options) *Engine {
	store := opts.Store
	if store == nil {
		store = thresholds.NewStore(nil)
	}
	return &Engine{
		store:       store,
		roster:      detectors.All(),
		providers:   aiprovider.NewDetector(),
		maxParallel: opts.MaxParallelDetectors,
	}
}

// RunStats summarizes one pass for callers that cannot scrape the Prometheus
// registry. DetectorHits counts findings per detector; DetectorsSkipped lists
// detectors that had too little data to judge anything.
type RunStats struct {
	RunID            string         `json:"runId"`
	OrganizationID   string         `json:"organizationId,omitempty"`
	ThresholdVersion string         `json:"thresholdVersion"`
	EventsProcessed  int            `json:"eventsProcessed"`
	DroppedInvalid   int            `json:"droppedInvalid"`
	DetectorHits     map[string]int `json:"detectorHits"`
	DetectorsSkipped []string       `json:"detectorsSkipped,omitempty"`
	DetectorErrors   []string       `json:"detectorErrors,omitempty"`
	Duration         time.Duration  `json:"duration"`
}

// DetectShadowAI runs one detection pass over the batch. Invalid events are
// dropped and counted, never repaired. A cancelled context discards all
// partial findings; an isolated detector failure empties that detector's
// slot and the pass continues. The returned RunStats is non-nil whenever the
// result is.
func (e *Engine) DetectShadowAI(ctx context.Context, events []models.Event, businessHours models.ActivityTimeframe, organizationID string) (*models.DetectionResult, *RunStats, error) {
	start := time.Now()

	runID := logging.GetRunID(ctx)
	if runID == "" {
		ctx, runID = logging.WithRunID(ctx, "")
	}
	logger := logging.FromContext(ctx)

	if businessHours.IsZero() {
		businessHours = models.DefaultBusinessHours()
	}

	runStats := &RunStats{
		RunID:          runID,
		OrganizationID: organizationID,
		DetectorHits:   make(map[string]int, len(e.roster)+1),
	}

	accepted := make([]models.Event, 0, len(events))
	for i := range events {
		event, err := normalize.Canonicalize(events[i])
		if err != nil {
			runStats.DroppedInvalid++
			continue
		}
		accepted = append(accepted, event)
	}
	runStats.EventsProcessed = len(accepted)

	set := e.store.GetFor(ctx, organizationID)
	runStats.ThresholdVersion = set.Version

	if err := ctx.Err(); err != nil {
		return nil, nil, cancelledError(organizationID, err)
	}

	batch := detectors.Batch{
		Events:     accepted,
		Thresholds: set,
		Hours:      businessHours,
	}

	// Each detector writes only its own slot, so aggregation stays in
	// canonical roster order no matter how the goroutines interleave.
	slots := make([][]models.ActivityPattern, len(e.roster))
	evaluated := make([]int, len(e.roster))
	detectorErrs := make([]error, len(e.roster))
	var signatures []models.AutomationSignature
	var signatureErr error

	g, gctx := errgroup.WithContext(ctx)
	if e.maxParallel > 0 {
		g.SetLimit(e.maxParallel)
	}

	for i, det := range e.roster {
		i, det := i, det
		g.Go(func() error {
			telemetry.RecordDetectorRun(det.Name())
			out, err := det.Detect(gctx, batch)
			if err != nil {
				if internalerrors.IsCancelled(err) {
					return err
				}
				detectorErrs[i] = err
				telemetry.RecordDetectorError(det.Name())
				logger.Error().Err(err).Str("detector", det.Name()).Msg("Detector failed, slot left empty")
				return nil
			}
			slots[i] = out.Patterns
			evaluated[i] = out.Evaluated
			return nil
		})
	}

	g.Go(func() error {
		telemetry.RecordDetectorRun(providerDetectorName)
		sigs, err := e.providers.Detect(gctx, accepted)
		if err != nil {
			if internalerrors.IsCancelled(err) {
				return err
			}
			signatureErr = err
			telemetry.RecordDetectorError(providerDetectorName)
			logger.Error().Err(err).Str("detector", providerDetectorName).Msg("Detector failed, slot left empty")
			return nil
		}
		signatures = sigs
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, cancelledError(organizationID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, cancelledError(organizationID, err)
	}

	patterns := make([]models.ActivityPattern, 0, totalPatterns(slots))
	for i, det := range e.roster {
		name := det.Name()
		patterns = append(patterns, slots[i]...)
		runStats.DetectorHits[name] = len(slots[i])
		if detectorErrs[i] != nil {
			runStats.DetectorErrors = append(runStats.DetectorErrors, name)
			continue
		}
		if evaluated[i] == 0 {
			runStats.DetectorsSkipped = append(runStats.DetectorsSkipped, name)
			telemetry.RecordDetectorSkip(name)
		}
	}
	runStats.DetectorHits[providerDetectorName] = len(signatures)
	if signatureErr != nil {
		runStats.DetectorErrors = append(runStats.DetectorErrors, providerDetectorName)
	} else if len(accepted) == 0 {
		runStats.DetectorsSkipped = append(runStats.DetectorsSkipped, providerDetectorName)
		telemetry.RecordDetectorSkip(providerDetectorName)
	}

	if err := e.checkInvariants(logger, slots, signatures, organizationID); err != nil {
		return nil, nil, err
	}

	indicators := deriveIndicators(signatures)
	overall := fuseRisk(patterns, indicators)

	for i := range patterns {
		telemetry.RecordPattern(&patterns[i])
	}
	for i := range signatures {
		telemetry.RecordSignature(&signatures[i])
	}

	if signatures == nil {
		signatures = []models.AutomationSignature{}
	}
	result := &models.DetectionResult{
		SchemaVersion:        models.DetectionResultSchemaVersion,
		ActivityPatterns:     patterns,
		AutomationSignatures: signatures,
		RiskIndicators:       indicators,
		OverallRisk:          overall,
	}

	runStats.Duration = time.Since(start)
	telemetry.RecordDetectionPass(runStats.Duration)

	logger.Debug().
		Str("orgId", organizationID).
		Int("events", runStats.EventsProcessed).
		Int("dropped", runStats.DroppedInvalid).
		Int("patterns", len(patterns)).
		Int("signatures", len(signatures)).
		Float64("overallRisk", overall).
		Dur("duration", runStats.Duration).
		Msg("Detection pass completed")

	return result, runStats, nil
}

// checkInvariants verifies every finding's confidence landed in [0,100]
// after clamping. A violation is a bug, not bad input; the pass aborts and
// the opaque reference ID ties the caller's error to the log line.
func (e *Engine) checkInvariants(logger zerolog.Logger, slots [][]models.ActivityPattern, signatures []models.AutomationSignature, organizationID string) error {
	for i, det := range e.roster {
		for j := range slots[i] {
			c := slots[i][j].Confidence
			if c < 0 || c > 100 || math.IsNaN(c) {
				return invariantViolation(logger, det.Name(), organizationID,
					fmt.Errorf("pattern confidence %v outside [0,100]", c))
			}
		}
	}
	for i := range signatures {
		c := signatures[i].Confidence
		if c < 0 || c > 100 || math.IsNaN(c) {
			return invariantViolation(logger, providerDetectorName, organizationID,
				fmt.Errorf("signature confidence %v outside [0,100]", c))
		}
	}
	return nil
}

// invariantViolation logs the fault with a fresh reference ID and returns
// the matching error for the caller.
func invariantViolation(logger zerolog.Logger, component, organizationID string, cause error) error {
	referenceID := uuid.NewString()
	logger.Error().
		Err(cause).
		Str("detector", component).
		Str("referenceId", referenceID).
		Msg("Invariant violation, pass aborted")
	return internalerrors.NewDetectionError(internalerrors.ErrorTypeInvariant, "detection.DetectShadowAI", cause).
		WithComponent(component).
		WithReference(referenceID).
		WithOrganization(organizationID)
}

// totalPatterns sizes the aggregate slice in one pass over the slots.
func totalPatterns(slots [][]models.ActivityPattern) int {
	n := 0
	for _, s := range slots {
		n += len(s)
	}
	return n
}

// fuseRisk combines the strongest behavioral pattern with the strongest
// provider indicator. Both sides empty means no findings at all, which is
// zero risk by definition.
func fuseRisk(patterns []models.ActivityPattern, indicators []models.RiskIndicator) float64 {
	if len(patterns) == 0 && len(indicators) == 0 {
		return 0
	}
	var maxPattern, maxSeverity float64
	for i := range patterns {
		if patterns[i].Confidence > maxPattern {
			maxPattern = patterns[i].Confidence
		}
	}
	for i := range indicators {
		if indicators[i].Severity > maxSeverity {
			maxSeverity = indicators[i].Severity
		}
	}
	return stats.Clamp(patternWeight*maxPattern+indicatorWeight*maxSeverity, 0, 100)
}

// cancelledError wraps a context cancellation so callers can classify it
// with internalerrors.IsCancelled.
func cancelledError(organizationID string, err error) error {
	return internalerrors.NewDetectionError(internalerrors.ErrorTypeCancelled, "detection.DetectShadowAI", err).
		WithOrganization(organizationID)
}
