package thresholds

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	internalerrors "github.com/singura/singura-go/internal/errors"
	"github.com/singura/singura-go/internal/telemetry"
)

var errEmptyOrganization = errors.New("organizationId is required")

// Loader fetches learner-optimized overrides for one organization. A nil or
// zero Partial means the organization runs on defaults. Implementations live
// with the persistence layer; the engine only sees this interface.
type Loader interface {
	LoadOverrides(ctx context.Context, organizationID string) (*Partial, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, organizationID string) (*Partial, error)

func (f LoaderFunc) LoadOverrides(ctx context.Context, organizationID string) (*Partial, error) {
	return f(ctx, organizationID)
}

// Store caches one ThresholdSet per organization. Reads are lock-shared so
// concurrent passes never block each other; refresh and learner updates take
// the write lock and swap whole sets, so a pass sees either the old set or
// the new one, never a mix.
type Store struct {
	mu       sync.RWMutex
	cache    map[string]*ThresholdSet
	defaults *ThresholdSet
	loader   Loader
	warned   map[string]bool // orgs whose load failure was already logged
}

// NewStore creates a threshold store. loader may be nil, in which case every
// organization runs on defaults.
func NewStore(loader Loader) *Store {
	return &Store{
		cache:    make(map[string]*ThresholdSet),
		defaults: Defaults(),
		loader:   loader,
		warned:   make(map[string]bool),
	}
}

// SetDefaults replaces the default set, e.g. after a calibration reload.
// Cached per-organization sets are dropped so the next pass re-merges
// overrides atop the new defaults.
func (s *Store) SetDefaults(set *ThresholdSet) error {
	if err := set.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.defaults = set.Clone()
	s.cache = make(map[string]*ThresholdSet)
	s.warned = make(map[string]bool)
	s.mu.Unlock()

	telemetry.UpdateThresholdSetsCached(0)
	log.Info().Str("version", set.Version).Msg("Threshold defaults replaced")
	return nil
}

// Defaults returns the current default set.
func (s *Store) Defaults() *ThresholdSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults
}

// GetFor returns the effective threshold set for an organization. An empty
// organizationID or a nil loader yields the defaults. Load failures retry
// once, then fall back to defaults; the failure is logged once per
// organization and the fallback is cached until Refresh.
func (s *Store) GetFor(ctx context.Context, organizationID string) *ThresholdSet {
	if organizationID == "" || s.loader == nil {
		return s.Defaults()
	}

	s.mu.RLock()
	cached, ok := s.cache[organizationID]
	s.mu.RUnlock()
	if ok {
		return cached
	}

	set := s.loadFor(ctx, organizationID)

	s.mu.Lock()
	// Another goroutine may have raced the load; keep the existing entry so
	// all in-flight passes agree on one version.
	if existing, ok := s.cache[organizationID]; ok {
		s.mu.Unlock()
		return existing
	}
	s.cache[organizationID] = set
	size := len(s.cache)
	s.mu.Unlock()

	telemetry.UpdateThresholdSetsCached(size)
	return set
}

// loadFor resolves overrides for one organization, retrying once before
// falling back to defaults.
func (s *Store) loadFor(ctx context.Context, organizationID string) *ThresholdSet {
	overrides, err := s.loader.LoadOverrides(ctx, organizationID)
	if err != nil {
		log.Debug().Err(err).Str("orgId", organizationID).Msg("Threshold override load failed, retrying")
		overrides, err = s.loader.LoadOverrides(ctx, organizationID)
	}
	if err != nil {
		s.warnOnce(organizationID, internalerrors.WrapThresholdLoad("thresholds.GetFor", organizationID, err))
		telemetry.RecordThresholdLoadFailure()
		telemetry.RecordThresholdLoad(string(SourceDefault))
		return s.defaultsFallback()
	}

	if overrides.IsZero() {
		telemetry.RecordThresholdLoad(string(SourceDefault))
		return s.defaultsFallback()
	}

	s.mu.RLock()
	base := s.defaults
	s.mu.RUnlock()

	merged := Merge(base, overrides)
	merged.Version = ulid.Make().String()
	merged.UpdatedAt = time.Now().UTC()
	merged.Source = SourceRLOptimized

	if err := merged.Validate(); err != nil {
		s.warnOnce(organizationID, err)
		telemetry.RecordThresholdLoadFailure()
		telemetry.RecordThresholdLoad(string(SourceDefault))
		return s.defaultsFallback()
	}

	telemetry.RecordThresholdLoad(string(SourceRLOptimized))
	log.Debug().
		Str("orgId", organizationID).
		Str("version", merged.Version).
		Msg("Loaded learner-optimized thresholds")
	return merged
}

func (s *Store) defaultsFallback() *ThresholdSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults
}

// warnOnce logs a load failure the first time it happens for an organization.
// Subsequent passes proceed silently on defaults until Refresh clears the
// marker.
func (s *Store) warnOnce(organizationID string, err error) {
	s.mu.Lock()
	already := s.warned[organizationID]
	s.warned[organizationID] = true
	s.mu.Unlock()

	if !already {
		log.Warn().Err(err).Str("orgId", organizationID).Msg("Threshold load failed, using defaults")
	}
}

// Refresh invalidates the cached set for one organization. The next GetFor
// reloads overrides.
func (s *Store) Refresh(organizationID string) {
	s.mu.Lock()
	delete(s.cache, organizationID)
	delete(s.warned, organizationID)
	size := len(s.cache)
	s.mu.Unlock()

	telemetry.UpdateThresholdSetsCached(size)
	log.Debug().Str("orgId", organizationID).Msg("Threshold cache entry invalidated")
}

// RefreshAll drops every cached set, e.g. after a calibration change.
func (s *Store) RefreshAll() {
	s.mu.Lock()
	s.cache = make(map[string]*ThresholdSet)
	s.warned = make(map[string]bool)
	s.mu.Unlock()

	telemetry.UpdateThresholdSetsCached(0)
	log.Info().Msg("Threshold cache cleared")
}

// Apply installs a learner-proposed partial as the organization's new set.
// The merged result is validated and versioned before it replaces the cached
// entry; detectors running on the old set finish on the old set.
func (s *Store) Apply(organizationID string, p *Partial) (*ThresholdSet, error) {
	if organizationID == "" {
		return nil, internalerrors.WrapInvalidInput("thresholds.Apply", errEmptyOrganization)
	}

	s.mu.RLock()
	base, ok := s.cache[organizationID]
	if !ok {
		base = s.defaults
	}
	s.mu.RUnlock()

	merged := Merge(base, p)
	merged.Version = ulid.Make().String()
	merged.UpdatedAt = time.Now().UTC()
	merged.Source = SourceRLOptimized

	if err := merged.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[organizationID] = merged
	size := len(s.cache)
	s.mu.Unlock()

	telemetry.UpdateThresholdSetsCached(size)
	log.Info().
		Str("orgId", organizationID).
		Str("version", merged.Version).
		Msg("Applied learner-proposed thresholds")
	return merged, nil
}

// Rollback replaces the organization's set with an earlier version supplied
// by the caller.
func (s *Store) Rollback(organizationID string, set *ThresholdSet) error {
	if organizationID == "" {
		return internalerrors.WrapInvalidInput("thresholds.Rollback", errEmptyOrganization)
	}
	if err := set.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[organizationID] = set.Clone()
	size := len(s.cache)
	s.mu.Unlock()

	telemetry.UpdateThresholdSetsCached(size)
	log.Info().
		Str("orgId", organizationID).
		Str("version", set.Version).
		Msg("Rolled back thresholds to earlier version")
	return nil
}

// CachedCount reports how many organizations currently have a cached set.
func (s *Store) CachedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}
