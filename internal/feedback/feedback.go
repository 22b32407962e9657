// Package feedback is the analyst-review pipeline: it maps reviews of
// emitted findings onto ground-truth labels, accumulates them per
// organization for the evaluator, and feeds the learner that proposes
// clipped threshold updates.
package feedback

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	internalerrors "github.com/singura/singura-go/internal/errors"
	"github.com/singura/singura-go/internal/models"
	"github.com/singura/singura-go/internal/telemetry"
)

// Label confidences assigned per feedback type. A false negative is labeled
// slightly below certainty: the reviewers reported the miss in retrospect,
// without a detector evidence trail in front of them.
const (
	fullConfidence          = 1.0
	falseNegativeConfidence = 0.9
)

var (
	errNilFeedback         = errors.New("feedback record is nil")
	errMissingAutomationID = errors.New("automationId is required")
	errNilLabel            = errors.New("label is nil")
)

// Correction preserves a reviewer's incorrect_* fix verbatim for downstream
// tuning of the provider registry and the risk mapping. Corrections never
// rewrite ground-truth labels on their own.
type Correction struct {
	AutomationID   string                      `json:"automationId"`
	OrganizationID string                      `json:"organizationId,omitempty"`
	FeedbackType   models.FeedbackType         `json:"feedbackType"`
	Suggested      *models.SuggestedCorrection `json:"suggested,omitempty"`
	Rationale      string                      `json:"rationale,omitempty"`
	Reviewers      []string                    `json:"reviewers"`
	ReceivedAt     time.Time                   `json:"receivedAt"`
}

// Store is the ground-truth set: the latest label per (organization,
// automation) plus every preserved correction. Reads return copies, so
// callers can hold results across later ingests.
type Store struct {
	mu          sync.RWMutex
	labels      map[string]map[string]*models.GroundTruthLabel
	corrections map[string][]Correction
}

// NewStore returns an empty ground-truth store.
func NewStore() *Store {
	return &Store{
		labels:      make(map[string]map[string]*models.GroundTruthLabel),
		corrections: make(map[string][]Correction),
	}
}

// Ingest maps one feedback record onto the ground-truth set. The verdict
// types produce a label (returned to the caller); the incorrect_* types are
// preserved as corrections and return a nil label. Unknown types are
// rejected.
func (s *Store) Ingest(fb *models.AutomationFeedback) (*models.GroundTruthLabel, error) {
	if fb == nil {
		return nil, internalerrors.WrapInvalidInput("feedback.Ingest", errNilFeedback)
	}
	if fb.AutomationID == "" {
		return nil, internalerrors.WrapInvalidInput("feedback.Ingest", errMissingAutomationID)
	}

	receivedAt := fb.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	switch fb.FeedbackType {
	case models.FeedbackCorrectDetection, models.FeedbackFalsePositive, models.FeedbackFalseNegative:
		label := labelFor(fb, receivedAt)
		if err := s.Add(label); err != nil {
			return nil, err
		}
		telemetry.RecordFeedbackLabel(fb.FeedbackType)
		log.Debug().
			Str("automationId", fb.AutomationID).
			Str("feedbackType", string(fb.FeedbackType)).
			Str("actual", string(label.Actual)).
			Msg("Ground-truth label ingested")
		return label, nil

	case models.FeedbackIncorrectClassification, models.FeedbackIncorrectProvider, models.FeedbackIncorrectRisk:
		s.AddCorrection(Correction{
			AutomationID:   fb.AutomationID,
			OrganizationID: fb.OrganizationID,
			FeedbackType:   fb.FeedbackType,
			Suggested:      fb.SuggestedCorrection,
			Rationale:      fb.Rationale,
			Reviewers:      append([]string(nil), fb.Reviewers...),
			ReceivedAt:     receivedAt,
		})
		telemetry.RecordFeedbackLabel(fb.FeedbackType)
		log.Debug().
			Str("automationId", fb.AutomationID).
			Str("feedbackType", string(fb.FeedbackType)).
			Msg("Correction preserved")
		return nil, nil

	default:
		return nil, internalerrors.WrapInvalidInput("feedback.Ingest",
			fmt.Errorf("unrecognized feedback type %q", fb.FeedbackType))
	}
}

// labelFor builds the ground-truth label for a verdict-type feedback record.
func labelFor(fb *models.AutomationFeedback, receivedAt time.Time) *models.GroundTruthLabel {
	actual := models.ClassMalicious
	confidence := fullConfidence
	switch fb.FeedbackType {
	case models.FeedbackFalsePositive:
		actual = models.ClassLegitimate
	case models.FeedbackFalseNegative:
		confidence = falseNegativeConfidence
	}
	return &models.GroundTruthLabel{
		AutomationID:   fb.AutomationID,
		OrganizationID: fb.OrganizationID,
		Actual:         actual,
		Confidence:     confidence,
		Reviewers:      append([]string(nil), fb.Reviewers...),
		Rationale:      fb.Rationale,
		LabeledAt:      receivedAt,
	}
}

// Add stores a label directly, e.g. when reloading an exported set. The
// latest label per (organization, automation) wins, so a re-review replaces
// the verdict it corrects.
func (s *Store) Add(label *models.GroundTruthLabel) error {
	if label == nil {
		return internalerrors.WrapInvalidInput("feedback.Add", errNilLabel)
	}
	if label.AutomationID == "" {
		return internalerrors.WrapInvalidInput("feedback.Add", errMissingAutomationID)
	}

	stored := *label
	stored.Reviewers = append([]string(nil), label.Reviewers...)

	s.mu.Lock()
	byAutomation := s.labels[stored.OrganizationID]
	if byAutomation == nil {
		byAutomation = make(map[string]*models.GroundTruthLabel)
		s.labels[stored.OrganizationID] = byAutomation
	}
	byAutomation[stored.AutomationID] = &stored
	s.mu.Unlock()
	return nil
}

// AddCorrection appends a preserved correction for the organization.
func (s *Store) AddCorrection(c Correction) {
	s.mu.Lock()
	s.corrections[c.OrganizationID] = append(s.corrections[c.OrganizationID], c)
	s.mu.Unlock()
}

// LabelsFor returns the organization's labels ordered by automation ID.
func (s *Store) LabelsFor(organizationID string) []models.GroundTruthLabel {
	s.mu.RLock()
	byAutomation := s.labels[organizationID]
	labels := make([]models.GroundTruthLabel, 0, len(byAutomation))
	for _, label := range byAutomation {
		labels = append(labels, copyLabel(label))
	}
	s.mu.RUnlock()

	sort.Slice(labels, func(i, j int) bool { return labels[i].AutomationID < labels[j].AutomationID })
	return labels
}

// ActionableFor returns the organization's labels that carry at least one
// reviewer, ordered by automation ID. Only these may influence metrics or
// thresholds.
func (s *Store) ActionableFor(organizationID string) []models.GroundTruthLabel {
	all := s.LabelsFor(organizationID)
	actionable := all[:0]
	for i := range all {
		if all[i].Actionable() {
			actionable = append(actionable, all[i])
		}
	}
	return actionable
}

// Snapshot returns every label across organizations, ordered by
// (organizationId, automationId). This is the export order for the
// newline-delimited label feed.
func (s *Store) Snapshot() []models.GroundTruthLabel {
	s.mu.RLock()
	var labels []models.GroundTruthLabel
	for _, byAutomation := range s.labels {
		for _, label := range byAutomation {
			labels = append(labels, copyLabel(label))
		}
	}
	s.mu.RUnlock()

	sort.Slice(labels, func(i, j int) bool {
		if labels[i].OrganizationID != labels[j].OrganizationID {
			return labels[i].OrganizationID < labels[j].OrganizationID
		}
		return labels[i].AutomationID < labels[j].AutomationID
	})
	return labels
}

// CorrectionsFor returns the organization's preserved corrections in arrival
// order.
func (s *Store) CorrectionsFor(organizationID string) []Correction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Correction(nil), s.corrections[organizationID]...)
}

// CountFor reports how many labels the organization has accumulated.
func (s *Store) CountFor(organizationID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.labels[organizationID])
}

func copyLabel(label *models.GroundTruthLabel) models.GroundTruthLabel {
	copied := *label
	copied.Reviewers = append([]string(nil), label.Reviewers...)
	return copied
}
