// Package export renders engine artifacts into deterministic interchange
// formats: ground-truth labels as newline-delimited JSON, evaluation reports
// as CSV and JSON, detection results as JSON. Equal inputs always produce
// byte-equal output, so downstream diffing and golden files stay stable.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"

	internalerrors "github.com/singura/singura-go/internal/errors"
	"github.com/singura/singura-go/internal/evaluation"
	"github.com/singura/singura-go/internal/models"
)

var (
	errNilCurve  = errors.New("evaluation curve is required")
	errNilResult = errors.New("detection result is required")
)

// LabelsNDJSON writes one label per line, ordered by (organizationId,
// automationId) with timestamps normalized to UTC. An empty set yields an
// empty document.
func LabelsNDJSON(labels []models.GroundTruthLabel) ([]byte, error) {
	ordered := make([]models.GroundTruthLabel, len(labels))
	copy(ordered, labels)
	for i := range ordered {
		ordered[i].LabeledAt = ordered[i].LabeledAt.UTC()
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].OrganizationID != ordered[j].OrganizationID {
			return ordered[i].OrganizationID < ordered[j].OrganizationID
		}
		return ordered[i].AutomationID < ordered[j].AutomationID
	})

	var buf bytes.Buffer
	for i := range ordered {
		line, err := json.Marshal(&ordered[i])
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// EvaluationJSON renders the evaluator report as indented JSON with a
// trailing newline.
func EvaluationJSON(curve *evaluation.PRCurveData) ([]byte, error) {
	if curve == nil {
		return nil, internalerrors.WrapInvalidInput("export.EvaluationJSON", errNilCurve)
	}
	data, err := json.MarshalIndent(curve, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// ResultJSON renders a detection result as indented JSON with a trailing
// newline. Timestamps serialize in RFC 3339.
func ResultJSON(result *models.DetectionResult) ([]byte, error) {
	if result == nil {
		return nil, internalerrors.WrapInvalidInput("export.ResultJSON", errNilResult)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
