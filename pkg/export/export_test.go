package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalerrors "github.com/singura/singura-go/internal/errors"
	"github.com/singura/singura-go/internal/evaluation"
	"github.com/singura/singura-go/internal/models"
)

func fixtureCurve() *evaluation.PRCurveData {
	return &evaluation.PRCurveData{
		Points: []evaluation.PRPoint{
			{Threshold: 0.5, Precision: 1, Recall: 1, F1: 1},
			{Threshold: 0.7, Precision: 1, Recall: 1, F1: 1},
			{Threshold: 0.85, Precision: 1, Recall: 0.5, F1: 2.0 / 3.0},
		},
		AUC:              0.5,
		OptimalThreshold: 0.5,
		OptimalF1:        1,
	}
}

// fixtureLabels arrive unsorted and with one non-UTC timestamp; the writer
// owns the output order and zone.
func fixtureLabels() []models.GroundTruthLabel {
	return []models.GroundTruthLabel{
		{
			AutomationID:   "auto-1",
			OrganizationID: "org-b",
			Actual:         models.ClassMalicious,
			Confidence:     0.9,
			LabeledAt:      time.Date(2026, 3, 4, 11, 0, 0, 0, time.UTC),
		},
		{
			AutomationID:   "auto-2",
			OrganizationID: "org-a",
			Actual:         models.ClassLegitimate,
			Confidence:     1,
			Reviewers:      []string{"analyst-1"},
			Rationale:      "sanctioned backup job",
			LabeledAt:      time.Date(2026, 3, 3, 12, 30, 0, 0, time.FixedZone("CEST", 2*60*60)),
		},
		{
			AutomationID:   "auto-1",
			OrganizationID: "org-a",
			Actual:         models.ClassMalicious,
			Confidence:     1,
			Reviewers:      []string{"analyst-1", "analyst-2"},
			Rationale:      "confirmed exfiltration script",
			LabeledAt:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		},
	}
}

func TestLabelsNDJSON_Golden(t *testing.T) {
	data, err := LabelsNDJSON(fixtureLabels())
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "labels_ndjson", data)
}

func TestLabelsNDJSON_Empty(t *testing.T) {
	t.Parallel()

	data, err := LabelsNDJSON(nil)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestLabelsNDJSON_LeavesInputUntouched(t *testing.T) {
	t.Parallel()

	labels := fixtureLabels()
	_, err := LabelsNDJSON(labels)
	require.NoError(t, err)

	assert.Equal(t, "org-b", labels[0].OrganizationID)
	assert.Equal(t, fixtureLabels()[1].LabeledAt, labels[1].LabeledAt)
}

func TestEvaluationCSV_Golden(t *testing.T) {
	data, err := EvaluationCSV(fixtureCurve())
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "evaluation_csv", data)
}

func TestEvaluationCSV_ParsesBack(t *testing.T) {
	t.Parallel()

	data, err := EvaluationCSV(fixtureCurve())
	require.NoError(t, err)

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 7)

	assert.Equal(t, []string{"threshold", "precision", "recall", "f1"}, records[0])
	assert.Equal(t, []string{"0.8500", "1.0000", "0.5000", "0.6667"}, records[3])
	assert.Equal(t, []string{"# Optimal F1: 1.0000"}, records[6])
}

func TestEvaluationJSON_Golden(t *testing.T) {
	data, err := EvaluationJSON(fixtureCurve())
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "evaluation_json", data)
}

func TestEvaluationJSON_RoundTrip(t *testing.T) {
	t.Parallel()

	data, err := EvaluationJSON(fixtureCurve())
	require.NoError(t, err)

	var decoded evaluation.PRCurveData
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, *fixtureCurve(), decoded)
}

func TestResultJSON(t *testing.T) {
	t.Parallel()

	result := &models.DetectionResult{
		SchemaVersion:        models.DetectionResultSchemaVersion,
		ActivityPatterns:     []models.ActivityPattern{},
		AutomationSignatures: []models.AutomationSignature{},
		RiskIndicators:       []models.RiskIndicator{},
		OverallRisk:          0,
	}

	data, err := ResultJSON(result)
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(data, []byte("\n")))
	assert.Contains(t, string(data), `"schemaVersion": "1"`)

	var decoded models.DetectionResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, *result, decoded)
}

func TestNilInputs(t *testing.T) {
	t.Parallel()

	_, err := EvaluationCSV(nil)
	assert.True(t, internalerrors.IsInvalidInput(err))

	_, err = EvaluationJSON(nil)
	assert.True(t, internalerrors.IsInvalidInput(err))

	_, err = ResultJSON(nil)
	assert.True(t, internalerrors.IsInvalidInput(err))
}
