package evaluation

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalerrors "github.com/singura/singura-go/internal/errors"
	"github.com/singura/singura-go/internal/models"
)

func scenarioPredictions() []models.Prediction {
	return []models.Prediction{
		{AutomationID: "auto-a", Predicted: models.ClassMalicious, Confidence: 0.9},
		{AutomationID: "auto-b", Predicted: models.ClassMalicious, Confidence: 0.8},
		{AutomationID: "auto-c", Predicted: models.ClassMalicious, Confidence: 0.6},
		{AutomationID: "auto-d", Predicted: models.ClassMalicious, Confidence: 0.3},
		{AutomationID: "auto-e", Predicted: models.ClassMalicious, Confidence: 0.2},
	}
}

// auto-c never received a label, so its pair must stay out of every count.
func scenarioTruth() []models.GroundTruthLabel {
	return []models.GroundTruthLabel{
		{AutomationID: "auto-a", Actual: models.ClassMalicious},
		{AutomationID: "auto-b", Actual: models.ClassMalicious},
		{AutomationID: "auto-d", Actual: models.ClassLegitimate},
		{AutomationID: "auto-e", Actual: models.ClassLegitimate},
	}
}

func TestEvaluate_SuppliedThresholds(t *testing.T) {
	t.Parallel()

	curve, err := Evaluate(scenarioPredictions(), scenarioTruth(), []float64{0.85, 0.5, 0.7})
	require.NoError(t, err)
	require.Len(t, curve.Points, 3)

	assert.Equal(t, 0.5, curve.Points[0].Threshold)
	assert.InDelta(t, 1.0, curve.Points[0].Precision, 1e-9)
	assert.InDelta(t, 1.0, curve.Points[0].Recall, 1e-9)
	assert.InDelta(t, 1.0, curve.Points[0].F1, 1e-9)

	assert.Equal(t, 0.7, curve.Points[1].Threshold)
	assert.InDelta(t, 1.0, curve.Points[1].Precision, 1e-9)
	assert.InDelta(t, 1.0, curve.Points[1].Recall, 1e-9)

	assert.Equal(t, 0.85, curve.Points[2].Threshold)
	assert.InDelta(t, 1.0, curve.Points[2].Precision, 1e-9)
	assert.InDelta(t, 0.5, curve.Points[2].Recall, 1e-9)
	assert.InDelta(t, 2.0/3.0, curve.Points[2].F1, 1e-9)

	assert.InDelta(t, 0.5, curve.AUC, 1e-9)
	assert.Contains(t, []float64{0.5, 0.7}, curve.OptimalThreshold)
	assert.InDelta(t, 1.0, curve.OptimalF1, 1e-9)
}

func TestEvaluate_AdaptiveSweep(t *testing.T) {
	t.Parallel()

	curve, err := Evaluate(scenarioPredictions(), scenarioTruth(), nil)
	require.NoError(t, err)

	got := make([]float64, 0, len(curve.Points))
	for _, p := range curve.Points {
		got = append(got, p.Threshold)
	}
	// Matched confidences plus the {0,1} endpoints; auto-c's 0.6 is absent.
	assert.Equal(t, []float64{0, 0.2, 0.3, 0.8, 0.9, 1}, got)

	// Raising the threshold only shrinks the positive set.
	for i := 1; i < len(curve.Points); i++ {
		assert.GreaterOrEqual(t, curve.Points[i-1].Recall, curve.Points[i].Recall)
	}

	assert.Equal(t, 0.8, curve.OptimalThreshold)
	assert.InDelta(t, 1.0, curve.OptimalF1, 1e-9)
	assert.GreaterOrEqual(t, curve.AUC, 0.5)
	assert.LessOrEqual(t, curve.AUC, 1.0)
}

func TestConfusionAt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		threshold float64
		want      ConfusionMatrix
	}{
		{"everything flagged", 0.1, ConfusionMatrix{TruePositives: 2, FalsePositives: 2}},
		{"clean separation", 0.5, ConfusionMatrix{TruePositives: 2, TrueNegatives: 2}},
		{"only the strongest", 0.85, ConfusionMatrix{TruePositives: 1, TrueNegatives: 2, FalseNegatives: 1}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, err := ConfusionAt(scenarioPredictions(), scenarioTruth(), tt.threshold)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m)

			// Five predictions, four with ground truth.
			counted := m.TruePositives + m.FalsePositives + m.TrueNegatives + m.FalseNegatives
			assert.Equal(t, 4, counted)
		})
	}
}

func TestConfusionAt_LegitimateVerdictNeverPositive(t *testing.T) {
	t.Parallel()

	predictions := []models.Prediction{
		{AutomationID: "auto-x", Predicted: models.ClassLegitimate, Confidence: 0.95},
		{AutomationID: "auto-y", Predicted: models.ClassLegitimate, Confidence: 0.95},
	}
	truth := []models.GroundTruthLabel{
		{AutomationID: "auto-x", Actual: models.ClassMalicious},
		{AutomationID: "auto-y", Actual: models.ClassLegitimate},
	}

	m, err := ConfusionAt(predictions, truth, 0.1)
	require.NoError(t, err)
	assert.Equal(t, ConfusionMatrix{FalseNegatives: 1, TrueNegatives: 1}, m)
}

func TestConfusionAt_LatestLabelWins(t *testing.T) {
	t.Parallel()

	predictions := []models.Prediction{
		{AutomationID: "auto-x", Predicted: models.ClassMalicious, Confidence: 0.9},
	}
	truth := []models.GroundTruthLabel{
		{AutomationID: "auto-x", Actual: models.ClassMalicious},
		{AutomationID: "auto-x", Actual: models.ClassLegitimate},
	}

	m, err := ConfusionAt(predictions, truth, 0.5)
	require.NoError(t, err)
	assert.Equal(t, ConfusionMatrix{FalsePositives: 1}, m)
}

func TestPointAt(t *testing.T) {
	t.Parallel()

	point, err := PointAt(scenarioPredictions(), scenarioTruth(), 0.85)
	require.NoError(t, err)
	assert.Equal(t, 0.85, point.Threshold)
	assert.InDelta(t, 1.0, point.Precision, 1e-9)
	assert.InDelta(t, 0.5, point.Recall, 1e-9)
	assert.InDelta(t, 2.0/3.0, point.F1, 1e-9)
}

func TestEvaluate_InvalidInput(t *testing.T) {
	t.Parallel()

	badConfidence := scenarioPredictions()
	badConfidence[0].Confidence = 1.2
	nanConfidence := scenarioPredictions()
	nanConfidence[0].Confidence = math.NaN()

	tests := []struct {
		name        string
		predictions []models.Prediction
		groundTruth []models.GroundTruthLabel
		thresholds  []float64
	}{
		{"no predictions", nil, scenarioTruth(), []float64{0.5}},
		{"no ground truth", scenarioPredictions(), nil, []float64{0.5}},
		{"negative threshold", scenarioPredictions(), scenarioTruth(), []float64{-0.1}},
		{"threshold above one", scenarioPredictions(), scenarioTruth(), []float64{1.5}},
		{"nan threshold", scenarioPredictions(), scenarioTruth(), []float64{math.NaN()}},
		{"confidence above one", badConfidence, scenarioTruth(), []float64{0.5}},
		{"nan confidence", nanConfidence, scenarioTruth(), []float64{0.5}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			curve, err := Evaluate(tt.predictions, tt.groundTruth, tt.thresholds)
			require.Error(t, err)
			assert.True(t, internalerrors.IsInvalidInput(err))
			assert.Nil(t, curve)
		})
	}
}

func TestConfusionAt_InvalidThreshold(t *testing.T) {
	t.Parallel()

	_, err := ConfusionAt(scenarioPredictions(), scenarioTruth(), 2)
	require.Error(t, err)
	assert.True(t, internalerrors.IsInvalidInput(err))
}

func TestEvaluate_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	curve, err := Evaluate(scenarioPredictions(), scenarioTruth(), []float64{0.5, 0.7, 0.85})
	require.NoError(t, err)

	encoded, err := json.Marshal(curve)
	require.NoError(t, err)

	var decoded PRCurveData
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, *curve, decoded)
}

func TestOptimalPoint_TieBreaks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		points []PRPoint
		want   float64
	}{
		{
			"higher f1 wins",
			[]PRPoint{{Threshold: 0.2, F1: 0.5}, {Threshold: 0.4, F1: 0.9}},
			0.4,
		},
		{
			"precision breaks f1 tie",
			[]PRPoint{
				{Threshold: 0.2, Precision: 0.6, Recall: 1.0, F1: 0.75},
				{Threshold: 0.4, Precision: 1.0, Recall: 0.6, F1: 0.75},
			},
			0.4,
		},
		{
			"recall breaks precision tie",
			[]PRPoint{
				{Threshold: 0.2, Precision: 0.8, Recall: 0.5, F1: 0.8},
				{Threshold: 0.4, Precision: 0.8, Recall: 0.7, F1: 0.8},
			},
			0.4,
		},
		{
			"full tie keeps lowest threshold",
			[]PRPoint{
				{Threshold: 0.2, Precision: 1, Recall: 1, F1: 1},
				{Threshold: 0.4, Precision: 1, Recall: 1, F1: 1},
			},
			0.2,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, optimalPoint(tt.points).Threshold)
		})
	}
}

func TestConfusionMatrix_Conventions(t *testing.T) {
	t.Parallel()

	empty := ConfusionMatrix{TrueNegatives: 3}
	assert.Equal(t, 1.0, empty.Precision())
	assert.Equal(t, 0.0, empty.Recall())
	assert.Equal(t, 0.0, empty.F1())

	perfect := ConfusionMatrix{TruePositives: 4, TrueNegatives: 2}
	assert.Equal(t, 1.0, perfect.Precision())
	assert.Equal(t, 1.0, perfect.Recall())
	assert.Equal(t, 1.0, perfect.F1())
}
