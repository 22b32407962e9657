// Package evaluation scores engine predictions against analyst ground truth.
// It produces confusion matrices, precision/recall curves, and the
// classification threshold a deployment should run at.
package evaluation

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	internalerrors "github.com/singura/singura-go/internal/errors"
	"github.com/singura/singura-go/internal/models"
	"github.com/singura/singura-go/internal/stats"
)

var (
	errNoPredictions = errors.New("predictions are required")
	errNoGroundTruth = errors.New("ground truth is required")
)

// ConfusionMatrix counts prediction outcomes against ground truth at one
// classification threshold.
type ConfusionMatrix struct {
	TruePositives  int `json:"truePositives"`
	FalsePositives int `json:"falsePositives"`
	TrueNegatives  int `json:"trueNegatives"`
	FalseNegatives int `json:"falseNegatives"`
}

// Precision is TP/(TP+FP). An empty positive set flags nothing wrongly and
// scores 1.
func (m ConfusionMatrix) Precision() float64 {
	flagged := m.TruePositives + m.FalsePositives
	if flagged == 0 {
		return 1
	}
	return float64(m.TruePositives) / float64(flagged)
}

// Recall is TP/(TP+FN), 0 when the ground truth holds nothing malicious.
func (m ConfusionMatrix) Recall() float64 {
	malicious := m.TruePositives + m.FalseNegatives
	if malicious == 0 {
		return 0
	}
	return float64(m.TruePositives) / float64(malicious)
}

// F1 is the harmonic mean of precision and recall.
func (m ConfusionMatrix) F1() float64 {
	p, r := m.Precision(), m.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// PRPoint is one measurement of the precision/recall curve.
type PRPoint struct {
	Threshold float64 `json:"threshold"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// PRCurveData is the evaluator's full report for one prediction set.
type PRCurveData struct {
	Points           []PRPoint `json:"points"`
	AUC              float64   `json:"auc"`
	OptimalThreshold float64   `json:"optimalThreshold"`
	OptimalF1        float64   `json:"optimalF1"`
}

// Evaluate sweeps the thresholds and assembles the report. A nil or empty
// threshold list samples every distinct matched confidence plus the {0,1}
// endpoints. Points come back in ascending threshold order.
func Evaluate(predictions []models.Prediction, groundTruth []models.GroundTruthLabel, thresholds []float64) (*PRCurveData, error) {
	const op = "evaluation.Evaluate"
	if err := validate(op, predictions, groundTruth, thresholds); err != nil {
		return nil, err
	}

	truth := truthByAutomation(groundTruth)
	sweep := sweepThresholds(predictions, truth, thresholds)

	points := make([]PRPoint, 0, len(sweep))
	curve := make([]stats.Point, 0, len(sweep))
	for _, threshold := range sweep {
		point := pointFrom(confusionAt(predictions, truth, threshold), threshold)
		points = append(points, point)
		curve = append(curve, stats.Point{X: point.Recall, Y: point.Precision})
	}

	optimal := optimalPoint(points)
	data := &PRCurveData{
		Points:           points,
		AUC:              stats.TrapezoidAUC(curve),
		OptimalThreshold: optimal.Threshold,
		OptimalF1:        optimal.F1,
	}
	log.Debug().
		Int("predictions", len(predictions)).
		Int("labels", len(groundTruth)).
		Int("points", len(points)).
		Float64("auc", data.AUC).
		Float64("optimalThreshold", data.OptimalThreshold).
		Msg("Evaluation completed")
	return data, nil
}

// ConfusionAt counts outcomes at one threshold. A prediction is positive
// when its verdict is malicious and its confidence reaches the threshold.
// Predictions without a ground-truth entry never contribute.
func ConfusionAt(predictions []models.Prediction, groundTruth []models.GroundTruthLabel, threshold float64) (ConfusionMatrix, error) {
	const op = "evaluation.ConfusionAt"
	if err := validate(op, predictions, groundTruth, []float64{threshold}); err != nil {
		return ConfusionMatrix{}, err
	}
	return confusionAt(predictions, truthByAutomation(groundTruth), threshold), nil
}

// PointAt measures precision, recall, and F1 at one threshold.
func PointAt(predictions []models.Prediction, groundTruth []models.GroundTruthLabel, threshold float64) (PRPoint, error) {
	m, err := ConfusionAt(predictions, groundTruth, threshold)
	if err != nil {
		return PRPoint{}, err
	}
	return pointFrom(m, threshold), nil
}

func validate(op string, predictions []models.Prediction, groundTruth []models.GroundTruthLabel, thresholds []float64) error {
	if len(predictions) == 0 {
		return internalerrors.WrapInvalidInput(op, errNoPredictions)
	}
	if len(groundTruth) == 0 {
		return internalerrors.WrapInvalidInput(op, errNoGroundTruth)
	}
	for i := range predictions {
		if c := predictions[i].Confidence; math.IsNaN(c) || c < 0 || c > 1 {
			return internalerrors.WrapInvalidInput(op,
				fmt.Errorf("prediction %q confidence %v outside [0,1]", predictions[i].AutomationID, c))
		}
	}
	for _, threshold := range thresholds {
		if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
			return internalerrors.WrapInvalidInput(op, fmt.Errorf("threshold %v outside [0,1]", threshold))
		}
	}
	return nil
}

// truthByAutomation indexes labels by automation ID. The last label for an
// automation wins, mirroring the feedback store's re-review behavior.
func truthByAutomation(groundTruth []models.GroundTruthLabel) map[string]models.Classification {
	truth := make(map[string]models.Classification, len(groundTruth))
	for i := range groundTruth {
		truth[groundTruth[i].AutomationID] = groundTruth[i].Actual
	}
	return truth
}

func confusionAt(predictions []models.Prediction, truth map[string]models.Classification, threshold float64) ConfusionMatrix {
	var m ConfusionMatrix
	for i := range predictions {
		actual, ok := truth[predictions[i].AutomationID]
		if !ok {
			continue
		}
		positive := predictions[i].Predicted == models.ClassMalicious && predictions[i].Confidence >= threshold
		malicious := actual == models.ClassMalicious
		switch {
		case positive && malicious:
			m.TruePositives++
		case positive:
			m.FalsePositives++
		case malicious:
			m.FalseNegatives++
		default:
			m.TrueNegatives++
		}
	}
	return m
}

func pointFrom(m ConfusionMatrix, threshold float64) PRPoint {
	return PRPoint{Threshold: threshold, Precision: m.Precision(), Recall: m.Recall(), F1: m.F1()}
}

// sweepThresholds returns the supplied list sorted and deduplicated, or the
// adaptive sweep over the matched confidence distribution.
func sweepThresholds(predictions []models.Prediction, truth map[string]models.Classification, supplied []float64) []float64 {
	seen := make(map[float64]struct{})
	var sweep []float64
	add := func(t float64) {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			sweep = append(sweep, t)
		}
	}

	if len(supplied) > 0 {
		for _, t := range supplied {
			add(t)
		}
	} else {
		add(0)
		add(1)
		for i := range predictions {
			if _, ok := truth[predictions[i].AutomationID]; ok {
				add(predictions[i].Confidence)
			}
		}
	}

	sort.Float64s(sweep)
	return sweep
}

// optimalPoint picks the maximum-F1 point. Ties go to higher precision, then
// higher recall; a full tie keeps the lowest threshold.
func optimalPoint(points []PRPoint) PRPoint {
	best := points[0]
	for _, p := range points[1:] {
		switch {
		case p.F1 > best.F1:
			best = p
		case p.F1 == best.F1 && p.Precision > best.Precision:
			best = p
		case p.F1 == best.F1 && p.Precision == best.Precision && p.Recall > best.Recall:
			best = p
		}
	}
	return best
}
