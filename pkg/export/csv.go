package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	internalerrors "github.com/singura/singura-go/internal/errors"
	"github.com/singura/singura-go/internal/evaluation"
)

// EvaluationCSV renders the evaluator report as CSV: one row per curve
// point, then the summary figures as trailing comment lines.
func EvaluationCSV(curve *evaluation.PRCurveData) ([]byte, error) {
	if curve == nil {
		return nil, internalerrors.WrapInvalidInput("export.EvaluationCSV", errNilCurve)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"threshold", "precision", "recall", "f1"}); err != nil {
		return nil, fmt.Errorf("write CSV header: %w", err)
	}
	for _, point := range curve.Points {
		row := []string{
			formatMetric(point.Threshold),
			formatMetric(point.Precision),
			formatMetric(point.Recall),
			formatMetric(point.F1),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write CSV row for threshold %v: %w", point.Threshold, err)
		}
	}

	trailers := []string{
		fmt.Sprintf("# AUC: %s", formatMetric(curve.AUC)),
		fmt.Sprintf("# Optimal Threshold: %s", formatMetric(curve.OptimalThreshold)),
		fmt.Sprintf("# Optimal F1: %s", formatMetric(curve.OptimalF1)),
	}
	for _, trailer := range trailers {
		if err := w.Write([]string{trailer}); err != nil {
			return nil, fmt.Errorf("write CSV trailer %q: %w", trailer, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("CSV write error: %w", err)
	}
	return buf.Bytes(), nil
}

// formatMetric renders a metric with four decimals, enough to tell curve
// points apart without leaking float noise into diffs.
func formatMetric(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
