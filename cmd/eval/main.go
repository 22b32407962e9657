// Command eval scores engine predictions against analyst ground-truth labels
// and reports the precision/recall tradeoff across confidence thresholds.
//
// Usage:
//
//	go run ./cmd/eval -predictions predictions.ndjson -labels labels.ndjson
//	go run ./cmd/eval -predictions predictions.ndjson -labels labels.ndjson -thresholds 0.5,0.7,0.85 -csv report.csv -json report.json
//
// Options:
//
//	-predictions string  Predictions file (NDJSON, one {automationId, predicted, confidence} object per line)
//	-labels string       Ground-truth labels file (NDJSON, one label object per line)
//	-thresholds string   Comma-separated thresholds in [0,1]; empty sweeps the observed confidences
//	-csv string          Write the CSV report to this file (default stdout)
//	-json string         Write the JSON report to this file
//	-quiet               Suppress the summary lines
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/singura/singura-go/internal/evaluation"
	"github.com/singura/singura-go/internal/models"
	"github.com/singura/singura-go/pkg/export"
)

// maxLineBytes bounds a single NDJSON line.
const maxLineBytes = 1 << 20 // 1 MiB

func main() {
	predictionsPath := flag.String("predictions", "", "Predictions file (NDJSON)")
	labelsPath := flag.String("labels", "", "Ground-truth labels file (NDJSON)")
	thresholdsRaw := flag.String("thresholds", "", "Comma-separated thresholds in [0,1]; empty sweeps the observed confidences")
	csvPath := flag.String("csv", "", "Write the CSV report to this file (default stdout)")
	jsonPath := flag.String("json", "", "Write the JSON report to this file")
	quiet := flag.Bool("quiet", false, "Suppress the summary lines")

	flag.Parse()

	if *predictionsPath == "" || *labelsPath == "" {
		fmt.Fprintf(os.Stderr, "Both -predictions and -labels are required\n")
		flag.Usage()
		os.Exit(1)
	}

	predictions, err := readPredictions(*predictionsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read predictions: %v\n", err)
		os.Exit(1)
	}

	labels, err := readLabels(*labelsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read labels: %v\n", err)
		os.Exit(1)
	}

	thresholds, err := parseThresholds(*thresholdsRaw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse thresholds: %v\n", err)
		os.Exit(1)
	}

	curve, err := evaluation.Evaluate(predictions, labels, thresholds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Evaluation failed: %v\n", err)
		os.Exit(1)
	}

	csvData, err := export.EvaluationCSV(curve)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render CSV report: %v\n", err)
		os.Exit(1)
	}
	if *csvPath != "" {
		if err := os.WriteFile(*csvPath, csvData, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write CSV report: %v\n", err)
			os.Exit(1)
		}
	} else {
		os.Stdout.Write(csvData)
	}

	if *jsonPath != "" {
		jsonData, err := export.EvaluationJSON(curve)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON report: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*jsonPath, jsonData, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write JSON report: %v\n", err)
			os.Exit(1)
		}
	}

	if !*quiet {
		fmt.Fprintf(os.Stderr, ">>> Evaluated %d predictions against %d labels at %d thresholds\n",
			len(predictions), len(labels), len(curve.Points))
		fmt.Fprintf(os.Stderr, ">>> AUC %.4f, optimal threshold %.4f (F1 %.4f)\n",
			curve.AUC, curve.OptimalThreshold, curve.OptimalF1)
	}
}

// readPredictions decodes one prediction per NDJSON line.
func readPredictions(path string) ([]models.Prediction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var predictions []models.Prediction

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var p models.Prediction
		if err := json.Unmarshal(line, &p); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		predictions = append(predictions, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return predictions, nil
}

// readLabels decodes one ground-truth label per NDJSON line.
func readLabels(path string) ([]models.GroundTruthLabel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var labels []models.GroundTruthLabel

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var l models.GroundTruthLabel
		if err := json.Unmarshal(line, &l); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		labels = append(labels, l)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return labels, nil
}

// parseThresholds splits a comma-separated threshold list. Range checks are
// left to the evaluator so the CLI and library reject the same inputs.
func parseThresholds(raw string) ([]float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	thresholds := make([]float64, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		t, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid threshold %q", trimmed)
		}
		thresholds = append(thresholds, t)
	}
	return thresholds, nil
}
