package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/singura/singura-go/internal/config"
	"github.com/singura/singura-go/internal/detection"
	"github.com/singura/singura-go/internal/logging"
	"github.com/singura/singura-go/internal/models"
	"github.com/singura/singura-go/internal/normalize"
	"github.com/singura/singura-go/internal/thresholds"
	"github.com/singura/singura-go/pkg/export"
)

var (
	detectInput    string
	detectOutput   string
	detectOrg      string
	detectPlatform string
	detectTimezone string
	detectStart    int
	detectEnd      int
)

// maxEventLineBytes bounds a single NDJSON line; audit records with large
// embedded payloads stay well under this.
const maxEventLineBytes = 4 << 20 // 4 MiB

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run one detection pass over an audit event export",
	Long:  `Read audit events from an NDJSON export, run the full detector roster over them, and write the detection result as JSON`,
	Example: `  # Detect over normalized events, result to stdout
  singura detect --input events.ndjson --org org-1

  # Normalize raw Google Workspace records first, write the result to a file
  singura detect --input drive-audit.ndjson --platform google_workspace --output result.json

  # Score against a 08:00-18:00 Berlin working week
  singura detect --input events.ndjson --tz Europe/Berlin --start 8 --end 18`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDetect(cmd.Context())
	},
}

func init() {
	detectCmd.Flags().StringVarP(&detectInput, "input", "i", "-", "Events file (NDJSON), - for stdin")
	detectCmd.Flags().StringVarP(&detectOutput, "output", "o", "", "Write the detection result here instead of stdout")
	detectCmd.Flags().StringVar(&detectOrg, "org", "", "Organization the event batch belongs to")
	detectCmd.Flags().StringVar(&detectPlatform, "platform", "", "Normalize input lines as raw records from this platform (google_workspace, slack, microsoft_365, chatgpt_enterprise, claude_enterprise, gemini_enterprise)")
	detectCmd.Flags().StringVar(&detectTimezone, "tz", "", "IANA timezone for business hours (defaults to the configured timezone)")
	detectCmd.Flags().IntVar(&detectStart, "start", 9, "Business hours start (0-23)")
	detectCmd.Flags().IntVar(&detectEnd, "end", 17, "Business hours end (0-23)")
}

func runDetect(ctx context.Context) error {
	// Initialize logger with baseline defaults for early startup logs
	logging.Init(logging.Config{
		Format:    "auto",
		Level:     "info",
		Component: "singura",
	})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Re-initialize logging with configuration-driven settings
	logging.Init(logging.Config{
		Format:     "auto",
		Level:      cfg.LogLevel,
		Component:  "singura",
		FilePath:   cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSize,
		MaxAgeDays: cfg.LogMaxAge,
		Compress:   cfg.LogCompress,
	})
	defer logging.Shutdown()

	hours, err := businessHours(cfg)
	if err != nil {
		return err
	}

	store := thresholds.NewStore(nil)
	if err := store.SetDefaults(thresholds.CalibratedDefaults(cfg.CalibrationPath)); err != nil {
		return fmt.Errorf("failed to apply threshold calibration: %w", err)
	}

	// Start config watcher so calibration edits land without a restart
	watcher, err := config.NewWatcher(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create config watcher, calibration changes will require restart")
	} else {
		watcher.SetCalibrationReloadCallback(func() {
			if err := store.SetDefaults(thresholds.CalibratedDefaults(cfg.CalibrationPath)); err != nil {
				log.Error().Err(err).Msg("Failed to reload calibrated thresholds")
			}
		})
		if err := watcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start config watcher")
		}
		defer watcher.Stop()
	}

	events, err := readDetectInput()
	if err != nil {
		return err
	}

	engine := detection.NewEngine(detection.Options{
		Store:                store,
		MaxParallelDetectors: cfg.MaxParallelDetectors,
	})

	runCtx, cancel := context.WithTimeout(ctx, cfg.DetectionTimeout)
	defer cancel()

	result, stats, err := engine.DetectShadowAI(runCtx, events, hours, detectOrg)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	log.Info().
		Str("runId", stats.RunID).
		Int("eventsProcessed", stats.EventsProcessed).
		Int("droppedInvalid", stats.DroppedInvalid).
		Interface("detectorHits", stats.DetectorHits).
		Dur("duration", stats.Duration).
		Float64("overallRisk", result.OverallRisk).
		Msg("Detection pass complete")

	data, err := export.ResultJSON(result)
	if err != nil {
		return fmt.Errorf("failed to encode detection result: %w", err)
	}

	if detectOutput != "" {
		if err := os.WriteFile(detectOutput, data, 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Printf("Detection result written to %s\n", detectOutput)
	} else {
		os.Stdout.Write(data)
	}

	return nil
}

// businessHours builds the working-hours frame from the flags, falling back
// to the configured default timezone.
func businessHours(cfg *config.Config) (models.ActivityTimeframe, error) {
	hours := models.DefaultBusinessHours()

	if detectStart < 0 || detectStart > 23 || detectEnd < 0 || detectEnd > 23 {
		return hours, fmt.Errorf("business hours must be within 0-23, got start=%d end=%d", detectStart, detectEnd)
	}
	hours.StartHour = detectStart
	hours.EndHour = detectEnd

	tz := detectTimezone
	if tz == "" {
		tz = cfg.DefaultTimezone
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return hours, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	hours.Timezone = tz

	return hours, nil
}

// readDetectInput reads the NDJSON input as normalized events, or as raw
// platform records when --platform is set.
func readDetectInput() ([]models.Event, error) {
	in, err := openInput(detectInput)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	if detectPlatform == "" {
		return readEvents(in)
	}

	records, err := readRecords(in)
	if err != nil {
		return nil, err
	}

	events, stats := normalize.NormalizeBatch(models.Platform(detectPlatform), records)
	if stats.Dropped > 0 {
		log.Warn().
			Str("platform", detectPlatform).
			Int("dropped", stats.Dropped).
			Interface("reasons", stats.DroppedByReason).
			Msg("Some records failed normalization")
	}
	return events, nil
}

// openInput opens the events file, treating "-" (and empty) as stdin.
func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// readEvents decodes one normalized event per NDJSON line. Blank lines are
// skipped; a malformed line aborts the read with its line number.
func readEvents(r io.Reader) ([]models.Event, error) {
	var events []models.Event

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var event models.Event
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("failed to parse event on line %d: %w", lineNo, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	return events, nil
}

// readRecords decodes one raw platform record per NDJSON line.
func readRecords(r io.Reader) ([]map[string]interface{}, error) {
	var records []map[string]interface{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record map[string]interface{}
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("failed to parse record on line %d: %w", lineNo, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	return records, nil
}
