package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/singura/singura-go/internal/config"
	"github.com/singura/singura-go/internal/logging"
	"github.com/singura/singura-go/internal/thresholds"
)

var thresholdsOrg string

var thresholdsCmd = &cobra.Command{
	Use:   "thresholds",
	Short: "Print the effective detection thresholds",
	Long:  `Print the threshold set a detection pass would use, with the calibration file applied`,
	Example: `  # Compiled-in defaults plus calibration
  singura thresholds

  # Effective set for one organization
  singura thresholds --org org-1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runThresholds(cmd.Context())
	},
}

func init() {
	thresholdsCmd.Flags().StringVar(&thresholdsOrg, "org", "", "Organization whose effective thresholds to print")
}

func runThresholds(ctx context.Context) error {
	// Warn level keeps routine config-load logs quiet
	logging.Init(logging.Config{
		Format:    "auto",
		Level:     "warn",
		Component: "singura",
	})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store := thresholds.NewStore(nil)
	if err := store.SetDefaults(thresholds.CalibratedDefaults(cfg.CalibrationPath)); err != nil {
		return fmt.Errorf("failed to apply threshold calibration: %w", err)
	}

	set := store.GetFor(ctx, thresholdsOrg)
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode threshold set: %w", err)
	}
	fmt.Println(string(data))

	return nil
}
