package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var osExit = os.Exit

var rootCmd = &cobra.Command{
	Use:     "singura",
	Short:   "Singura - shadow AI detection engine",
	Long:    `Singura detects unsanctioned automation and AI integrations in SaaS audit logs by combining behavioral pattern analysis with AI provider signature matching`,
	Version: Version,
}

func init() {
	// Add detect command
	rootCmd.AddCommand(detectCmd)
	// Add thresholds command
	rootCmd.AddCommand(thresholdsCmd)
	// Add version command
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Singura %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}
}
