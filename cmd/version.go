package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cvforge/cvforge/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and configuration information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVersion()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion() error {
	fmt.Printf("CVForge %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	fmt.Println("Configuration:")
	fmt.Printf("  Backend: %s\n", cfg.BackendURL)
	fmt.Printf("  Stream timeout: %s\n", cfg.StreamTimeout)
	fmt.Printf("  Update interval: %s\n", cfg.UpdateInterval)
	fmt.Printf("  Log level: %s\n", cfg.LogLevel)
	fmt.Printf("  Tracing: %v\n", cfg.Tracing.Enabled)

	// API key presence only; the value itself is never printed
	if cfg.APIKey != "" {
		fmt.Println("  API key: configured")
	} else {
		fmt.Println("  API key: not set")
		fmt.Println()
		fmt.Println("Hint: export CVFORGE_API_KEY=your-api-key")
	}

	return nil
}
