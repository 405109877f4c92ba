package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"RiskPulse/internal/di"
	"RiskPulse/pkg/config"
)

var configPath string

// rootCmd is the base command for the RiskPulse service and tools.
var rootCmd = &cobra.Command{
	Use:   "riskpulse",
	Short: "RiskPulse log-scale risk assessment engine",
	Long: `RiskPulse maps asset prices onto a calibrated 0..1 risk scale, scores them
against historical time-in-band, and serves assessments, alerts and momentum
over HTTP.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, tick consumer and price stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithEnv(configPath)
		if err != nil {
			return fmt.Errorf("config load failed: %w", err)
		}

		// Wire DI: Initialize all dependencies
		app, cleanup, err := di.InitializeApp(cfg)
		if err != nil {
			return fmt.Errorf("app initialization failed: %w", err)
		}
		defer cleanup()

		// Run application (blocks until signal)
		return app.Run()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path (empty for defaults)")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
