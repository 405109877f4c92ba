package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"RiskPulse/internal/di"
	"RiskPulse/pkg/config"
	applogger "RiskPulse/pkg/logger"
)

var (
	migrateReseed  bool
	migrateTimeout time.Duration
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the store schema and seed the symbol catalog",
	Long: `Create tables (or buckets) in the configured store and the ClickHouse archive
when enabled, then seed the catalog into an empty store. --reseed overwrites
bounds and bands already in the store with the catalog file.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateReseed, "reseed", false, "overwrite stored calibration with the catalog file")
	migrateCmd.Flags().DurationVar(&migrateTimeout, "timeout", time.Minute, "overall timeout")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	cfg.Log.Collect = false

	// schema is created while the store is provided
	cli, cleanup, err := di.InitializeCLI(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(cmd.Context(), migrateTimeout)
	defer cancel()

	if migrateReseed {
		err = cli.Engine.Seed(ctx)
	} else {
		err = cli.Engine.Bootstrap(ctx)
	}
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	cli.Logger.Info("migration complete",
		applogger.String("backend", cfg.Storage.Backend),
		applogger.Int("symbols", len(cli.Engine.Catalog().Symbols())),
	)
	return nil
}
