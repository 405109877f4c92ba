package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"RiskPulse/internal/di"
	"RiskPulse/internal/domain/models"
	"RiskPulse/pkg/config"
)

var assessTimeout time.Duration

var assessCmd = &cobra.Command{
	Use:   "assess SYMBOL [PRICE]",
	Short: "Print one assessment as JSON",
	Long: `Assess a symbol at the given price. Without a price the live price is used,
or the geometric mean of the symbol's bounds when no live price is available.`,
	Example: `  riskpulse assess BTC 94000
  riskpulse assess eth --config ""`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAssess,
}

func init() {
	assessCmd.Flags().DurationVar(&assessTimeout, "timeout", 15*time.Second, "overall timeout")
	rootCmd.AddCommand(assessCmd)
}

func runAssess(cmd *cobra.Command, args []string) error {
	var price float64
	if len(args) == 2 {
		p, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("price %q: %w", args[1], err)
		}
		price = p
	}

	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	cfg.Log.Level = "warn"
	cfg.Log.Collect = false

	cli, cleanup, err := di.InitializeCLI(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(cmd.Context(), assessTimeout)
	defer cancel()
	if err := cli.Engine.Bootstrap(ctx); err != nil {
		cli.Logger.Warn("store unavailable, using built-in catalog")
	}

	var a models.Assessment
	if len(args) == 2 {
		a, err = cli.Engine.Assess(ctx, args[0], price)
	} else {
		a, err = cli.Engine.AssessLive(ctx, args[0])
	}
	if err != nil {
		return err
	}
	if err := cli.Writer.Close(ctx); err != nil {
		cli.Logger.Warn("pending writes not flushed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}
