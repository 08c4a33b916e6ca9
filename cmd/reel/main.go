package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trend-reel/internal/app"
	"trend-reel/internal/pipeline"
	"trend-reel/internal/platform/config"
	"trend-reel/internal/platform/logger"
	"trend-reel/internal/platform/metrics"
)

var (
	envFile    string
	reportDate string
	groupCode  string
)

// rootCmd is the reel CLI
var rootCmd = &cobra.Command{
	Use:   "reel",
	Short: "Render daily page-view race videos",
	Long: `reel tracks the most viewed articles of each configured group, reconstructs
their per-minute curves and renders a seven-day race video per group.

Available subcommands:
  run    - Update every group and render its video
  update - Record one group's ranking for a date
  render - Render one group's video from stored history`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file to load")
	rootCmd.PersistentFlags().StringVar(&reportDate, "date", "", "report date (YYYY-MM-DD), defaults to yesterday UTC")

	updateCmd.Flags().StringVarP(&groupCode, "group", "g", "", "group code (e.g. en)")
	_ = updateCmd.MarkFlagRequired("group")
	renderCmd.Flags().StringVarP(&groupCode, "group", "g", "", "group code (e.g. en)")
	_ = renderCmd.MarkFlagRequired("group")

	rootCmd.AddCommand(runCmd, updateCmd, renderCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the application.
func setup() (*app.App, *slog.Logger, error) {
	_ = config.Load(envFile)
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	a, err := app.New(cfg, log, metrics.New())
	if err != nil {
		return nil, nil, err
	}
	return a, log, nil
}

func date() string {
	if reportDate != "" {
		return reportDate
	}
	return pipeline.DefaultReportDate(time.Now())
}

func lookupGroup(a *app.App) (config.Group, error) {
	g, ok := a.Config.Group(groupCode)
	if !ok {
		return config.Group{}, fmt.Errorf("unknown group %q", groupCode)
	}
	return g, nil
}
