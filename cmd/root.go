// Package cmd defines the CLI commands for the besstrack executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gridscope/besstrack/internal/config"
	"github.com/gridscope/besstrack/internal/fetch"
	"github.com/gridscope/besstrack/internal/logging"
	"github.com/gridscope/besstrack/internal/output"
	"github.com/gridscope/besstrack/internal/pipeline"
	"github.com/gridscope/besstrack/internal/source"
	"github.com/gridscope/besstrack/internal/storage"
)

var (
	cfgFile   string
	outputDir string
)

// app bundles the services the subcommands share.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	writer *output.Writer
	store  storage.Provider
	runner *pipeline.Runner
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// buildApp loads configuration and wires the full pipeline.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	dir := filepath.Join(cfg.Output.Dir, cfg.Output.Subdir)
	if outputDir != "" {
		dir = outputDir
	}

	client, err := fetch.NewClient(fetch.Config{
		UserAgent:      cfg.HTTP.UserAgent,
		Timeout:        cfg.RequestTimeout(),
		Delay:          time.Duration(cfg.HTTP.DelayMs) * time.Millisecond,
		MaxRetries:     cfg.HTTP.MaxRetries,
		BackoffInitial: time.Duration(cfg.HTTP.BackoffInitialMs) * time.Millisecond,
		BackoffMax:     time.Duration(cfg.HTTP.BackoffMaxMs) * time.Millisecond,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init fetch client: %w", err)
	}

	writer, err := output.NewWriter(dir, logger)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewProvider(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	sources := source.Build(client, cfg.Sources, logger)
	runner := pipeline.New(sources, writer, store, logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		writer: writer,
		store:  store,
		runner: runner,
	}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "besstrack",
		Short: "Aggregates UK battery storage projects from public sources",
		Long: `besstrack scrapes the public UK and Ireland battery storage project
landscape: government registries (REPD, TEC, ECR, NSIP), developer
portfolio pages, and industry news. Rows are merged across sources and
written as CSV and JSON, with a weekly investment scope summary.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; env vars with BESS_ prefix also apply)")
	cmd.PersistentFlags().StringVar(&outputDir, "output-dir", "", "override the output directory")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newBotCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
