package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gridscope/besstrack/internal/pipeline"
)

func newScrapeCmd() *cobra.Command {
	var (
		weekly     bool
		latestOnly bool
		noCSV      bool
		noJSON     bool
		noSummary  bool
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one aggregation pass over all sources",
		Long: `Scrapes every enabled source, merges duplicate projects across
sources, and writes the dataset exports plus one investment scope
summary reading.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.runner.Run(ctx, pipeline.Options{
				Weekly:      weekly,
				LatestOnly:  latestOnly,
				SkipCSV:     noCSV,
				SkipJSON:    noJSON,
				SkipSummary: noSummary,
				MinProjects: a.cfg.Summary.MinProjects,
			})
			if err != nil {
				return fmt.Errorf("run aggregation: %w", err)
			}

			a.logger.Info("Scrape finished",
				zap.String("run_id", report.RunID),
				zap.Int("projects", report.TotalMerged),
				zap.Strings("files", report.Files),
			)
			return nil
		},
	}

	cmd.Flags().BoolVar(&weekly, "weekly", false, "append the run date to export filenames")
	cmd.Flags().BoolVar(&latestOnly, "latest-only", false, "exclude operational projects from the exports")
	cmd.Flags().BoolVar(&noCSV, "no-csv", false, "skip the CSV export")
	cmd.Flags().BoolVar(&noJSON, "no-json", false, "skip the JSON export")
	cmd.Flags().BoolVar(&noSummary, "no-summary", false, "skip the summary reading")

	return cmd
}
