package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridscope/besstrack/internal/pipeline"
	"github.com/gridscope/besstrack/internal/sched"
)

func newBotCmd() *cobra.Command {
	var (
		once         bool
		showStatus   bool
		runNow       bool
		scheduleTime string
		interval     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Run the aggregation on a schedule",
		Long: `Runs the scraper as a long-lived bot, firing daily at a fixed UTC
time (or at a fixed interval). Status and a run log are kept next to
the output files so the web UI can show them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			bot, err := sched.New(a.runner, pipeline.Options{
				MinProjects: a.cfg.Summary.MinProjects,
			}, a.writer.Dir(), a.logger)
			if err != nil {
				return err
			}

			if showStatus {
				data, err := json.MarshalIndent(bot.Status(), "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			if once {
				return bot.RunOnce(ctx)
			}

			if runNow {
				if err := bot.RunOnce(ctx); err != nil {
					return err
				}
			}

			if scheduleTime == "" {
				scheduleTime = a.cfg.Bot.ScheduleTime
			}
			err = bot.Start(ctx, sched.Schedule{Daily: scheduleTime, Interval: interval})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single pass and exit")
	cmd.Flags().BoolVar(&showStatus, "status", false, "print the bot status and exit")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "run immediately before entering the schedule")
	cmd.Flags().StringVar(&scheduleTime, "time", "", "daily run time in UTC, HH:MM (defaults to bot.schedule_time)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "run at a fixed interval instead of daily")

	return cmd
}
