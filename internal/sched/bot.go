// Package sched runs the aggregation on a schedule and keeps a small
// status file and log that the web API can surface.
package sched

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/gridscope/besstrack/internal/pipeline"
)

const (
	statusFile = "bot_status.json"
	logFile    = "bot_log.txt"
)

// Runner executes aggregation runs. Satisfied by pipeline.Runner.
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.Report, error)
}

// Schedule selects when the bot fires. Interval wins over Daily when both
// are set.
type Schedule struct {
	// Daily is a UTC wall time, "06:00".
	Daily string
	// Interval runs at a fixed period instead of a daily time.
	Interval time.Duration
}

// Status is the persisted bot state.
type Status struct {
	State     string           `json:"state"`
	Runs      int              `json:"runs"`
	LastRunAt *time.Time       `json:"last_run_at,omitempty"`
	NextRunAt *time.Time       `json:"next_run_at,omitempty"`
	LastError string           `json:"last_error,omitempty"`
	Report    *pipeline.Report `json:"last_report,omitempty"`
}

// Bot drives scheduled aggregation runs.
type Bot struct {
	runner Runner
	opts   pipeline.Options
	dir    string
	logger *zap.Logger
	status Status
}

// New wires a bot. Status and log files live in dir.
func New(runner Runner, opts pipeline.Options, dir string, logger *zap.Logger) (*Bot, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sched: create %s: %w", dir, err)
	}
	b := &Bot{runner: runner, opts: opts, dir: dir, logger: logger}
	b.loadStatus()
	return b, nil
}

// RunOnce executes a single run and records the outcome.
func (b *Bot) RunOnce(ctx context.Context) error {
	started := time.Now().UTC()
	report, err := b.runner.Run(ctx, b.opts)

	b.status.Runs++
	b.status.LastRunAt = &started
	if err != nil {
		b.status.State = "error"
		b.status.LastError = err.Error()
		b.appendLog(fmt.Sprintf("%s run failed: %v", started.Format(time.RFC3339), err))
	} else {
		b.status.State = "ok"
		b.status.LastError = ""
		b.status.Report = report
		b.appendLog(fmt.Sprintf("%s run %s finished: %d projects, %d source failures",
			started.Format(time.RFC3339), report.RunID, report.TotalMerged, report.FailedSources))
	}
	if werr := b.writeStatus(); werr != nil {
		b.logger.Warn("Bot status write failed", zap.Error(werr))
	}
	return err
}

// Start loops until the context is canceled, firing per the schedule. A
// failed run is logged and the loop keeps going.
func (b *Bot) Start(ctx context.Context, sched Schedule) error {
	for {
		next, err := nextFire(time.Now().UTC(), sched)
		if err != nil {
			return err
		}
		b.status.NextRunAt = &next
		if werr := b.writeStatus(); werr != nil {
			b.logger.Warn("Bot status write failed", zap.Error(werr))
		}
		b.logger.Info("Bot sleeping until next run", zap.Time("next_run_at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			b.logger.Info("Bot stopping")
			return ctx.Err()
		case <-timer.C:
		}

		if err := b.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Error("Scheduled run failed", zap.Error(err))
		}
	}
}

// Status returns the current persisted bot state. Call it from the
// goroutine that owns the bot; Start mutates the same struct.
func (b *Bot) Status() Status {
	return b.status
}

// nextFire computes when the bot should run next.
func nextFire(now time.Time, sched Schedule) (time.Time, error) {
	if sched.Interval > 0 {
		return now.Add(sched.Interval), nil
	}
	var hh, mm int
	if _, err := fmt.Sscanf(sched.Daily, "%d:%d", &hh, &mm); err != nil {
		return time.Time{}, fmt.Errorf("sched: bad daily time %q: %w", sched.Daily, err)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return time.Time{}, fmt.Errorf("sched: bad daily time %q", sched.Daily)
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), hh, mm, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

func (b *Bot) loadStatus() {
	data, err := os.ReadFile(filepath.Join(b.dir, statusFile))
	if err != nil {
		b.status = Status{State: "never_run"}
		return
	}
	if err := json.Unmarshal(data, &b.status); err != nil {
		b.status = Status{State: "never_run"}
	}
}

func (b *Bot) writeStatus() error {
	data, err := json.MarshalIndent(b.status, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(b.dir, statusFile), append(data, '\n'), 0o644)
}

func (b *Bot) appendLog(line string) {
	f, err := os.OpenFile(filepath.Join(b.dir, logFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		b.logger.Warn("Bot log open failed", zap.Error(err))
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		b.logger.Warn("Bot log write failed", zap.Error(err))
	}
}
