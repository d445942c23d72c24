// Package pipeline orchestrates a full aggregation run: scrape every
// source, merge, and write the exports.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gridscope/besstrack/internal/metrics"
	"github.com/gridscope/besstrack/internal/output"
	"github.com/gridscope/besstrack/internal/record"
	"github.com/gridscope/besstrack/internal/source"
	"github.com/gridscope/besstrack/internal/storage"
)

// Options selects run behavior.
type Options struct {
	// Weekly appends the run date to export filenames.
	Weekly bool
	// LatestOnly drops Operational rows from the exports so only the
	// investable pipeline remains.
	LatestOnly bool

	SkipCSV     bool
	SkipJSON    bool
	SkipSummary bool

	// MinProjects guards the summary append. Zero disables the guard.
	MinProjects int
}

// SourceResult records how one source fared.
type SourceResult struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Rows  int    `json:"rows"`
	Error string `json:"error,omitempty"`
}

// Report describes one completed run.
type Report struct {
	RunID          string         `json:"run_id"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	Sources        []SourceResult `json:"sources"`
	FailedSources  int            `json:"failed_sources"`
	TotalScraped   int            `json:"total_scraped"`
	TotalMerged    int            `json:"total_merged"`
	Files          []string       `json:"files"`
	SummarySkipped string         `json:"summary_skipped,omitempty"`
}

// Runner executes aggregation runs.
type Runner struct {
	sources []source.Source
	writer  *output.Writer
	store   storage.Provider
	logger  *zap.Logger
}

// New wires a runner.
func New(sources []source.Source, writer *output.Writer, store storage.Provider, logger *zap.Logger) *Runner {
	if store == nil {
		store = storage.NoOp{}
	}
	metrics.Init()
	return &Runner{sources: sources, writer: writer, store: store, logger: logger}
}

// Run scrapes all sources, merges, and writes the selected exports. A
// failing source is logged and skipped; the run aborts only when every
// source fails, a writer fails, or the context is cancelled.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	r.logger.Info("Starting aggregation run",
		zap.String("run_id", report.RunID),
		zap.Int("sources", len(r.sources)),
	)

	var scraped []record.Project
	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := src.Scrape(ctx)
		metrics.ObserveSource(src.Name(), len(rows), err)
		result := SourceResult{Name: src.Name(), Label: src.Label(), Rows: len(rows)}
		if err != nil {
			result.Error = err.Error()
			report.FailedSources++
			r.logger.Warn("Source failed; continuing",
				zap.String("source", src.Name()),
				zap.Error(err),
			)
		} else {
			scraped = append(scraped, rows...)
			r.logger.Info("Source finished",
				zap.String("source", src.Name()),
				zap.Int("rows", len(rows)),
			)
		}
		report.Sources = append(report.Sources, result)
	}
	report.TotalScraped = len(scraped)
	if len(r.sources) > 0 && report.FailedSources == len(r.sources) {
		return nil, fmt.Errorf("all %d sources failed", len(r.sources))
	}

	merged := record.Deduplicate(scraped)
	if opts.LatestOnly {
		merged = filterPipeline(merged)
	}
	report.TotalMerged = len(merged)

	now := time.Now().UTC()
	if !opts.SkipCSV {
		path, err := r.writer.WriteCSV(merged, opts.Weekly, now)
		if err != nil {
			return nil, err
		}
		report.Files = append(report.Files, path)
	}
	if !opts.SkipJSON {
		path, err := r.writer.WriteJSON(merged, opts.Weekly, now)
		if err != nil {
			return nil, err
		}
		report.Files = append(report.Files, path)
	}

	summary := record.BuildSummary(merged, now)
	if !opts.SkipSummary {
		path, err := r.writer.AppendSummary(summary, opts.MinProjects)
		var guard *output.ErrBelowMinProjects
		switch {
		case errors.As(err, &guard):
			report.SummarySkipped = guard.Error()
			r.logger.Warn("Summary reading skipped",
				zap.Int("total_projects", guard.Got),
				zap.Int("min_projects", guard.Min),
			)
		case err != nil:
			return nil, err
		default:
			report.Files = append(report.Files, path)
		}
	}

	report.FinishedAt = time.Now().UTC()
	metrics.ObserveRun(report.TotalMerged, report.FinishedAt.Sub(report.StartedAt))

	if err := r.store.ArchiveRun(ctx, storage.Run{
		ID:            report.RunID,
		StartedAt:     report.StartedAt,
		FinishedAt:    report.FinishedAt,
		TotalProjects: summary.TotalProjects,
		TotalMW:       summary.TotalMW,
		Dataset:       merged,
	}); err != nil {
		r.logger.Warn("Run archive failed", zap.Error(err))
	}

	r.logger.Info("Aggregation run finished",
		zap.String("run_id", report.RunID),
		zap.Int("total_scraped", report.TotalScraped),
		zap.Int("total_merged", report.TotalMerged),
		zap.Int("failed_sources", report.FailedSources),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

// filterPipeline drops Operational rows and keeps everything else,
// including News and Reference rows.
func filterPipeline(rows []record.Project) []record.Project {
	out := rows[:0:0]
	for _, p := range rows {
		if p.Status == record.StatusOperational {
			continue
		}
		out = append(out, p)
	}
	return out
}
