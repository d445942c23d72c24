// Package storage archives aggregation runs. The default provider is a
// no-op; Postgres is opt-in for deployments that want run history beyond
// the CSV trail.
package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gridscope/besstrack/internal/config"
	"github.com/gridscope/besstrack/internal/record"
)

// Run is one archived aggregation run.
type Run struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	TotalProjects int
	TotalMW       float64
	Dataset       []record.Project
}

// Provider archives completed runs.
type Provider interface {
	ArchiveRun(ctx context.Context, run Run) error
	Close()
}

// NoOp discards runs. Used when no storage backend is configured.
type NoOp struct{}

func (NoOp) ArchiveRun(context.Context, Run) error { return nil }
func (NoOp) Close()                                {}

// NewProvider builds the configured provider.
func NewProvider(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Provider {
	case "", "noop":
		return NoOp{}, nil
	case "postgres":
		return NewRunStore(ctx, RunStoreConfig{
			DSN:      cfg.DSN,
			Table:    cfg.Table,
			MaxConns: cfg.MaxConns,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
