// Package output writes the merged dataset to disk: the multi-source CSV
// and JSON exports plus the append-only investment scope summary.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	datasetBase = "bess_uk_multi_source"
	summaryName = "uk_investment_scope_summary.csv"
)

// Writer persists run results under a single output directory.
type Writer struct {
	dir    string
	logger *zap.Logger
}

// NewWriter creates the output directory if needed.
func NewWriter(dir string, logger *zap.Logger) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("output: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("output: create %s: %w", dir, err)
	}
	return &Writer{dir: dir, logger: logger}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// datasetPath builds the export filename. Weekly runs get a date suffix
// so successive snapshots do not overwrite each other.
func (w *Writer) datasetPath(ext string, weekly bool, now time.Time) string {
	name := datasetBase
	if weekly {
		name += "_" + now.UTC().Format("2006-01-02")
	}
	return filepath.Join(w.dir, name+"."+ext)
}
