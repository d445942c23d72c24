package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/gridscope/besstrack/internal/record"
)

var summaryHeader = []string{
	"run_date", "run_at", "total_projects", "total_mw",
	"count_planned", "count_consented", "count_in_construction", "count_operational",
	"count_early_stage_development", "count_construction_finance", "count_ma_offtake",
}

// ErrBelowMinProjects marks a summary append skipped by the guard: a run
// that yielded suspiciously few rows would poison the weekly trend line.
type ErrBelowMinProjects struct {
	Got, Min int
}

func (e *ErrBelowMinProjects) Error() string {
	return fmt.Sprintf("output: %d projects below summary threshold %d", e.Got, e.Min)
}

// AppendSummary appends exactly one reading to the summary CSV, writing
// the header when the file is new. minProjects 0 disables the guard.
func (w *Writer) AppendSummary(s record.Summary, minProjects int) (string, error) {
	if minProjects > 0 && s.TotalProjects < minProjects {
		return "", &ErrBelowMinProjects{Got: s.TotalProjects, Min: minProjects}
	}

	path := filepath.Join(w.dir, summaryName)
	writeHeader := true
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		writeHeader = false
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("output: open %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if writeHeader {
		if err := cw.Write(summaryHeader); err != nil {
			return "", fmt.Errorf("output: write summary header: %w", err)
		}
	}
	rec := []string{
		s.RunDate,
		s.RunAt,
		strconv.Itoa(s.TotalProjects),
		strconv.FormatFloat(s.TotalMW, 'f', 1, 64),
		strconv.Itoa(s.CountPlanned),
		strconv.Itoa(s.CountConsented),
		strconv.Itoa(s.CountInConstruction),
		strconv.Itoa(s.CountOperational),
		strconv.Itoa(s.CountEarlyStageDevelopment),
		strconv.Itoa(s.CountConstructionFinance),
		strconv.Itoa(s.CountMAOfftake),
	}
	if err := cw.Write(rec); err != nil {
		return "", fmt.Errorf("output: write summary row: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("output: flush %s: %w", path, err)
	}
	w.logger.Info("Appended summary reading",
		zap.String("path", path),
		zap.Int("total_projects", s.TotalProjects),
		zap.Float64("total_mw", s.TotalMW),
	)
	return path, nil
}

// SummaryPath returns the summary CSV location under the output dir.
func (w *Writer) SummaryPath() string {
	return filepath.Join(w.dir, summaryName)
}
