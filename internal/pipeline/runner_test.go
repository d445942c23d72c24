package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gridscope/besstrack/internal/output"
	"github.com/gridscope/besstrack/internal/record"
	"github.com/gridscope/besstrack/internal/source"
	"github.com/gridscope/besstrack/internal/storage"
)

type fakeSource struct {
	name string
	rows []record.Project
	err  error
}

func (f *fakeSource) Name() string  { return f.name }
func (f *fakeSource) Label() string { return f.name }
func (f *fakeSource) Scrape(context.Context) ([]record.Project, error) {
	return f.rows, f.err
}

type captureStore struct {
	storage.NoOp
	run *storage.Run
}

func (c *captureStore) ArchiveRun(_ context.Context, run storage.Run) error {
	c.run = &run
	return nil
}

func row(site, src, rawURL, capacity, status string) record.Project {
	return record.New(site, src, rawURL, record.Fields{
		CapacityMW: capacity,
		Status:     status,
	})
}

func newRunner(t *testing.T, dir string, store storage.Provider, srcs ...source.Source) *Runner {
	t.Helper()
	w, err := output.NewWriter(dir, zap.NewNop())
	require.NoError(t, err)
	return New(srcs, w, store, zap.NewNop())
}

func TestRunMergesAcrossSources(t *testing.T) {
	dir := t.TempDir()
	store := &captureStore{}
	r := newRunner(t, dir, store,
		&fakeSource{name: "repd", rows: []record.Project{
			row("Cleve Hill", "REPD", "https://a/1", "350MW", "Awaiting Construction"),
			row("Minety", "REPD", "https://a/2", "100MW", "Operational"),
		}},
		&fakeSource{name: "edf", rows: []record.Project{
			row("Cleve Hill", "EDF", "https://b/1", "350MW", "Consented"),
		}},
	)

	report, err := r.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalScraped)
	assert.Equal(t, 2, report.TotalMerged)
	assert.LessOrEqual(t, report.TotalMerged, report.TotalScraped)
	assert.Zero(t, report.FailedSources)
	assert.NotEmpty(t, report.RunID)

	raw, err := os.ReadFile(filepath.Join(dir, "bess_uk_multi_source.json"))
	require.NoError(t, err)
	var merged []record.Project
	require.NoError(t, json.Unmarshal(raw, &merged))
	require.Len(t, merged, 2)
	assert.Equal(t, "REPD; EDF", merged[0].Source)

	require.NotNil(t, store.run)
	assert.Equal(t, report.RunID, store.run.ID)
	assert.Equal(t, 2, store.run.TotalProjects)
}

func TestRunIsolatesSourceFailures(t *testing.T) {
	dir := t.TempDir()
	r := newRunner(t, dir, nil,
		&fakeSource{name: "broken", err: errors.New("connection refused")},
		&fakeSource{name: "repd", rows: []record.Project{
			row("Cleve Hill", "REPD", "https://a/1", "350MW", "Consented"),
		}},
	)

	report, err := r.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.FailedSources)
	assert.Equal(t, 1, report.TotalMerged)
	require.Len(t, report.Sources, 2)
	assert.Equal(t, "connection refused", report.Sources[0].Error)
	assert.Empty(t, report.Sources[1].Error)
}

func TestRunFailsWhenEverySourceFails(t *testing.T) {
	dir := t.TempDir()
	r := newRunner(t, dir, nil,
		&fakeSource{name: "broken", err: errors.New("connection refused")},
		&fakeSource{name: "also-broken", err: errors.New("timeout")},
	)

	_, err := r.Run(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sources failed")
}

func TestRunLatestOnlyDropsOperational(t *testing.T) {
	dir := t.TempDir()
	r := newRunner(t, dir, nil,
		&fakeSource{name: "repd", rows: []record.Project{
			row("Cleve Hill", "REPD", "https://a/1", "350MW", "Consented"),
			row("Minety", "REPD", "https://a/2", "100MW", "Operational"),
			row("Big battery milestone reached in Kent", "News", "https://n/1", "", "News"),
		}},
	)

	report, err := r.Run(context.Background(), Options{LatestOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalMerged)

	raw, err := os.ReadFile(filepath.Join(dir, "bess_uk_multi_source.json"))
	require.NoError(t, err)
	var merged []record.Project
	require.NoError(t, json.Unmarshal(raw, &merged))
	for _, p := range merged {
		assert.NotEqual(t, record.StatusOperational, p.Status)
	}
}

func TestRunSummaryGainsExactlyOneRow(t *testing.T) {
	dir := t.TempDir()
	rows := []record.Project{
		row("Cleve Hill", "REPD", "https://a/1", "350MW", "Consented"),
		row("Minety", "REPD", "https://a/2", "100MW", "Operational"),
	}
	r := newRunner(t, dir, nil, &fakeSource{name: "repd", rows: rows})

	summaryPath := filepath.Join(dir, "uk_investment_scope_summary.csv")
	for i := 1; i <= 3; i++ {
		report, err := r.Run(context.Background(), Options{})
		require.NoError(t, err)

		raw, err := os.ReadFile(summaryPath)
		require.NoError(t, err)
		recs, err := csv.NewReader(strings.NewReader(string(raw))).ReadAll()
		require.NoError(t, err)
		require.Len(t, recs, i+1)
		assert.Equal(t, "2", recs[i][2])
		assert.Equal(t, report.TotalMerged, 2)
	}
}

func TestRunSummaryGuardSkipsSmallRuns(t *testing.T) {
	dir := t.TempDir()
	r := newRunner(t, dir, nil, &fakeSource{name: "repd", rows: []record.Project{
		row("Cleve Hill", "REPD", "https://a/1", "350MW", "Consented"),
	}})

	report, err := r.Run(context.Background(), Options{MinProjects: 50})
	require.NoError(t, err)
	assert.NotEmpty(t, report.SummarySkipped)

	_, statErr := os.Stat(filepath.Join(dir, "uk_investment_scope_summary.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunSkipFlags(t *testing.T) {
	dir := t.TempDir()
	r := newRunner(t, dir, nil, &fakeSource{name: "repd", rows: []record.Project{
		row("Cleve Hill", "REPD", "https://a/1", "350MW", "Consented"),
	}})

	report, err := r.Run(context.Background(), Options{SkipCSV: true, SkipJSON: true, SkipSummary: true})
	require.NoError(t, err)
	assert.Empty(t, report.Files)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	dir := t.TempDir()
	r := newRunner(t, dir, nil, &fakeSource{name: "repd"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, Options{})
	require.ErrorIs(t, err, context.Canceled)
}
