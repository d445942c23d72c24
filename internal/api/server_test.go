package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gridscope/besstrack/internal/pipeline"
	"github.com/gridscope/besstrack/internal/record"
)

type fakeRunner struct {
	block   chan struct{}
	started chan struct{}
	report  *pipeline.Report
	err     error
}

func (f *fakeRunner) Run(ctx context.Context, opts pipeline.Options) (*pipeline.Report, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.report, f.err
}

func testServer(t *testing.T, runner Runner, dir string) *Server {
	t.Helper()
	return NewServer(runner, Config{OutputDir: dir, MinProjects: 0}, zap.NewNop())
}

func TestScrapeRejectsConcurrentRuns(t *testing.T) {
	runner := &fakeRunner{
		block:   make(chan struct{}),
		started: make(chan struct{}),
		report:  &pipeline.Report{RunID: "r1"},
	}
	s := testServer(t, runner, t.TempDir())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scrape", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	<-runner.started

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scrape", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(runner.block)
	require.Eventually(t, func() bool {
		return s.tracker.snapshot().State == StateDone
	}, time.Second, 5*time.Millisecond)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, StateDone, status.State)
	require.NotNil(t, status.LastReport)
	assert.Equal(t, "r1", status.LastReport.RunID)
}

func TestStatusFallsBackToDisk(t *testing.T) {
	dir := t.TempDir()
	dataset := `[{"site_name":"Cleve Hill","country":"UK","region":"Kent","capacity_mw_numeric":350,"status":"Consented","source":"REPD"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bess_uk_multi_source.json"), []byte(dataset), 0o644))
	s := testServer(t, &fakeRunner{}, dir)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, StateDone, status.State)
	assert.NotNil(t, status.FinishedAt)
	require.NotNil(t, status.Summary)
	assert.Equal(t, 1, status.Summary.TotalProjects)
}

func TestResults(t *testing.T) {
	dir := t.TempDir()
	s := testServer(t, &fakeRunner{}, dir)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var empty struct {
		Files []resultFile `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &empty))
	assert.Empty(t, empty.Files)

	dataset := `[{"site_name":"Cleve Hill","country":"UK","capacity_mw_numeric":350,"status":"Consented","source":"REPD"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bess_uk_multi_source.json"), []byte(dataset), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bess_uk_multi_source.csv"), []byte("a,b\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Files   []resultFile    `json:"files"`
		Summary *record.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Files, 2)
	names := []string{out.Files[0].Name, out.Files[1].Name}
	assert.Contains(t, names, "bess_uk_multi_source.json")
	assert.Contains(t, names, "bess_uk_multi_source.csv")
	require.NotNil(t, out.Summary)
	assert.Equal(t, 1, out.Summary.TotalProjects)
}

func TestDownloadRestrictsNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bess_uk_multi_source.csv"), []byte("a,b\n"), 0o644))
	s := testServer(t, &fakeRunner{}, dir)

	cases := []struct {
		path string
		code int
	}{
		{"/api/download/bess_uk_multi_source.csv", http.StatusOK},
		{"/api/download/missing.json", http.StatusNotFound},
		{"/api/download/notes.txt", http.StatusBadRequest},
		{"/api/download/..%2fsecrets.csv", http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		assert.Equal(t, tc.code, rec.Code, tc.path)
	}
}

func TestBotLogTail(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	for i := 0; i < 100; i++ {
		b.WriteString("line\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bot_log.txt"), []byte(b.String()), 0o644))
	s := testServer(t, &fakeRunner{}, dir)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bot/log?tail=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Lines []string `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Len(t, payload.Lines, 10)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bot/log?tail=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	s := testServer(t, &fakeRunner{}, t.TempDir())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestIndexServesPage(t *testing.T) {
	s := testServer(t, &fakeRunner{}, t.TempDir())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "UK BESS Project Tracker")
}
