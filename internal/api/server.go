// Package api exposes the HTTP interface of the aggregator: trigger
// runs, inspect status, and download the result files.
package api

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gridscope/besstrack/internal/metrics"
	"github.com/gridscope/besstrack/internal/pipeline"
	"github.com/gridscope/besstrack/internal/record"
)

//go:embed static/index.html
var staticFS embed.FS

// maxLogTail caps the bot log tail so one request cannot stream the
// whole history.
const maxLogTail = 500

// runTimeout bounds an API-triggered run.
const runTimeout = 30 * time.Minute

// Runner executes aggregation runs. Satisfied by pipeline.Runner.
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.Report, error)
}

// Config carries the server's knobs.
type Config struct {
	// OutputDir is where the pipeline writes its exports.
	OutputDir string
	// MinProjects is forwarded to the pipeline summary guard.
	MinProjects int
}

// Server wires HTTP handlers to the pipeline and the output directory.
type Server struct {
	router  chi.Router
	runner  Runner
	cfg     Config
	logger  *zap.Logger
	tracker *tracker
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner Runner, cfg Config, logger *zap.Logger) *Server {
	metrics.Init()
	s := &Server{
		runner:  runner,
		cfg:     cfg,
		logger:  logger,
		tracker: newTracker(),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metricsMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/", s.index)
	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/scrape", s.startScrape)
		r.Get("/status", s.getStatus)
		r.Get("/results", s.getResults)
		r.Get("/download/{name}", s.download)
		r.Route("/bot", func(r chi.Router) {
			r.Get("/status", s.getBotStatus)
			r.Get("/log", s.getBotLog)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "index unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type scrapeRequest struct {
	Weekly     bool `json:"weekly"`
	LatestOnly bool `json:"latest_only"`
}

// startScrape launches a run in the background. Only one run at a time;
// a second request while one is in flight gets 409.
func (s *Server) startScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	if !s.tracker.begin() {
		writeError(w, http.StatusConflict, "a scrape is already running")
		return
	}

	opts := pipeline.Options{
		Weekly:      req.Weekly,
		LatestOnly:  req.LatestOnly,
		MinProjects: s.cfg.MinProjects,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		report, err := s.runner.Run(ctx, opts)
		if err != nil {
			s.logger.Error("API-triggered run failed", zap.Error(err))
		}
		s.tracker.finish(report, err)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	status := s.tracker.snapshot()
	if status.State == StateIdle {
		// Fresh process: fall back to what a previous run left on disk.
		if summary, mod := s.diskSummary(); summary != nil {
			status.State = StateDone
			status.FinishedAt = mod
			status.Summary = summary
		}
	}
	writeJSON(w, http.StatusOK, status)
}

type resultFile struct {
	Name    string    `json:"name"`
	Updated time.Time `json:"updated"`
}

func (s *Server) getResults(w http.ResponseWriter, _ *http.Request) {
	entries, err := os.ReadDir(s.cfg.OutputDir)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"files": []resultFile{}, "summary": nil})
		return
	}
	files := make([]resultFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".csv", ".json":
		default:
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, resultFile{Name: e.Name(), Updated: info.ModTime().UTC()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Updated.After(files[j].Updated) })

	summary, _ := s.diskSummary()
	writeJSON(w, http.StatusOK, map[string]any{"files": files, "summary": summary})
}

// diskSummary rebuilds the run summary from the newest dataset export on
// disk, so restarts do not lose the last run's headline numbers.
func (s *Server) diskSummary() (*record.Summary, *time.Time) {
	matches, err := filepath.Glob(filepath.Join(s.cfg.OutputDir, "bess_uk_multi_source*.json"))
	if err != nil || len(matches) == 0 {
		return nil, nil
	}
	newest := ""
	var newestMod time.Time
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = m
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return nil, nil
	}
	data, err := os.ReadFile(newest)
	if err != nil {
		return nil, nil
	}
	var rows []record.Project
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, nil
	}
	summary := record.BuildSummary(rows, newestMod.UTC())
	mod := newestMod.UTC()
	return &summary, &mod
}

// download serves one result file. Only flat CSV/JSON names under the
// output directory are allowed.
func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	switch filepath.Ext(name) {
	case ".csv", ".json":
	default:
		writeError(w, http.StatusBadRequest, "only csv and json downloads are allowed")
		return
	}
	path := filepath.Join(s.cfg.OutputDir, name)
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	defer f.Close()

	if filepath.Ext(name) == ".csv" {
		w.Header().Set("Content-Type", "text/csv")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(name))
	_, _ = io.Copy(w, f)
}

func (s *Server) getBotStatus(w http.ResponseWriter, _ *http.Request) {
	data, err := os.ReadFile(filepath.Join(s.cfg.OutputDir, "bot_status.json"))
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"state": "never_run"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) getBotLog(w http.ResponseWriter, r *http.Request) {
	tail := 50
	if raw := r.URL.Query().Get("tail"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "tail must be a positive integer")
			return
		}
		tail = n
	}
	if tail > maxLogTail {
		tail = maxLogTail
	}

	data, err := os.ReadFile(filepath.Join(s.cfg.OutputDir, "bot_log.txt"))
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"lines": []string{}})
		return
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}
	writeJSON(w, http.StatusOK, map[string]any{"lines": lines})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
