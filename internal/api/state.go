package api

import (
	"sync"
	"time"

	"github.com/gridscope/besstrack/internal/pipeline"
	"github.com/gridscope/besstrack/internal/record"
)

// RunState is the lifecycle of the scrape triggered via the API.
type RunState string

const (
	StateIdle    RunState = "idle"
	StateRunning RunState = "running"
	StateDone    RunState = "done"
	StateError   RunState = "error"
)

// Status is a point-in-time view of the tracker.
type Status struct {
	State      RunState         `json:"state"`
	StartedAt  *time.Time       `json:"started_at,omitempty"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	LastError  string           `json:"last_error,omitempty"`
	LastReport *pipeline.Report `json:"last_report,omitempty"`
	Summary    *record.Summary  `json:"summary,omitempty"`
}

// tracker serializes API-triggered runs: at most one at a time.
type tracker struct {
	mu         sync.Mutex
	state      RunState
	startedAt  time.Time
	finishedAt time.Time
	lastErr    string
	lastReport *pipeline.Report
}

func newTracker() *tracker {
	return &tracker{state: StateIdle}
}

// begin claims the running slot. Returns false when a run is in flight.
func (t *tracker) begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateRunning {
		return false
	}
	t.state = StateRunning
	t.startedAt = time.Now().UTC()
	t.finishedAt = time.Time{}
	t.lastErr = ""
	return true
}

func (t *tracker) finish(report *pipeline.Report, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finishedAt = time.Now().UTC()
	if err != nil {
		t.state = StateError
		t.lastErr = err.Error()
		return
	}
	t.state = StateDone
	t.lastReport = report
}

func (t *tracker) snapshot() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Status{
		State:      t.state,
		LastError:  t.lastErr,
		LastReport: t.lastReport,
	}
	if !t.startedAt.IsZero() {
		started := t.startedAt
		s.StartedAt = &started
	}
	if !t.finishedAt.IsZero() {
		finished := t.finishedAt
		s.FinishedAt = &finished
	}
	return s
}
