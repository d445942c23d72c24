package sched

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gridscope/besstrack/internal/pipeline"
)

type stubRunner struct {
	calls  atomic.Int64
	report *pipeline.Report
	err    error
}

func (s *stubRunner) Run(context.Context, pipeline.Options) (*pipeline.Report, error) {
	s.calls.Add(1)
	return s.report, s.err
}

func TestNextFire(t *testing.T) {
	now := time.Date(2025, 6, 2, 5, 30, 0, 0, time.UTC)

	next, err := nextFire(now, Schedule{Daily: "06:00"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 2, 6, 0, 0, 0, time.UTC), next)

	next, err = nextFire(now, Schedule{Daily: "05:00"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 3, 5, 0, 0, 0, time.UTC), next)

	next, err = nextFire(now, Schedule{Daily: "06:00", Interval: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), next)

	_, err = nextFire(now, Schedule{Daily: "25:00"})
	require.Error(t, err)
	_, err = nextFire(now, Schedule{Daily: "not a time"})
	require.Error(t, err)
}

func TestRunOnceRecordsOutcome(t *testing.T) {
	dir := t.TempDir()
	runner := &stubRunner{report: &pipeline.Report{RunID: "r1", TotalMerged: 77}}
	bot, err := New(runner, pipeline.Options{}, dir, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, bot.RunOnce(context.Background()))

	raw, err := os.ReadFile(filepath.Join(dir, "bot_status.json"))
	require.NoError(t, err)
	var status Status
	require.NoError(t, json.Unmarshal(raw, &status))
	assert.Equal(t, "ok", status.State)
	assert.Equal(t, 1, status.Runs)
	require.NotNil(t, status.Report)
	assert.Equal(t, 77, status.Report.TotalMerged)

	logRaw, err := os.ReadFile(filepath.Join(dir, "bot_log.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(logRaw), "77 projects")
}

func TestRunOnceRecordsFailure(t *testing.T) {
	dir := t.TempDir()
	runner := &stubRunner{err: errors.New("everything is down")}
	bot, err := New(runner, pipeline.Options{}, dir, zap.NewNop())
	require.NoError(t, err)

	require.Error(t, bot.RunOnce(context.Background()))
	assert.Equal(t, "error", bot.Status().State)
	assert.Equal(t, "everything is down", bot.Status().LastError)

	logRaw, err := os.ReadFile(filepath.Join(dir, "bot_log.txt"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(logRaw), "run failed"))
}

func TestStatusSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	runner := &stubRunner{report: &pipeline.Report{RunID: "r1"}}
	bot, err := New(runner, pipeline.Options{}, dir, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, bot.RunOnce(context.Background()))

	bot2, err := New(runner, pipeline.Options{}, dir, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, bot2.Status().Runs)
	assert.Equal(t, "ok", bot2.Status().State)
}

func TestStartRunsOnIntervalUntilCanceled(t *testing.T) {
	dir := t.TempDir()
	runner := &stubRunner{report: &pipeline.Report{RunID: "r1"}}
	bot, err := New(runner, pipeline.Options{}, dir, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- bot.Start(ctx, Schedule{Interval: 10 * time.Millisecond})
	}()

	require.Eventually(t, func() bool {
		return runner.calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("bot did not stop on cancel")
	}
}
