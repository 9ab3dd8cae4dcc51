package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sevseg/internal/aggregate"
	"github.com/MeKo-Tech/sevseg/internal/pipeline"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sevseg.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func intPtr(v int) *int { return &v }

func TestOpen_MigratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sevseg.db")
	s, err := Open(path)
	require.NoError(t, err)
	v, dirty, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)
	require.NoError(t, s.Close())

	// Reopening an up-to-date database is a no-op.
	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)

	run, err := s.BeginRun(Run{Mode: "live", Source: "0", DigitCount: 4})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "running", run.State)

	want := []aggregate.DetectionResult{
		{Value: intPtr(1234), FailedRate: 1.0 / 12.0, Timestamp: "2026-10-19 12:00:00"},
		{Value: nil, FailedRate: 1.0, Timestamp: "2026-10-19 12:00:01"},
		{Value: intPtr(0), FailedRate: 0, Timestamp: "2026-10-19 12:00:02"},
	}
	for i, r := range want {
		require.NoError(t, s.AddResult(run.ID, i, r))
	}
	require.NoError(t, s.FinishRun(run.ID, "finished", nil))

	got, err := s.Results(run.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}

	stored, err := s.Run(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "finished", stored.State)
	assert.Equal(t, 3, stored.ResultCount)
	require.NotNil(t, stored.FinishedAt)
	assert.Empty(t, stored.Error)
}

func TestFinishRun_RecordsError(t *testing.T) {
	s := openTestStore(t)
	run, err := s.BeginRun(Run{Mode: "replay", DigitCount: 4})
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(run.ID, "errored", errors.New("model not found")))

	stored, err := s.Run(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "errored", stored.State)
	assert.Equal(t, "model not found", stored.Error)
}

func TestUnknownRun(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Run("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = s.Results("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, s.FinishRun("missing", "finished", nil), ErrRunNotFound)
	_, err = s.LatestRun()
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRuns_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	var ids []string
	for range 3 {
		r, err := s.BeginRun(Run{Mode: "live", DigitCount: 4})
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}

	runs, err := s.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[0], runs[2].ID)

	runs, err = s.Runs(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	latest, err := s.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, ids[2], latest.ID)
}

func TestRecorder(t *testing.T) {
	s := openTestStore(t)
	rec := NewRecorder(s, "frames/", 4)

	rec.OnStart(pipeline.ModeReplay)
	id := rec.RunID()
	require.NotEmpty(t, id)
	rec.OnResult(0, aggregate.DetectionResult{Value: intPtr(42), FailedRate: 0.25, Timestamp: "00:00:00.000"})
	rec.OnResult(1, aggregate.Failed("00:00:01.000"))
	rec.OnComplete(pipeline.StateFinished)

	run, err := s.Run(id)
	require.NoError(t, err)
	assert.Equal(t, "replay", run.Mode)
	assert.Equal(t, "frames/", run.Source)
	assert.Equal(t, "finished", run.State)
	assert.Equal(t, 2, run.ResultCount)

	rec.OnStart(pipeline.ModeLive)
	assert.NotEqual(t, id, rec.RunID())
	rec.OnError(errors.New("camera gone"))
	rec.OnComplete(pipeline.StateErrored)

	run, err = s.Run(rec.RunID())
	require.NoError(t, err)
	assert.Equal(t, "errored", run.State)
	assert.Equal(t, "camera gone", run.Error)
}
