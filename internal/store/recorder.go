package store

import (
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/sevseg/internal/aggregate"
	"github.com/MeKo-Tech/sevseg/internal/pipeline"
)

// Recorder is a pipeline observer that writes every run to the store.
// Database errors are logged, never surfaced to the pipeline.
type Recorder struct {
	store  *Store
	source string
	digits int

	mu    sync.Mutex
	runID string
	err   error
}

// NewRecorder records runs of the given source and digit count.
func NewRecorder(s *Store, source string, digitCount int) *Recorder {
	return &Recorder{store: s, source: source, digits: digitCount}
}

// RunID returns the ID of the current or last run.
func (r *Recorder) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

func (r *Recorder) OnStart(mode pipeline.Mode) {
	run, err := r.store.BeginRun(Run{Mode: string(mode), Source: r.source, DigitCount: r.digits})
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = nil
	if err != nil {
		slog.Error("failed to record run start", "error", err)
		r.runID = ""
		return
	}
	r.runID = run.ID
	slog.Debug("recording run", "run_id", run.ID)
}

func (r *Recorder) OnResult(index int, res aggregate.DetectionResult) {
	id := r.RunID()
	if id == "" {
		return
	}
	if err := r.store.AddResult(id, index, res); err != nil {
		slog.Error("failed to record result", "run_id", id, "index", index, "error", err)
	}
}

func (r *Recorder) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) OnComplete(state pipeline.State) {
	r.mu.Lock()
	id, runErr := r.runID, r.err
	r.mu.Unlock()
	if id == "" {
		return
	}
	if err := r.store.FinishRun(id, state.String(), runErr); err != nil {
		slog.Error("failed to record run completion", "run_id", id, "error", err)
	}
}
