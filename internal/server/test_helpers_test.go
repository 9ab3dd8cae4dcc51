package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MeKo-Tech/sevseg/internal/pipeline"
)

// fakeController records calls made through the HTTP surface.
type fakeController struct {
	mu        sync.Mutex
	state     pipeline.State
	threshold *int
	startErr  error
	setErr    error
	started   []pipeline.Mode
	cancelled int
}

func (f *fakeController) Start(_ context.Context, mode pipeline.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, mode)
	f.state = pipeline.StateRunning
	return nil
}

func (f *fakeController) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled++
	f.state = pipeline.StateCancelled
}

func (f *fakeController) State() pipeline.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeController) SetThreshold(t *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.threshold = t
	return nil
}

func (f *fakeController) Threshold() *int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.threshold
}

func (f *fakeController) Params() pipeline.Params {
	p := pipeline.DefaultParams()
	p.Interval = 2 * time.Second
	return p
}

func newTestServer(t *testing.T, ctrl Controller, cfg Config) (*Server, *Hub) {
	t.Helper()
	hub := NewHub()
	return NewServer(context.Background(), cfg, ctrl, hub, nil), hub
}

func intPtr(v int) *int { return &v }
