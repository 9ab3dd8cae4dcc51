package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/MeKo-Tech/sevseg/internal/aggregate"
)

// Observer receives the pipeline's output. Calls come from the run's
// goroutine, in capture order.
type Observer interface {
	// OnStart is called once the run is about to load its resources.
	OnStart(mode Mode)
	// OnResult is called once per completed batch.
	OnResult(index int, r aggregate.DetectionResult)
	// OnError is called once with the error that ends an Errored run.
	OnError(err error)
	// OnComplete is called with the terminal state.
	OnComplete(state State)
}

// NoOpObserver ignores everything.
type NoOpObserver struct{}

func (NoOpObserver) OnStart(Mode)                            {}
func (NoOpObserver) OnResult(int, aggregate.DetectionResult) {}
func (NoOpObserver) OnError(error)                           {}
func (NoOpObserver) OnComplete(State)                        {}

// MultiObserver fans out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) OnStart(mode Mode) {
	for _, o := range m {
		o.OnStart(mode)
	}
}

func (m MultiObserver) OnResult(index int, r aggregate.DetectionResult) {
	for _, o := range m {
		o.OnResult(index, r)
	}
}

func (m MultiObserver) OnError(err error) {
	for _, o := range m {
		o.OnError(err)
	}
}

func (m MultiObserver) OnComplete(state State) {
	for _, o := range m {
		o.OnComplete(state)
	}
}

// Collector keeps every result in memory.
type Collector struct {
	NoOpObserver

	mu      sync.Mutex
	results []aggregate.DetectionResult
	state   State
	err     error
}

func (c *Collector) OnResult(_ int, r aggregate.DetectionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func (c *Collector) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *Collector) OnComplete(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

// Results returns a copy of the collected results.
func (c *Collector) Results() []aggregate.DetectionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]aggregate.DetectionResult(nil), c.results...)
}

// State returns the last terminal state seen.
func (c *Collector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the run error, if any.
func (c *Collector) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// LogObserver logs results using slog.
type LogObserver struct {
	logger *slog.Logger
	level  slog.Level
	start  time.Time
}

// NewLogObserver creates a log-based observer.
func NewLogObserver(logger *slog.Logger, level slog.Level) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger, level: level}
}

func (l *LogObserver) OnStart(mode Mode) {
	l.start = time.Now()
	l.logger.Log(context.Background(), l.level, "detection started", "mode", mode)
}

func (l *LogObserver) OnResult(index int, r aggregate.DetectionResult) {
	l.logger.Log(context.Background(), l.level, "detection result",
		"index", index, "value", valueString(r.Value), "failed_rate", r.FailedRate, "timestamp", r.Timestamp)
}

func (l *LogObserver) OnError(err error) {
	l.logger.Error("detection failed", "error", err)
}

func (l *LogObserver) OnComplete(state State) {
	l.logger.Log(context.Background(), l.level, "detection stopped", "state", state,
		"elapsed", time.Since(l.start).Round(time.Millisecond))
}

// ConsoleObserver prints one line per result.
type ConsoleObserver struct {
	mu     sync.Mutex
	writer io.Writer
	count  int
}

// NewConsoleObserver writes to w, or stderr when w is nil.
func NewConsoleObserver(w io.Writer) *ConsoleObserver {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleObserver{writer: w}
}

func (c *ConsoleObserver) OnStart(mode Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = 0
	_, _ = fmt.Fprintf(c.writer, "%s detection started\n", mode)
}

func (c *ConsoleObserver) OnResult(index int, r aggregate.DetectionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	_, _ = fmt.Fprintf(c.writer, "[%4d] %s  value=%-8s failed=%5.1f%%\n",
		index, r.Timestamp, valueString(r.Value), r.FailedRate*100)
}

func (c *ConsoleObserver) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.writer, "error: %v\n", err)
}

func (c *ConsoleObserver) OnComplete(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.writer, "%s after %d results\n", state, c.count)
}

func valueString(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
