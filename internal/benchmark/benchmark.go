// Package benchmark times the per-frame stages of the detection pipeline.
package benchmark

import (
	"errors"
	"fmt"
	"image"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/MeKo-Tech/sevseg/internal/classifier"
	"github.com/MeKo-Tech/sevseg/internal/region"
	"github.com/MeKo-Tech/sevseg/internal/threshold"
)

// Timer measures one elapsed interval.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer starts a timer.
func NewTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now()}
}

// Stop records and returns the elapsed time.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration is valid after Stop.
func (t *Timer) Duration() time.Duration { return t.duration }

func (t *Timer) String() string { return fmt.Sprintf("%s: %v", t.name, t.duration) }

// MemoryStats is a subset of runtime.MemStats.
type MemoryStats struct {
	AllocBytes      uint64
	TotalAllocBytes uint64
	NumGC           uint32
}

// GetMemoryStats reads the current runtime memory counters.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{AllocBytes: m.Alloc, TotalAllocBytes: m.TotalAlloc, NumGC: m.NumGC}
}

// Result is the outcome of one benchmark.
type Result struct {
	Name       string
	Iterations int
	Duration   time.Duration
	// AllocBytes is the cumulative allocation during the run.
	AllocBytes uint64
	Error      error
}

// PerOp is the mean duration of one iteration.
func (r Result) PerOp() time.Duration {
	if r.Iterations == 0 {
		return 0
	}
	return r.Duration / time.Duration(r.Iterations)
}

func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}
	return fmt.Sprintf("%s: %d iterations, avg: %v, total: %v, alloc: %d KB/op",
		r.Name, r.Iterations, r.PerOp(), r.Duration, r.AllocBytes/uint64(max(r.Iterations, 1))/1024)
}

type entry struct {
	name string
	fn   func() error
}

// Suite runs named benchmarks in insertion order.
type Suite struct {
	mu      sync.Mutex
	entries []entry
	results []Result
}

// NewSuite creates an empty suite.
func NewSuite() *Suite { return &Suite{} }

// Add registers fn under name.
func (s *Suite) Add(name string, fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry{name: name, fn: fn})
}

// RunAll runs every benchmark for iterations rounds. A benchmark stops at
// its first error.
func (s *Suite) RunAll(iterations int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make([]Result, 0, len(s.entries))
	for _, e := range s.entries {
		s.results = append(s.results, run(e, iterations))
	}
	return append([]Result(nil), s.results...)
}

// Results returns the last RunAll results.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Result(nil), s.results...)
}

// Fprint writes one line per result.
func (s *Suite) Fprint(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Benchmark Results:")
	_, _ = fmt.Fprintln(w, "==================")
	for _, r := range s.Results() {
		_, _ = fmt.Fprintln(w, r.String())
	}
}

func run(e entry, iterations int) Result {
	runtime.GC()
	before := GetMemoryStats()
	timer := NewTimer(e.name)
	res := Result{Name: e.name}
	for range iterations {
		if err := e.fn(); err != nil {
			res.Error = err
			break
		}
		res.Iterations++
	}
	res.Duration = timer.Stop()
	res.AllocBytes = GetMemoryStats().TotalAllocBytes - before.TotalAllocBytes
	return res
}

// Stages bundles what one pass over a frame needs.
type Stages struct {
	Frame      image.Image
	Points     []region.Point
	Extractor  region.Extractor
	Estimator  threshold.Estimator
	Classifier classifier.Classifier
}

// AddStages registers crop, estimate, binarize, classify and a combined
// end-to-end benchmark. The classifier must already be loaded.
func AddStages(s *Suite, st Stages) error {
	strip := st.Extractor.Crop(st.Frame, st.Points)
	if strip == nil {
		return errors.New("region does not crop to a strip")
	}
	t, err := st.Estimator.Estimate(strip)
	if err != nil {
		return fmt.Errorf("estimate threshold: %w", err)
	}
	binary := threshold.Binarize(strip, t)

	s.Add("crop", func() error {
		if st.Extractor.Crop(st.Frame, st.Points) == nil {
			return errors.New("crop failed")
		}
		return nil
	})
	s.Add("estimate", func() error {
		_, err := st.Estimator.Estimate(strip)
		return err
	})
	s.Add("binarize", func() error {
		threshold.Binarize(strip, t)
		return nil
	})
	s.Add("classify/"+st.Classifier.Name(), func() error {
		_, err := st.Classifier.Classify(binary)
		return err
	})
	s.Add("frame", func() error {
		out := st.Extractor.Crop(st.Frame, st.Points)
		if out == nil {
			return errors.New("crop failed")
		}
		t, err := st.Estimator.Estimate(out)
		if err != nil {
			return err
		}
		_, err = st.Classifier.Classify(threshold.Binarize(out, t))
		return err
	})
	return nil
}
