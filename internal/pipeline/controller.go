// Package pipeline drives detection runs: it captures sample batches,
// crops, binarizes and classifies every frame, and emits one aggregated
// result per batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/sevseg/internal/aggregate"
	"github.com/MeKo-Tech/sevseg/internal/capture"
	"github.com/MeKo-Tech/sevseg/internal/classifier"
	"github.com/MeKo-Tech/sevseg/internal/region"
	"github.com/MeKo-Tech/sevseg/internal/threshold"
)

var (
	// ErrBusy means another run or preview holds the frame source.
	ErrBusy = errors.New("pipeline: frame source busy")
	// ErrThresholdFixed is returned when changing the threshold of a replay.
	ErrThresholdFixed = errors.New("pipeline: threshold can only change during live runs")
)

// GroupSource yields pre-partitioned replay groups; io.EOF ends the run.
type GroupSource interface {
	Next(ctx context.Context) (capture.Group, error)
}

// ClassifierFactory creates an unloaded classifier for one run.
type ClassifierFactory func() (classifier.Classifier, error)

// SourceFactory opens the frame source for one run.
type SourceFactory func() (capture.Source, error)

// Controller runs detection. It is reusable, but only one run or preview
// is active at a time.
type Controller struct {
	params        Params
	extractor     region.Extractor
	thresholder   *threshold.Thresholder
	newClassifier ClassifierFactory
	openSource    SourceFactory
	captureOpts   capture.Options
	observer      Observer
	now           func() time.Time

	active sync.Mutex
	state  atomic.Int32
	mode   atomic.Value

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver sets the result observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithClassifierFactory overrides how classifiers are created.
func WithClassifierFactory(f ClassifierFactory) Option {
	return func(c *Controller) { c.newClassifier = f }
}

// WithClassifierConfig creates classifiers with classifier.New.
func WithClassifierConfig(cfg classifier.Config) Option {
	return func(c *Controller) {
		c.newClassifier = func() (classifier.Classifier, error) { return classifier.New(cfg) }
	}
}

// WithSourceFactory overrides how the frame source is opened.
func WithSourceFactory(f SourceFactory) Option {
	return func(c *Controller) { c.openSource = f }
}

// WithEstimator sets the threshold estimator used when no fixed threshold is set.
func WithEstimator(e threshold.Estimator) Option {
	return func(c *Controller) { c.thresholder = threshold.New(c.params.Threshold, e) }
}

// WithCaptureOptions sets the options passed to capture.Open by the
// default source factory.
func WithCaptureOptions(opts capture.Options) Option {
	return func(c *Controller) { c.captureOpts = opts }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController validates params and builds a controller.
func NewController(params Params, opts ...Option) (*Controller, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline parameters: %w", err)
	}
	c := &Controller{
		params:      params,
		extractor:   params.Extractor(),
		thresholder: threshold.New(params.Threshold, threshold.DefaultEstimator()),
		observer:    NoOpObserver{},
		now:         time.Now,
	}
	cfg := classifier.DefaultConfig()
	cfg.DigitCount = params.DigitCount
	WithClassifierConfig(cfg)(c)
	c.openSource = func() (capture.Source, error) {
		return capture.Open(c.params.Source, c.captureOpts)
	}
	for _, opt := range opts {
		opt(c)
	}
	c.mode.Store(ModeLive)
	return c, nil
}

// Params returns the run parameters.
func (c *Controller) Params() Params { return c.params }

// State returns the current state.
func (c *Controller) State() State { return State(c.state.Load()) }

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
	runState.Set(float64(s))
}

// Threshold returns the fixed threshold, or nil when estimating.
func (c *Controller) Threshold() *int { return c.thresholder.Fixed() }

// SetThreshold changes the fixed threshold; nil switches to estimation. The
// next classified frame uses the new value. A running replay keeps its
// threshold.
func (c *Controller) SetThreshold(t *int) error {
	if t != nil && (*t < 0 || *t > 255) {
		return fmt.Errorf("threshold must be within 0..255, got %d", *t)
	}
	if c.State() == StateRunning && c.mode.Load() == ModeReplay {
		return ErrThresholdFixed
	}
	c.thresholder.Set(t)
	slog.Info("threshold updated", "threshold", thresholdString(t))
	return nil
}

// Cancel asks the active run to stop at its next iteration boundary.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// Start runs mode on a background goroutine. Wait returns its error.
func (c *Controller) Start(ctx context.Context, mode Mode) error {
	if !c.active.TryLock() {
		return ErrBusy
	}
	if mode != ModeReplay {
		mode = ModeLive
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.mu.Lock()
	c.cancel, c.done, c.err = cancel, done, nil
	c.mu.Unlock()

	// Visible to SetThreshold and State before the run goroutine is scheduled.
	c.mode.Store(mode)
	c.setState(StateRunning)

	go func() {
		defer close(done)
		defer c.active.Unlock()
		var err error
		if mode == ModeReplay {
			err = c.replay(ctx)
		} else {
			err = c.live(ctx)
		}
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
	}()
	return nil
}

// Wait blocks until the run started by Start ends.
func (c *Controller) Wait() error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// RunLive samples the live source until the duration elapses or ctx ends.
func (c *Controller) RunLive(ctx context.Context) error {
	if !c.active.TryLock() {
		return ErrBusy
	}
	defer c.active.Unlock()
	return c.live(ctx)
}

// RunReplay partitions the configured recording into sampling intervals
// and classifies each of them.
func (c *Controller) RunReplay(ctx context.Context) error {
	if !c.active.TryLock() {
		return ErrBusy
	}
	defer c.active.Unlock()
	return c.replay(ctx)
}

// RunGroups classifies already partitioned replay groups.
func (c *Controller) RunGroups(ctx context.Context, groups GroupSource) error {
	if !c.active.TryLock() {
		return ErrBusy
	}
	defer c.active.Unlock()
	return c.run(ctx, ModeReplay, func(ctx context.Context, clf classifier.Classifier, sink *capture.FrameSink) (State, error) {
		return c.replayLoop(ctx, groups, clf, sink)
	})
}

type loopFunc func(ctx context.Context, clf classifier.Classifier, sink *capture.FrameSink) (State, error)

// run owns the lifecycle shared by all modes: state transitions, the
// classifier, the frame sink and cancellation.
func (c *Controller) run(parent context.Context, mode Mode, loop loopFunc) (err error) {
	ctx, cancel := context.WithCancel(parent)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	c.mode.Store(mode)
	c.setState(StateRunning)
	c.thresholder.Reset()
	c.observer.OnStart(mode)

	final := StateErrored
	defer func() {
		c.setState(final)
		if final == StateErrored && err != nil {
			c.observer.OnError(err)
		}
		c.observer.OnComplete(final)
	}()

	clf, err := c.newClassifier()
	if err != nil {
		return fmt.Errorf("create classifier: %w", err)
	}
	if err := clf.Load(); err != nil {
		return fmt.Errorf("load %s classifier: %w", clf.Name(), err)
	}
	defer func() {
		if cerr := clf.Close(); cerr != nil {
			slog.Warn("failed to close classifier", "error", cerr)
		}
	}()

	var sink *capture.FrameSink
	if c.params.SaveFrames {
		if sink, err = capture.NewFrameSink(c.params.FrameDir); err != nil {
			return err
		}
		if mode == ModeReplay {
			if err := sink.Clear(); err != nil {
				return err
			}
		}
	}

	final, err = loop(ctx, clf, sink)
	return err
}

func (c *Controller) live(ctx context.Context) error {
	return c.run(ctx, ModeLive, func(ctx context.Context, clf classifier.Classifier, sink *capture.FrameSink) (State, error) {
		src, err := c.openSource()
		if err != nil {
			return StateErrored, fmt.Errorf("open frame source: %w", err)
		}
		defer closeSource(src)
		return c.liveLoop(ctx, src, clf, sink)
	})
}

func (c *Controller) replay(ctx context.Context) error {
	return c.run(ctx, ModeReplay, func(ctx context.Context, clf classifier.Classifier, sink *capture.FrameSink) (State, error) {
		src, err := c.openSource()
		if err != nil {
			return StateErrored, fmt.Errorf("open recording: %w", err)
		}
		defer closeSource(src)

		fps := c.params.FPS
		if fps == 0 {
			if r, ok := src.(capture.FPSReporter); ok {
				fps = r.FPS()
			}
		}
		groups, err := capture.NewGrouper(src, capture.GroupOptions{
			FPS:             fps,
			Interval:        c.params.Interval,
			FramesPerSample: c.params.FramesPerSample,
			Skip:            c.params.Skip,
		})
		if err != nil {
			return StateErrored, fmt.Errorf("partition recording: %w", err)
		}
		return c.replayLoop(ctx, groups, clf, sink)
	})
}

func closeSource(src capture.Source) {
	if err := src.Close(); err != nil {
		slog.Warn("failed to release frame source", "error", err)
	}
}

func (c *Controller) liveLoop(ctx context.Context, src capture.Source, clf classifier.Classifier, sink *capture.FrameSink) (State, error) {
	start := c.now()
	for index := 0; ; index++ {
		if ctx.Err() != nil {
			return StateCancelled, nil
		}
		if c.params.Duration > 0 && c.now().Sub(start) >= c.params.Duration {
			return StateFinished, nil
		}

		iterStart := c.now()
		frames, exhausted, err := c.captureBatch(ctx, src)
		if ctx.Err() != nil {
			// The partial batch of a cancelled run is dropped.
			return StateCancelled, nil
		}
		if err != nil {
			return StateErrored, fmt.Errorf("capture batch %d: %w", index, err)
		}
		if exhausted && len(frames) == 0 {
			slog.Info("frame source exhausted", "batches", index)
			return StateFinished, nil
		}
		readings := c.classifyFrames(frames, clf, sink)
		c.emit(ModeLive, index, aggregate.Reduce(readings, aggregate.LiveTimestamp(iterStart)), iterStart)

		if exhausted {
			slog.Info("frame source exhausted", "batches", index+1)
			return StateFinished, nil
		}
		if wait := c.params.Interval - c.now().Sub(iterStart); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return StateCancelled, nil
			case <-timer.C:
			}
		}
	}
}

func (c *Controller) replayLoop(ctx context.Context, groups GroupSource, clf classifier.Classifier, sink *capture.FrameSink) (State, error) {
	for index := 0; ; index++ {
		if ctx.Err() != nil {
			return StateCancelled, nil
		}
		iterStart := c.now()
		g, err := groups.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			return StateFinished, nil
		case ctx.Err() != nil:
			return StateCancelled, nil
		case err != nil:
			return StateErrored, fmt.Errorf("read replay group %d: %w", index, err)
		}
		if g.Skipped > 0 {
			framesSkipped.WithLabelValues(skipNoFrame).Add(float64(g.Skipped))
		}
		readings := c.classifyFrames(g.Frames, clf, sink)
		c.emit(ModeReplay, index, aggregate.Reduce(readings, aggregate.OffsetTimestamp(g.Offset)), iterStart)
	}
}

// captureBatch collects up to FramesPerSample frames. Frames the source
// could not deliver are skipped. exhausted reports that a finite source
// ran out.
func (c *Controller) captureBatch(ctx context.Context, src capture.Source) ([]image.Image, bool, error) {
	frames := make([]image.Image, 0, c.params.FramesPerSample)
	for range c.params.FramesPerSample {
		img, err := src.Capture(ctx)
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		switch {
		case err == nil:
			frames = append(frames, img)
		case errors.Is(err, io.EOF):
			return frames, true, nil
		case errors.Is(err, capture.ErrNoFrame):
			framesSkipped.WithLabelValues(skipNoFrame).Inc()
			slog.Debug("frame skipped", "error", err)
		default:
			return nil, false, err
		}
	}
	return frames, false, nil
}

// classifyFrames turns frames into readings; frames that fail any stage
// are dropped.
func (c *Controller) classifyFrames(frames []image.Image, clf classifier.Classifier, sink *capture.FrameSink) []aggregate.Reading {
	readings := make([]aggregate.Reading, 0, len(frames))
	for _, frame := range frames {
		strip := c.extractor.Crop(frame, c.params.Points)
		if sink != nil {
			if _, err := sink.Save(frame); err != nil {
				slog.Warn("failed to persist frame", "error", err)
			}
		}
		if strip == nil {
			framesSkipped.WithLabelValues(skipCrop).Inc()
			continue
		}

		binary, used, err := c.thresholder.Apply(strip)
		if err != nil {
			framesSkipped.WithLabelValues(skipThreshold).Inc()
			slog.Debug("threshold estimation failed", "error", err)
			continue
		}
		thresholdGauge.Set(float64(used))

		digits, err := clf.Classify(binary)
		if err != nil {
			framesSkipped.WithLabelValues(skipClassify).Inc()
			slog.Warn("classification failed", "error", err)
			continue
		}
		readings = append(readings, digits)
	}
	return readings
}

func (c *Controller) emit(mode Mode, index int, r aggregate.DetectionResult, started time.Time) {
	status := "ok"
	if r.Value == nil {
		status = "empty"
	}
	batchesTotal.WithLabelValues(string(mode), status).Inc()
	batchFailedRate.Observe(r.FailedRate)
	batchDuration.WithLabelValues(string(mode)).Observe(c.now().Sub(started).Seconds())
	c.observer.OnResult(index, r)
}

func thresholdString(t *int) string {
	if t == nil {
		return "auto"
	}
	return fmt.Sprintf("%d", *t)
}
