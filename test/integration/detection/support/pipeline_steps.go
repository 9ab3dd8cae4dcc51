package support

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/sevseg/internal/capture"
	"github.com/MeKo-Tech/sevseg/internal/classifier"
	"github.com/MeKo-Tech/sevseg/internal/pipeline"
	"github.com/MeKo-Tech/sevseg/internal/region"
	"github.com/MeKo-Tech/sevseg/internal/store"
	"github.com/MeKo-Tech/sevseg/internal/testutil"
	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
)

const runTimeout = 10 * time.Second

// displayOffset places the display inside every rendered frame.
var displayOffset = image.Pt(20, 30)

func (w *World) aRecordingShowing(n int, digits string) error {
	w.Frames = nil
	if err := w.theRecordingThenShows(digits, n); err != nil {
		return err
	}
	threshold := 128
	w.Params = pipeline.DefaultParams()
	w.Params.DigitCount = len(digits)
	w.Params.CropWidth = w.Display.DigitWidth
	w.Params.CropHeight = w.Display.DigitHeight
	w.Params.Threshold = &threshold
	w.Params.Points = make([]region.Point, 4)
	for i, c := range w.Corners {
		w.Params.Points[i] = region.Point{X: c.X, Y: c.Y}
	}
	return nil
}

func (w *World) theRecordingThenShows(digits string, n int) error {
	width := max(200, len(digits)*w.Display.DigitWidth+2*displayOffset.X)
	frame, corners := testutil.Frame(digits, width, 150, displayOffset, w.Display)
	for range n {
		w.Frames = append(w.Frames, frame)
	}
	w.Corners = corners
	return nil
}

func (w *World) theRecordingRunsAtFPS(fps int) error {
	w.Params.FPS = float64(fps)
	return nil
}

func (w *World) replaySkips(d string) error {
	skip, err := time.ParseDuration(d)
	if err != nil {
		return err
	}
	w.Params.Skip = skip
	return nil
}

func (w *World) theRegionIsUnset() error {
	w.Params.Points = nil
	return nil
}

func (w *World) runsAreRecorded() error {
	st, err := store.Open(filepath.Join(w.TempDir, "runs.db"))
	if err != nil {
		return err
	}
	w.Store = st
	return nil
}

// writeRecording saves the frames as numbered PNGs and points the source
// at them.
func (w *World) writeRecording() error {
	dir := filepath.Join(w.TempDir, "recording")
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	for i, f := range w.Frames {
		if err := imaging.Save(f, filepath.Join(dir, fmt.Sprintf(capture.FrameNameFormat, i))); err != nil {
			return err
		}
	}
	w.Recording = dir
	w.Params.Source = dir
	return nil
}

func (w *World) newController() error {
	if err := w.writeRecording(); err != nil {
		return err
	}
	w.Collector = &pipeline.Collector{}
	observers := pipeline.MultiObserver{w.Collector}
	if w.Hub != nil {
		observers = append(observers, w.Hub)
	}
	if w.Store != nil {
		w.Recorder = store.NewRecorder(w.Store, w.Recording, w.Params.DigitCount)
		observers = append(observers, w.Recorder)
	}
	digits, display := w.Params.DigitCount, w.Display
	ctrl, err := pipeline.NewController(w.Params,
		pipeline.WithObserver(observers),
		pipeline.WithClassifierFactory(func() (classifier.Classifier, error) {
			return testutil.NewSegmentClassifier(digits, display), nil
		}),
	)
	if err != nil {
		return err
	}
	w.Controller = ctrl
	return nil
}

func (w *World) sampling(frames int, every string) error {
	interval, err := time.ParseDuration(every)
	if err != nil {
		return err
	}
	w.Params.FramesPerSample = frames
	w.Params.Interval = interval
	return w.newController()
}

func (w *World) iReplayItSampling(frames int, every string) error {
	if err := w.sampling(frames, every); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	w.LastError = w.Controller.RunReplay(ctx)
	return nil
}

func (w *World) iRunItLiveSampling(frames int, every string) error {
	if err := w.sampling(frames, every); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	w.LastError = w.Controller.RunLive(ctx)
	return nil
}

func (w *World) theRunEndsAs(want string) error {
	got := w.Collector.State().String()
	if got != want {
		return fmt.Errorf("run ended %s (error %v), want %s", got, w.Collector.Err(), want)
	}
	return nil
}

func (w *World) thereAreReadings(n int) error {
	if got := len(w.Collector.Results()); got != n {
		return fmt.Errorf("got %d readings, want %d: %+v", got, n, w.Collector.Results())
	}
	return nil
}

func (w *World) reading(i int) (*int, float64, string, error) {
	results := w.Collector.Results()
	if i >= len(results) {
		return nil, 0, "", fmt.Errorf("no reading %d, only %d", i, len(results))
	}
	r := results[i]
	return r.Value, r.FailedRate, r.Timestamp, nil
}

func (w *World) readingIsAt(i, want int, ts string) error {
	v, _, gotTS, err := w.reading(i)
	if err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("reading %d has no value", i)
	}
	if *v != want || gotTS != ts {
		return fmt.Errorf("reading %d is %d at %s, want %d at %s", i, *v, gotTS, want, ts)
	}
	return nil
}

func (w *World) readingFailedRateIs(i int, want float64) error {
	_, rate, _, err := w.reading(i)
	if err != nil {
		return err
	}
	if rate != want {
		return fmt.Errorf("reading %d failed rate %g, want %g", i, rate, want)
	}
	return nil
}

func (w *World) readingHasNoValue(i int) error {
	v, rate, _, err := w.reading(i)
	if err != nil {
		return err
	}
	if v != nil {
		return fmt.Errorf("reading %d is %d, want none", i, *v)
	}
	if rate != 1 {
		return fmt.Errorf("reading %d failed rate %g, want 1", i, rate)
	}
	return nil
}

func (w *World) theRecordedRunHas(state string, n int) error {
	if w.Recorder == nil || w.Recorder.RunID() == "" {
		return errors.New("no run was recorded")
	}
	run, err := w.Store.Run(w.Recorder.RunID())
	if err != nil {
		return err
	}
	if run.State != state || run.ResultCount != n {
		return fmt.Errorf("recorded run is %s with %d results, want %s with %d", run.State, run.ResultCount, state, n)
	}
	return nil
}

func (w *World) theSavedFramesAre(n int) error {
	saved, err := filepath.Glob(filepath.Join(w.Params.FrameDir, "*.png"))
	if err != nil {
		return err
	}
	if len(saved) != n {
		return fmt.Errorf("%d frames saved, want %d", len(saved), n)
	}
	return nil
}

func (w *World) framesAreSaved() error {
	w.Params.SaveFrames = true
	w.Params.FrameDir = filepath.Join(w.TempDir, "saved")
	return nil
}

// RegisterPipelineSteps registers the detection run steps.
func (w *World) RegisterPipelineSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a recording of (\d+) frames showing "([^"]*)"$`, w.aRecordingShowing)
	sc.Step(`^the recording then shows "([^"]*)" for (\d+) frames$`, w.theRecordingThenShows)
	sc.Step(`^the recording runs at (\d+) frames per second$`, w.theRecordingRunsAtFPS)
	sc.Step(`^replay skips the first "([^"]*)"$`, w.replaySkips)
	sc.Step(`^the display region is not set$`, w.theRegionIsUnset)
	sc.Step(`^runs are recorded$`, w.runsAreRecorded)
	sc.Step(`^frames are saved$`, w.framesAreSaved)
	sc.Step(`^I replay it sampling (\d+) frames? every "([^"]*)"$`, w.iReplayItSampling)
	sc.Step(`^I run it live sampling (\d+) frames? every "([^"]*)"$`, w.iRunItLiveSampling)
	sc.Step(`^the run ends as "([^"]*)"$`, w.theRunEndsAs)
	sc.Step(`^there (?:is|are) (\d+) readings?$`, w.thereAreReadings)
	sc.Step(`^reading (\d+) is (\d+) at "([^"]*)"$`, w.readingIsAt)
	sc.Step(`^reading (\d+) has a failed rate of ([0-9.]+)$`, w.readingFailedRateIs)
	sc.Step(`^reading (\d+) has no value$`, w.readingHasNoValue)
	sc.Step(`^the recorded run is "([^"]*)" with (\d+) results$`, w.theRecordedRunHas)
	sc.Step(`^(\d+) frames have been saved$`, w.theSavedFramesAre)
}
