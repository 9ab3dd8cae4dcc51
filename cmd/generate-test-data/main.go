// Command generate-test-data renders synthetic seven-segment recordings: a
// directory of PNG frames, a sevseg.yaml that points replay at them, and a
// fixture listing the values each sampling interval should read.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/sevseg/internal/config"
	"github.com/MeKo-Tech/sevseg/internal/region"
	"github.com/MeKo-Tech/sevseg/internal/testutil"
)

// Fixture describes a generated recording.
type Fixture struct {
	Name     string        `json:"name"`
	Frames   int           `json:"frames"`
	FPS      float64       `json:"fps"`
	Interval time.Duration `json:"interval"`
	Points   string        `json:"points"`
	Expected []int         `json:"expected"`
}

type options struct {
	out      string
	name     string
	start    int
	step     int
	digits   int
	fps      float64
	interval time.Duration
	samples  int
	noise    int
	seed     uint64
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	var o options
	flag.StringVar(&o.out, "out", "testdata/recordings", "Output root directory")
	flag.StringVar(&o.name, "name", "counter", "Recording name")
	flag.IntVar(&o.start, "start", 1200, "First displayed value")
	flag.IntVar(&o.step, "step", 7, "Increment per interval")
	flag.IntVar(&o.digits, "digits", 4, "Digit positions on the display")
	flag.Float64Var(&o.fps, "fps", 4, "Frames per second of the recording")
	flag.DurationVar(&o.interval, "interval", time.Second, "Time between value changes")
	flag.IntVar(&o.samples, "samples", 5, "Number of intervals to render")
	flag.IntVar(&o.noise, "noise", 12, "Maximum per-pixel noise amplitude")
	flag.Uint64Var(&o.seed, "seed", 1, "Noise seed")
	help := flag.Bool("h", false, "Show help")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Render a synthetic seven-segment recording for replay tests.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -name slow -fps 2 -samples 10 -noise 0\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  sevseg replay testdata/recordings/counter/frames --config testdata/recordings/counter/sevseg.yaml\n")
	}
	flag.Parse()
	if *help {
		flag.Usage()
		return
	}

	fixture, err := generate(o)
	if err != nil {
		slog.Error("Failed to generate recording", "error", err)
		os.Exit(1)
	}
	slog.Info("Generated recording", "name", fixture.Name, "frames", fixture.Frames, "expected", fixture.Expected)
}

func generate(o options) (*Fixture, error) {
	if o.fps <= 0 || o.interval <= 0 || o.samples <= 0 || o.digits <= 0 {
		return nil, fmt.Errorf("fps, interval, samples and digits must be positive")
	}
	dir := filepath.Join(o.out, o.name)
	frameDir := filepath.Join(dir, "frames")
	if err := os.MkdirAll(frameDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", frameDir, err)
	}

	display := testutil.DefaultDisplayConfig()
	offset := image.Pt(40, 60)
	width := display.DigitWidth*o.digits + 2*offset.X
	height := display.DigitHeight + 2*offset.Y
	perInterval := int(o.fps * o.interval.Seconds())
	if perInterval < 1 {
		perInterval = 1
	}

	rng := rand.New(rand.NewPCG(o.seed, o.seed^0x5eb5e9))
	fixture := &Fixture{Name: o.name, FPS: o.fps, Interval: o.interval}
	modulo := 1
	for range o.digits {
		modulo *= 10
	}

	var corners [4]image.Point
	for s := range o.samples {
		value := (o.start + s*o.step) % modulo
		text := fmt.Sprintf("%*d", o.digits, value)
		fixture.Expected = append(fixture.Expected, value)
		for range perInterval {
			frame, c := testutil.Frame(text, width, height, offset, display)
			corners = c
			addNoise(frame, rng, o.noise)
			path := filepath.Join(frameDir, fmt.Sprintf("%06d.png", fixture.Frames))
			if err := imaging.Save(frame, path); err != nil {
				return nil, fmt.Errorf("failed to save %s: %w", path, err)
			}
			fixture.Frames++
		}
	}

	pts := make([]region.Point, len(corners))
	for i, c := range corners {
		pts[i] = region.Point{X: c.X, Y: c.Y}
	}
	fixture.Points = region.FormatPoints(pts)

	if err := writeConfig(filepath.Join(dir, "sevseg.yaml"), o, fixture.Points); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, "fixture.json"), data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write fixture: %w", err)
	}
	return fixture, nil
}

func writeConfig(path string, o options, points string) error {
	cfg := config.DefaultConfig()
	cfg.Display.DigitCount = o.digits
	cfg.Display.Points = points
	cfg.Capture.Interval = o.interval
	cfg.Replay.FPS = o.fps
	f, err := os.Create(path) //nolint:gosec // G304: output path is chosen by the operator
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	if err := config.WriteYAML(f, &cfg); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func addNoise(img *image.Gray, rng *rand.Rand, amplitude int) {
	if amplitude <= 0 {
		return
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := int(img.GrayAt(x, y).Y) + rng.IntN(2*amplitude+1) - amplitude
			img.SetGray(x, y, color.Gray{Y: uint8(min(max(v, 0), 255))})
		}
	}
}
