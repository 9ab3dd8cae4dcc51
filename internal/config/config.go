package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/sevseg/internal/capture"
	"github.com/MeKo-Tech/sevseg/internal/classifier"
	"github.com/MeKo-Tech/sevseg/internal/models"
	"github.com/MeKo-Tech/sevseg/internal/pipeline"
	"github.com/MeKo-Tech/sevseg/internal/region"
	"github.com/MeKo-Tech/sevseg/internal/server"
	"github.com/MeKo-Tech/sevseg/internal/threshold"
)

// ThresholdAuto selects per-strip threshold estimation.
const ThresholdAuto = "auto"

var validLogLevels = []string{"debug", "info", "warn", "error"}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	p := pipeline.DefaultParams()
	clf := classifier.DefaultConfig()
	clf.ModelsDir = models.GetModelsDir("")
	return Config{
		ModelsDir: clf.ModelsDir,
		LogLevel:  "info",
		Display: DisplayConfig{
			DigitCount: p.DigitCount,
			CropWidth:  p.CropWidth,
			CropHeight: p.CropHeight,
		},
		Capture: CaptureConfig{
			Source:          "0",
			Interval:        p.Interval,
			FramesPerSample: p.FramesPerSample,
			Timeout:         capture.DefaultWatchTimeout,
			Settle:          capture.DefaultWatchSettle,
			FrameDir:        p.FrameDir,
		},
		Threshold: ThresholdConfig{
			Value:         ThresholdAuto,
			Init:          threshold.InitMedian.String(),
			MaxIterations: threshold.DefaultMaxIterations,
			Epsilon:       threshold.DefaultEpsilon,
		},
		Classifier: clf,
		Store:      StoreConfig{Enabled: true, Path: "sevseg.db"},
		Server:     server.DefaultConfig(),
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if !contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Errorf("invalid log level %q (valid: %s)", c.LogLevel, strings.Join(validLogLevels, ", ")))
	}
	if _, err := c.Points(); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseThreshold(c.Threshold.Value); err != nil {
		errs = append(errs, err)
	}
	if _, ok := threshold.ParseInitMethod(c.Threshold.Init); !ok {
		errs = append(errs, fmt.Errorf("invalid threshold init %q (valid: median, random)", c.Threshold.Init))
	}
	if c.Threshold.MaxIterations <= 0 || c.Threshold.Epsilon <= 0 {
		errs = append(errs, errors.New("threshold max_iterations and epsilon must be positive"))
	}
	if c.Capture.Timeout < 0 || c.Capture.Settle < 0 {
		errs = append(errs, errors.New("capture timeout and settle must not be negative"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port %d", c.Server.Port))
	}
	if c.Store.Enabled && c.Store.Path == "" {
		errs = append(errs, errors.New("store path required when the store is enabled"))
	}
	if err := c.classifierConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.params().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Points parses the configured region corners; an empty value is no region.
func (c *Config) Points() ([]region.Point, error) {
	if strings.TrimSpace(c.Display.Points) == "" {
		return nil, nil
	}
	pts, err := region.ParsePoints(c.Display.Points)
	if err != nil {
		return nil, fmt.Errorf("invalid display points: %w", err)
	}
	if len(pts) > 4 {
		return nil, fmt.Errorf("invalid display points: need at most 4, got %d", len(pts))
	}
	return pts, nil
}

// ParseThreshold parses "auto" (nil) or a fixed threshold in 0..255.
func ParseThreshold(s string) (*int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == ThresholdAuto {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || v > 255 {
		return nil, fmt.Errorf("invalid threshold %q: want %q or 0..255", s, ThresholdAuto)
	}
	return &v, nil
}

// ToParams converts the configuration to pipeline parameters. Invalid
// points and thresholds are reported by Validate; here they are dropped.
func (c *Config) ToParams() pipeline.Params {
	return c.params()
}

func (c *Config) params() pipeline.Params {
	p := pipeline.DefaultParams()
	p.DigitCount = c.Display.DigitCount
	p.CropWidth = c.Display.CropWidth
	p.CropHeight = c.Display.CropHeight
	p.Points, _ = c.Points()
	p.Interval = c.Capture.Interval
	p.FramesPerSample = c.Capture.FramesPerSample
	p.Duration = c.Capture.Duration
	p.SaveFrames = c.Capture.SaveFrames
	p.FrameDir = c.Capture.FrameDir
	p.Source = c.Capture.Source
	p.FPS = c.Replay.FPS
	p.Skip = c.Replay.Skip
	p.Threshold, _ = ParseThreshold(c.Threshold.Value)
	return p
}

// ToClassifierConfig returns the classifier configuration with the models
// directory and digit count filled in from the top level.
func (c *Config) ToClassifierConfig() classifier.Config {
	return c.classifierConfig()
}

func (c *Config) classifierConfig() classifier.Config {
	clf := c.Classifier
	if clf.ModelsDir == "" {
		clf.ModelsDir = c.ModelsDir
	}
	clf.DigitCount = c.Display.DigitCount
	return clf
}

// ToEstimator returns the threshold estimator settings.
func (c *Config) ToEstimator() threshold.Estimator {
	method, _ := threshold.ParseInitMethod(c.Threshold.Init)
	return threshold.Estimator{
		MaxIterations: c.Threshold.MaxIterations,
		Epsilon:       c.Threshold.Epsilon,
		Init:          method,
		Seed:          c.Threshold.Seed,
	}
}

// ToCaptureOptions returns the frame source options.
func (c *Config) ToCaptureOptions() capture.Options {
	return capture.Options{
		Width:   c.Capture.Width,
		Height:  c.Capture.Height,
		Timeout: c.Capture.Timeout,
		Settle:  c.Capture.Settle,
	}
}

// ShutdownTimeout returns the server shutdown grace period.
func (c *Config) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return c.Server.ShutdownTimeout
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
