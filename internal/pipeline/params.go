package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/sevseg/internal/region"
)

// Mode selects live sampling or replay of a recording.
type Mode string

const (
	ModeLive   Mode = "live"
	ModeReplay Mode = "replay"
)

// Params is everything one detection run needs.
type Params struct {
	DigitCount      int
	Interval        time.Duration
	FramesPerSample int
	// Duration bounds a live run; zero runs until cancelled.
	Duration time.Duration
	// Skip is the replay start offset into the recording.
	Skip time.Duration
	// FPS of the recording in replay mode; zero asks the source.
	FPS    float64
	Points []region.Point
	// Threshold fixes the binarization cut-off; nil estimates it per strip.
	Threshold  *int
	CropWidth  int
	CropHeight int
	SaveFrames bool
	FrameDir   string
	// Source is the capture reference handed to capture.Open.
	Source string
}

// DefaultParams returns a 4-digit, 1 frame-per-second live configuration.
func DefaultParams() Params {
	return Params{
		DigitCount:      4,
		Interval:        time.Second,
		FramesPerSample: 5,
		CropWidth:       100,
		CropHeight:      100,
		FrameDir:        "frames",
	}
}

// Validate checks the parameters. A region with other than four points is
// not an error here; it yields failed results at crop time.
func (p Params) Validate() error {
	var errs []error
	if p.DigitCount <= 0 {
		errs = append(errs, fmt.Errorf("digit count must be positive, got %d", p.DigitCount))
	}
	if p.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %s", p.Interval))
	}
	if p.FramesPerSample <= 0 {
		errs = append(errs, fmt.Errorf("frames per sample must be positive, got %d", p.FramesPerSample))
	}
	if p.Duration < 0 || p.Skip < 0 {
		errs = append(errs, errors.New("duration and skip must not be negative"))
	}
	if p.FPS < 0 {
		errs = append(errs, fmt.Errorf("fps must not be negative, got %g", p.FPS))
	}
	if p.CropWidth <= 0 || p.CropHeight <= 0 {
		errs = append(errs, fmt.Errorf("crop size must be positive, got %dx%d", p.CropWidth, p.CropHeight))
	}
	if p.Threshold != nil && (*p.Threshold < 0 || *p.Threshold > 255) {
		errs = append(errs, fmt.Errorf("threshold must be within 0..255, got %d", *p.Threshold))
	}
	if p.SaveFrames && p.FrameDir == "" {
		errs = append(errs, errors.New("frame directory required when saving frames"))
	}
	return errors.Join(errs...)
}

// Extractor returns the region extractor for these parameters.
func (p Params) Extractor() region.Extractor {
	return region.Extractor{DigitCount: p.DigitCount, CropWidth: p.CropWidth, CropHeight: p.CropHeight}
}
