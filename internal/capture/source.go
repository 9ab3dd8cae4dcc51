// Package capture provides frame sources for the detection pipeline and a
// sink for persisting frames.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"strings"
	"time"
)

var (
	// ErrNoFrame means no frame was available this time; the caller may retry.
	ErrNoFrame = errors.New("capture: no frame available")
	// ErrBackendUnavailable means the device backend was not compiled in.
	ErrBackendUnavailable = errors.New("capture: device backend not available in this build (build with -tags capture_gocv)")
)

// Source yields frames on request. A finite source returns io.EOF once
// exhausted.
type Source interface {
	Capture(ctx context.Context) (image.Image, error)
	// ConfigureSize requests a resolution and reports the one in effect.
	ConfigureSize(width, height int) (int, int, error)
	Close() error
}

// Skipper is implemented by sources that can drop a frame without decoding it.
type Skipper interface {
	Skip() error
}

// FPSReporter is implemented by sources that know their native frame rate.
type FPSReporter interface {
	FPS() float64
}

// Options configures Open.
type Options struct {
	Width   int
	Height  int
	Timeout time.Duration
	// Settle is the quiet period before a watched frame file is read.
	Settle  time.Duration
	Include []string
	Exclude []string
}

// WatchPrefix selects a directory watch source in Open.
const WatchPrefix = "watch:"

// Open resolves a source reference: "watch:<dir>" watches a directory for
// new frames, an existing directory replays its frames in order, anything
// else is handed to the device backend (camera index or video file).
func Open(ref string, opts Options) (Source, error) {
	if ref == "" {
		return nil, errors.New("capture: empty source reference")
	}
	var (
		src Source
		err error
	)
	switch {
	case strings.HasPrefix(ref, WatchPrefix):
		src, err = NewWatchSource(strings.TrimPrefix(ref, WatchPrefix), opts)
	case isDir(ref):
		src, err = NewSequenceSource(ref, opts)
	default:
		src, err = openDevice(ref, opts)
	}
	if err != nil {
		return nil, err
	}

	if opts.Width > 0 && opts.Height > 0 {
		if _, _, err := src.ConfigureSize(opts.Width, opts.Height); err != nil {
			_ = src.Close()
			return nil, fmt.Errorf("configure size: %w", err)
		}
	}
	return src, nil
}

func isDir(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}
