package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"
)

// Group is the frames of one sampling interval of a recording.
type Group struct {
	Index   int
	Offset  time.Duration
	Frames  []image.Image
	Skipped int
}

// GroupOptions controls how a recording is partitioned.
type GroupOptions struct {
	FPS             float64
	Interval        time.Duration
	FramesPerSample int
	Skip            time.Duration
}

func (o GroupOptions) validate() error {
	if o.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %g", o.FPS)
	}
	if o.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", o.Interval)
	}
	if o.FramesPerSample <= 0 {
		return fmt.Errorf("frames per sample must be positive, got %d", o.FramesPerSample)
	}
	if o.Skip < 0 {
		return fmt.Errorf("skip must not be negative, got %s", o.Skip)
	}
	return nil
}

// Grouper partitions a finite source into consecutive sampling intervals.
// Frames before the skip offset are dropped; of each interval only the
// first FramesPerSample frames are decoded.
type Grouper struct {
	src   Source
	opts  GroupOptions
	frame int
	group int
	done  bool
}

// NewGrouper wraps a finite source.
func NewGrouper(src Source, opts GroupOptions) (*Grouper, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Grouper{src: src, opts: opts}, nil
}

// frameTime is the recording position of frame i.
func (g *Grouper) frameTime(i int) time.Duration {
	return time.Duration(float64(i) * float64(time.Second) / g.opts.FPS)
}

// Next returns the next interval, or io.EOF once the source is exhausted.
func (g *Grouper) Next(ctx context.Context) (Group, error) {
	if g.done {
		return Group{}, io.EOF
	}
	out := Group{Index: g.group, Offset: g.opts.Skip + time.Duration(g.group)*g.opts.Interval}
	consumed := 0

	for {
		if err := ctx.Err(); err != nil {
			return Group{}, err
		}
		t := g.frameTime(g.frame)
		inInterval := t >= g.opts.Skip
		if inInterval && int((t-g.opts.Skip)/g.opts.Interval) > g.group {
			break
		}

		var err error
		if inInterval && len(out.Frames) < g.opts.FramesPerSample {
			var img image.Image
			img, err = g.src.Capture(ctx)
			switch {
			case err == nil:
				out.Frames = append(out.Frames, img)
			case errors.Is(err, ErrNoFrame):
				out.Skipped++
				err = nil
			}
		} else {
			err = g.skip(ctx)
		}
		if errors.Is(err, io.EOF) {
			g.done = true
			if consumed == 0 {
				return Group{}, io.EOF
			}
			break
		}
		if err != nil {
			return Group{}, err
		}
		g.frame++
		if inInterval {
			consumed++
		}
	}

	g.group++
	return out, nil
}

func (g *Grouper) skip(ctx context.Context) error {
	if s, ok := g.src.(Skipper); ok {
		return s.Skip()
	}
	_, err := g.src.Capture(ctx)
	if errors.Is(err, ErrNoFrame) {
		return nil
	}
	return err
}
