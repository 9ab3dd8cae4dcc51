package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/MeKo-Tech/sevseg/internal/capture"
)

// PreviewFrame is one frame of the preview feed. Strip is nil when the
// region does not have four points yet.
type PreviewFrame struct {
	Index int
	Frame image.Image
	Strip *image.NRGBA
}

// ErrStopPreview can be returned by a preview callback to end the feed
// without an error.
var ErrStopPreview = errors.New("stop preview")

// Preview forwards frames from the source to fn without classifying them.
// It holds the source exclusively, so it fails with ErrBusy while a
// detection run is active and vice versa. It returns when ctx ends, the
// source is exhausted, or fn returns an error.
func (c *Controller) Preview(ctx context.Context, fn func(PreviewFrame) error) error {
	if !c.active.TryLock() {
		return ErrBusy
	}
	defer c.active.Unlock()

	src, err := c.openSource()
	if err != nil {
		return fmt.Errorf("open frame source: %w", err)
	}
	defer closeSource(src)

	for index := 0; ; {
		img, err := src.Capture(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, capture.ErrNoFrame):
			continue
		case err != nil:
			return fmt.Errorf("capture preview frame: %w", err)
		}

		pf := PreviewFrame{Index: index, Frame: img}
		if len(c.params.Points) == 4 {
			pf.Strip = c.extractor.Crop(img, c.params.Points)
		}
		if err := fn(pf); err != nil {
			if errors.Is(err, ErrStopPreview) {
				return nil
			}
			return err
		}
		index++
	}
}
