package capture

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
)

// SequenceSource replays frame files from a directory in natural order.
type SequenceSource struct {
	mu     sync.Mutex
	paths  []string
	next   int
	width  int
	height int
	closed bool
}

// NewSequenceSource lists the frames in dir.
func NewSequenceSource(dir string, opts Options) (*SequenceSource, error) {
	paths, err := DiscoverFrames(dir, opts.Include, opts.Exclude)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no frames found in %s", dir)
	}
	slog.Debug("frame sequence opened", "dir", dir, "frames", len(paths))
	return &SequenceSource{paths: paths}, nil
}

// NewSequenceSourceFromPaths replays an explicit list of frame files.
func NewSequenceSourceFromPaths(paths []string) *SequenceSource {
	return &SequenceSource{paths: append([]string(nil), paths...)}
}

// Len reports the total number of frames.
func (s *SequenceSource) Len() int { return len(s.paths) }

// Capture decodes the next frame. An undecodable file is reported as
// ErrNoFrame and skipped.
func (s *SequenceSource) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.closed || s.next >= len(s.paths) {
		s.mu.Unlock()
		return nil, io.EOF
	}
	p := s.paths[s.next]
	s.next++
	s.mu.Unlock()

	img, err := LoadFrame(p)
	if err != nil {
		slog.Warn("skipping unreadable frame", "path", p, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	s.mu.Lock()
	if s.width == 0 {
		b := img.Bounds()
		s.width, s.height = b.Dx(), b.Dy()
	}
	s.mu.Unlock()
	return img, nil
}

// Skip advances past the next frame without decoding it.
func (s *SequenceSource) Skip() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.next >= len(s.paths) {
		return io.EOF
	}
	s.next++
	return nil
}

// ConfigureSize cannot rescale recorded frames; it reports their size.
func (s *SequenceSource) ConfigureSize(_, _ int) (int, int, error) {
	s.mu.Lock()
	w, h := s.width, s.height
	s.mu.Unlock()
	if w > 0 {
		return w, h, nil
	}
	if len(s.paths) == 0 {
		return 0, 0, nil
	}
	img, err := LoadFrame(s.paths[0])
	if err != nil {
		return 0, 0, err
	}
	b := img.Bounds()
	s.mu.Lock()
	s.width, s.height = b.Dx(), b.Dy()
	s.mu.Unlock()
	return b.Dx(), b.Dy(), nil
}

// Close stops the sequence.
func (s *SequenceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
