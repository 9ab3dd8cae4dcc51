package capture

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
)

// FrameNameFormat names persisted frames.
const FrameNameFormat = "%06d.png"

// FrameSink writes frames into a directory under sequential, zero-padded names.
type FrameSink struct {
	dir string

	mu   sync.Mutex
	next int
}

// NewFrameSink creates the directory if needed.
func NewFrameSink(dir string) (*FrameSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("frame sink: empty directory")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create frame directory: %w", err)
	}
	return &FrameSink{dir: dir}, nil
}

// Dir returns the target directory.
func (s *FrameSink) Dir() string { return s.dir }

// Save writes img as the next frame and returns its path.
func (s *FrameSink) Save(img image.Image) (string, error) {
	s.mu.Lock()
	n := s.next
	s.next++
	s.mu.Unlock()

	p := filepath.Join(s.dir, fmt.Sprintf(FrameNameFormat, n))
	if err := imaging.Save(img, p); err != nil {
		return "", fmt.Errorf("save frame %d: %w", n, err)
	}
	return p, nil
}

// Clear removes the frame files directly inside the directory and restarts
// numbering. Subdirectories and other files are left alone.
func (s *FrameSink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read frame directory: %w", err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() || !IsFrameFile(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			return fmt.Errorf("clear frame directory: %w", err)
		}
	}
	s.next = 0
	return nil
}
