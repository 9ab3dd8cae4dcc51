package capture

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchTimeout bounds how long Capture waits for a new frame file.
const DefaultWatchTimeout = 2 * time.Second

// DefaultWatchSettle is how long a frame file must go without further
// writes before it is handed out.
const DefaultWatchSettle = 200 * time.Millisecond

const watchQueueSize = 64

// WatchSource yields frames written into a directory by an external grabber,
// for example `ffmpeg -i /dev/video0 -r 10 frames/%06d.png`. Each newly
// created frame file is one frame. Files written in place are picked up
// once they have stopped changing for the settle window.
type WatchSource struct {
	dir     string
	timeout time.Duration
	settle  time.Duration
	opts    Options

	watcher *fsnotify.Watcher
	queue   chan string
	done    chan struct{}
	wg      sync.WaitGroup

	mu        sync.Mutex
	width     int
	height    int
	closeOnce sync.Once
}

// NewWatchSource starts watching dir.
func NewWatchSource(dir string, opts Options) (*WatchSource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultWatchTimeout
	}
	settle := opts.Settle
	if settle <= 0 {
		settle = DefaultWatchSettle
	}
	s := &WatchSource{
		dir:     dir,
		timeout: timeout,
		settle:  settle,
		opts:    opts,
		watcher: w,
		queue:   make(chan string, watchQueueSize),
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()
	slog.Info("watching frame directory", "dir", dir, "timeout", timeout)
	return s, nil
}

func (s *WatchSource) loop() {
	defer s.wg.Done()

	pending := make(map[string]time.Time)
	tick := s.settle / 4
	if tick < 5*time.Millisecond {
		tick = 5 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				delete(pending, ev.Name)
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !IsFrameFile(ev.Name) || !shouldInclude(ev.Name, s.opts.Include, s.opts.Exclude) {
				continue
			}
			pending[ev.Name] = time.Now()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("frame watcher error", "dir", s.dir, "error", err)
		case now := <-ticker.C:
			for _, p := range settled(pending, now, s.settle) {
				delete(pending, p)
				s.enqueue(p)
			}
		}
	}
}

// settled returns the pending paths without events for at least window, in
// frame order.
func settled(pending map[string]time.Time, now time.Time, window time.Duration) []string {
	var out []string
	for p, last := range pending {
		if now.Sub(last) >= window {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b string) int {
		switch {
		case naturalLess(a, b):
			return -1
		case naturalLess(b, a):
			return 1
		}
		return 0
	})
	return out
}

// enqueue keeps the newest frames when the consumer falls behind.
func (s *WatchSource) enqueue(p string) {
	for {
		select {
		case s.queue <- p:
			return
		default:
		}
		select {
		case dropped := <-s.queue:
			slog.Debug("dropping stale frame", "path", dropped)
		default:
		}
	}
}

// Capture waits for the next frame file. It returns ErrNoFrame when none
// arrives within the timeout or the file cannot be decoded.
func (s *WatchSource) Capture(ctx context.Context) (image.Image, error) {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, fmt.Errorf("%w: source closed", ErrNoFrame)
	case <-timer.C:
		return nil, fmt.Errorf("%w: no new frame within %s", ErrNoFrame, s.timeout)
	case p := <-s.queue:
		img, err := LoadFrame(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoFrame, err)
		}
		b := img.Bounds()
		s.mu.Lock()
		s.width, s.height = b.Dx(), b.Dy()
		s.mu.Unlock()
		return img, nil
	}
}

// ConfigureSize reports the size of the last frame; the external grabber
// owns the resolution.
func (s *WatchSource) ConfigureSize(width, height int) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.width == 0 {
		return width, height, nil
	}
	return s.width, s.height, nil
}

// Close stops the watcher.
func (s *WatchSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.watcher.Close()
		s.wg.Wait()
	})
	return err
}
