package threshold

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
)

const (
	On  uint8 = 255
	Off uint8 = 0
)

// Binarize converts img to a binary image. Pixels darker than t become On,
// everything else Off, which turns dark segments on a light panel into
// foreground.
func Binarize(img image.Image, t int) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for i, v := range Intensities(img) {
		if int(v) < t {
			out.Pix[i] = On
		} else {
			out.Pix[i] = Off
		}
	}
	return out
}

// Thresholder binarizes strips with either a fixed threshold or a per-strip
// estimate. The fixed threshold may be changed concurrently with Apply; a
// change is seen by the next Apply call.
type Thresholder struct {
	est Estimator

	mu       sync.RWMutex
	fixed    *int
	lastGood *int
}

// New creates a Thresholder. A nil fixed value selects estimation.
func New(fixed *int, est Estimator) *Thresholder {
	t := &Thresholder{est: est}
	t.Set(fixed)
	return t
}

// Set replaces the fixed threshold; nil switches to estimation.
func (t *Thresholder) Set(fixed *int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fixed == nil {
		t.fixed = nil
		return
	}
	v := *fixed
	t.fixed = &v
}

// Reset forgets the last estimated threshold so a new session cannot fall
// back to a value from an earlier one.
func (t *Thresholder) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastGood = nil
}

// Fixed returns a copy of the fixed threshold, or nil in estimation mode.
func (t *Thresholder) Fixed() *int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.fixed == nil {
		return nil
	}
	v := *t.fixed
	return &v
}

// Apply binarizes img and reports the threshold used. When estimation fails
// the last successfully estimated threshold is reused; if there is none the
// estimation error is returned.
func (t *Thresholder) Apply(img image.Image) (*image.Gray, int, error) {
	if img == nil {
		return nil, 0, fmt.Errorf("threshold: nil image")
	}
	if fixed := t.Fixed(); fixed != nil {
		return Binarize(img, *fixed), *fixed, nil
	}

	v, err := t.est.Estimate(img)
	t.mu.Lock()
	if err == nil {
		t.lastGood = &v
	} else if t.lastGood != nil {
		slog.Warn("threshold estimation failed, reusing last threshold", "threshold", *t.lastGood, "error", err)
		v, err = *t.lastGood, nil
	}
	t.mu.Unlock()
	if err != nil {
		return nil, 0, err
	}
	return Binarize(img, v), v, nil
}
