package testutil

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/MeKo-Tech/sevseg/internal/classifier"
)

// ErrUnknownPattern is returned when a digit cell lights a segment
// combination that is not a digit.
var ErrUnknownPattern = errors.New("unknown segment pattern")

// SegmentClassifier reads binarized strips of displays drawn by
// RenderDisplay by probing the centre of each segment. It needs no model,
// which makes end-to-end runs deterministic.
type SegmentClassifier struct {
	DigitCount int
	Display    DisplayConfig

	centers [7][2]float64
	digits  map[uint8]int
}

var _ classifier.Classifier = (*SegmentClassifier)(nil)

// NewSegmentClassifier decodes digitCount positions drawn with cfg.
func NewSegmentClassifier(digitCount int, cfg DisplayConfig) *SegmentClassifier {
	return &SegmentClassifier{DigitCount: digitCount, Display: cfg}
}

func (s *SegmentClassifier) Name() string { return "segments" }

func (s *SegmentClassifier) Load() error {
	if s.DigitCount <= 0 {
		return fmt.Errorf("digit count must be positive, got %d", s.DigitCount)
	}
	w, h := float64(s.Display.DigitWidth), float64(s.Display.DigitHeight)
	for i, r := range segmentRects(0, s.Display) {
		s.centers[i] = [2]float64{
			float64(r.Min.X+r.Max.X) / 2 / w,
			float64(r.Min.Y+r.Max.Y) / 2 / h,
		}
	}
	s.digits = make(map[uint8]int, len(segments))
	for r, mask := range segments {
		if r >= '0' && r <= '9' {
			s.digits[mask] = int(r - '0')
		}
	}
	return nil
}

func (s *SegmentClassifier) Classify(strip image.Image) ([]int, error) {
	if s.digits == nil {
		return nil, classifier.ErrNotLoaded
	}
	b := strip.Bounds()
	cell := float64(b.Dx()) / float64(s.DigitCount)
	out := make([]int, s.DigitCount)
	for d := range s.DigitCount {
		var mask uint8
		for seg, p := range s.centers {
			x := b.Min.X + int(float64(d)*cell+p[0]*cell)
			y := b.Min.Y + int(p[1]*float64(b.Dy()))
			if color.GrayModel.Convert(strip.At(x, y)).(color.Gray).Y > 127 {
				mask |= 1 << seg
			}
		}
		if mask == 0 {
			out[d] = classifier.Blank
			continue
		}
		v, ok := s.digits[mask]
		if !ok {
			return nil, fmt.Errorf("%w %07b at position %d", ErrUnknownPattern, mask, d)
		}
		out[d] = v
	}
	return out, nil
}

func (s *SegmentClassifier) Close() error { return nil }
