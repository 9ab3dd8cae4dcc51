package region

import (
	"image"
	"image/color"
	"log/slog"

	"github.com/disintegration/imaging"
)

// Extractor crops the display quadrilateral out of a frame into a strip of
// DigitCount*CropWidth x CropHeight pixels.
type Extractor struct {
	DigitCount int
	CropWidth  int
	CropHeight int
}

// DefaultExtractor returns the extractor used when nothing is configured.
func DefaultExtractor(digitCount int) Extractor {
	return Extractor{DigitCount: digitCount, CropWidth: 100, CropHeight: 100}
}

// StripSize reports the output dimensions.
func (e Extractor) StripSize() (int, int) {
	return e.DigitCount * e.CropWidth, e.CropHeight
}

// Crop warps the region bounded by pts into the output strip. It returns nil
// when pts does not hold exactly four points, when the output size is empty,
// or when the points are collinear.
func (e Extractor) Crop(frame image.Image, pts []Point) *image.NRGBA {
	if frame == nil {
		return nil
	}
	q, ok := OrderPoints(pts)
	if !ok {
		return nil
	}
	w, h := e.StripSize()
	if w <= 0 || h <= 0 {
		return nil
	}

	dst := [4]vec2{{0, 0}, {float64(w - 1), 0}, {float64(w - 1), float64(h - 1)}, {0, float64(h - 1)}}
	var src [4]vec2
	for i, p := range q {
		src[i] = vec2{float64(p.X), float64(p.Y)}
	}
	H, err := perspectiveTransform(dst, src)
	if err != nil {
		slog.Debug("region crop skipped", "points", q.String(), "error", err)
		return nil
	}

	in := imaging.Clone(frame)
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			sx, sy := H.apply(float64(x), float64(y))
			out.SetNRGBA(x, y, sampleBilinear(in, sx, sy))
		}
	}
	return out
}

// sampleBilinear reads src at a fractional position. Positions outside the
// frame sample black.
func sampleBilinear(src *image.NRGBA, x, y float64) color.NRGBA {
	b := src.Bounds()
	maxX, maxY := float64(b.Dx()-1), float64(b.Dy()-1)
	if x < 0 || y < 0 || x > maxX || y > maxY {
		return color.NRGBA{A: 255}
	}
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, b.Dx()-1), min(y0+1, b.Dy()-1)
	fx, fy := x-float64(x0), y-float64(y0)

	px := func(xx, yy int) []uint8 {
		i := yy*src.Stride + xx*4
		return src.Pix[i : i+4]
	}
	c00, c10, c01, c11 := px(x0, y0), px(x1, y0), px(x0, y1), px(x1, y1)

	var out [4]uint8
	for c := range 4 {
		top := lerp(float64(c00[c]), float64(c10[c]), fx)
		bot := lerp(float64(c01[c]), float64(c11[c]), fx)
		out[c] = uint8(lerp(top, bot, fy) + 0.5)
	}
	return color.NRGBA{R: out[0], G: out[1], B: out[2], A: out[3]}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
