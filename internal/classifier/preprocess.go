package classifier

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/sevseg/internal/mempool"
	"github.com/MeKo-Tech/sevseg/internal/onnx"
)

// SplitDigits cuts the strip into n equal-width crops, left to right.
func SplitDigits(strip image.Image, n int) ([]*image.NRGBA, error) {
	if strip == nil {
		return nil, fmt.Errorf("nil strip")
	}
	if n <= 0 {
		return nil, fmt.Errorf("digit count must be positive, got %d", n)
	}
	b := strip.Bounds()
	if b.Dx() < n || b.Dy() == 0 {
		return nil, fmt.Errorf("strip %dx%d too small for %d digits", b.Dx(), b.Dy(), n)
	}
	out := make([]*image.NRGBA, n)
	for i := range n {
		x0 := b.Min.X + i*b.Dx()/n
		x1 := b.Min.X + (i+1)*b.Dx()/n
		out[i] = imaging.Crop(strip, image.Rect(x0, b.Min.Y, x1, b.Max.Y))
	}
	return out, nil
}

// Normalize resizes a digit crop to w x h and returns c channels of
// intensities scaled to [0, 1] in CHW order.
func Normalize(digit image.Image, w, h, c int) []float32 {
	out := make([]float32, w*h*c)
	normalizeInto(out, digit, w, h, c)
	return out
}

func normalizeInto(dst []float32, digit image.Image, w, h, c int) {
	resized := imaging.Resize(digit, w, h, imaging.Lanczos)
	gray := imaging.Grayscale(resized)
	plane := w * h
	for i := range plane {
		v := float32(gray.Pix[i*4]) / 255.0
		for ch := range c {
			dst[ch*plane+i] = v
		}
	}
}

// Preprocess splits the strip and batches the normalized digits as one
// [digitCount, c, h, w] tensor. The tensor data comes from mempool; call
// Release once the inference run no longer references it.
func Preprocess(strip image.Image, digitCount, w, h, c int) (onnx.Tensor, error) {
	shape := []int64{int64(digitCount), int64(c), int64(h), int64(w)}
	if err := onnx.ValidateNCHW(shape); err != nil {
		return onnx.Tensor{}, fmt.Errorf("invalid input shape: %w", err)
	}
	digits, err := SplitDigits(strip, digitCount)
	if err != nil {
		return onnx.Tensor{}, err
	}
	per := c * h * w
	data := mempool.GetFloat32(per * len(digits))
	for i, d := range digits {
		normalizeInto(data[i*per:(i+1)*per], d, w, h, c)
	}
	return onnx.Tensor{Data: data, Shape: shape}, nil
}

// Release returns a tensor built by Preprocess to the buffer pool.
func Release(t onnx.Tensor) {
	mempool.PutFloat32(t.Data)
}
