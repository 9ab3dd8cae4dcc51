// Package testutil renders synthetic seven-segment displays for tests.
package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// Segment bit order: a (top), b (top right), c (bottom right), d (bottom),
// e (bottom left), f (top left), g (middle).
var segments = map[rune]uint8{
	'0': 0b0111111,
	'1': 0b0000110,
	'2': 0b1011011,
	'3': 0b1001111,
	'4': 0b1100110,
	'5': 0b1101101,
	'6': 0b1111101,
	'7': 0b0000111,
	'8': 0b1111111,
	'9': 0b1101111,
	' ': 0,
}

// DisplayConfig controls rendering.
type DisplayConfig struct {
	DigitWidth  int
	DigitHeight int
	Thickness   int
	Background  color.Gray
	Foreground  color.Gray
}

// DefaultDisplayConfig renders dark 40x80 digits on a light panel.
func DefaultDisplayConfig() DisplayConfig {
	return DisplayConfig{
		DigitWidth:  40,
		DigitHeight: 80,
		Thickness:   8,
		Background:  color.Gray{Y: 220},
		Foreground:  color.Gray{Y: 30},
	}
}

// RenderDisplay draws digits (a space is a blank position) side by side.
func RenderDisplay(digits string, cfg DisplayConfig) *image.Gray {
	runes := []rune(digits)
	img := image.NewGray(image.Rect(0, 0, cfg.DigitWidth*len(runes), cfg.DigitHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{cfg.Background}, image.Point{}, draw.Src)
	for i, r := range runes {
		drawDigit(img, i*cfg.DigitWidth, r, cfg)
	}
	return img
}

func drawDigit(img *image.Gray, x0 int, r rune, cfg DisplayConfig) {
	mask, ok := segments[r]
	if !ok {
		panic(fmt.Sprintf("testutil: no segments for %q", r))
	}
	rects := segmentRects(x0, cfg)
	fg := &image.Uniform{cfg.Foreground}
	for s, rect := range rects {
		if mask&(1<<s) != 0 {
			draw.Draw(img, rect, fg, image.Point{}, draw.Src)
		}
	}
}

// segmentRects lays out segments a..g for a digit whose cell starts at x0.
func segmentRects(x0 int, cfg DisplayConfig) [7]image.Rectangle {
	w, h, t := cfg.DigitWidth, cfg.DigitHeight, cfg.Thickness
	pad := t
	left, right := x0+pad, x0+w-pad
	top, mid, bottom := pad, h/2, h-pad

	return [7]image.Rectangle{
		image.Rect(left, top, right, top+t),         // a
		image.Rect(right-t, top, right, mid),        // b
		image.Rect(right-t, mid, right, bottom),     // c
		image.Rect(left, bottom-t, right, bottom),   // d
		image.Rect(left, mid, left+t, bottom),       // e
		image.Rect(left, top, left+t, mid),          // f
		image.Rect(left, mid-t/2, right, mid+t-t/2), // g
	}
}

// Frame places a rendered display at offset inside a larger frame and
// returns the frame with the display's corners in TL, TR, BR, BL order.
func Frame(digits string, width, height int, offset image.Point, cfg DisplayConfig) (*image.Gray, [4]image.Point) {
	display := RenderDisplay(digits, cfg)
	frame := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(frame, frame.Bounds(), &image.Uniform{color.Gray{Y: 180}}, image.Point{}, draw.Src)
	r := display.Bounds().Add(offset)
	draw.Draw(frame, r, display, image.Point{}, draw.Src)
	corners := [4]image.Point{
		{r.Min.X, r.Min.Y},
		{r.Max.X - 1, r.Min.Y},
		{r.Max.X - 1, r.Max.Y - 1},
		{r.Min.X, r.Max.Y - 1},
	}
	return frame, corners
}

// WriteFrames saves frames into dir as %06d.png and returns their paths.
func WriteFrames(t *testing.T, dir string, frames ...image.Image) []string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o750))
	paths := make([]string, len(frames))
	for i, f := range frames {
		paths[i] = filepath.Join(dir, fmt.Sprintf("%06d.png", i))
		require.NoError(t, imaging.Save(f, paths[i]))
	}
	return paths
}
