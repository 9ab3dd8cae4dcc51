package testutil

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderDisplay(t *testing.T) {
	cfg := DefaultDisplayConfig()
	img := RenderDisplay("18 ", cfg)
	assert.Equal(t, 120, img.Bounds().Dx())
	assert.Equal(t, 80, img.Bounds().Dy())

	// Middle segment of the 8 is lit, of the 1 it is not.
	assert.Equal(t, cfg.Foreground, img.GrayAt(40+20, 40))
	assert.Equal(t, cfg.Background, img.GrayAt(20, 40))
	// Blank position stays background.
	assert.Equal(t, cfg.Background, img.GrayAt(100, 12))
}

func TestRenderDisplay_UnknownRune(t *testing.T) {
	assert.Panics(t, func() { RenderDisplay("x", DefaultDisplayConfig()) })
}

func TestFrameAndWriteFrames(t *testing.T) {
	frame, corners := Frame("42", 200, 150, image.Pt(10, 20), DefaultDisplayConfig())
	assert.Equal(t, image.Pt(10, 20), corners[0])
	assert.Equal(t, image.Pt(89, 99), corners[2])

	paths := WriteFrames(t, t.TempDir(), frame, frame)
	require.Len(t, paths, 2)
	assert.Contains(t, paths[1], "000001.png")
}
