package cmd

import (
	"image"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/sevseg/internal/testutil"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionOrder(t *testing.T) {
	isolate(t)
	out, err := execute(t, "region", "order", "198,80 10,10 12,78 200,12")
	require.NoError(t, err)
	assert.Equal(t, "10,10 200,12 198,80 12,78", strings.TrimSpace(out))

	_, err = execute(t, "region", "order", "10,10 200,12 198,80")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need exactly 4 points")

	_, err = execute(t, "region", "order", "10;x")
	require.Error(t, err)
}

func TestRegionAdd(t *testing.T) {
	isolate(t)
	out, err := execute(t, "region", "add", "10,10")
	require.NoError(t, err)
	assert.Equal(t, "10,10", strings.TrimSpace(out))

	out, err = execute(t, "region", "add", "--points", "10,10 200,12 198,80", "12,78")
	require.NoError(t, err)
	assert.Equal(t, "10,10 200,12 198,80 12,78", strings.TrimSpace(out))

	// A fifth click moves the nearest corner.
	out, err = execute(t, "region", "add", "--points", "10,10 200,12 198,80 12,78", "190,90")
	require.NoError(t, err)
	assert.Equal(t, "10,10 200,12 190,90 12,78", strings.TrimSpace(out))

	_, err = execute(t, "region", "add", "1,1 2,2")
	require.Error(t, err)
}

func TestRegionCrop(t *testing.T) {
	dir := isolate(t)
	frame, corners := testutil.Frame("42", 200, 150, image.Pt(30, 20), testutil.DefaultDisplayConfig())
	framePath := filepath.Join(dir, "frame.png")
	require.NoError(t, imaging.Save(frame, framePath))
	stripPath := filepath.Join(dir, "strip.png")

	out, err := execute(t, "region", "crop", framePath,
		"--points", pointsArg(corners), "--digits", "2", "--crop-width", "40", "--crop-height", "80",
		"--out", stripPath)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 80x80 strip")

	strip, err := imaging.Open(stripPath)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 80, 80), strip.Bounds())

	out, err = execute(t, "region", "crop", framePath,
		"--points", pointsArg(corners), "--digits", "2", "--crop-width", "40", "--crop-height", "80",
		"--out", stripPath, "--binarize", "--threshold", "128")
	require.NoError(t, err)
	assert.Contains(t, out, "(threshold 128)")
}

func TestRegionCrop_IncompleteRegion(t *testing.T) {
	dir := isolate(t)
	frame, _ := testutil.Frame("42", 200, 150, image.Pt(30, 20), testutil.DefaultDisplayConfig())
	framePath := filepath.Join(dir, "frame.png")
	require.NoError(t, imaging.Save(frame, framePath))

	_, err := execute(t, "region", "crop", framePath, "--points", "30,20 109,20 109,99")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "four non-collinear points")
}
