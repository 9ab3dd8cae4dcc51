package threshold

import (
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 4, 1))
	for x, v := range []uint8{0, 99, 100, 255} {
		img.SetGray(x, 0, color.Gray{Y: v})
	}
	return img
}

func TestBinarize_Inverted(t *testing.T) {
	out := Binarize(gradient(), 100)
	assert.Equal(t, []uint8{On, On, Off, Off}, out.Pix)
}

func TestBinarize_ColorInput(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{10, 10, 10, 255})
	img.SetNRGBA(1, 0, color.NRGBA{250, 250, 250, 255})
	out := Binarize(img, 128)
	assert.Equal(t, []uint8{On, Off}, out.Pix)
}

func TestThresholder_Fixed(t *testing.T) {
	fixed := 100
	th := New(&fixed, DefaultEstimator())
	fixed = 5 // caller's copy must not leak in

	out, used, err := th.Apply(gradient())
	require.NoError(t, err)
	assert.Equal(t, 100, used)
	assert.Equal(t, []uint8{On, On, Off, Off}, out.Pix)
}

func TestThresholder_SetTakesEffectOnNextApply(t *testing.T) {
	th := New(nil, DefaultEstimator())
	assert.Nil(t, th.Fixed())

	v := 1
	th.Set(&v)
	_, used, err := th.Apply(gradient())
	require.NoError(t, err)
	assert.Equal(t, 1, used)

	th.Set(nil)
	_, used, err = th.Apply(gradient())
	require.NoError(t, err)
	assert.NotEqual(t, 1, used)
}

func TestThresholder_FallsBackToLastGood(t *testing.T) {
	th := New(nil, DefaultEstimator())

	uniform := image.NewGray(image.Rect(0, 0, 3, 3))
	_, _, err := th.Apply(uniform)
	assert.ErrorIs(t, err, ErrEmptyCluster, "no previous threshold to fall back to")

	_, good, err := th.Apply(gradient())
	require.NoError(t, err)

	_, used, err := th.Apply(uniform)
	require.NoError(t, err)
	assert.Equal(t, good, used)
}

func TestThresholder_ResetForgetsLastGood(t *testing.T) {
	th := New(nil, DefaultEstimator())
	_, _, err := th.Apply(gradient())
	require.NoError(t, err)

	th.Reset()
	_, _, err = th.Apply(image.NewGray(image.Rect(0, 0, 3, 3)))
	assert.ErrorIs(t, err, ErrEmptyCluster)
}

func TestThresholder_ConcurrentSet(t *testing.T) {
	th := New(nil, DefaultEstimator())
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			v := i * 10
			th.Set(&v)
		}()
		go func() {
			defer wg.Done()
			_, _, _ = th.Apply(gradient())
		}()
	}
	wg.Wait()
}

func TestThresholder_NilImage(t *testing.T) {
	_, _, err := New(nil, DefaultEstimator()).Apply(nil)
	assert.Error(t, err)
}
