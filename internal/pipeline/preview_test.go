package pipeline

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreview_ForwardsFrames(t *testing.T) {
	src := &scriptSource{frames: []image.Image{uniform(100), nil, uniform(120)}}
	c := newTestController(t, testParams(), &fakeClassifier{}, src, NoOpObserver{})

	var got []PreviewFrame
	require.NoError(t, c.Preview(context.Background(), func(f PreviewFrame) error {
		got = append(got, f)
		return nil
	}))

	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, 1, got[1].Index)
	require.NotNil(t, got[0].Strip)
	assert.Equal(t, image.Rect(0, 0, 40, 10), got[0].Strip.Bounds())
	assert.True(t, src.isClosed())
	assert.Equal(t, StateIdle, c.State())
}

func TestPreview_Stop(t *testing.T) {
	src := &scriptSource{frames: []image.Image{uniform(100)}, loop: true}
	p := testParams()
	p.Points = nil
	c := newTestController(t, p, &fakeClassifier{}, src, NoOpObserver{})

	n := 0
	require.NoError(t, c.Preview(context.Background(), func(f PreviewFrame) error {
		assert.Nil(t, f.Strip)
		n++
		if n == 3 {
			return ErrStopPreview
		}
		return nil
	}))
	assert.Equal(t, 3, n)

	boom := errors.New("display closed")
	assert.ErrorIs(t, c.Preview(context.Background(), func(PreviewFrame) error { return boom }), boom)
}
