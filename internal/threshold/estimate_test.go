package threshold

import (
	"image"
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateValues_Bimodal(t *testing.T) {
	values := make([]uint8, 0, 100)
	for range 30 {
		values = append(values, 20, 25, 30)
	}
	for range 10 {
		values = append(values, 200)
	}
	got, err := DefaultEstimator().EstimateValues(values)
	require.NoError(t, err)
	assert.Equal(t, 30, got, "max of the darker cluster")
}

func TestEstimateValues_SkewedBright(t *testing.T) {
	// Median falls on the bright value.
	values := []uint8{10, 240, 240, 240, 240}
	got, err := DefaultEstimator().EstimateValues(values)
	require.NoError(t, err)
	assert.Equal(t, 10, got)
}

func TestEstimateValues_MedianTiesUseInclusiveSplit(t *testing.T) {
	// Nothing lies strictly above the median 102, so the split is redone
	// with >= and separates {100} from {102, 102}.
	got, err := DefaultEstimator().EstimateValues([]uint8{100, 102, 102})
	require.NoError(t, err)
	assert.Equal(t, 100, got)
}

func TestEstimateValues_Uniform(t *testing.T) {
	_, err := DefaultEstimator().EstimateValues([]uint8{128, 128, 128, 128})
	assert.ErrorIs(t, err, ErrEmptyCluster)

	_, err = Estimator{Init: InitRandom, Seed: 7}.EstimateValues([]uint8{3, 3, 3, 3, 3, 3})
	assert.ErrorIs(t, err, ErrEmptyCluster)

	_, err = DefaultEstimator().EstimateValues(nil)
	assert.ErrorIs(t, err, ErrEmptyCluster)
}

func TestEstimateValues_SmallerOfMaxima(t *testing.T) {
	// Either labeling of the two groups must give the same answer.
	var values []uint8
	for range 8 {
		values = append(values, 0, 5, 10, 100, 110, 120)
	}
	a, err := Estimator{Init: InitMedian}.EstimateValues(values)
	require.NoError(t, err)
	b, err := Estimator{Init: InitRandom, Seed: 42}.EstimateValues(values)
	require.NoError(t, err)
	assert.Equal(t, 10, a)
	assert.Equal(t, a, b)
}

func TestEstimate_Image(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range img.Pix {
		img.Pix[i] = 230
	}
	for i := 0; i < 30; i++ {
		img.Pix[i] = 15
	}
	got, err := DefaultEstimator().Estimate(img)
	require.NoError(t, err)
	assert.Equal(t, 15, got)
}

func TestParseInitMethod(t *testing.T) {
	m, ok := ParseInitMethod("random")
	assert.True(t, ok)
	assert.Equal(t, InitRandom, m)
	assert.Equal(t, "random", m.String())

	m, ok = ParseInitMethod("")
	assert.True(t, ok)
	assert.Equal(t, InitMedian, m)

	_, ok = ParseInitMethod("otsu")
	assert.False(t, ok)
}

func TestEstimate_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	pixels := gen.SliceOfN(64, gen.UInt8())

	properties.Property("threshold lies within the intensity range", prop.ForAll(
		func(values []uint8) bool {
			got, err := DefaultEstimator().EstimateValues(values)
			if err != nil {
				return err == ErrEmptyCluster
			}
			return got >= int(slices.Min(values)) && got <= int(slices.Max(values))
		},
		pixels,
	))

	properties.Property("deterministic for fixed input and seed", prop.ForAll(
		func(values []uint8, seed uint64) bool {
			e := Estimator{Init: InitRandom, Seed: seed}
			a, errA := e.EstimateValues(values)
			b, errB := e.EstimateValues(values)
			return a == b && (errA == nil) == (errB == nil)
		},
		pixels, gen.UInt64(),
	))

	properties.Property("two distinct values always separate", prop.ForAll(
		func(lo, gap uint8, nLo, nHi int) bool {
			hi := int(lo) + int(gap) + 1
			if hi > 255 {
				return true
			}
			values := slices.Repeat([]uint8{lo}, nLo)
			values = append(values, slices.Repeat([]uint8{uint8(hi)}, nHi)...)
			got, err := DefaultEstimator().EstimateValues(values)
			return err == nil && got == int(lo)
		},
		gen.UInt8(), gen.UInt8(), gen.IntRange(1, 50), gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}
