package classifier

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// strip builds a binary strip with one 10x10 cell per entry; true cells are On.
func strip(cells ...bool) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 10*len(cells), 10))
	for i, on := range cells {
		if !on {
			continue
		}
		for y := range 10 {
			for x := range 10 {
				img.SetGray(i*10+x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func TestSplitDigits(t *testing.T) {
	digits, err := SplitDigits(image.NewGray(image.Rect(0, 0, 103, 20)), 4)
	require.NoError(t, err)
	require.Len(t, digits, 4)
	widths := make([]int, 4)
	total := 0
	for i, d := range digits {
		widths[i] = d.Bounds().Dx()
		total += widths[i]
		assert.Equal(t, 20, d.Bounds().Dy())
	}
	assert.Equal(t, 103, total, "crops cover the strip without overlap")
	assert.Equal(t, []int{25, 26, 26, 26}, widths)
}

func TestSplitDigits_OffsetBounds(t *testing.T) {
	img := image.NewGray(image.Rect(50, 10, 90, 30))
	img.SetGray(89, 29, color.Gray{Y: 255})
	digits, err := SplitDigits(img, 2)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), digits[1].NRGBAAt(19, 19).R)
}

func TestSplitDigits_Errors(t *testing.T) {
	_, err := SplitDigits(nil, 4)
	assert.Error(t, err)
	_, err = SplitDigits(image.NewGray(image.Rect(0, 0, 3, 10)), 4)
	assert.Error(t, err)
	_, err = SplitDigits(image.NewGray(image.Rect(0, 0, 40, 10)), 0)
	assert.Error(t, err)
}

func TestNormalize_Range(t *testing.T) {
	digits, err := SplitDigits(strip(true, false), 2)
	require.NoError(t, err)

	on := Normalize(digits[0], 4, 6, 1)
	off := Normalize(digits[1], 4, 6, 1)
	require.Len(t, on, 24)
	for i := range on {
		assert.InDelta(t, 1.0, on[i], 1e-6)
		assert.InDelta(t, 0.0, off[i], 1e-6)
	}

	rgb := Normalize(digits[0], 4, 6, 3)
	assert.Len(t, rgb, 72)
}

func TestPreprocess_Shape(t *testing.T) {
	tensor, err := Preprocess(strip(true, false, true, true), 4, 8, 12, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 1, 12, 8}, tensor.Shape)
	assert.Len(t, tensor.Data, 4*12*8)
	assert.InDelta(t, 0.0, tensor.Data[96], 1e-6, "second digit is off")
	Release(tensor)

	again, err := Preprocess(strip(false, false, false, false), 4, 8, 12, 1)
	require.NoError(t, err)
	defer Release(again)
	for _, v := range again.Data[:96] {
		assert.InDelta(t, 0.0, v, 1e-6)
	}
}

func TestPreprocess_InvalidShape(t *testing.T) {
	_, err := Preprocess(strip(true, true, true, true), 4, 0, 12, 1)
	require.Error(t, err)
}

func TestToLabelsAndParseValue(t *testing.T) {
	tests := []struct {
		name   string
		in     []int
		labels string
		value  *int
	}{
		{"plain", []int{1, 2, 3, 4}, "1234", intPtr(1234)},
		{"leading blank", []int{Blank, 2, 3, 4}, "234", intPtr(234)},
		{"leading zero", []int{0, 0, 4, 2}, "0042", intPtr(42)},
		{"literal zero", []int{Blank, Blank, Blank, 0}, "0", intPtr(0)},
		{"all blank", []int{Blank, Blank, Blank, Blank}, "", nil},
		{"empty", nil, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.labels, ToLabels(tt.in))
			assert.Equal(t, tt.value, ParseValue(tt.in))
		})
	}
}

func intPtr(v int) *int { return &v }
