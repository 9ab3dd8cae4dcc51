package onnx

import "fmt"

// Tensor is a float32 tensor prepared for ONNX input. Data layout is
// row-major; image batches use NCHW.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// ValidateNCHW ensures a shape is [N, C, H, W] with positive dimensions.
func ValidateNCHW(shape []int64) error {
	if len(shape) != 4 {
		return fmt.Errorf("shape rank %d != 4", len(shape))
	}
	for i, v := range shape {
		if v <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, v)
		}
	}
	return nil
}

// ArgMaxRows returns the index of the largest value in each row of a
// row-major [rows, cols] matrix. The first maximum wins on ties.
func ArgMaxRows(data []float32, rows, cols int) ([]int, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid score shape [%d, %d]", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("score length %d does not match [%d, %d]", len(data), rows, cols)
	}
	out := make([]int, rows)
	for r := range rows {
		row := data[r*cols : (r+1)*cols]
		best := 0
		for c := 1; c < cols; c++ {
			if row[c] > row[best] {
				best = c
			}
		}
		out[r] = best
	}
	return out, nil
}
