package region

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

var errSingularTransform = errors.New("region: degenerate quadrilateral")

type vec2 struct{ X, Y float64 }

// homography is a row-major 3x3 projective transform with h[8] == 1.
type homography [9]float64

// perspectiveTransform computes H such that H*from[i] ~ to[i].
func perspectiveTransform(from, to [4]vec2) (homography, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := range 4 {
		X, Y := from[i].X, from[i].Y
		x, y := to[i].X, to[i].Y
		r := 2 * i
		a.SetRow(r, []float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x})
		b.SetVec(r, x)
		a.SetRow(r+1, []float64{0, 0, 0, X, Y, 1, -X * y, -Y * y})
		b.SetVec(r+1, y)
	}

	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return homography{}, errSingularTransform
	}

	var H homography
	for i := range 8 {
		H[i] = h.AtVec(i)
	}
	H[8] = 1
	return H, nil
}

// apply maps (x, y). Points at infinity map far outside any image.
func (h homography) apply(x, y float64) (float64, float64) {
	w := h[6]*x + h[7]*y + h[8]
	if w == 0 {
		return -1e9, -1e9
	}
	return (h[0]*x + h[1]*y + h[2]) / w, (h[3]*x + h[4]*y + h[5]) / w
}
