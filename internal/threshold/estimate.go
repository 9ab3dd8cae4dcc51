// Package threshold binarizes display strips, either with a fixed cut-off
// or with one estimated by two-cluster separation of pixel intensities.
package threshold

import (
	"errors"
	"image"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/disintegration/imaging"
)

// ErrEmptyCluster is returned when one of the two intensity groups has no
// members, which happens for uniform or near-uniform input.
var ErrEmptyCluster = errors.New("threshold: empty cluster")

// InitMethod selects how pixels are labeled before the first iteration.
type InitMethod int

const (
	// InitMedian labels pixels brighter than the median as the second group.
	InitMedian InitMethod = iota
	// InitRandom labels every pixel at random from a seeded source.
	InitRandom
)

func (m InitMethod) String() string {
	if m == InitRandom {
		return "random"
	}
	return "median"
}

// ParseInitMethod maps a config value to an InitMethod.
func ParseInitMethod(s string) (InitMethod, bool) {
	switch s {
	case "", "median":
		return InitMedian, true
	case "random":
		return InitRandom, true
	}
	return InitMedian, false
}

const (
	DefaultMaxIterations = 1000
	DefaultEpsilon       = 1.0
)

// Estimator runs the two-cluster separation.
type Estimator struct {
	MaxIterations int
	Epsilon       float64
	Init          InitMethod
	Seed          uint64
}

// DefaultEstimator returns an estimator with median initialization.
func DefaultEstimator() Estimator {
	return Estimator{MaxIterations: DefaultMaxIterations, Epsilon: DefaultEpsilon, Init: InitMedian}
}

// Estimate computes a threshold for img. The result is the smaller of the
// two groups' maximum intensities, so it does not depend on which group ends
// up labeled first.
func (e Estimator) Estimate(img image.Image) (int, error) {
	return e.EstimateValues(Intensities(img))
}

// EstimateValues runs the separation on raw 8-bit intensities.
func (e Estimator) EstimateValues(values []uint8) (int, error) {
	if len(values) == 0 {
		return 0, ErrEmptyCluster
	}
	maxIter := e.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	eps := e.Epsilon
	if eps <= 0 {
		eps = DefaultEpsilon
	}

	var hist [256]int
	for _, v := range values {
		hist[v]++
	}

	m0, m1, err := e.initialMeans(values)
	if err != nil {
		return 0, err
	}

	// After the first reassignment a pixel's label depends only on its
	// intensity, so the iteration runs over the histogram.
	var labels [256]uint8
	for range maxIter {
		for v := range 256 {
			labels[v] = 0
			if math.Abs(float64(v)-m1) < math.Abs(float64(v)-m0) {
				labels[v] = 1
			}
		}
		n0, n1, err := histogramMeans(&hist, &labels)
		if err != nil {
			return 0, err
		}
		delta := math.Abs(n0-m0) + math.Abs(n1-m1)
		m0, m1 = n0, n1
		if delta < eps {
			break
		}
	}

	max0, max1 := -1, -1
	for v := range 256 {
		if hist[v] == 0 {
			continue
		}
		if labels[v] == 0 {
			max0 = v
		} else {
			max1 = v
		}
	}
	return min(max0, max1), nil
}

func (e Estimator) initialMeans(values []uint8) (float64, float64, error) {
	var sum, count [2]float64
	switch e.Init {
	case InitRandom:
		rng := rand.New(rand.NewPCG(e.Seed, e.Seed^0x9e3779b97f4a7c15))
		for _, v := range values {
			l := rng.IntN(2)
			sum[l] += float64(v)
			count[l]++
		}
	default:
		med := median(values)
		for _, v := range values {
			l := 0
			if float64(v) > med {
				l = 1
			}
			sum[l] += float64(v)
			count[l]++
		}
		// Heavily skewed strips can sit entirely at or below the median.
		if count[1] == 0 {
			sum, count = [2]float64{}, [2]float64{}
			for _, v := range values {
				l := 0
				if float64(v) >= med {
					l = 1
				}
				sum[l] += float64(v)
				count[l]++
			}
		}
	}
	if count[0] == 0 || count[1] == 0 {
		return 0, 0, ErrEmptyCluster
	}
	return sum[0] / count[0], sum[1] / count[1], nil
}

func histogramMeans(hist *[256]int, labels *[256]uint8) (float64, float64, error) {
	var sum, count [2]float64
	for v, n := range hist {
		if n == 0 {
			continue
		}
		l := labels[v]
		sum[l] += float64(v * n)
		count[l] += float64(n)
	}
	if count[0] == 0 || count[1] == 0 {
		return 0, 0, ErrEmptyCluster
	}
	return sum[0] / count[0], sum[1] / count[1], nil
}

func median(values []uint8) float64 {
	sorted := make([]uint8, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := len(sorted)
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return (float64(sorted[n/2-1]) + float64(sorted[n/2])) / 2
}

// Intensities flattens img into 8-bit luminance values.
func Intensities(img image.Image) []uint8 {
	if img == nil {
		return nil
	}
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) && g.Stride == g.Rect.Dx() {
		out := make([]uint8, len(g.Pix))
		copy(out, g.Pix)
		return out
	}
	gray := imaging.Grayscale(img)
	out := make([]uint8, 0, len(gray.Pix)/4)
	for i := 0; i < len(gray.Pix); i += 4 {
		out = append(out, gray.Pix[i])
	}
	return out
}
