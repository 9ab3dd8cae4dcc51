// Package region locates the seven-segment display inside a frame and
// normalizes it into a fixed-size rectangular strip.
package region

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Point is a click point in frame pixel coordinates.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

func (p Point) String() string { return fmt.Sprintf("%d,%d", p.X, p.Y) }

// Quad is a canonical quadrilateral: top-left, top-right, bottom-right, bottom-left.
type Quad [4]Point

// Points returns the corners as a slice in canonical order.
func (q Quad) Points() []Point { return []Point{q[0], q[1], q[2], q[3]} }

func (q Quad) String() string {
	parts := make([]string, 4)
	for i, p := range q {
		parts[i] = p.String()
	}
	return strings.Join(parts, " ")
}

// OrderPoints canonicalizes exactly four points into TL, TR, BR, BL order.
// The points are split into a left and a right pair by x, and each pair is
// ordered by y. Ties are broken on the other coordinate so that the result
// does not depend on the order the points were supplied in.
func OrderPoints(pts []Point) (Quad, bool) {
	if len(pts) != 4 {
		return Quad{}, false
	}
	sorted := make([]Point, 4)
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	left := [2]Point{sorted[0], sorted[1]}
	right := [2]Point{sorted[2], sorted[3]}
	byY := func(pair *[2]Point) {
		if pair[1].Y < pair[0].Y || (pair[1].Y == pair[0].Y && pair[1].X < pair[0].X) {
			pair[0], pair[1] = pair[1], pair[0]
		}
	}
	byY(&left)
	byY(&right)

	return Quad{left[0], right[0], right[1], left[1]}, true
}

// AddPoint applies one interactive click to a point set. Below four points
// the click is appended. With four points the nearest existing point is
// replaced. Whenever the result holds four points it is returned in
// canonical order.
func AddPoint(pts []Point, click Point) []Point {
	out := make([]Point, 0, 4)
	out = append(out, pts...)

	if len(out) < 4 {
		out = append(out, click)
	} else {
		out[nearest(out, click)] = click
	}

	if q, ok := OrderPoints(out); ok {
		return q.Points()
	}
	return out
}

func nearest(pts []Point, p Point) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range pts {
		d := math.Hypot(float64(c.X-p.X), float64(c.Y-p.Y))
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// ParsePoints parses "x,y x,y ..." (space or semicolon separated).
func ParsePoints(s string) ([]Point, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ';' || r == '\t' || r == '\n'
	})
	pts := make([]Point, 0, len(fields))
	for _, f := range fields {
		xy := strings.Split(f, ",")
		if len(xy) != 2 {
			return nil, fmt.Errorf("invalid point %q: want x,y", f)
		}
		x, err := strconv.Atoi(strings.TrimSpace(xy[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid x in %q: %w", f, err)
		}
		y, err := strconv.Atoi(strings.TrimSpace(xy[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid y in %q: %w", f, err)
		}
		pts = append(pts, Point{X: x, Y: y})
	}
	return pts, nil
}

// FormatPoints is the inverse of ParsePoints.
func FormatPoints(pts []Point) string {
	parts := make([]string, len(pts))
	for i, p := range pts {
		parts[i] = p.String()
	}
	return strings.Join(parts, " ")
}
