package region

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderPoints_Square(t *testing.T) {
	want := Quad{{0, 0}, {100, 0}, {100, 100}, {0, 100}}

	tests := []struct {
		name string
		in   []Point
	}{
		{"canonical", []Point{{0, 0}, {100, 0}, {100, 100}, {0, 100}}},
		{"reversed", []Point{{0, 100}, {100, 100}, {100, 0}, {0, 0}}},
		{"shuffled", []Point{{100, 100}, {0, 0}, {0, 100}, {100, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := OrderPoints(tt.in)
			require.True(t, ok)
			assert.Equal(t, want, got)
		})
	}
}

func TestOrderPoints_Skewed(t *testing.T) {
	got, ok := OrderPoints([]Point{{212, 95}, {30, 110}, {25, 180}, {220, 170}})
	require.True(t, ok)
	assert.Equal(t, Quad{{30, 110}, {212, 95}, {220, 170}, {25, 180}}, got)
}

func TestOrderPoints_WrongCount(t *testing.T) {
	for _, n := range []int{0, 1, 3, 5} {
		_, ok := OrderPoints(make([]Point, n))
		assert.False(t, ok, "count %d", n)
	}
}

func TestOrderPoints_Idempotent(t *testing.T) {
	q, ok := OrderPoints([]Point{{5, 50}, {60, 2}, {4, 3}, {70, 40}})
	require.True(t, ok)
	again, ok := OrderPoints(q.Points())
	require.True(t, ok)
	assert.Equal(t, q, again)
}

func TestOrderPoints_PermutationProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	coord := gen.IntRange(0, 2000)
	properties.Property("any permutation yields the same quad", prop.ForAll(
		func(x0, y0, x1, y1, x2, y2, x3, y3 int, perm int) bool {
			pts := []Point{{x0, y0}, {x1, y1}, {x2, y2}, {x3, y3}}
			base, _ := OrderPoints(pts)

			perms := permutations(pts)
			shuffled := perms[perm%len(perms)]
			got, ok := OrderPoints(shuffled)
			return ok && got == base
		},
		coord, coord, coord, coord, coord, coord, coord, coord, gen.IntRange(0, 23),
	))

	properties.Property("ordering is idempotent", prop.ForAll(
		func(x0, y0, x1, y1, x2, y2, x3, y3 int) bool {
			q, _ := OrderPoints([]Point{{x0, y0}, {x1, y1}, {x2, y2}, {x3, y3}})
			again, _ := OrderPoints(q.Points())
			return q == again
		},
		coord, coord, coord, coord, coord, coord, coord, coord,
	))

	properties.TestingRun(t)
}

func permutations(pts []Point) [][]Point {
	if len(pts) <= 1 {
		return [][]Point{append([]Point(nil), pts...)}
	}
	var out [][]Point
	for i := range pts {
		rest := make([]Point, 0, len(pts)-1)
		rest = append(rest, pts[:i]...)
		rest = append(rest, pts[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]Point{pts[i]}, p...))
		}
	}
	return out
}

func TestAddPoint(t *testing.T) {
	var pts []Point
	pts = AddPoint(pts, Point{100, 100})
	pts = AddPoint(pts, Point{0, 0})
	pts = AddPoint(pts, Point{100, 0})
	assert.Equal(t, []Point{{100, 100}, {0, 0}, {100, 0}}, pts, "appends in click order below four")

	pts = AddPoint(pts, Point{0, 100})
	assert.Equal(t, []Point{{0, 0}, {100, 0}, {100, 100}, {0, 100}}, pts, "canonical once complete")

	pts = AddPoint(pts, Point{90, 110})
	assert.Equal(t, []Point{{0, 0}, {100, 0}, {90, 110}, {0, 100}}, pts, "nearest corner replaced")
}

func TestAddPoint_DoesNotMutateInput(t *testing.T) {
	in := []Point{{0, 0}, {100, 0}, {100, 100}, {0, 100}}
	orig := append([]Point(nil), in...)
	_ = AddPoint(in, Point{1, 1})
	assert.Equal(t, orig, in)
}

func TestParsePoints(t *testing.T) {
	pts, err := ParsePoints("0,0 100,0;100,100\t0,100")
	require.NoError(t, err)
	assert.Equal(t, []Point{{0, 0}, {100, 0}, {100, 100}, {0, 100}}, pts)
	assert.Equal(t, "0,0 100,0 100,100 0,100", FormatPoints(pts))

	_, err = ParsePoints("1,2,3")
	assert.Error(t, err)
	_, err = ParsePoints("a,2")
	assert.Error(t, err)

	pts, err = ParsePoints("")
	require.NoError(t, err)
	assert.Empty(t, pts)
}
