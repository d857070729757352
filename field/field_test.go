package field

import (
	"math"
	"testing"

	"github.com/deadsy/sdfx/sdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestRectangle(t *testing.T) {
	rect, err := Rectangle(r2.Vec{}, r2.Vec{X: 1, Y: 1})
	require.NoError(t, err)
	for _, test := range []struct {
		p    r3.Vec
		want float64
	}{
		{r3.Vec{X: 0.5, Y: 0.5}, -0.5},
		{r3.Vec{X: 0.1, Y: 0.5}, -0.1},
		{r3.Vec{X: 1, Y: 0.3}, 0},
		{r3.Vec{X: 1.5, Y: 0.5}, 0.5},
		{r3.Vec{X: 2, Y: 2}, math.Sqrt2},
	} {
		got, err := At(rect, test.p)
		require.NoError(t, err)
		assert.InDelta(t, test.want, got, 1e-14, "at %v", test.p)
	}
	_, err = Rectangle(r2.Vec{X: 1}, r2.Vec{X: 0, Y: 1})
	assert.Error(t, err)
}

func TestBoxSphere(t *testing.T) {
	b, err := Box(r3.Vec{X: -1, Y: -1, Z: -1}, r3.Vec{X: 1, Y: 1, Z: 1})
	require.NoError(t, err)
	d, _ := At(b, r3.Vec{X: 2, Y: 2, Z: 2})
	assert.InDelta(t, math.Sqrt(3), d, 1e-14)
	d, _ = At(b, r3.Vec{})
	assert.InDelta(t, -1, d, 1e-14)

	s, err := Sphere(r3.Vec{Z: 1}, 2)
	require.NoError(t, err)
	d, _ = At(s, r3.Vec{Z: 4})
	assert.InDelta(t, 1, d, 1e-14)
}

func TestBooleans(t *testing.T) {
	outer, _ := Circle(r2.Vec{}, 2)
	inner, _ := Circle(r2.Vec{}, 1)
	ring, err := Difference(outer, inner)
	require.NoError(t, err)
	d, _ := At(ring, r3.Vec{})
	assert.InDelta(t, 1, d, 1e-14) // inside the hole
	d, _ = At(ring, r3.Vec{X: 1.5})
	assert.InDelta(t, -0.5, d, 1e-14)

	both, err := Union(inner, Translate(inner, r3.Vec{X: 3}))
	require.NoError(t, err)
	d, _ = At(both, r3.Vec{X: 3})
	assert.InDelta(t, -1, d, 1e-14)

	lens, err := Intersection(outer, Translate(outer, r3.Vec{X: 3}))
	require.NoError(t, err)
	d, _ = At(lens, r3.Vec{X: 1.5})
	assert.InDelta(t, -0.5, d, 1e-14)

	_, err = Union(inner)
	assert.Error(t, err)
}

func TestGridInterpolation(t *testing.T) {
	// f(x,y) = 1 + x + 2y is reproduced exactly by bilinear interpolation.
	lin := Func(func(p r3.Vec) float64 { return 1 + p.X + 2*p.Y })
	g, err := Sample(lin, 2, r3.Box{Max: r3.Vec{X: 1, Y: 1}}, [3]int{5, 3, 0})
	require.NoError(t, err)
	for _, p := range []r3.Vec{{X: 0.13, Y: 0.77}, {X: 0.5, Y: 0.5}, {X: 1, Y: 1}} {
		got, _ := At(g, p)
		assert.InDelta(t, lin(p), got, 1e-12)
	}
	// Outside the grid takes the value at the clamped position.
	got, _ := At(g, r3.Vec{X: 2, Y: -1})
	assert.InDelta(t, 2, got, 1e-12)

	lin3 := Func(func(p r3.Vec) float64 { return p.X - p.Y + 3*p.Z })
	g3, err := Sample(lin3, 3, r3.Box{Min: r3.Vec{X: -1, Y: -1, Z: -1}, Max: r3.Vec{X: 1, Y: 1, Z: 1}}, [3]int{4, 4, 4})
	require.NoError(t, err)
	p := r3.Vec{X: 0.3, Y: -0.2, Z: 0.71}
	got, _ = At(g3, p)
	assert.InDelta(t, lin3(p), got, 1e-12)

	_, err = NewGrid(2, r3.Vec{}, r3.Vec{X: 1, Y: 1}, [3]int{2, 2}, []float64{1, 2, 3})
	assert.Error(t, err)
}

func TestSDFXAdapters(t *testing.T) {
	c, err := sdf.Circle2D(1)
	require.NoError(t, err)
	f, err := FromSDF2(c)
	require.NoError(t, err)
	d, err := At(f, r3.Vec{X: 3})
	require.NoError(t, err)
	assert.InDelta(t, 2, d, 1e-12)

	s, err := sdf.Sphere3D(2)
	require.NoError(t, err)
	f3, err := FromSDF3(s)
	require.NoError(t, err)
	d, _ = At(f3, r3.Vec{})
	assert.InDelta(t, -2, d, 1e-12)
	bb := BoundsSDF3(s)
	assert.InDelta(t, 2, bb.Max.X, 1e-12)
}

func TestLengthMismatch(t *testing.T) {
	err := Constant(1).Evaluate(make([]r3.Vec, 2), make([]float64, 3))
	assert.ErrorIs(t, err, errLength)
	min, err := MinOver(Func(func(p r3.Vec) float64 { return p.X }), []r3.Vec{{X: 3}, {X: -2}})
	require.NoError(t, err)
	assert.Equal(t, -2.0, min)
}
