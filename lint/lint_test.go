package lint

import (
	"math/rand"
	"testing"

	"github.com/soypat/distmesh/geom"
	"github.com/soypat/distmesh/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// dirtySquare is the unit square split in two triangles where the second
// triangle uses copies of the shared corners, is inverted and repeated.
// Point 6 is unreferenced and the last triangle is flat.
func dirtySquare() mesh.Mesh {
	pts := []r3.Vec{
		{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
		{1e-12, 0, 0}, {1, 1 + 1e-12, 0},
		{5, 5, 0}, {0.5, 0, 0},
	}
	elems := []mesh.Simplex{
		mesh.Tri(0, 1, 2),
		mesh.Tri(4, 3, 5), // Inverted copy of (0,2,3).
		mesh.Tri(0, 2, 3),
		mesh.Tri(0, 1, 7),
	}
	return mesh.Mesh{Dim: 2, Points: pts, Simplices: elems}
}

func TestFix(t *testing.T) {
	m := dirtySquare()
	fixed, err := Fix(m, 1e-9)
	require.NoError(t, err)
	require.NoError(t, fixed.Validate(true))
	assert.Len(t, fixed.Points, 4)
	assert.Len(t, fixed.Simplices, 2)
	var area float64
	for _, s := range fixed.Simplices {
		a := geom.Measure(2, fixed.Points, s)
		assert.Greater(t, a, 0.0)
		area += a
	}
	assert.InDelta(t, 1, area, 1e-9)
	// Input untouched.
	assert.Equal(t, dirtySquare(), m)
}

func TestMergeDuplicatesRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	const n = 300
	pts := make([]r3.Vec, 0, 2*n)
	for i := 0; i < n; i++ {
		pts = append(pts, r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()})
	}
	// Every point gets a near copy appended.
	for i := 0; i < n; i++ {
		pts = append(pts, r3.Add(pts[i], r3.Vec{X: 1e-10}))
	}
	elems := make([]mesh.Simplex, n)
	for i := range elems {
		elems[i] = mesh.Tet(n+i, i, (i+1)%n, (i+2)%n)
	}
	merged := MergeDuplicates(3, pts, elems, 1e-8)
	assert.Equal(t, n, merged)
	for i, s := range elems {
		assert.Equal(t, i, s[0], "copy must map onto its original")
	}
}

func TestDeleteUnusedKeepsOrder(t *testing.T) {
	pts := []r3.Vec{{X: 0}, {X: 1}, {X: 2}, {X: 3}, {X: 4}}
	elems := []mesh.Simplex{mesh.Tri(4, 1, 3)}
	got, out, remap := DeleteUnused(2, pts, elems)
	assert.Equal(t, []r3.Vec{{X: 1}, {X: 3}, {X: 4}}, got)
	assert.Equal(t, mesh.Tri(2, 0, 1), out[0])
	assert.Equal(t, []int{-1, 0, -1, 1, 2}, remap)
}

func TestOrientTet(t *testing.T) {
	pts := []r3.Vec{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	elems := []mesh.Simplex{mesh.Tet(0, 2, 1, 3), mesh.Tet(0, 1, 2, 3)}
	assert.Equal(t, 1, Orient(3, pts, elems))
	for _, s := range elems {
		assert.Greater(t, geom.Measure(3, pts, s), 0.0)
	}
}

func TestCheck(t *testing.T) {
	m := dirtySquare()
	r, err := Check(m, 30, 120)
	require.NoError(t, err)
	assert.Equal(t, 8, r.Points)
	assert.Equal(t, 4, r.Simplices)
	assert.Equal(t, 1, r.Dangling)
	assert.Equal(t, 1, r.Inverted)
	assert.Equal(t, 1, r.Degenerate)
	assert.InDelta(t, 45, r.MinAngle, 1e-6)
	assert.InDelta(t, 90, r.MaxAngle, 1e-6)
	assert.Equal(t, 0, r.Slivers)

	r, err = Check(m, 50, 120)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Slivers)

	_, err = Check(mesh.Mesh{Dim: 2, Points: m.Points, Simplices: []mesh.Simplex{mesh.Tri(0, 1, 9)}}, 0, 180)
	assert.Error(t, err)
}
