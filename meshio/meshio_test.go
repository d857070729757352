package meshio

import (
	"bufio"
	"bytes"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soypat/distmesh/delaunay"
	"github.com/soypat/distmesh/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// cornerCube returns a tetrahedralization of the unit cube's corners plus n
// random interior points.
func cornerCube(t *testing.T, n int) mesh.Mesh {
	t.Helper()
	var pts []r3.Vec
	for i := 0; i < 8; i++ {
		pts = append(pts, r3.Vec{X: float64(i & 1), Y: float64(i >> 1 & 1), Z: float64(i >> 2)})
	}
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < n; i++ {
		pts = append(pts, r3.Vec{X: 0.05 + 0.9*rng.Float64(), Y: 0.05 + 0.9*rng.Float64(), Z: 0.05 + 0.9*rng.Float64()})
	}
	elems, err := delaunay.Auto.Triangulate(3, pts)
	require.NoError(t, err)
	return mesh.Mesh{Dim: 3, Points: pts, Simplices: elems}
}

func unitSquare() mesh.Mesh {
	return mesh.Mesh{
		Dim:       2,
		Points:    []r3.Vec{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Simplices: []mesh.Simplex{mesh.Tri(0, 1, 2), mesh.Tri(0, 2, 3)},
	}
}

func TestBoundaryFacesOutward(t *testing.T) {
	m := cornerCube(t, 40)
	faces := BoundaryFaces(m.Simplices)
	require.NotEmpty(t, faces)
	// Divergence theorem: the flux of the position field through an outward
	// closed surface is three times the enclosed volume.
	var area, vol float64
	for _, f := range faces {
		a, b, c := m.Points[f[0]], m.Points[f[1]], m.Points[f[2]]
		n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
		area += r3.Norm(n) / 2
		centroid := r3.Scale(1./3, r3.Add(a, r3.Add(b, c)))
		vol += r3.Dot(centroid, n) / 6
	}
	assert.InDelta(t, 6, area, 1e-9)
	assert.InDelta(t, 1, vol, 1e-9)
}

func TestBoundaryEdges(t *testing.T) {
	edges := BoundaryEdges(unitSquare().Simplices)
	assert.ElementsMatch(t, [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}}, edges)
}

func TestSTLRoundTrip(t *testing.T) {
	for _, m := range []mesh.Mesh{unitSquare(), cornerCube(t, 40)} {
		var buf bytes.Buffer
		err := WriteSTL(&buf, m)
		require.NoError(t, err)
		tris, err := ReadSTL(&buf)
		if err != nil {
			t.Fatal(err)
		}
		want := surface(m)
		if len(tris) != len(want) {
			t.Fatalf("dim %d: got %d triangles, want %d", m.Dim, len(tris), len(want))
		}
		for i, tri := range tris {
			for j := range tri {
				p := m.Points[want[i][j]]
				if r3.Norm(r3.Sub(p, tri[j])) > 1e-6 {
					t.Errorf("dim %d triangle %d vertex %d: got %v want %v", m.Dim, i, j, tri[j], p)
				}
			}
		}
	}
	_, err := ReadSTL(bytes.NewReader(make([]byte, 84)))
	assert.Error(t, err, "zero triangle count")
	var empty bytes.Buffer
	assert.Error(t, WriteSTL(&empty, mesh.Mesh{Dim: 2}))
}

func TestWriteVTK(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVTK(&buf, unitSquare()))
	sc := bufio.NewScanner(&buf)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.Len(t, lines, 4+1+4+1+2+1+2)
	assert.Equal(t, "# vtk DataFile Version 3.0", lines[0])
	assert.Equal(t, "DATASET UNSTRUCTURED_GRID", lines[3])
	assert.Equal(t, "POINTS 4 double", lines[4])
	assert.Equal(t, "1 1 0", lines[7])
	assert.Equal(t, "CELLS 2 8", lines[9])
	assert.Equal(t, "3 0 2 3", lines[11])
	assert.Equal(t, "CELL_TYPES 2", lines[12])
	assert.Equal(t, "5", strings.TrimSpace(lines[13]))
}

func TestPlotPNG(t *testing.T) {
	var buf bytes.Buffer
	err := PlotPNG(&buf, unitSquare(), PlotOptions{Title: "square", Highlight: []int{0, 2}})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
	assert.Error(t, PlotPNG(&buf, cornerCube(t, 0), PlotOptions{}))
}

func TestRender(t *testing.T) {
	view := DefaultView()
	view.Width, view.Height, view.Scale = 64, 48, 1
	img, err := Render(cornerCube(t, 40), view)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())

	path := filepath.Join(t.TempDir(), "square.png")
	view.Eye = r3.Vec{Z: 4}
	view.Up = r3.Vec{Y: 1}
	require.NoError(t, RenderPNG(path, unitSquare(), view))
}
