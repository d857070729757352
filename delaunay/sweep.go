package delaunay

import (
	sweephull "github.com/fogleman/delaunay"
	"github.com/soypat/distmesh/geom"
	"github.com/soypat/distmesh/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// sweepTriangulate triangulates planar points with the sweep-hull algorithm
// (Delaunator) on the joggled coordinates.
func sweepTriangulate(pts []r3.Vec) ([]mesh.Simplex, error) {
	j := newJoggler(2, pts)
	work := make([]r3.Vec, len(pts))
	in := make([]sweephull.Point, len(pts))
	for i, p := range pts {
		work[i] = j.apply(i, p)
		in[i] = sweephull.Point{X: work[i].X, Y: work[i].Y}
	}
	tri, err := sweephull.Triangulate(in)
	if err != nil {
		// All points collinear even after joggling.
		return nil, ErrDegenerate
	}
	out := make([]mesh.Simplex, 0, len(tri.Triangles)/3)
	for i := 0; i+2 < len(tri.Triangles); i += 3 {
		a, b, c := tri.Triangles[i], tri.Triangles[i+1], tri.Triangles[i+2]
		o := geom.Orient2(work[a], work[b], work[c])
		if o == 0 {
			continue
		}
		if o < 0 {
			b, c = c, b
		}
		out = append(out, mesh.Tri(a, b, c))
	}
	return keepPositive(2, pts, out), nil
}
