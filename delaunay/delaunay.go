// Package delaunay computes Delaunay triangulations of 2d and 3d point sets.
//
// Two algorithms are provided: a sweep-hull triangulator for the plane and an
// incremental Bowyer-Watson triangulator for both dimensions which also
// supports inserting points into an existing triangulation.
// Input coordinates are perturbed by a tiny deterministic amount before
// triangulating so that cocircular lattices have a unique answer; the
// caller's points are never modified.
package delaunay

import (
	"errors"
	"fmt"
	"math"

	"github.com/soypat/distmesh/geom"
	"github.com/soypat/distmesh/internal/d3"
	"github.com/soypat/distmesh/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// Method selects the triangulation algorithm.
type Method int

const (
	// Auto uses Sweep in 2d and BowyerWatson in 3d.
	Auto Method = iota
	// Sweep is the sweep-hull (Delaunator) triangulator of
	// github.com/fogleman/delaunay. 2d only.
	Sweep
	// BowyerWatson is an incremental cavity-retriangulation algorithm.
	BowyerWatson
)

func (m Method) String() (s string) {
	switch m {
	case Auto:
		s = "auto"
	case Sweep:
		s = "sweep"
	case BowyerWatson:
		s = "bowyer-watson"
	default:
		s = "Method(" + fmt.Sprint(int(m)) + ")"
	}
	return s
}

// ParseMethod returns the Method named by s, as returned by Method.String.
func ParseMethod(s string) (Method, error) {
	for _, m := range []Method{Auto, Sweep, BowyerWatson} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown triangulation method %q", s)
}

var (
	ErrDimension  = errors.New("triangulation dimension must be 2 or 3")
	ErrDegenerate = errors.New("no Delaunay triangulation exists for this input")
	ErrMethod     = errors.New("method does not support this operation")
)

// Triangulator computes the Delaunay triangulation of a point set.
// The returned simplices are positively oriented and reference indices of pts.
type Triangulator interface {
	Triangulate(dim int, pts []r3.Vec) ([]mesh.Simplex, error)
}

// Inserter can start an incremental triangulation to which points are
// added after construction.
type Inserter interface {
	Begin(dim int, pts []r3.Vec) (*Incremental, error)
}

var (
	_ Triangulator = Method(0)
	_ Inserter     = Method(0)
)

func (m Method) resolve(dim int) Method {
	if m == Auto {
		if dim == 2 {
			return Sweep
		}
		return BowyerWatson
	}
	return m
}

// Incremental reports whether Begin is supported by m in dimension dim.
func (m Method) Incremental(dim int) bool {
	return m.resolve(dim) == BowyerWatson
}

// Triangulate implements Triangulator. Fewer than dim+1 points yield no simplices.
func (m Method) Triangulate(dim int, pts []r3.Vec) ([]mesh.Simplex, error) {
	if dim != 2 && dim != 3 {
		return nil, ErrDimension
	}
	if len(pts) < dim+1 {
		return nil, nil
	}
	switch m.resolve(dim) {
	case Sweep:
		if dim != 2 {
			return nil, fmt.Errorf("%s: %w in %dd", m, ErrMethod, dim)
		}
		return sweepTriangulate(pts)
	case BowyerWatson:
		inc, err := newIncremental(dim, pts)
		if err != nil {
			return nil, err
		}
		return inc.Simplices(), nil
	}
	return nil, fmt.Errorf("%s: %w", m, ErrMethod)
}

// Begin implements Inserter. Only BowyerWatson (and Auto in 3d) support it.
func (m Method) Begin(dim int, pts []r3.Vec) (*Incremental, error) {
	if dim != 2 && dim != 3 {
		return nil, ErrDimension
	}
	if !m.Incremental(dim) {
		return nil, fmt.Errorf("%s: %w", m, ErrMethod)
	}
	return newIncremental(dim, pts)
}

// keepPositive drops simplices that are flat or inverted in the unperturbed
// coordinates. These arise from cocircular or collinear input which the
// perturbation resolved in an arbitrary direction.
func keepPositive(dim int, pts []r3.Vec, elems []mesh.Simplex) []mesh.Simplex {
	out := elems[:0]
	for _, s := range elems {
		if geom.Measure(dim, pts, s) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// joggleScale is the relative amplitude of the perturbation applied to
// input coordinates.
const joggleScale = 1e-8

// joggler perturbs coordinates by an amount that depends only on the point
// index and the extent of the input.
type joggler struct {
	dim int
	amp float64
}

func newJoggler(dim int, pts []r3.Vec) joggler {
	bb := d3.BoxOf(pts)
	diag := r3.Norm(bb.Size())
	if diag == 0 || math.IsNaN(diag) || math.IsInf(diag, 0) {
		diag = 1
	}
	return joggler{dim: dim, amp: joggleScale * diag}
}

func (j joggler) apply(i int, p r3.Vec) r3.Vec {
	h := splitmix(uint64(i) + 0x9e3779b97f4a7c15)
	p.X += j.amp * unitFloat(h)
	h = splitmix(h)
	p.Y += j.amp * unitFloat(h)
	if j.dim == 3 {
		h = splitmix(h)
		p.Z += j.amp * unitFloat(h)
	} else {
		p.Z = 0
	}
	return p
}

func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// unitFloat maps h onto [-1, 1).
func unitFloat(h uint64) float64 {
	return float64(h>>11)/(1<<52) - 1
}
