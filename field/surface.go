package field

import (
	"errors"
	"fmt"
	"math"

	"github.com/soypat/distmesh/internal/d3"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	_ kdtree.Interface = facets{}
	_ kdtree.Bounder   = facets{}
)

// surfaceCandidates is the number of triangles, nearest by centroid, whose
// exact distance is computed for each evaluated position.
const surfaceCandidates = 16

type surface struct {
	tree *kdtree.Tree
}

// Surface returns the signed distance field of the solid bounded by the
// closed triangle surface tris, such as the facets of an STL file. Triangles
// must be wound counter-clockwise seen from outside. The sign is taken from
// the normal of the closest triangle and may be wrong close to sharp edges.
func Surface(tris [][3]r3.Vec) (Field, error) {
	if len(tris) < 4 {
		return nil, fmt.Errorf("closed surface needs at least 4 triangles, got %d", len(tris))
	}
	fs := make(facets, len(tris))
	for i, t := range tris {
		n := r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0]))
		norm := r3.Norm(n)
		if norm == 0 || math.IsNaN(norm) {
			return nil, fmt.Errorf("triangle %d is degenerate", i)
		}
		fs[i] = facet{
			v:      t,
			normal: r3.Scale(1/norm, n),
			c:      r3.Scale(1./3, r3.Add(r3.Add(t[0], t[1]), t[2])),
		}
	}
	return &surface{tree: kdtree.New(fs, true)}, nil
}

func (s *surface) Evaluate(pos []r3.Vec, dst []float64) error {
	if err := checkLen(pos, dst); err != nil {
		return err
	}
	for i, p := range pos {
		keep := kdtree.NewNKeeper(surfaceCandidates)
		s.tree.NearestSet(keep, facet{c: p})
		best := math.Inf(1)
		var sign float64 = 1
		for _, cd := range keep.Heap {
			if cd.Comparable == nil {
				continue
			}
			f := cd.Comparable.(facet)
			q := closestOnTriangle(p, f.v)
			d := r3.Norm(r3.Sub(p, q))
			if d < best {
				best = d
				sign = math.Copysign(1, r3.Dot(r3.Sub(p, q), f.normal))
			}
		}
		if math.IsInf(best, 1) {
			return errors.New("surface: no candidate triangle found")
		}
		dst[i] = sign * best
	}
	return nil
}

// closestOnTriangle returns the point of triangle t closest to p.
func closestOnTriangle(p r3.Vec, t [3]r3.Vec) r3.Vec {
	a, b, c := t[0], t[1], t[2]
	ab, ac, ap := r3.Sub(b, a), r3.Sub(c, a), r3.Sub(p, a)
	s1, s2 := r3.Dot(ab, ap), r3.Dot(ac, ap)
	if s1 <= 0 && s2 <= 0 {
		return a
	}
	bp := r3.Sub(p, b)
	s3, s4 := r3.Dot(ab, bp), r3.Dot(ac, bp)
	if s3 >= 0 && s4 <= s3 {
		return b
	}
	vc := s1*s4 - s3*s2
	if vc <= 0 && s1 >= 0 && s3 <= 0 {
		return r3.Add(a, r3.Scale(s1/(s1-s3), ab))
	}
	cp := r3.Sub(p, c)
	s5, s6 := r3.Dot(ab, cp), r3.Dot(ac, cp)
	if s6 >= 0 && s5 <= s6 {
		return c
	}
	vb := s5*s2 - s1*s6
	if vb <= 0 && s2 >= 0 && s6 <= 0 {
		return r3.Add(a, r3.Scale(s2/(s2-s6), ac))
	}
	va := s3*s6 - s5*s4
	if va <= 0 && s4-s3 >= 0 && s5-s6 >= 0 {
		w := (s4 - s3) / ((s4 - s3) + (s5 - s6))
		return r3.Add(b, r3.Scale(w, r3.Sub(c, b)))
	}
	denom := 1 / (va + vb + vc)
	v, w := vb*denom, vc*denom
	return r3.Add(a, r3.Add(r3.Scale(v, ab), r3.Scale(w, ac)))
}

// facet is a surface triangle stored in the kd-tree by its centroid.
type facet struct {
	v      [3]r3.Vec
	normal r3.Vec
	c      r3.Vec
}

type facets []facet

func (fs facets) Index(i int) kdtree.Comparable { return fs[i] }

func (fs facets) Len() int { return len(fs) }

func (fs facets) Pivot(d kdtree.Dim) int {
	p := facetPlane{dim: int(d), facets: fs}
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

func (fs facets) Slice(start, end int) kdtree.Interface { return fs[start:end] }

func (fs facets) Bounds() *kdtree.Bounding {
	min := r3.Vec{X: math.MaxFloat64, Y: math.MaxFloat64, Z: math.MaxFloat64}
	max := r3.Scale(-1, min)
	for _, f := range fs {
		min = d3.MinElem(min, f.c)
		max = d3.MaxElem(max, f.c)
	}
	return &kdtree.Bounding{Min: facet{c: min}, Max: facet{c: max}}
}

// Compare returns the signed distance of a's centroid from the plane
// through b's centroid perpendicular to dimension d.
func (a facet) Compare(b kdtree.Comparable, d kdtree.Dim) float64 {
	return d3.Comp(a.c, int(d)) - d3.Comp(b.(facet).c, int(d))
}

func (a facet) Dims() int { return 3 }

// Distance returns the squared distance between centroids.
func (a facet) Distance(b kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(a.c, b.(facet).c))
}

type facetPlane struct {
	dim    int
	facets facets
}

func (p facetPlane) Less(i, j int) bool {
	return d3.Comp(p.facets[i].c, p.dim) < d3.Comp(p.facets[j].c, p.dim)
}

func (p facetPlane) Swap(i, j int) { p.facets[i], p.facets[j] = p.facets[j], p.facets[i] }

func (p facetPlane) Len() int { return len(p.facets) }

func (p facetPlane) Slice(start, end int) kdtree.SortSlicer {
	p.facets = p.facets[start:end]
	return p
}
