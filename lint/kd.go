package lint

import (
	"math"

	"github.com/soypat/distmesh/internal/d3"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// vertex is a mesh point tagged with its index in the caller's slice since
// kdtree.New reorders the list it is given.
type vertex struct {
	P   r3.Vec
	idx int
	dim int
}

var _ kdtree.Comparable = (*vertex)(nil)

func (v *vertex) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(*vertex)
	switch d {
	case 0:
		return v.P.X - q.P.X
	case 1:
		return v.P.Y - q.P.Y
	case 2:
		return v.P.Z - q.P.Z
	}
	panic("unreachable")
}

func (v *vertex) Dims() int { return v.dim }

// Distance returns the squared euclidean distance between vertices.
func (v *vertex) Distance(c kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(v.P, c.(*vertex).P))
}

// cloud is the kdtree.Interface over a vertex list.
type cloud struct {
	vertices []vertex
}

var _ kdtree.Interface = (*cloud)(nil)

func newCloud(dim int, pts []r3.Vec) *cloud {
	c := &cloud{vertices: make([]vertex, len(pts))}
	for i, p := range pts {
		c.vertices[i] = vertex{P: p, idx: i, dim: dim}
	}
	return c
}

func (c *cloud) Index(i int) kdtree.Comparable { return &c.vertices[i] }

func (c *cloud) Len() int { return len(c.vertices) }

// Pivot partitions the list along dimension d.
func (c *cloud) Pivot(d kdtree.Dim) int {
	p := axisSorter{dim: d, vertices: c.vertices}
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

func (c *cloud) Slice(start, end int) kdtree.Interface {
	sub := *c
	sub.vertices = sub.vertices[start:end]
	return &sub
}

// Bounds implements kdtree.Bounder over the current (possibly reordered) list.
func (c *cloud) Bounds() *kdtree.Bounding {
	min := vertex{P: d3.Elem(math.MaxFloat64)}
	max := vertex{P: d3.Elem(-math.MaxFloat64)}
	for _, v := range c.vertices {
		min.P = d3.MinElem(min.P, v.P)
		max.P = d3.MaxElem(max.P, v.P)
	}
	if len(c.vertices) > 0 {
		min.dim = c.vertices[0].dim
		max.dim = min.dim
	}
	return &kdtree.Bounding{Min: &min, Max: &max}
}

type axisSorter struct {
	dim      kdtree.Dim
	vertices []vertex
}

func (p axisSorter) Less(i, j int) bool {
	return p.vertices[i].Compare(&p.vertices[j], p.dim) < 0
}

func (p axisSorter) Swap(i, j int) {
	p.vertices[i], p.vertices[j] = p.vertices[j], p.vertices[i]
}

func (p axisSorter) Len() int { return len(p.vertices) }

func (p axisSorter) Slice(start, end int) kdtree.SortSlicer {
	p.vertices = p.vertices[start:end]
	return p
}

// within returns the indices of the points within tol of q, q included.
func within(tree *kdtree.Tree, q *vertex, tol float64) []int {
	keep := kdtree.NewDistKeeper(tol * tol)
	tree.NearestSet(keep, q)
	var idx []int
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue // Sentinel.
		}
		idx = append(idx, c.Comparable.(*vertex).idx)
	}
	return idx
}
