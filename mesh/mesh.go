// Package mesh defines the point set and simplex connectivity shared by the
// mesh generator, its triangulators and the export utilities.
package mesh

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// Simplex is a triangle (dim=2) or tetrahedron (dim=3) given by point indices.
// Triangles leave the last entry set to -1.
type Simplex [4]int

// Tri returns a 2d simplex.
func Tri(a, b, c int) Simplex { return Simplex{a, b, c, -1} }

// Tet returns a 3d simplex.
func Tet(a, b, c, d int) Simplex { return Simplex{a, b, c, d} }

// Verts returns the dim+1 used vertex indices of s.
func (s Simplex) Verts(dim int) []int {
	return s[:dim+1]
}

// Has reports whether point index i is a vertex of s.
func (s Simplex) Has(dim, i int) bool {
	for _, v := range s[:dim+1] {
		if v == i {
			return true
		}
	}
	return false
}

// Sorted returns s with its used vertices in ascending order.
// Used as a key for orientation independent comparison.
func (s Simplex) Sorted(dim int) Simplex {
	v := s[:dim+1]
	sort.Ints(v)
	return s
}

// Edge is an undirected edge between two point indices with Edge[0] < Edge[1].
type Edge [2]int

// NewEdge returns the canonical edge between a and b.
func NewEdge(a, b int) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{a, b}
}

// Edges returns the deduplicated edges of elems sorted lexicographically.
func Edges(dim int, elems []Simplex) []Edge {
	seen := make(map[Edge]struct{}, len(elems)*(dim+1))
	edges := make([]Edge, 0, len(elems)*(dim+1))
	for _, s := range elems {
		v := s.Verts(dim)
		for i := 0; i < len(v); i++ {
			for j := i + 1; j < len(v); j++ {
				e := NewEdge(v[i], v[j])
				if _, ok := seen[e]; ok {
					continue
				}
				seen[e] = struct{}{}
				edges = append(edges, e)
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})
	return edges
}

// Centroid returns the arithmetic mean of the simplex vertices.
func Centroid(dim int, pts []r3.Vec, s Simplex) r3.Vec {
	var c r3.Vec
	for _, v := range s.Verts(dim) {
		c = r3.Add(c, pts[v])
	}
	return r3.Scale(1/float64(dim+1), c)
}

// Centroids returns the centroid of every element.
func Centroids(dim int, pts []r3.Vec, elems []Simplex) []r3.Vec {
	c := make([]r3.Vec, len(elems))
	for i, s := range elems {
		c[i] = Centroid(dim, pts, s)
	}
	return c
}

// Mesh is a simplicial mesh: a point set and the simplices connecting it.
type Mesh struct {
	Dim       int
	Points    []r3.Vec
	Simplices []Simplex
}

var (
	ErrDimension = errors.New("mesh dimension must be 2 or 3")
	ErrDangling  = errors.New("mesh has points referenced by no simplex")
)

// Validate checks that every simplex references existing, distinct points and,
// when strict is set, that every point is referenced by some simplex.
func (m Mesh) Validate(strict bool) error {
	if m.Dim != 2 && m.Dim != 3 {
		return ErrDimension
	}
	used := make([]bool, len(m.Points))
	for i, s := range m.Simplices {
		v := s.Verts(m.Dim)
		for j, a := range v {
			if a < 0 || a >= len(m.Points) {
				return fmt.Errorf("simplex %d references point %d out of range [0,%d)", i, a, len(m.Points))
			}
			for _, b := range v[j+1:] {
				if a == b {
					return fmt.Errorf("simplex %d repeats point %d", i, a)
				}
			}
			used[a] = true
		}
		if m.Dim == 2 && s[3] != -1 {
			return fmt.Errorf("triangle %d has fourth vertex %d", i, s[3])
		}
	}
	if !strict {
		return nil
	}
	for i, u := range used {
		if !u {
			return fmt.Errorf("point %d: %w", i, ErrDangling)
		}
	}
	return nil
}

// Edges returns the deduplicated edge set of the mesh.
func (m Mesh) Edges() []Edge { return Edges(m.Dim, m.Simplices) }
