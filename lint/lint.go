// Package lint cleans and inspects simplicial meshes after generation:
// duplicate points are merged, degenerate and repeated simplices dropped,
// orientation made positive and unreferenced points removed.
package lint

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/soypat/distmesh/geom"
	"github.com/soypat/distmesh/mesh"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// MergeDuplicates collapses points closer than tol onto the lowest indexed
// point of their cluster and remaps elems accordingly. Elements are modified
// in place; merged points are left unreferenced for DeleteUnused to remove.
// It returns the number of points merged away.
func MergeDuplicates(dim int, pts []r3.Vec, elems []mesh.Simplex, tol float64) int {
	if len(pts) < 2 || !(tol > 0) {
		return 0
	}
	tree := kdtree.New(newCloud(dim, pts), true)
	target := make([]int, len(pts))
	for i := range target {
		target[i] = -1
	}
	merged := 0
	for i, p := range pts {
		if target[i] >= 0 {
			continue
		}
		target[i] = i
		q := vertex{P: p, idx: i, dim: dim}
		for _, j := range within(tree, &q, tol) {
			if target[j] < 0 {
				target[j] = i
				merged++
			}
		}
	}
	if merged == 0 {
		return 0
	}
	for k := range elems {
		for v := 0; v <= dim; v++ {
			elems[k][v] = target[elems[k][v]]
		}
	}
	return merged
}

// DeleteUnused removes points referenced by no element, preserving the
// relative order of the remaining points. remap[i] is the new index of old
// point i or -1 if it was removed.
func DeleteUnused(dim int, pts []r3.Vec, elems []mesh.Simplex) (_ []r3.Vec, _ []mesh.Simplex, remap []int) {
	remap = make([]int, len(pts))
	for i := range remap {
		remap[i] = -1
	}
	for _, s := range elems {
		for _, v := range s.Verts(dim) {
			remap[v] = 0
		}
	}
	kept := make([]r3.Vec, 0, len(pts))
	for i, p := range pts {
		if remap[i] < 0 {
			continue
		}
		remap[i] = len(kept)
		kept = append(kept, p)
	}
	out := make([]mesh.Simplex, len(elems))
	for k, s := range elems {
		out[k] = s
		for v := 0; v <= dim; v++ {
			out[k][v] = remap[s[v]]
		}
	}
	return kept, out, remap
}

// RemoveDegenerate drops elements that repeat a vertex, have an absolute
// measure at or below minMeasure, or duplicate an earlier element's vertex set.
func RemoveDegenerate(dim int, pts []r3.Vec, elems []mesh.Simplex, minMeasure float64) []mesh.Simplex {
	seen := make(map[mesh.Simplex]struct{}, len(elems))
	out := elems[:0]
	for _, s := range elems {
		key := s.Sorted(dim)
		if repeats(dim, key) || math.Abs(geom.Measure(dim, pts, s)) <= minMeasure {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

func repeats(dim int, sorted mesh.Simplex) bool {
	for i := 1; i <= dim; i++ {
		if sorted[i] == sorted[i-1] {
			return true
		}
	}
	return false
}

// Orient swaps two vertices of every negatively oriented element so that all
// elements have positive measure. It returns the number of elements flipped.
func Orient(dim int, pts []r3.Vec, elems []mesh.Simplex) int {
	flipped := 0
	for k := range elems {
		if geom.Measure(dim, pts, elems[k]) < 0 {
			elems[k][1], elems[k][2] = elems[k][2], elems[k][1]
			flipped++
		}
	}
	return flipped
}

// Fix applies MergeDuplicates, RemoveDegenerate, Orient and DeleteUnused in
// that order. Points closer than tol are merged and elements with measure at
// or below tol^dim are dropped. The input mesh is not modified.
func Fix(m mesh.Mesh, tol float64) (mesh.Mesh, error) {
	if err := m.Validate(false); err != nil {
		return mesh.Mesh{}, fmt.Errorf("lint: %w", err)
	}
	pts := append([]r3.Vec(nil), m.Points...)
	elems := append([]mesh.Simplex(nil), m.Simplices...)
	MergeDuplicates(m.Dim, pts, elems, tol)
	elems = RemoveDegenerate(m.Dim, pts, elems, math.Pow(tol, float64(m.Dim)))
	Orient(m.Dim, pts, elems)
	pts, elems, _ = DeleteUnused(m.Dim, pts, elems)
	return mesh.Mesh{Dim: m.Dim, Points: pts, Simplices: elems}, nil
}

// Report summarizes the quality of a mesh. Angles are the interior angles of
// triangles in 2D and the dihedral angles of tetrahedra in 3D, in degrees.
type Report struct {
	Points    int
	Simplices int
	Dangling  int
	Inverted  int
	// Degenerate counts elements with zero measure.
	Degenerate int
	MinAngle   float64
	MaxAngle   float64
	// Slivers counts elements with an angle outside the bounds given to Check.
	Slivers int
}

// Check inspects m and counts elements with an angle outside
// [minDeg, maxDeg] as slivers. The mesh must reference valid point indices.
func Check(m mesh.Mesh, minDeg, maxDeg float64) (Report, error) {
	if err := m.Validate(false); err != nil {
		return Report{}, fmt.Errorf("lint: %w", err)
	}
	r := Report{
		Points:    len(m.Points),
		Simplices: len(m.Simplices),
		MinAngle:  math.Inf(1),
		MaxAngle:  math.Inf(-1),
	}
	used := make([]bool, len(m.Points))
	pts := m.Points
	for _, s := range m.Simplices {
		for _, v := range s.Verts(m.Dim) {
			used[v] = true
		}
		vol := geom.Measure(m.Dim, pts, s)
		switch {
		case vol == 0:
			r.Degenerate++
			continue
		case vol < 0:
			r.Inverted++
		}
		var lo, hi float64
		if m.Dim == 2 {
			ang := geom.TriangleAngles(pts[s[0]], pts[s[1]], pts[s[2]])
			lo, hi = geom.MinMax(ang[:])
		} else {
			ang := geom.DihedralAngles(pts[s[0]], pts[s[1]], pts[s[2]], pts[s[3]])
			lo, hi = geom.MinMax(ang[:])
		}
		r.MinAngle = math.Min(r.MinAngle, lo)
		r.MaxAngle = math.Max(r.MaxAngle, hi)
		if lo < minDeg || hi > maxDeg {
			r.Slivers++
		}
	}
	for _, u := range used {
		if !u {
			r.Dangling++
		}
	}
	return r, nil
}

// LogValue implements slog.LogValuer.
func (r Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("points", r.Points),
		slog.Int("simplices", r.Simplices),
		slog.Int("dangling", r.Dangling),
		slog.Int("inverted", r.Inverted),
		slog.Int("degenerate", r.Degenerate),
		slog.Float64("min_angle", r.MinAngle),
		slog.Float64("max_angle", r.MaxAngle),
		slog.Int("slivers", r.Slivers),
	)
}
