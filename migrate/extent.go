// Package migrate decomposes a point set into slabs owned by ranks and moves
// points between ranks: initial distribution, per iteration ghost point
// exchange and final aggregation of the global mesh on the root rank.
package migrate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/soypat/distmesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Extent is the region of space a rank is authoritative for.
// The core is the half open interval [CoreMin, CoreMax) along Axis; cores of
// all ranks partition the axis. Box is the core widened by the padding on
// its slab facing sides and spans the whole domain along the other axes.
type Extent struct {
	Box     r3.Box
	Axis    int
	CoreMin float64
	CoreMax float64
}

// Contains reports whether p lies in the padded box.
func (e Extent) Contains(p r3.Vec) bool { return d3.Box(e.Box).Contains(p) }

// Owns reports whether p lies in the core.
func (e Extent) Owns(p r3.Vec) bool {
	x := d3.Comp(p, e.Axis)
	return e.CoreMin <= x && x < e.CoreMax
}

var errAxis = errors.New("decomposition axis out of range")

func checkDecomp(dim, n, axis int) error {
	if dim != 2 && dim != 3 {
		return fmt.Errorf("dimension %d not 2 or 3", dim)
	}
	if axis < 0 || axis >= dim {
		return fmt.Errorf("%w: %d", errAxis, axis)
	}
	if n < 1 {
		return fmt.Errorf("cannot decompose into %d ranks", n)
	}
	return nil
}

// padBox grows bbox by pad along every axis of the problem dimension.
func padBox(dim int, bbox r3.Box, pad float64) r3.Box {
	b := d3.Box(bbox).Enlarge(pad)
	if dim == 2 {
		b.Min.Z, b.Max.Z = bbox.Min.Z, bbox.Max.Z
	}
	return r3.Box(b)
}

// extentsFromCuts builds extents from n+1 increasing cut positions along axis.
// The first and last cores extend to infinity.
func extentsFromCuts(dim int, bbox r3.Box, axis int, cuts []float64, pad float64) []Extent {
	n := len(cuts) - 1
	outer := padBox(dim, bbox, pad)
	ext := make([]Extent, n)
	for i := range ext {
		e := Extent{Axis: axis, CoreMin: cuts[i], CoreMax: cuts[i+1], Box: outer}
		lo := math.Max(cuts[i]-pad, d3.Comp(outer.Min, axis))
		hi := math.Min(cuts[i+1]+pad, d3.Comp(outer.Max, axis))
		e.Box.Min = d3.SetComp(e.Box.Min, axis, lo)
		e.Box.Max = d3.SetComp(e.Box.Max, axis, hi)
		if i == 0 {
			e.CoreMin = math.Inf(-1)
		}
		if i == n-1 {
			e.CoreMax = math.Inf(1)
		}
		ext[i] = e
	}
	return ext
}

// SlabExtents splits bbox into n slabs of equal width along axis, each padded by pad.
func SlabExtents(dim int, bbox r3.Box, n, axis int, pad float64) ([]Extent, error) {
	if err := checkDecomp(dim, n, axis); err != nil {
		return nil, err
	}
	lo, hi := d3.Comp(bbox.Min, axis), d3.Comp(bbox.Max, axis)
	if !(hi > lo) {
		return nil, errors.New("empty bounding box along decomposition axis")
	}
	cuts := make([]float64, n+1)
	for i := range cuts {
		cuts[i] = lo + (hi-lo)*float64(i)/float64(n)
	}
	return extentsFromCuts(dim, bbox, axis, cuts, pad), nil
}

// Partition splits pts into n contiguous blocks of equal count along axis.
// Cores are cut halfway between neighboring blocks and padded by pad.
// The returned blocks keep the relative input order of their points.
func Partition(dim int, pts []r3.Vec, n, axis int, pad float64) (blocks [][]r3.Vec, extents []Extent, err error) {
	if err := checkDecomp(dim, n, axis); err != nil {
		return nil, nil, err
	}
	if len(pts) < n {
		return nil, nil, fmt.Errorf("cannot split %d points among %d ranks", len(pts), n)
	}
	order := make([]int, len(pts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return d3.Comp(pts[order[i]], axis) < d3.Comp(pts[order[j]], axis)
	})
	cuts := make([]float64, n+1)
	bounds := make([]int, n+1)
	for i := 0; i <= n; i++ {
		bounds[i] = i * len(pts) / n
	}
	cuts[0] = d3.Comp(pts[order[0]], axis)
	cuts[n] = d3.Comp(pts[order[len(order)-1]], axis)
	for i := 1; i < n; i++ {
		a := d3.Comp(pts[order[bounds[i]-1]], axis)
		b := d3.Comp(pts[order[bounds[i]]], axis)
		cuts[i] = (a + b) / 2
	}
	bbox := r3.Box(d3.BoxOf(pts))
	extents = extentsFromCuts(dim, bbox, axis, cuts, pad)
	// Points equal to a cut belong to the upper core; assign by core so that
	// blocks always agree with Owns.
	blocks = make([][]r3.Vec, n)
	for _, p := range pts {
		r := owner(extents, p)
		blocks[r] = append(blocks[r], p)
	}
	return blocks, extents, nil
}

// owner returns the index of the extent whose core contains p.
func owner(extents []Extent, p r3.Vec) int {
	for i, e := range extents {
		if e.Owns(p) {
			return i
		}
	}
	return len(extents) - 1 // NaN coordinates.
}
