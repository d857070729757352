package delaunay

import (
	"math"
	"sort"

	"github.com/soypat/distmesh/geom"
	"github.com/soypat/distmesh/internal/d3"
	"github.com/soypat/distmesh/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// superScale is the size of the enclosing super simplex relative to the
// radius of the triangulated region.
const superScale = 100

// Incremental is a Delaunay triangulation built by Bowyer-Watson insertion.
// Points are referenced by their insertion order: the points given to Begin
// take indices [0,n) and each later Insert continues the numbering.
type Incremental struct {
	dim     int
	jog     joggler
	pts     []r3.Vec // joggled coordinates by point index
	orig    []r3.Vec
	super   [4]r3.Vec
	cells   []cell
	faces   map[faceKey][2]int
	recent  []int
	stamp   []int
	epoch   int
	seen    map[r3.Vec]struct{}
	skipped int
	dead    int
}

type cell struct {
	v      mesh.Simplex
	center r3.Vec
	r2     float64
	dead   bool
}

// faceKey identifies a cell facet by its sorted vertex indices.
// 2d facets leave the last entry at -1.
type faceKey [3]int

// Super simplex vertices use indices below -1 so they never collide with
// point indices nor with the unused fourth vertex of triangles.
func superID(j int) int { return -2 - j }

func newIncremental(dim int, pts []r3.Vec) (*Incremental, error) {
	return NewIncremental(dim, r3.Box(d3.BoxOf(pts)), pts)
}

// NewIncremental starts a Bowyer-Watson triangulation of pts. bounds should
// enclose every point that will ever be inserted; it is extended to contain pts.
func NewIncremental(dim int, bounds r3.Box, pts []r3.Vec) (*Incremental, error) {
	if dim != 2 && dim != 3 {
		return nil, ErrDimension
	}
	bb := d3.Box(bounds)
	if len(pts) > 0 {
		bb = bb.Extend(d3.BoxOf(pts))
	}
	if dim == 2 {
		bb.Min.Z, bb.Max.Z = 0, 0
	}
	t := &Incremental{
		dim:   dim,
		jog:   newJoggler(dim, []r3.Vec{bb.Min, bb.Max}),
		faces: make(map[faceKey][2]int),
		seen:  make(map[r3.Vec]struct{}),
	}
	c := bb.Center()
	R := r3.Norm(bb.Size()) / 2
	if R == 0 || math.IsNaN(R) || math.IsInf(R, 0) {
		R = 1
	}
	k := superScale * R
	var first mesh.Simplex
	if dim == 2 {
		for j := 0; j < 3; j++ {
			ang := math.Pi/2 + float64(j)*2*math.Pi/3
			t.super[j] = r3.Vec{X: c.X + k*math.Cos(ang), Y: c.Y + k*math.Sin(ang)}
		}
		first = mesh.Tri(superID(0), superID(1), superID(2))
	} else {
		dirs := [4]r3.Vec{{X: 1, Y: 1, Z: 1}, {X: -1, Y: 1, Z: -1}, {X: 1, Y: -1, Z: -1}, {X: -1, Y: -1, Z: 1}}
		for j, d := range dirs {
			t.super[j] = r3.Add(c, r3.Scale(k, d))
		}
		first = mesh.Tet(superID(0), superID(1), superID(2), superID(3))
	}
	t.addCell(first)
	t.Insert(pts...)
	return t, nil
}

// Len returns the number of points given to the triangulation, including
// skipped ones.
func (t *Incremental) Len() int { return len(t.pts) }

// Skipped returns how many points could not be inserted, either because they
// duplicate an earlier point or because they fall outside the triangulated region.
func (t *Incremental) Skipped() int { return t.skipped }

// Insert adds pts to the triangulation. They are assigned indices starting at
// the Len before the call. It returns how many of them were skipped.
func (t *Incremental) Insert(pts ...r3.Vec) (skipped int) {
	first := len(t.pts)
	for i, p := range pts {
		t.pts = append(t.pts, t.jog.apply(first+i, p))
		t.orig = append(t.orig, p)
	}
	order := make([]int, len(pts))
	for i := range order {
		order[i] = first + i
	}
	t.spatialSort(order)
	for _, idx := range order {
		key := pts[idx-first]
		if t.dim == 2 {
			key.Z = 0
		}
		if _, dup := t.seen[key]; dup {
			skipped++
			continue
		}
		if !t.insert(idx) {
			skipped++
			continue
		}
		t.seen[key] = struct{}{}
	}
	t.skipped += skipped
	return skipped
}

// Simplices returns the simplices not touching the super simplex,
// positively oriented with respect to the inserted coordinates.
func (t *Incremental) Simplices() []mesh.Simplex {
	var out []mesh.Simplex
outer:
	for _, c := range t.cells {
		if c.dead {
			continue
		}
		for _, v := range c.v.Verts(t.dim) {
			if v < 0 {
				continue outer
			}
		}
		out = append(out, c.v)
	}
	return keepPositive(t.dim, t.orig, out)
}

func (t *Incremental) coord(i int) r3.Vec {
	if i >= 0 {
		return t.pts[i]
	}
	return t.super[-i-2]
}

func (t *Incremental) measure(s mesh.Simplex) float64 {
	if t.dim == 2 {
		return geom.Orient2(t.coord(s[0]), t.coord(s[1]), t.coord(s[2]))
	}
	return geom.SignedVolume(t.coord(s[0]), t.coord(s[1]), t.coord(s[2]), t.coord(s[3]))
}

func (t *Incremental) face(s mesh.Simplex, k int) faceKey {
	key := faceKey{-1, -1, -1}
	n := 0
	for j, v := range s.Verts(t.dim) {
		if j != k {
			key[n] = v
			n++
		}
	}
	sort.Ints(key[:n])
	return key
}

func (t *Incremental) addCell(s mesh.Simplex) int {
	var c cell
	c.v = s
	if t.dim == 2 {
		c.center, c.r2 = geom.Circumcircle(t.coord(s[0]), t.coord(s[1]), t.coord(s[2]))
	} else {
		c.center, c.r2 = geom.Circumsphere(t.coord(s[0]), t.coord(s[1]), t.coord(s[2]), t.coord(s[3]))
	}
	id := len(t.cells)
	t.cells = append(t.cells, c)
	t.stamp = append(t.stamp, 0)
	for k := 0; k <= t.dim; k++ {
		key := t.face(s, k)
		slot, ok := t.faces[key]
		if !ok {
			slot = [2]int{-1, -1}
		}
		if slot[0] < 0 {
			slot[0] = id
		} else {
			slot[1] = id
		}
		t.faces[key] = slot
	}
	return id
}

func (t *Incremental) killCell(id int) {
	t.cells[id].dead = true
	t.dead++
	s := t.cells[id].v
	for k := 0; k <= t.dim; k++ {
		key := t.face(s, k)
		slot := t.faces[key]
		if slot[0] == id {
			slot[0] = slot[1]
		}
		slot[1] = -1
		if slot[0] < 0 {
			delete(t.faces, key)
		} else {
			t.faces[key] = slot
		}
	}
}

// neighbor returns the cell across face k of cell id or -1.
func (t *Incremental) neighbor(id, k int) int {
	slot, ok := t.faces[t.face(t.cells[id].v, k)]
	if !ok {
		return -1
	}
	if slot[0] == id {
		return slot[1]
	}
	return slot[0]
}

func (t *Incremental) conflicts(id int, p r3.Vec) bool {
	c := &t.cells[id]
	return !c.dead && r3.Norm2(r3.Sub(p, c.center)) < c.r2
}

// locate returns a cell whose circumball contains p, or -1. It walks from
// the most recently created cells towards p across the facets p lies beyond.
func (t *Incremental) locate(p r3.Vec) int {
	for _, id := range t.recent {
		if t.conflicts(id, p) {
			return id
		}
	}
	id := t.start()
	for steps := 0; id >= 0 && steps < len(t.cells); steps++ {
		next := -1
		for k := 0; k <= t.dim; k++ {
			if t.measureWith(t.cells[id].v, k, p) < 0 {
				next = t.neighbor(id, k)
				break
			}
		}
		if next < 0 {
			break
		}
		id = next
	}
	if id >= 0 && t.conflicts(id, p) {
		return id
	}
	for id := len(t.cells) - 1; id >= 0; id-- {
		if t.conflicts(id, p) {
			return id
		}
	}
	return -1
}

// start returns a live cell to begin a walk from.
func (t *Incremental) start() int {
	if len(t.recent) > 0 {
		return t.recent[0]
	}
	for id := len(t.cells) - 1; id >= 0; id-- {
		if !t.cells[id].dead {
			return id
		}
	}
	return -1
}

// measureWith returns the signed measure of s with vertex k replaced by p.
func (t *Incremental) measureWith(s mesh.Simplex, k int, p r3.Vec) float64 {
	var v [4]r3.Vec
	for j := 0; j <= t.dim; j++ {
		v[j] = t.coord(s[j])
	}
	v[k] = p
	if t.dim == 2 {
		return geom.Orient2(v[0], v[1], v[2])
	}
	return geom.SignedVolume(v[0], v[1], v[2], v[3])
}

// compact drops dead cells and renumbers the live ones.
func (t *Incremental) compact() {
	remap := make([]int, len(t.cells))
	live := t.cells[:0]
	for id, c := range t.cells {
		if c.dead {
			remap[id] = -1
			continue
		}
		remap[id] = len(live)
		live = append(live, c)
	}
	t.cells = live
	t.stamp = t.stamp[:len(live)]
	for i := range t.stamp {
		t.stamp[i] = 0
	}
	for key, slot := range t.faces {
		for j, id := range slot {
			if id >= 0 {
				slot[j] = remap[id]
			}
		}
		t.faces[key] = slot
	}
	for i, id := range t.recent {
		t.recent[i] = remap[id]
	}
	t.dead = 0
}

type facet struct {
	cell, k int
}

func (t *Incremental) insert(idx int) bool {
	if t.dead > 64 && 2*t.dead > len(t.cells) {
		t.compact()
	}
	p := t.pts[idx]
	seed := t.locate(p)
	if seed < 0 {
		return false
	}
	// Grow the cavity of cells in conflict with p.
	t.epoch++
	cavity := []int{seed}
	t.stamp[seed] = t.epoch
	for i := 0; i < len(cavity); i++ {
		for k := 0; k <= t.dim; k++ {
			n := t.neighbor(cavity[i], k)
			if n >= 0 && t.stamp[n] != t.epoch && t.conflicts(n, p) {
				t.stamp[n] = t.epoch
				cavity = append(cavity, n)
			}
		}
	}
	// Shrink the cavity until p sees every boundary facet.
	var boundary []facet
	for {
		boundary = boundary[:0]
		dropped := false
		for _, id := range cavity {
			for k := 0; k <= t.dim; k++ {
				n := t.neighbor(id, k)
				if n >= 0 && t.stamp[n] == t.epoch {
					continue
				}
				s := t.cells[id].v
				s[k] = idx
				if t.measure(s) <= 0 {
					t.stamp[id] = 0
					dropped = true
					break
				}
				boundary = append(boundary, facet{cell: id, k: k})
			}
		}
		if !dropped {
			break
		}
		kept := cavity[:0]
		for _, id := range cavity {
			if t.stamp[id] == t.epoch {
				kept = append(kept, id)
			}
		}
		cavity = kept
		if len(cavity) == 0 {
			return false
		}
	}
	newCells := make([]mesh.Simplex, len(boundary))
	for i, f := range boundary {
		s := t.cells[f.cell].v
		s[f.k] = idx
		newCells[i] = s
	}
	for _, id := range cavity {
		t.killCell(id)
	}
	t.recent = t.recent[:0]
	for _, s := range newCells {
		t.recent = append(t.recent, t.addCell(s))
	}
	return true
}

// spatialSort orders point indices along a Morton curve so consecutive
// insertions are close to each other.
func (t *Incremental) spatialSort(idx []int) {
	if len(idx) < 2 {
		return
	}
	set := make([]r3.Vec, len(idx))
	for i, id := range idx {
		set[i] = t.pts[id]
	}
	bb := d3.BoxOf(set)
	size := bb.Size()
	ext := math.Max(d3.Max(size), 1e-300)
	const bits = 1<<21 - 1
	code := func(p r3.Vec) uint64 {
		q := r3.Scale(bits/ext, r3.Sub(p, bb.Min))
		return spread(uint64(q.X)) | spread(uint64(q.Y))<<1 | spread(uint64(q.Z))<<2
	}
	keys := make(map[int]uint64, len(idx))
	for _, id := range idx {
		keys[id] = code(t.pts[id])
	}
	sort.SliceStable(idx, func(i, j int) bool { return keys[idx[i]] < keys[idx[j]] })
}

// spread interleaves the low 21 bits of v with two zero bits each.
func spread(v uint64) uint64 {
	v &= 0x1fffff
	v = (v | v<<32) & 0x1f00000000ffff
	v = (v | v<<16) & 0x1f0000ff0000ff
	v = (v | v<<8) & 0x100f00f00f00f00f
	v = (v | v<<4) & 0x10c30c30c30c30c3
	v = (v | v<<2) & 0x1249249249249249
	return v
}
