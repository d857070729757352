package migrate

import (
	"fmt"
	"sort"

	"github.com/soypat/distmesh/comm"
	"github.com/soypat/distmesh/geom"
	"github.com/soypat/distmesh/internal/d3"
	"github.com/soypat/distmesh/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// Localize distributes initial points from the root. On the root blocks and
// extents hold one entry per rank, as returned by Partition; other ranks pass nil.
// Every rank receives its block, its extent and the extent table.
func Localize(c comm.Comm, blocks [][]r3.Vec, extents []Extent) (pts []r3.Vec, all []Extent, err error) {
	var parts [][]byte
	if c.Rank() == comm.Root {
		if len(blocks) != c.Size() || len(extents) != c.Size() {
			return nil, nil, fmt.Errorf("localize: %d blocks and %d extents for %d ranks", len(blocks), len(extents), c.Size())
		}
		wext := make([]wireExtent, len(extents))
		for i, e := range extents {
			wext[i] = toWireExtent(e)
		}
		parts = make([][]byte, c.Size())
		for i := range parts {
			parts[i], err = comm.Encode(localizeMsg{Points: vecs(blocks[i]), Extents: wext})
			if err != nil {
				return nil, nil, err
			}
		}
	}
	b, err := c.Scatter(comm.Root, parts)
	if err != nil {
		return nil, nil, err
	}
	var msg localizeMsg
	if err := comm.Decode(b, &msg); err != nil {
		return nil, nil, err
	}
	all = make([]Extent, len(msg.Extents))
	for i, w := range msg.Extents {
		all[i] = w.extent()
	}
	return unvecs(msg.Points), all, nil
}

// ShareExtents returns the extent table of all ranks, indexed by rank.
func ShareExtents(c comm.Comm, e Extent) ([]Extent, error) {
	b, err := comm.Encode(toWireExtent(e))
	if err != nil {
		return nil, err
	}
	all, err := c.AllGather(b)
	if err != nil {
		return nil, err
	}
	ext := make([]Extent, len(all))
	for i, b := range all {
		var w wireExtent
		if err := comm.Decode(b, &w); err != nil {
			return nil, err
		}
		ext[i] = w.extent()
	}
	return ext, nil
}

// Exports lists, per destination rank, the sorted local indices of the points
// to send there. The entry of the calling rank is always empty.
type Exports [][]int

// Len returns the total number of exported points.
func (ex Exports) Len() (n int) {
	for _, l := range ex {
		n += len(l)
	}
	return n
}

// Enqueue decides which owned points other ranks need to triangulate their
// sub-domain correctly. Vertices of an element go to every other rank whose
// padded box intersects the element's circumball, and owned points lying in
// another rank's padded box are sent to that rank. Only points with index
// below nOwned are considered.
func Enqueue(dim int, extents []Extent, rank int, pts []r3.Vec, nOwned int, elems []mesh.Simplex) Exports {
	marks := make([]map[int]struct{}, len(extents))
	add := func(dst, i int) {
		if dst == rank || i >= nOwned {
			return
		}
		if marks[dst] == nil {
			marks[dst] = make(map[int]struct{})
		}
		marks[dst][i] = struct{}{}
	}
	for _, s := range elems {
		c, r := geom.Circumball(dim, pts, s)
		for dst, e := range extents {
			if dst == rank || !d3.Box(e.Box).IntersectsBall(c, r) {
				continue
			}
			for _, v := range s.Verts(dim) {
				add(dst, v)
			}
		}
	}
	for i := 0; i < nOwned && i < len(pts); i++ {
		for dst, e := range extents {
			if e.Contains(pts[i]) {
				add(dst, i)
			}
		}
	}
	ex := make(Exports, len(extents))
	for dst, m := range marks {
		if len(m) == 0 {
			continue
		}
		list := make([]int, 0, len(m))
		for i := range m {
			list = append(list, i)
		}
		sort.Ints(list)
		ex[dst] = list
	}
	return ex
}

// Ghost is a point received from another rank.
type Ghost struct {
	Pos   r3.Vec
	Owner int // rank owning the point
	Index int // index of the point on its owner
}

// Exchange sends the exported points and returns the points other ranks
// exported to the caller, ordered by owner rank then owner index.
// It is a collective: no rank returns before every rank has sent its exports.
func Exchange(c comm.Comm, pts []r3.Vec, ex Exports) ([]Ghost, error) {
	if len(ex) != c.Size() {
		return nil, fmt.Errorf("exchange: exports for %d ranks, communicator has %d", len(ex), c.Size())
	}
	parts := make([][]byte, c.Size())
	for dst, list := range ex {
		if dst == c.Rank() {
			continue
		}
		msg := pointsMsg{Points: make([][3]float64, len(list)), Index: list}
		for j, i := range list {
			msg.Points[j] = vec(pts[i])
		}
		b, err := comm.Encode(msg)
		if err != nil {
			return nil, err
		}
		parts[dst] = b
	}
	got, err := c.AllToAll(parts)
	if err != nil {
		return nil, err
	}
	var ghosts []Ghost
	for src, b := range got {
		if src == c.Rank() {
			continue
		}
		var msg pointsMsg
		if err := comm.Decode(b, &msg); err != nil {
			return nil, err
		}
		if len(msg.Index) != len(msg.Points) {
			return nil, fmt.Errorf("exchange: rank %d sent %d points with %d indices", src, len(msg.Points), len(msg.Index))
		}
		for j, p := range msg.Points {
			ghosts = append(ghosts, Ghost{Pos: unvec(p), Owner: src, Index: msg.Index[j]})
		}
	}
	return ghosts, nil
}

// RemoveExternal drops the elements with every vertex outside the padded box of e.
func RemoveExternal(dim int, e Extent, pts []r3.Vec, elems []mesh.Simplex) []mesh.Simplex {
	out := elems[:0]
	for _, s := range elems {
		for _, v := range s.Verts(dim) {
			if e.Contains(pts[v]) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}
