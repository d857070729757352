package migrate

import (
	"fmt"

	"github.com/soypat/distmesh/comm"
	"github.com/soypat/distmesh/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// Local is one rank's state at aggregation time. Points [0,len(Points)-len(Ghosts))
// are owned by the rank and the remaining ones are Ghosts in order.
type Local struct {
	Points    []r3.Vec
	Ghosts    []Ghost
	Simplices []mesh.Simplex
	Extent    Extent
}

func (l Local) owned() int { return len(l.Points) - len(l.Ghosts) }

// ref returns the owner rank and owner index of local point v.
func (l Local) ref(rank, v int) (int, int) {
	n := l.owned()
	if v < n {
		return rank, v
	}
	g := l.Ghosts[v-n]
	return g.Owner, g.Index
}

// Aggregate assembles the global mesh on the root. Every rank contributes
// its owned points and the simplices whose centroid lies in its core, so each
// simplex is contributed exactly once. The root returns the mesh with points
// numbered by rank then local index; other ranks return an empty mesh.
func Aggregate(c comm.Comm, dim int, l Local) (mesh.Mesh, error) {
	if len(l.Ghosts) > len(l.Points) {
		return mesh.Mesh{}, fmt.Errorf("aggregate: %d ghosts among %d points", len(l.Ghosts), len(l.Points))
	}
	rank := c.Rank()
	msg := meshMsg{Points: vecs(l.Points[:l.owned()])}
	for _, s := range l.Simplices {
		if !l.Extent.Owns(mesh.Centroid(dim, l.Points, s)) {
			continue
		}
		for _, v := range s.Verts(dim) {
			r, i := l.ref(rank, v)
			msg.Refs = append(msg.Refs, r, i)
		}
	}
	b, err := comm.Encode(msg)
	if err != nil {
		return mesh.Mesh{}, err
	}
	all, err := c.Gather(comm.Root, b)
	if err != nil {
		return mesh.Mesh{}, err
	}
	out := mesh.Mesh{Dim: dim}
	if rank != comm.Root {
		return out, nil
	}
	msgs := make([]meshMsg, len(all))
	offset := make([]int, len(all)+1)
	for r, b := range all {
		if err := comm.Decode(b, &msgs[r]); err != nil {
			return mesh.Mesh{}, err
		}
		offset[r+1] = offset[r] + len(msgs[r].Points)
	}
	out.Points = make([]r3.Vec, 0, offset[len(all)])
	for _, m := range msgs {
		out.Points = append(out.Points, unvecs(m.Points)...)
	}
	width := 2 * (dim + 1)
	for r, m := range msgs {
		if len(m.Refs)%width != 0 {
			return mesh.Mesh{}, fmt.Errorf("aggregate: rank %d sent %d refs", r, len(m.Refs))
		}
		for k := 0; k < len(m.Refs); k += width {
			s := mesh.Simplex{-1, -1, -1, -1}
			for j := 0; j <= dim; j++ {
				owner, idx := m.Refs[k+2*j], m.Refs[k+2*j+1]
				if owner < 0 || owner >= len(msgs) || idx < 0 || idx >= len(msgs[owner].Points) {
					return mesh.Mesh{}, fmt.Errorf("aggregate: rank %d references point %d of rank %d", r, idx, owner)
				}
				s[j] = offset[owner] + idx
			}
			out.Simplices = append(out.Simplices, s)
		}
	}
	return out, nil
}
