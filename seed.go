package distmesh

import (
	"fmt"
	"math"

	"github.com/soypat/distmesh/comm"
	"github.com/soypat/distmesh/field"
	"github.com/soypat/distmesh/internal/d3"
	"github.com/soypat/distmesh/migrate"
	"gonum.org/v1/gonum/spatial/r3"
)

// lattice returns the points of the regular grid of spacing h anchored at
// box.Min that lie inside box, restricted to those keep accepts.
// A nil keep accepts every point.
func lattice(dim int, box r3.Box, h float64, keep func(r3.Vec) bool) []r3.Vec {
	var n [3]int
	for axis := 0; axis < 3; axis++ {
		if axis >= dim {
			n[axis] = 1
			continue
		}
		span := d3.Comp(box.Max, axis) - d3.Comp(box.Min, axis)
		n[axis] = int(math.Floor(span/h+1e-10)) + 1
	}
	var pts []r3.Vec
	for k := 0; k < n[2]; k++ {
		for j := 0; j < n[1]; j++ {
			for i := 0; i < n[0]; i++ {
				p := r3.Vec{
					X: box.Min.X + float64(i)*h,
					Y: box.Min.Y + float64(j)*h,
					Z: box.Min.Z + float64(k)*h,
				}
				if dim == 2 {
					p.Z = 0
				}
				if keep == nil || keep(p) {
					pts = append(pts, p)
				}
			}
		}
	}
	return pts
}

// withFixed returns fixed followed by the points of pts farther than tol
// from every fixed point.
func withFixed(fixed, pts []r3.Vec, tol float64) []r3.Vec {
	out := make([]r3.Vec, 0, len(fixed)+len(pts))
	out = append(out, fixed...)
outer:
	for _, p := range pts {
		for _, f := range fixed {
			if r3.Norm2(r3.Sub(p, f)) < tol*tol {
				continue outer
			}
		}
		out = append(out, p)
	}
	return out
}

// seed creates the initial owned point set of the rank.
func (g *generator) seed() error {
	cfg := g.cfg
	if cfg.Seed != nil {
		g.info("setting pseudo-random number seed", "seed", *cfg.Seed)
	}
	if len(cfg.Fixed) > 0 {
		g.info("constraining fixed points", "count", len(cfg.Fixed))
	}
	var err error
	if g.parallel {
		err = g.seedParallel()
	} else {
		err = g.seedSerial()
	}
	if err != nil {
		return err
	}
	g.owned = len(g.pts)
	g.nfix = len(cfg.Fixed)
	bounds := d3.Box(cfg.BBox).Enlarge(cfg.H0)
	if len(g.pts) > 0 {
		bounds = bounds.Extend(d3.BoxOf(g.pts))
	}
	g.bounds = r3.Box(bounds)

	total := g.owned
	if g.parallel {
		total, err = g.c.AllReduceInt(comm.OpSum, g.owned)
		if err != nil {
			return err
		}
	}
	g.info("commencing mesh generation", "vertices", total, "ranks", g.c.Size())
	g.debug("seeded rank", "vertices", g.owned)
	return nil
}

func (g *generator) seedSerial() error {
	cfg := g.cfg
	if cfg.Points != nil {
		g.pts = withFixed(cfg.Fixed, cfg.Points, g.geps)
		return nil
	}
	kept, err := g.reject(lattice(g.dim, cfg.BBox, cfg.H0, nil))
	if err != nil {
		return err
	}
	g.pts = withFixed(cfg.Fixed, kept, g.geps)
	return nil
}

func (g *generator) seedParallel() error {
	cfg := g.cfg
	rank, size := g.c.Rank(), g.c.Size()
	// Only the root's initial points count, so the root decides the branch.
	var msg []byte
	if rank == comm.Root {
		var err error
		msg, err = comm.Encode(cfg.Points != nil)
		if err != nil {
			return err
		}
	}
	msg, err := g.c.Bcast(comm.Root, msg)
	if err != nil {
		return err
	}
	var supplied bool
	if err := comm.Decode(msg, &supplied); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if supplied {
		var blocks [][]r3.Vec
		var extents []migrate.Extent
		if rank == comm.Root {
			blocks, extents, err = migrate.Partition(g.dim, cfg.Points, size, cfg.Axis, cfg.H0)
			if err != nil {
				return err
			}
		}
		g.pts, g.extents, err = migrate.Localize(g.c, blocks, extents)
		if err != nil {
			return err
		}
		if len(g.extents) != size {
			return fmt.Errorf("seed: received %d extents for %d ranks", len(g.extents), size)
		}
		g.extent = g.extents[rank]
		return nil
	}

	slabs, err := migrate.SlabExtents(g.dim, cfg.BBox, size, cfg.Axis, cfg.H0)
	if err != nil {
		return err
	}
	g.extent = slabs[rank]
	g.extents, err = migrate.ShareExtents(g.c, g.extent)
	if err != nil {
		return err
	}
	g.pts, err = g.reject(lattice(g.dim, cfg.BBox, cfg.H0, g.extent.Owns))
	return err
}

// reject keeps the candidates inside the domain and thins them so that the
// point density follows the sizing field: a point p survives with
// probability (hmin/h(p))^dim where hmin is the smallest size over all ranks.
func (g *generator) reject(cand []r3.Vec) ([]r3.Vec, error) {
	d, err := field.Eval(g.cfg.Distance, cand)
	if err != nil {
		return nil, err
	}
	inside := make([]r3.Vec, 0, len(cand))
	for i, p := range cand {
		if d[i] < g.geps {
			inside = append(inside, p)
		}
	}
	r0, err := field.Eval(g.cfg.Sizing, inside)
	if err != nil {
		return nil, err
	}
	r0min := math.Inf(1)
	for _, r := range r0 {
		r0min = math.Min(r0min, r)
	}
	if g.parallel {
		r0min, err = g.c.AllReduceFloat64(comm.OpMin, r0min)
		if err != nil {
			return nil, err
		}
	}
	switch {
	case math.IsInf(r0min, 1):
		return nil, ErrNoPoints
	case !(r0min > 0):
		return nil, fmt.Errorf("sizing field minimum %g not positive", r0min)
	}
	kept := inside[:0]
	for i, p := range inside {
		if g.rng.Float64() < math.Pow(r0min/r0[i], float64(g.dim)) {
			kept = append(kept, p)
		}
	}
	return kept, nil
}
