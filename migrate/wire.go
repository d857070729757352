package migrate

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Messages exchanged between ranks are msgpack encoded by comm.Encode.

type wireExtent struct {
	Min     [3]float64 `codec:"min"`
	Max     [3]float64 `codec:"max"`
	Axis    int        `codec:"axis"`
	CoreMin float64    `codec:"cmin"`
	CoreMax float64    `codec:"cmax"`
}

func toWireExtent(e Extent) wireExtent {
	return wireExtent{
		Min: vec(e.Box.Min), Max: vec(e.Box.Max),
		Axis: e.Axis, CoreMin: e.CoreMin, CoreMax: e.CoreMax,
	}
}

func (w wireExtent) extent() Extent {
	return Extent{
		Box:  r3.Box{Min: unvec(w.Min), Max: unvec(w.Max)},
		Axis: w.Axis, CoreMin: w.CoreMin, CoreMax: w.CoreMax,
	}
}

// localizeMsg is what the root sends each rank at start up.
type localizeMsg struct {
	Points  [][3]float64 `codec:"p"`
	Extents []wireExtent `codec:"e"`
}

// pointsMsg carries exported points and their index on the sender.
type pointsMsg struct {
	Points [][3]float64 `codec:"p"`
	Index  []int        `codec:"i"`
}

// meshMsg carries a rank's share of the final mesh. Simplex vertices are
// (owner rank, owner index) pairs flattened into Refs, dim+1 pairs per simplex.
type meshMsg struct {
	Points [][3]float64 `codec:"p"`
	Refs   []int        `codec:"r"`
}

func vec(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func unvec(v [3]float64) r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

func vecs(pts []r3.Vec) [][3]float64 {
	out := make([][3]float64, len(pts))
	for i, p := range pts {
		out[i] = vec(p)
	}
	return out
}

func unvecs(pts [][3]float64) []r3.Vec {
	out := make([]r3.Vec, len(pts))
	for i, p := range pts {
		out[i] = unvec(p)
	}
	return out
}
