package distmesh

import (
	"math"

	"github.com/soypat/distmesh/field"
	"github.com/soypat/distmesh/mesh"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// Relax computes one step of edge force relaxation. Every edge of elems acts
// as a spring that only pushes: its force is max(L0-L, 0) where L0 is the
// sizing field at the edge midpoint scaled so that the mesh as a whole is
// slightly compressed. The returned displacements are dt times the net force
// on each point; points outside [fixed, owned) are not moved.
// maxMove is the largest displacement norm.
func Relax(dim int, pts []r3.Vec, elems []mesh.Simplex, sizing field.Field, fixed, owned int) (dp []r3.Vec, maxMove float64, err error) {
	return relax(dim, pts, elems, sizing, fixed, owned, nil)
}

// sumReducer combines the local edge length and size sums of a rank into
// global sums so all ranks share one scale factor.
type sumReducer func(sumL, sumH float64) (float64, float64, error)

func relax(dim int, pts []r3.Vec, elems []mesh.Simplex, sizing field.Field, fixed, owned int, reduce sumReducer) ([]r3.Vec, float64, error) {
	edges := mesh.Edges(dim, elems)
	mids := make([]r3.Vec, len(edges))
	bars := make([]r3.Vec, len(edges))
	L := make([]float64, len(edges))
	for k, e := range edges {
		bars[k] = r3.Sub(pts[e[0]], pts[e[1]])
		mids[k] = r3.Scale(0.5, r3.Add(pts[e[0]], pts[e[1]]))
		L[k] = r3.Norm(bars[k])
	}
	hbars := make([]float64, len(edges))
	if err := sizing.Evaluate(mids, hbars); err != nil {
		return nil, 0, err
	}
	// Scale factor from the ratio of the dim-th power sums.
	pow := func(x []float64) []float64 {
		out := make([]float64, len(x))
		for i, v := range x {
			out[i] = math.Pow(v, float64(dim))
		}
		return out
	}
	sumL, sumH := floats.Sum(pow(L)), floats.Sum(pow(hbars))
	if reduce != nil {
		var err error
		sumL, sumH, err = reduce(sumL, sumH)
		if err != nil {
			return nil, 0, err
		}
	}
	scale := l0mult(dim)
	if sumH > 0 {
		scale *= math.Pow(sumL/sumH, 1/float64(dim))
	}

	ftot := make([]r3.Vec, len(pts))
	for k, e := range edges {
		if L[k] == 0 {
			continue
		}
		f := math.Max(hbars[k]*scale-L[k], 0)
		if f == 0 {
			continue
		}
		fvec := r3.Scale(f/L[k], bars[k])
		ftot[e[0]] = r3.Add(ftot[e[0]], fvec)
		ftot[e[1]] = r3.Sub(ftot[e[1]], fvec)
	}
	moves := make([]float64, len(pts))
	for i := range ftot {
		if i < fixed || i >= owned {
			ftot[i] = r3.Vec{}
			continue
		}
		ftot[i] = r3.Scale(dt, ftot[i])
		moves[i] = r3.Norm(ftot[i])
	}
	var maxMove float64
	if len(moves) > 0 {
		maxMove = floats.Max(moves)
	}
	return ftot, maxMove, nil
}
