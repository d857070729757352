package distmesh

import (
	"github.com/soypat/distmesh/field"
	"github.com/soypat/distmesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// project moves the points of pts[from:to] lying outside the domain back
// onto the boundary with one Newton step along a forward difference estimate
// of the distance gradient with step deps.
func project(fd field.Field, dim int, pts []r3.Vec, from, to int, deps float64) error {
	movable := pts[from:to]
	d, err := field.Eval(fd, movable)
	if err != nil {
		return err
	}
	var out []int
	for i, v := range d {
		if v > 0 {
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		return nil
	}
	grad := make([]r3.Vec, len(out))
	shifted := make([]r3.Vec, len(out))
	val := make([]float64, len(out))
	for axis := 0; axis < dim; axis++ {
		for j, i := range out {
			p := movable[i]
			shifted[j] = d3.SetComp(p, axis, d3.Comp(p, axis)+deps)
		}
		if err := fd.Evaluate(shifted, val); err != nil {
			return err
		}
		for j, i := range out {
			grad[j] = d3.SetComp(grad[j], axis, (val[j]-d[i])/deps)
		}
	}
	for j, i := range out {
		g2 := r3.Norm2(grad[j])
		if g2 < deps {
			g2 = deps
		}
		movable[i] = r3.Sub(movable[i], r3.Scale(d[i]/g2, grad[j]))
	}
	return nil
}
