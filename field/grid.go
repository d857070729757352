package field

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Grid is a field sampled on a regular grid and interpolated linearly between
// nodes (bilinear in 2d, trilinear in 3d). Positions outside the grid take the
// value at the closest point of the grid.
type Grid struct {
	dim     int
	origin  r3.Vec
	spacing r3.Vec
	n       [3]int
	values  []float64
}

// NewGrid returns a grid field of dimension dim with n[i] nodes along axis i
// separated by spacing, the first node at origin. values are stored with the
// X index varying fastest. For dim=2 n[2] is ignored and treated as 1.
func NewGrid(dim int, origin, spacing r3.Vec, n [3]int, values []float64) (*Grid, error) {
	if dim != 2 && dim != 3 {
		return nil, errors.New("grid dimension must be 2 or 3")
	}
	if dim == 2 {
		n[2] = 1
		spacing.Z = 1
	}
	for i := 0; i < dim; i++ {
		if n[i] < 2 {
			return nil, fmt.Errorf("grid axis %d needs at least 2 nodes, got %d", i, n[i])
		}
	}
	if spacing.X <= 0 || spacing.Y <= 0 || spacing.Z <= 0 {
		return nil, errors.New("grid spacing must be positive")
	}
	if len(values) != n[0]*n[1]*n[2] {
		return nil, fmt.Errorf("grid expects %d values, got %d", n[0]*n[1]*n[2], len(values))
	}
	return &Grid{dim: dim, origin: origin, spacing: spacing, n: n, values: values}, nil
}

// Sample evaluates f on the nodes of a regular grid spanning box with n nodes
// per axis and returns the interpolating grid field.
func Sample(f Field, dim int, box r3.Box, n [3]int) (*Grid, error) {
	if dim == 2 {
		n[2] = 1
	}
	var spacing r3.Vec
	size := r3.Sub(box.Max, box.Min)
	spacing.X = size.X / float64(n[0]-1)
	spacing.Y = size.Y / float64(n[1]-1)
	spacing.Z = 1
	if dim == 3 {
		spacing.Z = size.Z / float64(n[2]-1)
	}
	if n[0] < 2 || n[1] < 2 || (dim == 3 && n[2] < 2) {
		return nil, errors.New("grid needs at least 2 nodes per axis")
	}
	pos := make([]r3.Vec, 0, n[0]*n[1]*n[2])
	for k := 0; k < n[2]; k++ {
		for j := 0; j < n[1]; j++ {
			for i := 0; i < n[0]; i++ {
				pos = append(pos, r3.Vec{
					X: box.Min.X + float64(i)*spacing.X,
					Y: box.Min.Y + float64(j)*spacing.Y,
					Z: box.Min.Z + float64(k)*spacing.Z,
				})
			}
		}
	}
	values, err := Eval(f, pos)
	if err != nil {
		return nil, err
	}
	return NewGrid(dim, box.Min, spacing, n, values)
}

// Evaluate implements Field.
func (g *Grid) Evaluate(pos []r3.Vec, dst []float64) error {
	if err := checkLen(pos, dst); err != nil {
		return err
	}
	for i, p := range pos {
		dst[i] = g.at(p)
	}
	return nil
}

// locate returns the cell index along an axis and the fractional offset
// within it, clamped to the grid.
func locate(x, origin, spacing float64, n int) (int, float64) {
	u := (x - origin) / spacing
	if math.IsNaN(u) || u <= 0 {
		return 0, 0
	}
	if u >= float64(n-1) {
		return n - 2, 1
	}
	i := int(u)
	if i > n-2 {
		i = n - 2
	}
	return i, u - float64(i)
}

func (g *Grid) value(i, j, k int) float64 {
	return g.values[i+g.n[0]*(j+g.n[1]*k)]
}

func (g *Grid) at(p r3.Vec) float64 {
	i, tx := locate(p.X, g.origin.X, g.spacing.X, g.n[0])
	j, ty := locate(p.Y, g.origin.Y, g.spacing.Y, g.n[1])
	bilinear := func(k int) float64 {
		v00 := g.value(i, j, k)
		v10 := g.value(i+1, j, k)
		v01 := g.value(i, j+1, k)
		v11 := g.value(i+1, j+1, k)
		return (1-ty)*((1-tx)*v00+tx*v10) + ty*((1-tx)*v01+tx*v11)
	}
	if g.dim == 2 {
		return bilinear(0)
	}
	k, tz := locate(p.Z, g.origin.Z, g.spacing.Z, g.n[2])
	return (1-tz)*bilinear(k) + tz*bilinear(k+1)
}
