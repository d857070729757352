// Package field provides scalar fields sampled by the mesh generator:
// signed distance fields describing the meshed domain and sizing fields
// giving the desired local edge length.
//
// Fields are evaluated in batches. Two dimensional fields read only the X and
// Y components of positions.
package field

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Field is a scalar field evaluated over a batch of positions.
type Field interface {
	// Evaluate evaluates the field over pos positions.
	// dst and pos must be of same length. Resulting values are stored in dst.
	Evaluate(pos []r3.Vec, dst []float64) error
}

var errLength = errors.New("position and destination lengths differ")

func checkLen(pos []r3.Vec, dst []float64) error {
	if len(pos) != len(dst) {
		return fmt.Errorf("%w: %d != %d", errLength, len(pos), len(dst))
	}
	return nil
}

// Func is an analytic field given by a pointwise function.
type Func func(p r3.Vec) float64

// Evaluate implements Field.
func (f Func) Evaluate(pos []r3.Vec, dst []float64) error {
	if err := checkLen(pos, dst); err != nil {
		return err
	}
	for i, p := range pos {
		dst[i] = f(p)
	}
	return nil
}

// Constant is a field with the same value everywhere.
type Constant float64

// Evaluate implements Field.
func (c Constant) Evaluate(pos []r3.Vec, dst []float64) error {
	if err := checkLen(pos, dst); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = float64(c)
	}
	return nil
}

// Eval evaluates f over pos and returns a newly allocated result.
func Eval(f Field, pos []r3.Vec) ([]float64, error) {
	dst := make([]float64, len(pos))
	err := f.Evaluate(pos, dst)
	if err != nil {
		return nil, err
	}
	return dst, nil
}

// At evaluates f at a single position.
func At(f Field, p r3.Vec) (float64, error) {
	var dst [1]float64
	err := f.Evaluate([]r3.Vec{p}, dst[:])
	return dst[0], err
}

// MinOver returns the smallest value of f over pos.
// An empty pos returns +Inf.
func MinOver(f Field, pos []r3.Vec) (float64, error) {
	v, err := Eval(f, pos)
	if err != nil {
		return 0, err
	}
	min := math.Inf(1)
	for _, x := range v {
		min = math.Min(min, x)
	}
	return min, nil
}
