package field

import (
	"errors"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"
)

type sdfx2 struct {
	s sdf.SDF2
}

// FromSDF2 adapts a 2d github.com/deadsy/sdfx shape to a Field.
func FromSDF2(s sdf.SDF2) (Field, error) {
	if s == nil {
		return nil, errors.New("nil sdf.SDF2")
	}
	return &sdfx2{s: s}, nil
}

func (f *sdfx2) Evaluate(pos []r3.Vec, dst []float64) error {
	if err := checkLen(pos, dst); err != nil {
		return err
	}
	for i, p := range pos {
		dst[i] = f.s.Evaluate(v2.Vec{X: p.X, Y: p.Y})
	}
	return nil
}

type sdfx3 struct {
	s sdf.SDF3
}

// FromSDF3 adapts a 3d github.com/deadsy/sdfx shape to a Field.
func FromSDF3(s sdf.SDF3) (Field, error) {
	if s == nil {
		return nil, errors.New("nil sdf.SDF3")
	}
	return &sdfx3{s: s}, nil
}

func (f *sdfx3) Evaluate(pos []r3.Vec, dst []float64) error {
	if err := checkLen(pos, dst); err != nil {
		return err
	}
	for i, p := range pos {
		dst[i] = f.s.Evaluate(v3.Vec{X: p.X, Y: p.Y, Z: p.Z})
	}
	return nil
}

// BoundsSDF2 returns the bounding box of a 2d sdfx shape in the z=0 plane.
func BoundsSDF2(s sdf.SDF2) r3.Box {
	bb := s.BoundingBox()
	return r3.Box{Min: r3.Vec{X: bb.Min.X, Y: bb.Min.Y}, Max: r3.Vec{X: bb.Max.X, Y: bb.Max.Y}}
}

// BoundsSDF3 returns the bounding box of a 3d sdfx shape.
func BoundsSDF3(s sdf.SDF3) r3.Box {
	bb := s.BoundingBox()
	return r3.Box{
		Min: r3.Vec{X: bb.Min.X, Y: bb.Min.Y, Z: bb.Min.Z},
		Max: r3.Vec{X: bb.Max.X, Y: bb.Max.Y, Z: bb.Max.Z},
	}
}
