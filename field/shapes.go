package field

import (
	"errors"
	"math"

	"github.com/soypat/distmesh/internal/d2"
	"github.com/soypat/distmesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Shapes below are exact Euclidean distance fields. Combinations through
// Union, Difference and Intersection are exact outside and a bound inside.

type rectangle struct {
	center r2.Vec
	half   r2.Vec
}

// Rectangle returns the signed distance field of the axis aligned rectangle
// spanning min to max in the XY plane.
func Rectangle(min, max r2.Vec) (Field, error) {
	if max.X <= min.X || max.Y <= min.Y {
		return nil, errors.New("rectangle with non-positive size")
	}
	return &rectangle{
		center: r2.Scale(0.5, r2.Add(min, max)),
		half:   r2.Scale(0.5, r2.Sub(max, min)),
	}, nil
}

func (s *rectangle) Evaluate(pos []r3.Vec, dst []float64) error {
	if err := checkLen(pos, dst); err != nil {
		return err
	}
	for i, p := range pos {
		dst[i] = sdfBox2d(r2.Sub(d2.Lower(p), s.center), s.half)
	}
	return nil
}

type circle struct {
	center r2.Vec
	radius float64
}

// Circle returns the signed distance field of a disk in the XY plane.
func Circle(center r2.Vec, radius float64) (Field, error) {
	if radius <= 0 {
		return nil, errors.New("radius <= 0")
	}
	return &circle{center: center, radius: radius}, nil
}

func (s *circle) Evaluate(pos []r3.Vec, dst []float64) error {
	if err := checkLen(pos, dst); err != nil {
		return err
	}
	for i, p := range pos {
		dst[i] = r2.Norm(r2.Sub(d2.Lower(p), s.center)) - s.radius
	}
	return nil
}

type box struct {
	center r3.Vec
	half   r3.Vec
}

// Box returns the signed distance field of the axis aligned box spanning
// min to max.
func Box(min, max r3.Vec) (Field, error) {
	if max.X <= min.X || max.Y <= min.Y || max.Z <= min.Z {
		return nil, errors.New("box with non-positive size")
	}
	return &box{
		center: r3.Scale(0.5, r3.Add(min, max)),
		half:   r3.Scale(0.5, r3.Sub(max, min)),
	}, nil
}

func (s *box) Evaluate(pos []r3.Vec, dst []float64) error {
	if err := checkLen(pos, dst); err != nil {
		return err
	}
	for i, p := range pos {
		dst[i] = sdfBox3d(r3.Sub(p, s.center), s.half)
	}
	return nil
}

type sphere struct {
	center r3.Vec
	radius float64
}

// Sphere returns the signed distance field of a ball.
func Sphere(center r3.Vec, radius float64) (Field, error) {
	if radius <= 0 {
		return nil, errors.New("radius <= 0")
	}
	return &sphere{center: center, radius: radius}, nil
}

func (s *sphere) Evaluate(pos []r3.Vec, dst []float64) error {
	if err := checkLen(pos, dst); err != nil {
		return err
	}
	for i, p := range pos {
		dst[i] = r3.Norm(r3.Sub(p, s.center)) - s.radius
	}
	return nil
}

type union struct {
	fields []Field
}

// Union returns the union of the domains described by fields.
func Union(fields ...Field) (Field, error) {
	if len(fields) < 2 {
		return nil, errors.New("union requires at least 2 fields")
	}
	for _, f := range fields {
		if f == nil {
			return nil, errors.New("nil field argument to Union")
		}
	}
	return &union{fields: fields}, nil
}

func (u *union) Evaluate(pos []r3.Vec, dst []float64) error {
	err := u.fields[0].Evaluate(pos, dst)
	if err != nil {
		return err
	}
	aux := make([]float64, len(dst))
	for _, f := range u.fields[1:] {
		err = f.Evaluate(pos, aux)
		if err != nil {
			return err
		}
		for i := range dst {
			dst[i] = math.Min(dst[i], aux[i])
		}
	}
	return nil
}

type diff struct {
	f0, f1 Field
	sign   float64
}

// Difference returns the domain of f0 with the domain of f1 removed.
func Difference(f0, f1 Field) (Field, error) {
	if f0 == nil || f1 == nil {
		return nil, errors.New("nil argument to Difference")
	}
	return &diff{f0: f0, f1: f1, sign: -1}, nil
}

// Intersection returns the domain common to f0 and f1.
func Intersection(f0, f1 Field) (Field, error) {
	if f0 == nil || f1 == nil {
		return nil, errors.New("nil argument to Intersection")
	}
	return &diff{f0: f0, f1: f1, sign: 1}, nil
}

func (s *diff) Evaluate(pos []r3.Vec, dst []float64) error {
	err := s.f0.Evaluate(pos, dst)
	if err != nil {
		return err
	}
	aux := make([]float64, len(dst))
	err = s.f1.Evaluate(pos, aux)
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i] = math.Max(dst[i], s.sign*aux[i])
	}
	return nil
}

type translate struct {
	f Field
	v r3.Vec
}

// Translate returns f moved by v.
func Translate(f Field, v r3.Vec) Field {
	return &translate{f: f, v: v}
}

func (t *translate) Evaluate(pos []r3.Vec, dst []float64) error {
	moved := make([]r3.Vec, len(pos))
	for i, p := range pos {
		moved[i] = r3.Sub(p, t.v)
	}
	return t.f.Evaluate(moved, dst)
}

// sdfBox2d returns the distance to a 2d box centered at the origin with
// half extents s.
func sdfBox2d(p, s r2.Vec) float64 {
	p = d2.AbsElem(p)
	d := r2.Sub(p, s)
	if d.X > 0 && d.Y > 0 {
		return r2.Norm(d)
	}
	return math.Max(d.X, d.Y)
}

// sdfBox3d returns the distance to a 3d box centered at the origin with
// half extents s.
func sdfBox3d(p, s r3.Vec) float64 {
	d := r3.Sub(d3.AbsElem(p), s)
	if d.X > 0 && d.Y > 0 && d.Z > 0 {
		return r3.Norm(d)
	}
	if d.X > 0 && d.Y > 0 {
		return math.Hypot(d.X, d.Y)
	}
	if d.X > 0 && d.Z > 0 {
		return math.Hypot(d.X, d.Z)
	}
	if d.Y > 0 && d.Z > 0 {
		return math.Hypot(d.Y, d.Z)
	}
	return d3.Max(d)
}
