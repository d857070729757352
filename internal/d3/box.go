package d3

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Box is a 3d axis aligned bounding box.
type Box r3.Box

// BoxOf returns the smallest box enclosing every point of set.
// An empty set returns the zero Box.
func BoxOf(set []r3.Vec) Box {
	if len(set) == 0 {
		return Box{}
	}
	return Box{Min: Set(set).Min(), Max: Set(set).Max()}
}

// Extend returns a box enclosing two 3d boxes.
func (a Box) Extend(b Box) Box {
	return Box{
		Min: MinElem(a.Min, b.Min),
		Max: MaxElem(a.Max, b.Max),
	}
}

// Size returns the size of a 3d box.
func (a Box) Size() r3.Vec {
	return r3.Sub(a.Max, a.Min)
}

// Center returns the center of a 3d box.
func (a Box) Center() r3.Vec {
	return r3.Add(a.Min, r3.Scale(0.5, a.Size()))
}

// Enlarge returns a new 3d box grown by d on every side.
func (a Box) Enlarge(d float64) Box {
	v := Elem(d)
	return Box{
		Min: r3.Sub(a.Min, v),
		Max: r3.Add(a.Max, v),
	}
}

// Contains checks if the 3d box contains the given vector (considering bounds as inside).
func (a Box) Contains(v r3.Vec) bool {
	return a.Min.X <= v.X && a.Min.Y <= v.Y && a.Min.Z <= v.Z &&
		v.X <= a.Max.X && v.Y <= a.Max.Y && v.Z <= a.Max.Z
}

// Dist2 returns the squared distance from p to the closest point of the box.
// Points within the box have distance zero.
func (a Box) Dist2(p r3.Vec) float64 {
	q := Clamp(p, a.Min, a.Max)
	return r3.Norm2(r3.Sub(p, q))
}

// IntersectsBall reports whether the ball of radius r centered at c
// overlaps the box.
func (a Box) IntersectsBall(c r3.Vec, r float64) bool {
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return false
	}
	return a.Dist2(c) <= r*r
}
