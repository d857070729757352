package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// VolumeGradient returns the gradient of the signed volume of tetrahedron
// p0 p1 p2 p3 with respect to p0. It only depends on the face opposite p0.
func VolumeGradient(p1, p2, p3 r3.Vec) r3.Vec {
	n := r3.Cross(r3.Sub(p2, p1), r3.Sub(p3, p1))
	return r3.Scale(-1.0/6, n)
}

// CircumsphereGradient returns a forward difference estimate of the gradient
// of the circumradius of tetrahedron p0 p1 p2 p3 with respect to p0.
// Components may be infinite or NaN for degenerate input.
func CircumsphereGradient(p0, p1, p2, p3 r3.Vec) r3.Vec {
	radius := func(q r3.Vec) float64 {
		_, r2 := Circumsphere(q, p1, p2, p3)
		return math.Sqrt(r2)
	}
	scale := math.Max(math.Max(r3.Norm(r3.Sub(p1, p0)), r3.Norm(r3.Sub(p2, p0))), r3.Norm(r3.Sub(p3, p0)))
	h := math.Sqrt(eps) * math.Max(scale, 1e-300)
	r0 := radius(p0)
	return r3.Vec{
		X: (radius(r3.Add(p0, r3.Vec{X: h})) - r0) / h,
		Y: (radius(r3.Add(p0, r3.Vec{Y: h})) - r0) / h,
		Z: (radius(r3.Add(p0, r3.Vec{Z: h})) - r0) / h,
	}
}

// eps is the float64 machine epsilon.
var eps = math.Nextafter(1, 2) - 1

// Unit returns v normalized to unit length. Non-finite components are
// replaced by 1 before normalizing and a zero vector is returned unchanged.
func Unit(v r3.Vec) r3.Vec {
	for _, c := range []*float64{&v.X, &v.Y, &v.Z} {
		if math.IsInf(*c, 0) || math.IsNaN(*c) {
			*c = 1
		}
	}
	n := r3.Norm(v)
	if n == 0 {
		return v
	}
	return r3.Scale(1/n, v)
}
