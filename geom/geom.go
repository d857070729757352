// Package geom implements the floating point geometric predicates used by the
// mesh generator: orientation, circumballs, dihedral angles and the
// perturbation gradients used to repair sliver tetrahedra.
package geom

import (
	"math"

	"github.com/soypat/distmesh/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	DtoR = math.Pi / 180
	RtoD = 180 / math.Pi
)

// Orient2 returns twice the signed area of triangle abc in the XY plane.
// Positive when abc winds counter-clockwise.
func Orient2(a, b, c r3.Vec) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// SignedVolume returns the signed volume of tetrahedron abcd.
// Positive when d lies on the side of abc that abc winds counter-clockwise around.
func SignedVolume(a, b, c, d r3.Vec) float64 {
	return r3.Dot(r3.Sub(b, a), r3.Cross(r3.Sub(c, a), r3.Sub(d, a))) / 6
}

// Measure returns the signed area (dim=2) or volume (dim=3) of s.
func Measure(dim int, pts []r3.Vec, s mesh.Simplex) float64 {
	if dim == 2 {
		return Orient2(pts[s[0]], pts[s[1]], pts[s[2]]) / 2
	}
	return SignedVolume(pts[s[0]], pts[s[1]], pts[s[2]], pts[s[3]])
}

// Circumcircle returns the center and squared radius of the circle through
// a, b and c in the XY plane. Collinear input yields an infinite radius.
func Circumcircle(a, b, c r3.Vec) (center r3.Vec, r2 float64) {
	bx, by := b.X-a.X, b.Y-a.Y
	cx, cy := c.X-a.X, c.Y-a.Y
	d := 2 * (bx*cy - by*cx)
	if d == 0 {
		return r3.Vec{X: math.Inf(1), Y: math.Inf(1)}, math.Inf(1)
	}
	bl := bx*bx + by*by
	cl := cx*cx + cy*cy
	ux := (cy*bl - by*cl) / d
	uy := (bx*cl - cx*bl) / d
	return r3.Vec{X: a.X + ux, Y: a.Y + uy}, ux*ux + uy*uy
}

// Circumsphere returns the center and squared radius of the sphere through
// a, b, c and d. Coplanar input yields an infinite radius.
func Circumsphere(a, b, c, d r3.Vec) (center r3.Vec, r2 float64) {
	u := r3.Sub(b, a)
	v := r3.Sub(c, a)
	w := r3.Sub(d, a)
	den := 2 * r3.Dot(u, r3.Cross(v, w))
	if den == 0 {
		inf := math.Inf(1)
		return r3.Vec{X: inf, Y: inf, Z: inf}, inf
	}
	num := r3.Add(r3.Add(
		r3.Scale(r3.Norm2(u), r3.Cross(v, w)),
		r3.Scale(r3.Norm2(v), r3.Cross(w, u))),
		r3.Scale(r3.Norm2(w), r3.Cross(u, v)))
	off := r3.Scale(1/den, num)
	return r3.Add(a, off), r3.Norm2(off)
}

// Circumball returns the center and radius of the circumcircle (dim=2) or
// circumsphere (dim=3) of s.
func Circumball(dim int, pts []r3.Vec, s mesh.Simplex) (center r3.Vec, r float64) {
	var r2 float64
	if dim == 2 {
		center, r2 = Circumcircle(pts[s[0]], pts[s[1]], pts[s[2]])
	} else {
		center, r2 = Circumsphere(pts[s[0]], pts[s[1]], pts[s[2]], pts[s[3]])
	}
	return center, math.Sqrt(r2)
}

// angle returns the angle between u and v in degrees.
// A zero length argument yields 0.
func angle(u, v r3.Vec) float64 {
	nu, nv := r3.Norm(u), r3.Norm(v)
	if nu == 0 || nv == 0 {
		return 0
	}
	cos := r3.Dot(u, v) / (nu * nv)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * RtoD
}

// tetEdges lists the tetrahedron edges and, for each, the two vertices
// opposite to it.
var tetEdges = [6][4]int{
	{0, 1, 2, 3},
	{0, 2, 1, 3},
	{0, 3, 1, 2},
	{1, 2, 0, 3},
	{1, 3, 0, 2},
	{2, 3, 0, 1},
}

// DihedralAngles returns the six interior dihedral angles of tetrahedron
// abcd in degrees, one per edge in the order 01, 02, 03, 12, 13, 23.
func DihedralAngles(a, b, c, d r3.Vec) [6]float64 {
	p := [4]r3.Vec{a, b, c, d}
	var ang [6]float64
	for i, e := range tetEdges {
		edge := r3.Sub(p[e[1]], p[e[0]])
		n1 := r3.Cross(edge, r3.Sub(p[e[2]], p[e[0]]))
		n2 := r3.Cross(edge, r3.Sub(p[e[3]], p[e[0]]))
		ang[i] = angle(n1, n2)
	}
	return ang
}

// TriangleAngles returns the interior angles of triangle abc in degrees
// at a, b and c respectively.
func TriangleAngles(a, b, c r3.Vec) [3]float64 {
	return [3]float64{
		angle(r3.Sub(b, a), r3.Sub(c, a)),
		angle(r3.Sub(a, b), r3.Sub(c, b)),
		angle(r3.Sub(a, c), r3.Sub(b, c)),
	}
}

// MinMax returns the smallest and largest value of angles.
func MinMax(angles []float64) (min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, a := range angles {
		min = math.Min(min, a)
		max = math.Max(max, a)
	}
	return min, max
}
