package d2

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// R2 vector manipulation routines not provided by gonum.

func AbsElem(a r2.Vec) r2.Vec {
	return r2.Vec{X: math.Abs(a.X), Y: math.Abs(a.Y)}
}

// Lower drops the Z component of v.
func Lower(v r3.Vec) r2.Vec {
	return r2.Vec{X: v.X, Y: v.Y}
}
