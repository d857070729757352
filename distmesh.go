// Package distmesh generates unstructured triangle and tetrahedral meshes from
// a signed distance field and a sizing field using force based relaxation of
// a point cloud, either on a single goroutine or across cooperating ranks that
// each own a slab of the domain.
package distmesh

import (
	"errors"
	"math"
	"strconv"

	"github.com/soypat/distmesh/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// dt is the pseudo time step applied to the net edge force of a point.
	dt = 0.1
	// push is the sliver vertex displacement as a fraction of the local size.
	push = 0.10
)

// dlamchE is the float64 machine epsilon.
var dlamchE = math.Nextafter(1, 2) - 1

// l0mult returns how much longer than the sizing field the unconstrained
// edges are made so that the mesh pushes against the boundary.
func l0mult(dim int) float64 { return 1 + 0.4/math.Pow(2, float64(dim-1)) }

var (
	// ErrFixedParallel is returned when fixed points are requested together
	// with a communicator. Constrained points are not supported in parallel.
	ErrFixedParallel = errors.New("fixed points are not supported in parallel")
	ErrDimension     = errors.New("dimension must be 2 or 3")
	ErrNoPoints      = errors.New("no points inside domain")
)

// Status reports why generation stopped.
type Status uint8

const (
	// StatusIterationLimit means the iteration budget was spent. For
	// relaxation runs this is the normal outcome.
	StatusIterationLimit Status = iota
	// StatusConverged means sliver improvement found no slivers left.
	StatusConverged
)

func (s Status) String() string {
	switch s {
	case StatusIterationLimit:
		return "iteration-limit"
	case StatusConverged:
		return "converged"
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}

// Result is the outcome of Generate.
type Result struct {
	// Mesh holds the final mesh. In parallel runs only the root rank
	// receives points and simplices.
	Mesh       mesh.Mesh
	Status     Status
	Iterations int
	// Root is set on the rank holding the assembled mesh.
	Root bool
}

// Snapshot is the read-only view of one rank's mesh passed to
// Config.OnIteration. Its slices are reused after the callback returns.
type Snapshot struct {
	Iteration int
	Rank      int
	Dim       int
	// Points holds the rank's owned points followed by its ghosts.
	Points    []r3.Vec
	Owned     int
	Simplices []mesh.Simplex
	// MaxMove is the largest relaxation displacement of the previous
	// iteration.
	MaxMove float64
}
