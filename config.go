package distmesh

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/soypat/distmesh/comm"
	"github.com/soypat/distmesh/delaunay"
	"github.com/soypat/distmesh/field"
	"github.com/soypat/distmesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Config holds the parameters of a Generate call. The zero values of the
// optional fields select the defaults documented on each field.
type Config struct {
	// Dim is 2 for triangle meshes or 3 for tetrahedral meshes. 2D
	// coordinates live in the XY plane with Z equal to zero.
	Dim int
	// BBox bounds the domain. Seed points are laid out over it.
	BBox r3.Box
	// H0 is the minimum edge length and the spacing of the seed lattice.
	H0 float64
	// Sizing gives the desired edge length at a point. Only its relative
	// variation matters.
	Sizing field.Field
	// Distance is the signed distance to the domain boundary, negative inside.
	Distance field.Field
	// Fixed points are never moved and appear first in serial results.
	// Not supported together with Comm.
	Fixed []r3.Vec
	// Points replaces the seeded initial point cloud. In parallel runs only
	// the root rank's Points are used.
	Points []r3.Vec
	// MaxIter is the iteration budget. Defaults to 50.
	MaxIter int
	// ReportEvery is the progress logging cadence in iterations. Defaults to 1.
	ReportEvery int
	// Seed makes the run deterministic when set.
	Seed *int64
	// Comm is the rank context. Nil runs serially.
	Comm comm.Comm
	// Axis along which the domain is split between ranks.
	Axis int
	// Method selects the Delaunay triangulator.
	Method delaunay.Method
	// Improve enables sliver removal in place of relaxation (3D only).
	Improve Improve
	// PerformChecks lints the final mesh and logs a quality report.
	PerformChecks bool
	// Logger receives progress records. Defaults to slog.Default.
	Logger *slog.Logger
	// OnIteration, if set, is called every ReportEvery iterations after
	// retriangulation. In parallel runs it is called from every rank's
	// goroutine and must be safe for concurrent use.
	OnIteration func(Snapshot)
}

// Improve configures sliver removal. A tetrahedron is a sliver when one of
// its dihedral angles lies outside [MinDihedral, MaxDihedral] degrees.
type Improve struct {
	Enabled bool
	Method  ImproveMethod
	// Defaults to 10 and 170 when both are zero.
	MinDihedral float64
	MaxDihedral float64
}

func (cfg Config) parallel() bool { return cfg.Comm != nil }

// defaults returns cfg with unset optional fields filled in.
func (cfg Config) defaults() Config {
	if cfg.MaxIter == 0 {
		cfg.MaxIter = 50
	}
	if cfg.ReportEvery == 0 {
		cfg.ReportEvery = 1
	}
	if cfg.Improve.MinDihedral == 0 && cfg.Improve.MaxDihedral == 0 {
		cfg.Improve.MinDihedral = 10
		cfg.Improve.MaxDihedral = 170
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// validate reports configuration errors. It expects defaults to have run.
func (cfg Config) validate() error {
	switch {
	case cfg.Dim != 2 && cfg.Dim != 3:
		return ErrDimension
	case !(cfg.H0 > 0) || math.IsInf(cfg.H0, 0):
		return fmt.Errorf("minimum edge length %g not positive and finite", cfg.H0)
	case cfg.Sizing == nil:
		return errors.New("nil sizing field")
	case cfg.Distance == nil:
		return errors.New("nil signed distance field")
	case cfg.MaxIter < 1:
		return fmt.Errorf("iteration budget %d < 1", cfg.MaxIter)
	case cfg.ReportEvery < 1:
		return fmt.Errorf("report cadence %d < 1", cfg.ReportEvery)
	case cfg.Axis < 0 || cfg.Axis >= cfg.Dim:
		return fmt.Errorf("decomposition axis %d out of range for dimension %d", cfg.Axis, cfg.Dim)
	case len(cfg.Fixed) > 0 && cfg.parallel():
		return ErrFixedParallel
	}
	if !d3.Finite(cfg.BBox.Min) || !d3.Finite(cfg.BBox.Max) {
		return fmt.Errorf("bounding box %v not finite", cfg.BBox)
	}
	size := r3.Sub(cfg.BBox.Max, cfg.BBox.Min)
	if !(size.X > 0) || !(size.Y > 0) || (cfg.Dim == 3 && !(size.Z > 0)) {
		return fmt.Errorf("bounding box %v has non-positive size", cfg.BBox)
	}
	if cfg.Dim == 2 && (cfg.BBox.Min.Z != 0 || cfg.BBox.Max.Z != 0) {
		return errors.New("2D bounding box must have zero Z extent")
	}
	if cfg.Improve.Enabled {
		if cfg.Dim != 3 {
			return errors.New("sliver improvement requires dimension 3")
		}
		lo, hi := cfg.Improve.MinDihedral, cfg.Improve.MaxDihedral
		if !(lo >= 0 && lo < hi && hi <= 180) {
			return fmt.Errorf("dihedral bounds [%g, %g] not within [0, 180]", lo, hi)
		}
		if cfg.Improve.Method.String() == "" {
			return fmt.Errorf("unknown improvement method %d", cfg.Improve.Method)
		}
	}
	for _, set := range [2][]r3.Vec{cfg.Fixed, cfg.Points} {
		for i, p := range set {
			if !d3.Finite(p) {
				return fmt.Errorf("point %d has non-finite coordinates", i)
			}
			if cfg.Dim == 2 && p.Z != 0 {
				return fmt.Errorf("2D point %d has non-zero Z", i)
			}
		}
	}
	return nil
}
