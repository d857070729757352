package distmesh

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"cogentcore.org/core/base/randx"
	"github.com/soypat/distmesh/comm"
	"github.com/soypat/distmesh/delaunay"
	"github.com/soypat/distmesh/field"
	"github.com/soypat/distmesh/lint"
	"github.com/soypat/distmesh/mesh"
	"github.com/soypat/distmesh/migrate"
	"gonum.org/v1/gonum/spatial/r3"
)

// state is a stage of the generation loop.
type state uint8

const (
	stateSeeding state = iota
	stateRetriangulate
	stateRelaxOrImprove
	stateProject
	stateCheckTermination
	stateMigrateCleanup
	stateTerminated
)

func (s state) String() string {
	switch s {
	case stateSeeding:
		return "seeding"
	case stateRetriangulate:
		return "retriangulate"
	case stateRelaxOrImprove:
		return "relax"
	case stateProject:
		return "project"
	case stateCheckTermination:
		return "check termination"
	case stateMigrateCleanup:
		return "migrate cleanup"
	case stateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// generator holds the state of one rank during a Generate call.
type generator struct {
	cfg        Config
	dim        int
	c          comm.Comm
	parallel   bool
	log        *slog.Logger
	rng        randx.Rand
	geps, deps float64

	// pts holds the owned points followed by the ghosts received this round.
	pts    []r3.Vec
	owned  int
	nfix   int
	ghosts []migrate.Ghost
	elems  []mesh.Simplex
	// Sub-domain of this rank and of every rank, by rank. Parallel only.
	extent  migrate.Extent
	extents []migrate.Extent
	bounds  r3.Box

	count     int
	iterStart time.Time
	maxMove   float64
	locked    bool
	done      bool
	status    Status
	result    mesh.Mesh
}

// Generate builds a mesh of the domain where cfg.Distance is negative with
// edge lengths following cfg.Sizing.
//
// With a nil cfg.Comm the run is serial. Otherwise every rank of the
// communicator must call Generate with the same configuration and the
// assembled mesh is returned on the root rank. A failure on one rank aborts
// the communicator so that no rank blocks forever.
func Generate(ctx context.Context, cfg Config) (Result, error) {
	cfg = cfg.defaults()
	if err := cfg.validate(); err != nil {
		if cfg.parallel() {
			cfg.Comm.Abort(err)
		}
		return Result{}, err
	}
	g := newGenerator(cfg)
	res, err := g.run(ctx)
	if err != nil && g.parallel {
		g.c.Abort(err)
	}
	return res, err
}

func newGenerator(cfg Config) *generator {
	g := &generator{
		cfg:      cfg,
		dim:      cfg.Dim,
		c:        cfg.Comm,
		parallel: cfg.parallel(),
		log:      cfg.Logger,
		geps:     0.1 * cfg.H0,
		deps:     math.Sqrt(dlamchE) * cfg.H0,
	}
	if !g.parallel {
		g.c = comm.Self()
	}
	if cfg.Seed != nil {
		// Ranks draw distinct but reproducible sequences.
		g.rng = randx.NewSysRand(*cfg.Seed + int64(g.c.Rank()))
	} else {
		g.rng = randx.NewGlobalRand()
	}
	return g
}

func (g *generator) run(ctx context.Context) (Result, error) {
	st := stateSeeding
	for st != stateTerminated {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("%s: %w", st, err)
		}
		next, err := g.step(st)
		if err != nil {
			return Result{}, fmt.Errorf("%s at iteration %d: %w", st, g.count, err)
		}
		st = next
	}
	return Result{
		Mesh:       g.result,
		Status:     g.status,
		Iterations: g.count + 1,
		Root:       g.c.Rank() == comm.Root,
	}, nil
}

// step runs state st and returns the next state.
func (g *generator) step(st state) (state, error) {
	switch st {
	case stateSeeding:
		return stateRetriangulate, g.seed()

	case stateRetriangulate:
		g.iterStart = time.Now()
		return stateRelaxOrImprove, g.retriangulate()

	case stateRelaxOrImprove:
		err := g.relaxOrImprove()
		if g.done {
			return stateMigrateCleanup, err
		}
		return stateProject, err

	case stateProject:
		return stateCheckTermination, g.project()

	case stateCheckTermination:
		if g.count >= g.cfg.MaxIter-1 {
			g.done = true
			g.status = StatusIterationLimit
			g.info("termination reached", "reason", "maximum number of iterations reached")
		}
		return stateMigrateCleanup, nil

	case stateMigrateCleanup:
		if g.done {
			return stateTerminated, g.finish()
		}
		err := g.dropGhosts()
		g.report()
		g.count++
		return stateRetriangulate, err
	}
	return stateTerminated, fmt.Errorf("invalid state %s", st)
}

// retriangulate rebuilds the triangulation of the rank's points and keeps
// the simplices inside the domain. Parallel runs first triangulate the owned
// points to decide which points neighbors need, exchange ghosts and then
// triangulate again with the ghosts included.
func (g *generator) retriangulate() error {
	var (
		elems []mesh.Simplex
		err   error
	)
	if g.parallel {
		elems, err = g.triangulateWithGhosts()
	} else {
		elems, err = g.cfg.Method.Triangulate(g.dim, g.pts)
	}
	if err != nil {
		return err
	}
	d, err := field.Eval(g.cfg.Distance, mesh.Centroids(g.dim, g.pts, elems))
	if err != nil {
		return err
	}
	g.elems = elems[:0]
	for k, s := range elems {
		if d[k] < -g.geps {
			g.elems = append(g.elems, s)
		}
	}
	g.snapshot()
	return nil
}

func (g *generator) triangulateWithGhosts() ([]mesh.Simplex, error) {
	owned := g.pts[:g.owned]
	var (
		inc   *delaunay.Incremental
		local []mesh.Simplex
		err   error
	)
	if g.cfg.Method.Incremental(g.dim) {
		inc, err = delaunay.NewIncremental(g.dim, g.bounds, owned)
		if err == nil {
			local = inc.Simplices()
		}
	} else {
		local, err = g.cfg.Method.Triangulate(g.dim, owned)
	}
	if err != nil {
		return nil, err
	}
	ex := migrate.Enqueue(g.dim, g.extents, g.c.Rank(), owned, g.owned, local)
	g.ghosts, err = migrate.Exchange(g.c, owned, ex)
	if err != nil {
		return nil, err
	}
	g.pts = g.pts[:g.owned]
	for _, gh := range g.ghosts {
		g.pts = append(g.pts, gh.Pos)
	}
	var elems []mesh.Simplex
	if inc != nil {
		if skipped := inc.Insert(g.pts[g.owned:]...); skipped > 0 {
			g.debug("ghosts not inserted", "count", skipped)
		}
		elems = inc.Simplices()
	} else {
		elems, err = g.cfg.Method.Triangulate(g.dim, g.pts)
		if err != nil {
			return nil, err
		}
	}
	return migrate.RemoveExternal(g.dim, g.extent, g.pts, elems), nil
}

// relaxOrImprove moves the owned points, either by edge forces or, in
// improvement mode, by pushing sliver vertices. Parallel runs keep every
// point in place on the last iteration so ranks agree on the final positions.
func (g *generator) relaxOrImprove() error {
	final := g.count >= g.cfg.MaxIter-1
	g.locked = false
	if !g.cfg.Improve.Enabled {
		var reduce sumReducer
		if g.parallel {
			reduce = g.reduceSums
		}
		dp, maxMove, err := relax(g.dim, g.pts, g.elems, g.cfg.Sizing, g.nfix, g.owned, reduce)
		if err != nil {
			return err
		}
		if g.parallel && final {
			g.maxMove = 0
			return nil
		}
		for i := range dp {
			g.pts[i] = r3.Add(g.pts[i], dp[i])
		}
		g.maxMove = maxMove
		return nil
	}

	g.maxMove = 0
	if final {
		return nil
	}
	imp := g.cfg.Improve
	slivers := DetectSlivers(g.pts, g.elems, imp.MinDihedral, imp.MaxDihedral)
	local, global := len(slivers), len(slivers)
	if g.parallel {
		var err error
		global, err = g.c.AllReduceInt(comm.OpSum, local)
		if err != nil {
			return err
		}
	}
	if g.due() {
		g.info("slivers detected", "count", global)
		g.debug("slivers on rank", "count", local)
	}
	if global == 0 {
		g.done = true
		g.status = StatusConverged
		g.info("termination reached", "reason", "no slivers detected")
		return nil
	}
	if g.parallel && local == 0 {
		g.locked = true
		if g.due() {
			g.debug("rank is locked")
		}
		return nil
	}
	_, err := PerturbSlivers(g.pts, g.elems, slivers, imp.Method, g.cfg.Sizing, g.rng, g.nfix, g.owned)
	return err
}

func (g *generator) reduceSums(sumL, sumH float64) (float64, float64, error) {
	sumL, err := g.c.AllReduceFloat64(comm.OpSum, sumL)
	if err != nil {
		return 0, 0, err
	}
	sumH, err = g.c.AllReduceFloat64(comm.OpSum, sumH)
	return sumL, sumH, err
}

// project brings owned points that left the domain back to its boundary.
// Parallel runs stop projecting two iterations before the end so the last
// movement of every rank happens in the same iteration.
func (g *generator) project() error {
	if g.locked || (g.parallel && g.count >= g.cfg.MaxIter-2) {
		return nil
	}
	return project(g.cfg.Distance, g.dim, g.pts, g.nfix, g.owned, g.deps)
}

// dropGhosts forgets the ghosts of this round so the next one starts from
// owned points only.
func (g *generator) dropGhosts() error {
	if !g.parallel {
		return nil
	}
	g.pts = g.pts[:g.owned]
	g.ghosts = nil
	return g.c.Barrier()
}

// finish assembles the result on the root and cleans it up.
func (g *generator) finish() error {
	m := mesh.Mesh{Dim: g.dim, Points: g.pts, Simplices: g.elems}
	if g.parallel {
		var err error
		m, err = migrate.Aggregate(g.c, g.dim, migrate.Local{
			Points:    g.pts,
			Ghosts:    g.ghosts,
			Simplices: g.elems,
			Extent:    g.extent,
		})
		if err != nil {
			return err
		}
	}
	if g.c.Rank() != comm.Root {
		g.result = m
		return nil
	}
	if g.cfg.PerformChecks {
		fixed, err := lint.Fix(m, 1e-6*g.cfg.H0)
		if err != nil {
			return err
		}
		rep, err := lint.Check(fixed, g.cfg.Improve.MinDihedral, g.cfg.Improve.MaxDihedral)
		if err != nil {
			return err
		}
		g.log.Info("mesh check", "report", rep)
		g.result = fixed
		return nil
	}
	pts, elems, _ := lint.DeleteUnused(g.dim, m.Points, m.Simplices)
	g.result = mesh.Mesh{Dim: g.dim, Points: pts, Simplices: elems}
	return nil
}
