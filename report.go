package distmesh

import (
	"time"

	"github.com/soypat/distmesh/comm"
)

// info logs on the root rank only.
func (g *generator) info(msg string, args ...any) {
	if g.c.Rank() == comm.Root {
		g.log.Info(msg, args...)
	}
}

// debug logs on every rank, tagged with the rank in parallel runs.
func (g *generator) debug(msg string, args ...any) {
	if g.parallel {
		args = append(args, "rank", g.c.Rank())
	}
	g.log.Debug(msg, args...)
}

func (g *generator) due() bool { return g.count%g.cfg.ReportEvery == 0 }

// report logs the progress of the iteration that just ended. Counts are the
// root rank's local ones in parallel runs.
func (g *generator) report() {
	if !g.due() {
		return
	}
	g.info("iteration",
		"n", g.count+1,
		"max_move", g.maxMove,
		"vertices", g.owned,
		"cells", len(g.elems),
		"elapsed", time.Since(g.iterStart),
	)
}

// snapshot hands the current triangulation to the OnIteration callback.
func (g *generator) snapshot() {
	if g.cfg.OnIteration == nil || !g.due() {
		return
	}
	g.cfg.OnIteration(Snapshot{
		Iteration: g.count,
		Rank:      g.c.Rank(),
		Dim:       g.dim,
		Points:    g.pts,
		Owned:     g.owned,
		Simplices: g.elems,
		MaxMove:   g.maxMove,
	})
}
