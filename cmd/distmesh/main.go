// Command distmesh generates a triangle or tetrahedral mesh of the domain
// described by a TOML file and writes it as VTK, STL or PNG.
//
//	distmesh -ranks 4 -vtk disk.vtk -png disk.png disk.toml
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/core/base/logx"
	"cogentcore.org/core/cli"
	"github.com/soypat/distmesh"
	"github.com/soypat/distmesh/comm"
	"github.com/soypat/distmesh/delaunay"
	"github.com/soypat/distmesh/mesh"
	"github.com/soypat/distmesh/meshio"
)

// Config is the configuration of the distmesh command.
type Config struct {

	// Domain is the TOML file describing the region to mesh.
	Domain string `posarg:"0"`

	// Ranks is the number of in-process ranks the domain is split between.
	Ranks int `default:"1"`

	// MaxIter is the number of relaxation iterations.
	MaxIter int `default:"50"`

	// ReportEvery is the progress logging cadence in iterations.
	ReportEvery int `default:"5"`

	// Seed fixes the pseudo-random sequence when non-zero.
	Seed int64

	// Method is the Delaunay triangulator: auto, sweep or bowyer-watson.
	Method string `default:"auto"`

	// Axis along which ranks split the domain.
	Axis int

	// Improve runs sliver removal instead of relaxation (3D only).
	Improve bool

	// ImproveMethod is the sliver perturbation: circumsphere, volume or random.
	ImproveMethod string `default:"circumsphere"`

	// MinDihedral and MaxDihedral bound the dihedral angles of non-sliver
	// tetrahedra in degrees.
	MinDihedral float64 `default:"10"`
	MaxDihedral float64 `default:"170"`

	// Check repairs the final mesh and logs a quality report.
	Check bool

	// VTK, STL and PNG are output paths. Empty paths are skipped.
	VTK string
	STL string
	PNG string

	// Verbose and VeryVerbose raise the log level, Quiet lowers it.
	Verbose     bool `flag:"v,verbose"`
	VeryVerbose bool `flag:"vv,very-verbose"`
	Quiet       bool `flag:"q,quiet"`
}

func main() {
	opts := cli.DefaultOptions("distmesh", "Generate unstructured simplex meshes from signed distance functions.")
	cli.Run(opts, &Config{}, Run)
}

// Run generates the mesh described by c.Domain.
func Run(c *Config) error { //cli:cmd -root
	level := logx.LevelFromFlags(c.VeryVerbose, c.Verbose, c.Quiet)
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := c.meshConfig(log)
	if err != nil {
		return err
	}
	start := time.Now()
	res, err := generate(context.Background(), cfg, c.Ranks)
	if err != nil {
		return err
	}
	m := res.Mesh
	log.Info("mesh generated",
		"status", res.Status,
		"iterations", res.Iterations,
		"vertices", len(m.Points),
		"cells", len(m.Simplices),
		"elapsed", time.Since(start),
	)
	return c.write(m)
}

// meshConfig builds the generator configuration from the command flags and
// the domain file.
func (c *Config) meshConfig(log *slog.Logger) (distmesh.Config, error) {
	dom, err := openDomain(c.Domain)
	if err != nil {
		return distmesh.Config{}, err
	}
	bbox, err := dom.BBox()
	if err != nil {
		return distmesh.Config{}, err
	}
	fixed, err := dom.FixedPoints()
	if err != nil {
		return distmesh.Config{}, err
	}
	fd, err := dom.Distance()
	if err != nil {
		return distmesh.Config{}, err
	}
	fh, err := dom.SizingField(fd)
	if err != nil {
		return distmesh.Config{}, err
	}
	method, err := delaunay.ParseMethod(c.Method)
	if err != nil {
		return distmesh.Config{}, err
	}
	improve, err := distmesh.ParseImproveMethod(c.ImproveMethod)
	if err != nil {
		return distmesh.Config{}, err
	}
	cfg := distmesh.Config{
		Dim:         dom.Dim,
		BBox:        bbox,
		H0:          dom.H0,
		Sizing:      fh,
		Distance:    fd,
		Fixed:       fixed,
		MaxIter:     c.MaxIter,
		ReportEvery: c.ReportEvery,
		Axis:        c.Axis,
		Method:      method,
		Improve: distmesh.Improve{
			Enabled:     c.Improve,
			Method:      improve,
			MinDihedral: c.MinDihedral,
			MaxDihedral: c.MaxDihedral,
		},
		PerformChecks: c.Check,
		Logger:        log,
	}
	if c.Seed != 0 {
		cfg.Seed = &c.Seed
	}
	return cfg, nil
}

// generate runs cfg serially for a single rank or on ranks in-process ranks
// otherwise, returning the root's result.
func generate(ctx context.Context, cfg distmesh.Config, ranks int) (distmesh.Result, error) {
	if ranks <= 1 {
		return distmesh.Generate(ctx, cfg)
	}
	var (
		mu   sync.Mutex
		root distmesh.Result
	)
	err := comm.Run(ctx, ranks, func(ctx context.Context, c comm.Comm) error {
		cfg := cfg
		cfg.Comm = c
		res, err := distmesh.Generate(ctx, cfg)
		if err != nil {
			return err
		}
		if res.Root {
			mu.Lock()
			root = res
			mu.Unlock()
		}
		return nil
	})
	return root, err
}

// write saves m to every requested output.
func (c *Config) write(m mesh.Mesh) error {
	outputs := []struct {
		path  string
		write func(io.Writer, mesh.Mesh) error
	}{
		{c.VTK, meshio.WriteVTK},
		{c.STL, meshio.WriteSTL},
	}
	for _, out := range outputs {
		if out.path == "" {
			continue
		}
		if err := writeFile(out.path, m, out.write); err != nil {
			return err
		}
	}
	if c.PNG == "" {
		return nil
	}
	if m.Dim == 3 {
		return meshio.RenderPNG(c.PNG, m, meshio.DefaultView())
	}
	return writeFile(c.PNG, m, func(w io.Writer, m mesh.Mesh) error {
		return meshio.PlotPNG(w, m, meshio.PlotOptions{Title: c.Domain})
	})
}

func writeFile(path string, m mesh.Mesh, write func(io.Writer, mesh.Mesh) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, m); err != nil {
		errors.Log(f.Close())
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
