package meshio

import (
	"errors"
	"image/color"
	"io"
	"math"

	"github.com/soypat/distmesh/mesh"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// PlotOptions configures PlotPNG.
type PlotOptions struct {
	Title string
	// Width of the image. Height follows the aspect ratio of the mesh.
	// Defaults to 6 inches.
	Width vg.Length
	// Highlight is drawn as point markers on top of the mesh, typically the
	// fixed points.
	Highlight []int
}

// PlotPNG draws the edges of 2D mesh m as a PNG image. Boundary edges are
// drawn thicker than interior ones.
func PlotPNG(w io.Writer, m mesh.Mesh, opts PlotOptions) error {
	if m.Dim != 2 {
		return errors.New("PlotPNG requires a 2D mesh")
	}
	if err := m.Validate(false); err != nil {
		return err
	}
	if len(m.Simplices) == 0 {
		return errors.New("empty mesh")
	}
	if opts.Width <= 0 {
		opts.Width = 6 * vg.Inch
	}
	tp := &triPlot{
		pts:      m.Points,
		edges:    m.Edges(),
		boundary: BoundaryEdges(m.Simplices),
		inner:    draw.LineStyle{Color: color.Gray{Y: 90}, Width: vg.Points(0.4)},
		outer:    draw.LineStyle{Color: color.Black, Width: vg.Points(1.2)},
	}
	p := plot.New()
	p.Title.Text = opts.Title
	p.Add(tp)
	if len(opts.Highlight) > 0 {
		xys := make(plotter.XYs, len(opts.Highlight))
		for i, idx := range opts.Highlight {
			xys[i].X, xys[i].Y = m.Points[idx].X, m.Points[idx].Y
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = color.RGBA{R: 200, A: 255}
		sc.GlyphStyle.Radius = vg.Points(2)
		p.Add(sc)
	}
	xmin, xmax, ymin, ymax := tp.DataRange()
	aspect := 1.0
	if dx := xmax - xmin; dx > 0 && ymax > ymin {
		aspect = (ymax - ymin) / dx
	}
	height := vg.Length(math.Max(1, float64(opts.Width)*aspect))
	wt, err := p.WriterTo(opts.Width, height, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// triPlot implements plot.Plotter and plot.DataRanger for a triangle mesh.
type triPlot struct {
	pts      []r3.Vec
	edges    []mesh.Edge
	boundary [][2]int
	inner    draw.LineStyle
	outer    draw.LineStyle
}

func (tp *triPlot) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	at := func(i int) vg.Point {
		return vg.Point{X: trX(tp.pts[i].X), Y: trY(tp.pts[i].Y)}
	}
	lines := make([][]vg.Point, 0, len(tp.edges))
	for _, e := range tp.edges {
		lines = append(lines, c.ClipLinesXY([]vg.Point{at(e[0]), at(e[1])})...)
	}
	c.StrokeLines(tp.inner, lines...)
	lines = lines[:0]
	for _, e := range tp.boundary {
		lines = append(lines, c.ClipLinesXY([]vg.Point{at(e[0]), at(e[1])})...)
	}
	c.StrokeLines(tp.outer, lines...)
}

func (tp *triPlot) DataRange() (xmin, xmax, ymin, ymax float64) {
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	for _, p := range tp.pts {
		xmin, xmax = math.Min(xmin, p.X), math.Max(xmax, p.X)
		ymin, ymax = math.Min(ymin, p.Y), math.Max(ymax, p.Y)
	}
	return xmin, xmax, ymin, ymax
}
