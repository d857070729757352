package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/soypat/distmesh/field"
	"github.com/soypat/distmesh/meshio"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Domain is the TOML description of the region to mesh.
//
//	dim = 2
//	h0 = 0.05
//	min = [-1, -1]
//	max = [1, 1]
//
//	[sizing]
//	kind = "boundary"
//	grade = 0.3
//
//	[[shape]]
//	kind = "circle"
//	radius = 1
type Domain struct {
	Dim    int         `toml:"dim"`
	H0     float64     `toml:"h0"`
	Min    []float64   `toml:"min"`
	Max    []float64   `toml:"max"`
	Fixed  [][]float64 `toml:"fixed"`
	Sizing Sizing      `toml:"sizing"`
	Shapes []Shape     `toml:"shape"`

	// dir resolves relative shape paths.
	dir string
}

// Sizing selects the edge length field. Kinds are
//
//	constant  uniform edges of length h0
//	boundary  h0 + grade*|d(p)|, finer near the boundary
//	radial    h0 + grade*|p-center|
type Sizing struct {
	Kind   string    `toml:"kind"`
	Grade  float64   `toml:"grade"`
	Center []float64 `toml:"center"`
}

// Shape is one primitive of the domain. Shapes are combined in order, each
// one with the result of the previous ones using its op: "union" (default),
// "difference" or "intersection". Kind "stl" reads a closed binary STL
// surface from Path, relative to the domain file.
type Shape struct {
	Kind   string      `toml:"kind"`
	Op     string      `toml:"op"`
	Center []float64   `toml:"center"`
	Radius float64     `toml:"radius"`
	Height float64     `toml:"height"`
	Min    []float64   `toml:"min"`
	Max    []float64   `toml:"max"`
	Points [][]float64 `toml:"points"`
	Path   string      `toml:"path"`
}

// openDomain reads a domain file.
func openDomain(path string) (Domain, error) {
	f, err := os.Open(path)
	if err != nil {
		return Domain{}, err
	}
	defer f.Close()
	d, err := decodeDomain(f)
	if err != nil {
		return Domain{}, fmt.Errorf("%s: %w", path, err)
	}
	d.dir = filepath.Dir(path)
	return d, nil
}

func decodeDomain(r io.Reader) (Domain, error) {
	var d Domain
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		var missing *toml.StrictMissingError
		if errors.As(err, &missing) {
			return Domain{}, errors.New(missing.String())
		}
		return Domain{}, err
	}
	switch {
	case d.Dim != 2 && d.Dim != 3:
		return Domain{}, fmt.Errorf("dim must be 2 or 3, got %d", d.Dim)
	case !(d.H0 > 0):
		return Domain{}, fmt.Errorf("h0 must be positive, got %g", d.H0)
	case len(d.Shapes) == 0:
		return Domain{}, errors.New("no [[shape]] defined")
	}
	return d, nil
}

// vec converts a coordinate list of the domain's dimension.
func (d Domain) vec(name string, c []float64) (r3.Vec, error) {
	if len(c) != d.Dim {
		return r3.Vec{}, fmt.Errorf("%s: want %d coordinates, got %d", name, d.Dim, len(c))
	}
	v := r3.Vec{X: c[0], Y: c[1]}
	if d.Dim == 3 {
		v.Z = c[2]
	}
	return v, nil
}

// optVec is vec with a missing list meaning the origin.
func (d Domain) optVec(name string, c []float64) (r3.Vec, error) {
	if c == nil {
		return r3.Vec{}, nil
	}
	return d.vec(name, c)
}

// BBox returns the bounding box of the domain.
func (d Domain) BBox() (r3.Box, error) {
	min, err := d.vec("min", d.Min)
	if err != nil {
		return r3.Box{}, err
	}
	max, err := d.vec("max", d.Max)
	if err != nil {
		return r3.Box{}, err
	}
	return r3.Box{Min: min, Max: max}, nil
}

// FixedPoints returns the fixed points of the domain.
func (d Domain) FixedPoints() ([]r3.Vec, error) {
	var pts []r3.Vec
	for i, c := range d.Fixed {
		p, err := d.vec(fmt.Sprintf("fixed[%d]", i), c)
		if err != nil {
			return nil, err
		}
		pts = append(pts, p)
	}
	return pts, nil
}

// Distance builds the signed distance field of the domain.
func (d Domain) Distance() (field.Field, error) {
	var fd field.Field
	for i, s := range d.Shapes {
		f, err := d.shape(s)
		if err != nil {
			return nil, fmt.Errorf("shape %d (%s): %w", i, s.Kind, err)
		}
		if fd == nil {
			fd = f
			continue
		}
		switch s.Op {
		case "", "union":
			fd, err = field.Union(fd, f)
		case "difference":
			fd, err = field.Difference(fd, f)
		case "intersection":
			fd, err = field.Intersection(fd, f)
		default:
			err = fmt.Errorf("unknown op %q", s.Op)
		}
		if err != nil {
			return nil, fmt.Errorf("shape %d (%s): %w", i, s.Kind, err)
		}
	}
	return fd, nil
}

func (d Domain) shape(s Shape) (field.Field, error) {
	center, err := d.optVec("center", s.Center)
	if err != nil {
		return nil, err
	}
	switch {
	case d.Dim == 2 && s.Kind == "circle":
		return field.Circle(r2.Vec{X: center.X, Y: center.Y}, s.Radius)
	case d.Dim == 3 && s.Kind == "sphere":
		return field.Sphere(center, s.Radius)
	case d.Dim == 2 && s.Kind == "rectangle", d.Dim == 3 && s.Kind == "box":
		min, err := d.vec("min", s.Min)
		if err != nil {
			return nil, err
		}
		max, err := d.vec("max", s.Max)
		if err != nil {
			return nil, err
		}
		if d.Dim == 2 {
			return field.Rectangle(r2.Vec{X: min.X, Y: min.Y}, r2.Vec{X: max.X, Y: max.Y})
		}
		return field.Box(min, max)
	case d.Dim == 2 && s.Kind == "polygon":
		if len(s.Points) < 3 {
			return nil, fmt.Errorf("polygon needs at least 3 points, got %d", len(s.Points))
		}
		verts := make([]v2.Vec, len(s.Points))
		for i, c := range s.Points {
			p, err := d.vec(fmt.Sprintf("points[%d]", i), c)
			if err != nil {
				return nil, err
			}
			verts[i] = v2.Vec{X: p.X, Y: p.Y}
		}
		poly, err := sdf.Polygon2D(verts)
		if err != nil {
			return nil, err
		}
		return field.FromSDF2(poly)
	case d.Dim == 3 && s.Kind == "cylinder":
		cyl, err := sdf.Cylinder3D(s.Height, s.Radius, 0)
		if err != nil {
			return nil, err
		}
		f, err := field.FromSDF3(cyl)
		if err != nil {
			return nil, err
		}
		return field.Translate(f, center), nil
	case d.Dim == 3 && s.Kind == "stl":
		path := s.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(d.dir, path)
		}
		fp, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer fp.Close()
		tris, err := meshio.ReadSTL(fp)
		if err != nil {
			return nil, err
		}
		return field.Surface(tris)
	}
	return nil, fmt.Errorf("unknown %dD shape kind %q", d.Dim, s.Kind)
}

// SizingField builds the edge length field of the domain. fd is the field
// returned by Distance.
func (d Domain) SizingField(fd field.Field) (field.Field, error) {
	sz := d.Sizing
	if sz.Grade < 0 || math.IsNaN(sz.Grade) {
		return nil, fmt.Errorf("sizing grade %g negative", sz.Grade)
	}
	switch sz.Kind {
	case "", "constant":
		return field.Constant(d.H0), nil
	case "radial":
		center, err := d.optVec("sizing center", sz.Center)
		if err != nil {
			return nil, err
		}
		return field.Func(func(p r3.Vec) float64 {
			return d.H0 + sz.Grade*r3.Norm(r3.Sub(p, center))
		}), nil
	case "boundary":
		return &boundarySizing{fd: fd, h0: d.H0, grade: sz.Grade}, nil
	}
	return nil, fmt.Errorf("unknown sizing kind %q", sz.Kind)
}

// boundarySizing grows edges linearly with the distance to the boundary.
type boundarySizing struct {
	fd        field.Field
	h0, grade float64
}

func (b *boundarySizing) Evaluate(pos []r3.Vec, dst []float64) error {
	if err := b.fd.Evaluate(pos, dst); err != nil {
		return err
	}
	for i, v := range dst {
		dst[i] = b.h0 + b.grade*math.Abs(v)
	}
	return nil
}
