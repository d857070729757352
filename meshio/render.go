package meshio

import (
	"errors"
	"image"

	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"
	"github.com/soypat/distmesh/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// View describes the camera used by Render.
type View struct {
	// Eye is the camera position and LookAt the point it faces. Both are in
	// the bi-unit cube the mesh is scaled into.
	Eye, LookAt r3.Vec
	Up          r3.Vec
	Near, Far   float64
	// Width and Height of the output image in pixels.
	Width, Height int
	// Supersampling factor used for antialiasing.
	Scale int
}

// DefaultView looks at the mesh from an oblique angle. 2D meshes are better
// seen with Eye on the Z axis.
func DefaultView() View {
	return View{
		Eye:    r3.Vec{X: 3, Y: 2, Z: 2.5},
		Up:     r3.Vec{Z: 1},
		Near:   1,
		Far:    20,
		Width:  1024,
		Height: 768,
		Scale:  2,
	}
}

// Render shades the surface of m with a phong shader and returns the image.
func Render(m mesh.Mesh, view View) (image.Image, error) {
	if err := m.Validate(false); err != nil {
		return nil, err
	}
	tris := surface(m)
	if len(tris) == 0 {
		return nil, errors.New("empty mesh")
	}
	if view.Width <= 0 || view.Height <= 0 {
		return nil, errors.New("non-positive image size")
	}
	if view.Scale < 1 {
		view.Scale = 1
	}
	const fovy = 30 // vertical field of view in degrees
	faces := make([]*fauxgl.Triangle, len(tris))
	for i, t := range tris {
		faces[i] = fauxgl.NewTriangleForPoints(fv(m.Points[t[0]]), fv(m.Points[t[1]]), fv(m.Points[t[2]]))
	}
	model := fauxgl.NewTriangleMesh(faces)
	model.BiUnitCube()

	var (
		eye    = fv(view.Eye)
		center = fv(view.LookAt)
		up     = fv(view.Up)
		light  = fauxgl.V(-0.75, 1, 0.25).Normalize()
	)
	ctx := fauxgl.NewContext(view.Width*view.Scale, view.Height*view.Scale)
	ctx.ClearColorBufferWith(fauxgl.HexColor("#FFF8E3"))
	aspect := float64(view.Width) / float64(view.Height)
	matrix := fauxgl.LookAt(eye, center, up).Perspective(fovy, aspect, view.Near, view.Far)
	shader := fauxgl.NewPhongShader(matrix, light, eye)
	shader.ObjectColor = fauxgl.HexColor("#468966")
	ctx.Shader = shader
	ctx.DrawMesh(model)
	if m.Dim == 2 {
		// Flat triangles show no shading; outline them.
		ctx.Shader = fauxgl.NewSolidColorShader(matrix, fauxgl.HexColor("#2A2C2B"))
		ctx.LineWidth = float64(view.Scale)
		ctx.DrawLines(wireframe(model))
	}
	img := ctx.Image()
	return resize.Resize(uint(view.Width), uint(view.Height), img, resize.Bilinear), nil
}

// RenderPNG renders m and saves it as a PNG file at path.
func RenderPNG(path string, m mesh.Mesh, view View) error {
	img, err := Render(m, view)
	if err != nil {
		return err
	}
	return fauxgl.SavePNG(path, img)
}

func wireframe(model *fauxgl.Mesh) []*fauxgl.Line {
	lines := make([]*fauxgl.Line, 0, 3*len(model.Triangles))
	for _, t := range model.Triangles {
		lines = append(lines,
			fauxgl.NewLineForPoints(t.V1.Position, t.V2.Position),
			fauxgl.NewLineForPoints(t.V2.Position, t.V3.Position),
			fauxgl.NewLineForPoints(t.V3.Position, t.V1.Position),
		)
	}
	return lines
}

func fv(v r3.Vec) fauxgl.Vector { return fauxgl.V(v.X, v.Y, v.Z) }
