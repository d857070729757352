package meshio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/chewxy/math32"
	"github.com/soypat/distmesh/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

const stlTriangleSize = 50

// stlHeader defines the STL file header.
type stlHeader struct {
	_     [80]uint8 // Header
	Count uint32    // Number of triangles
}

// stlTriangle defines the triangle data within an STL file.
type stlTriangle struct {
	Normal [3]float32
	Vertex [3][3]float32
	_      uint16 // Attribute byte count
}

// WriteSTL writes the surface of m in binary STL format. 2D meshes are
// written as flat triangles in the XY plane, 3D meshes as their outward
// boundary faces.
func WriteSTL(w io.Writer, m mesh.Mesh) error {
	if err := m.Validate(false); err != nil {
		return err
	}
	tris := surface(m)
	if len(tris) == 0 {
		return errors.New("empty mesh")
	}
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, &stlHeader{Count: uint32(len(tris))}); err != nil {
		return err
	}
	var b [stlTriangleSize]byte
	for _, tri := range tris {
		var d stlTriangle
		v := [3]r3.Vec{m.Points[tri[0]], m.Points[tri[1]], m.Points[tri[2]]}
		n := r3.Cross(r3.Sub(v[1], v[0]), r3.Sub(v[2], v[0]))
		if l := r3.Norm(n); l > 0 {
			n = r3.Scale(1/l, n)
		}
		d.Normal = to3F32(n)
		for i := range v {
			d.Vertex[i] = to3F32(v[i])
		}
		d.put(b[:])
		if _, err := bw.Write(b[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadSTL reads a binary STL and returns its triangles.
func ReadSTL(r io.Reader) ([][3]r3.Vec, error) {
	var header stlHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errors.New("encountered EOF while reading STL header")
		}
		return nil, errors.New("STL header read failed: " + err.Error())
	}
	if header.Count == 0 {
		return nil, errors.New("STL header indicates 0 triangles present")
	}
	var (
		buf [stlTriangleSize]byte
		d   stlTriangle
	)
	out := make([][3]r3.Vec, header.Count)
	for i := range out {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, fmt.Errorf("%d/%d STL triangles read: %w", i, header.Count, err)
		}
		d.get(buf[:])
		if bad3F32(d.Normal) || bad3F32(d.Vertex[0]) || bad3F32(d.Vertex[1]) || bad3F32(d.Vertex[2]) {
			return nil, fmt.Errorf("STL triangle %d: inf/NaN component", i)
		}
		for j := range out[i] {
			out[i][j] = from3F32(d.Vertex[j])
		}
	}
	return out, nil
}

func (t *stlTriangle) put(b []byte) {
	_ = b[stlTriangleSize-1] // early bounds check
	put3F32(b, t.Normal)
	for i := range t.Vertex {
		put3F32(b[12*(i+1):], t.Vertex[i])
	}
	binary.LittleEndian.PutUint16(b[48:], 0)
}

func (t *stlTriangle) get(b []byte) {
	_ = b[stlTriangleSize-1]
	get3F32(b, &t.Normal)
	for i := range t.Vertex {
		get3F32(b[12*(i+1):], &t.Vertex[i])
	}
}

func put3F32(b []byte, f [3]float32) {
	_ = b[11]
	binary.LittleEndian.PutUint32(b, math.Float32bits(f[0]))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(f[1]))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(f[2]))
}

func get3F32(b []byte, f *[3]float32) {
	_ = b[11]
	f[0] = math.Float32frombits(binary.LittleEndian.Uint32(b))
	f[1] = math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
	f[2] = math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))
}

func bad3F32(f [3]float32) bool {
	return math32.IsNaN(f[0]) || math32.IsInf(f[0], 0) ||
		math32.IsNaN(f[1]) || math32.IsInf(f[1], 0) ||
		math32.IsNaN(f[2]) || math32.IsInf(f[2], 0)
}

func to3F32(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

func from3F32(f [3]float32) r3.Vec {
	return r3.Vec{X: float64(f[0]), Y: float64(f[1]), Z: float64(f[2])}
}
