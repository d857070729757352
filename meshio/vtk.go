package meshio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/soypat/distmesh/mesh"
)

// VTK legacy cell type identifiers.
const (
	vtkTriangle = 5
	vtkTetra    = 10
)

// WriteVTK writes m as an ASCII legacy VTK unstructured grid readable by
// ParaView and VisIt.
func WriteVTK(w io.Writer, m mesh.Mesh) error {
	if err := m.Validate(false); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	nv := m.Dim + 1
	cellType := vtkTriangle
	if m.Dim == 3 {
		cellType = vtkTetra
	}
	fmt.Fprintf(bw, "# vtk DataFile Version 3.0\ndistmesh %dD mesh\nASCII\nDATASET UNSTRUCTURED_GRID\n", m.Dim)
	fmt.Fprintf(bw, "POINTS %d double\n", len(m.Points))
	var buf []byte
	for _, p := range m.Points {
		buf = strconv.AppendFloat(buf[:0], p.X, 'g', -1, 64)
		buf = append(buf, ' ')
		buf = strconv.AppendFloat(buf, p.Y, 'g', -1, 64)
		buf = append(buf, ' ')
		buf = strconv.AppendFloat(buf, p.Z, 'g', -1, 64)
		buf = append(buf, '\n')
		bw.Write(buf)
	}
	fmt.Fprintf(bw, "CELLS %d %d\n", len(m.Simplices), len(m.Simplices)*(nv+1))
	for _, s := range m.Simplices {
		buf = strconv.AppendInt(buf[:0], int64(nv), 10)
		for _, v := range s.Verts(m.Dim) {
			buf = append(buf, ' ')
			buf = strconv.AppendInt(buf, int64(v), 10)
		}
		buf = append(buf, '\n')
		bw.Write(buf)
	}
	fmt.Fprintf(bw, "CELL_TYPES %d\n", len(m.Simplices))
	for range m.Simplices {
		fmt.Fprintln(bw, cellType)
	}
	return bw.Flush()
}
