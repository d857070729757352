// Package meshio exports generated meshes: binary STL, legacy VTK, 2D plots
// and shaded 3D renders.
package meshio

import (
	"sort"

	"github.com/soypat/distmesh/mesh"
)

// outward lists the faces of a positively oriented tetrahedron with normals
// pointing away from the opposite vertex.
var outward = [4][3]int{
	{1, 2, 3},
	{0, 3, 2},
	{0, 1, 3},
	{0, 2, 1},
}

// BoundaryFaces returns the faces of positively oriented tetrahedra elems
// that are shared by no other tetrahedron, wound outward. Faces are returned
// in the order they are first found.
func BoundaryFaces(elems []mesh.Simplex) [][3]int {
	count := make(map[[3]int]int, 2*len(elems))
	faces := make([][3]int, 0, 4*len(elems))
	for _, s := range elems {
		for _, f := range outward {
			face := [3]int{s[f[0]], s[f[1]], s[f[2]]}
			key := face
			sort.Ints(key[:])
			if count[key] == 0 {
				faces = append(faces, face)
			}
			count[key]++
		}
	}
	boundary := faces[:0]
	for _, face := range faces {
		key := face
		sort.Ints(key[:])
		if count[key] == 1 {
			boundary = append(boundary, face)
		}
	}
	return boundary
}

// BoundaryEdges returns the edges of counter-clockwise triangles elems that
// belong to a single triangle. Each edge is directed so the mesh lies on its
// left.
func BoundaryEdges(elems []mesh.Simplex) [][2]int {
	count := make(map[mesh.Edge]int, 2*len(elems))
	var edges [][2]int
	for _, s := range elems {
		for i := 0; i < 3; i++ {
			e := [2]int{s[i], s[(i+1)%3]}
			key := mesh.NewEdge(e[0], e[1])
			if count[key] == 0 {
				edges = append(edges, e)
			}
			count[key]++
		}
	}
	boundary := edges[:0]
	for _, e := range edges {
		if count[mesh.NewEdge(e[0], e[1])] == 1 {
			boundary = append(boundary, e)
		}
	}
	return boundary
}

// surface returns the triangles describing the visible surface of m: every
// triangle in 2D, the boundary faces in 3D.
func surface(m mesh.Mesh) [][3]int {
	if m.Dim == 3 {
		return BoundaryFaces(m.Simplices)
	}
	tris := make([][3]int, len(m.Simplices))
	for i, s := range m.Simplices {
		tris[i] = [3]int{s[0], s[1], s[2]}
	}
	return tris
}
