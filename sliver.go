package distmesh

import (
	"fmt"
	"strings"

	"cogentcore.org/core/base/randx"
	"github.com/soypat/distmesh/field"
	"github.com/soypat/distmesh/geom"
	"github.com/soypat/distmesh/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// ImproveMethod selects the direction a sliver vertex is pushed in.
type ImproveMethod uint8

const (
	// ImproveCircumsphere moves the vertex so the circumsphere grows.
	ImproveCircumsphere ImproveMethod = iota
	// ImproveVolume moves the vertex so the tetrahedron volume shrinks.
	ImproveVolume
	// ImproveRandom moves the vertex in a random direction.
	ImproveRandom
)

func (m ImproveMethod) String() string {
	switch m {
	case ImproveCircumsphere:
		return "circumsphere"
	case ImproveVolume:
		return "volume"
	case ImproveRandom:
		return "random"
	}
	return ""
}

// ParseImproveMethod parses the name returned by ImproveMethod.String.
func ParseImproveMethod(s string) (ImproveMethod, error) {
	for m := ImproveCircumsphere; m <= ImproveRandom; m++ {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown improvement method %q", s)
}

// DetectSlivers returns the sorted indices of the tetrahedra with a dihedral
// angle below minDeg or above maxDeg.
func DetectSlivers(pts []r3.Vec, elems []mesh.Simplex, minDeg, maxDeg float64) []int {
	var slivers []int
	for k, s := range elems {
		ang := geom.DihedralAngles(pts[s[0]], pts[s[1]], pts[s[2]], pts[s[3]])
		lo, hi := geom.MinMax(ang[:])
		if lo < minDeg || hi > maxDeg {
			slivers = append(slivers, k)
		}
	}
	return slivers
}

// PerturbSlivers moves the first vertex of each sliver by a tenth of the
// local sizing value along the direction chosen by method. A vertex shared by
// several slivers is moved once, by the first. Vertices outside
// [fixed, owned) stay put. rng is only drawn from by ImproveRandom.
// It returns the number of vertices moved.
func PerturbSlivers(pts []r3.Vec, elems []mesh.Simplex, slivers []int, method ImproveMethod, sizing field.Field, rng randx.Rand, fixed, owned int) (int, error) {
	type move struct {
		v   int
		dir r3.Vec
	}
	var moves []move
	done := make(map[int]struct{}, len(slivers))
	for _, k := range slivers {
		s := elems[k]
		v := s[0]
		var dir r3.Vec
		switch method {
		case ImproveRandom:
			// Drawn for every sliver so the sequence does not depend on
			// which vertices are movable.
			dir = r3.Vec{X: 2*rng.Float64() - 1, Y: 2*rng.Float64() - 1, Z: 2*rng.Float64() - 1}
		case ImproveVolume:
			dir = r3.Scale(-1, geom.VolumeGradient(pts[s[1]], pts[s[2]], pts[s[3]]))
		case ImproveCircumsphere:
			dir = geom.CircumsphereGradient(pts[s[0]], pts[s[1]], pts[s[2]], pts[s[3]])
		default:
			return 0, fmt.Errorf("unknown improvement method %d", method)
		}
		if v < fixed || v >= owned {
			continue
		}
		if _, ok := done[v]; ok {
			continue
		}
		dir = geom.Unit(dir)
		if dir == (r3.Vec{}) {
			continue
		}
		done[v] = struct{}{}
		moves = append(moves, move{v: v, dir: dir})
	}
	if len(moves) == 0 {
		return 0, nil
	}
	at := make([]r3.Vec, len(moves))
	for i, m := range moves {
		at[i] = pts[m.v]
	}
	h, err := field.Eval(sizing, at)
	if err != nil {
		return 0, err
	}
	for i, m := range moves {
		pts[m.v] = r3.Add(pts[m.v], r3.Scale(push*h[i], m.dir))
	}
	return len(moves), nil
}
