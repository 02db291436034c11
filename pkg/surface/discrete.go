// Package surface extracts label-exact isosurfaces from voxel volumes.
//
// Voxel centres are the lattice points. A voxel is inside when its value
// equals the requested label exactly, and every surface vertex sits at the
// midpoint of a lattice edge between an inside and an outside voxel, so
// region boundaries never depend on interpolated gray levels. Each lattice
// cell is split into six tetrahedra around its main diagonal, which gives a
// watertight surface without the ambiguous cases of the cube table.
package surface

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"niftitostl/internal/models"
)

// cellTets lists the tetrahedra of a cell. Corner c of a cell with base
// (x,y,z) is (x + c&1, y + c>>1&1, z + c>>2&1). Every tetrahedron walks
// from corner 0 to corner 7 one axis at a time.
var cellTets = func() [6][4]int {
	axes := [][3]int{{1, 2, 4}, {1, 4, 2}, {2, 1, 4}, {2, 4, 1}, {4, 1, 2}, {4, 2, 1}}
	var tets [6][4]int
	for i, p := range axes {
		tets[i] = [4]int{0, p[0], p[0] | p[1], 7}
	}
	return tets
}()

type extractor struct {
	vol     *models.Volume
	value   float64
	flip    bool
	mesh    *models.Mesh
	vertIDs map[[2]int]int
}

// ExtractDiscrete returns the closed surface enclosing every voxel equal to
// value, in the physical coordinates of the volume geometry. The grid is
// padded with one layer of outside voxels so regions touching the border
// are closed as well. Width is the fastest axis of the data and the first
// axis of the grid.
func ExtractDiscrete(vol *models.Volume, value float64) *models.Mesh {
	e := &extractor{
		vol:     vol,
		value:   value,
		flip:    mat.Det(vol.Geometry.DirectionMatrix()) < 0,
		mesh:    &models.Mesh{},
		vertIDs: make(map[[2]int]int),
	}

	var corners [8]bool
	for z := -1; z < vol.Depth; z++ {
		for y := -1; y < vol.Height; y++ {
			for x := -1; x < vol.Width; x++ {
				n := 0
				for c := 0; c < 8; c++ {
					corners[c] = e.inside(x+c&1, y+c>>1&1, z+c>>2&1)
					if corners[c] {
						n++
					}
				}
				if n == 0 || n == 8 {
					continue
				}
				for _, tet := range cellTets {
					e.march(x, y, z, tet, &corners)
				}
			}
		}
	}
	return e.mesh
}

func (e *extractor) inside(x, y, z int) bool {
	v := e.vol
	if x < 0 || y < 0 || z < 0 || x >= v.Width || y >= v.Height || z >= v.Depth {
		return false
	}
	return v.Data[v.Index(x, y, z)] == e.value
}

// point is a lattice point in index space.
type point [3]int

func cornerPoint(x, y, z, c int) point {
	return point{x + c&1, y + c>>1&1, z + c>>2&1}
}

// id is unique over the padded grid.
func (e *extractor) id(p point) int {
	w, h := e.vol.Width+2, e.vol.Height+2
	return (p[0] + 1) + w*((p[1]+1)+h*(p[2]+1))
}

// edgeVertex returns the shared vertex at the midpoint of edge (p, q).
func (e *extractor) edgeVertex(p, q point) int {
	a, b := e.id(p), e.id(q)
	if a > b {
		a, b = b, a
	}
	key := [2]int{a, b}
	if idx, ok := e.vertIDs[key]; ok {
		return idx
	}
	idx := len(e.mesh.Vertices)
	e.mesh.Vertices = append(e.mesh.Vertices, e.vol.Geometry.IndexToPhysical(
		float64(p[0]+q[0])/2,
		float64(p[1]+q[1])/2,
		float64(p[2]+q[2])/2,
	))
	e.vertIDs[key] = idx
	return idx
}

func (e *extractor) march(x, y, z int, tet [4]int, corners *[8]bool) {
	var in, out []point
	for _, c := range tet {
		if corners[c] {
			in = append(in, cornerPoint(x, y, z, c))
		} else {
			out = append(out, cornerPoint(x, y, z, c))
		}
	}

	switch len(in) {
	case 1:
		e.emit(in, out,
			[3]point{in[0], in[0], in[0]},
			[3]point{out[0], out[1], out[2]})
	case 3:
		e.emit(in, out,
			[3]point{in[0], in[1], in[2]},
			[3]point{out[0], out[0], out[0]})
	case 2:
		// quad a-c, a-d, b-d, b-c split along (a-c, b-d)
		a, b, c, d := in[0], in[1], out[0], out[1]
		e.emit(in, out, [3]point{a, a, b}, [3]point{c, d, d})
		e.emit(in, out, [3]point{a, b, b}, [3]point{c, d, c})
	}
}

// emit adds the triangle whose corners are the midpoints of edges
// (from[i], to[i]), wound so its normal points from the inside corners
// towards the outside corners.
func (e *extractor) emit(in, out []point, from, to [3]point) {
	var pos [3]r3.Vec
	var face [3]int
	for i := 0; i < 3; i++ {
		face[i] = e.edgeVertex(from[i], to[i])
		pos[i] = r3.Vec{
			X: float64(from[i][0]+to[i][0]) / 2,
			Y: float64(from[i][1]+to[i][1]) / 2,
			Z: float64(from[i][2]+to[i][2]) / 2,
		}
	}

	normal := r3.Cross(r3.Sub(pos[1], pos[0]), r3.Sub(pos[2], pos[0]))
	outward := r3.Sub(centroid(out), centroid(in))
	if (r3.Dot(normal, outward) < 0) != e.flip {
		face[1], face[2] = face[2], face[1]
	}
	e.mesh.Faces = append(e.mesh.Faces, face)
}

func centroid(pts []point) r3.Vec {
	var c r3.Vec
	for _, p := range pts {
		c = r3.Add(c, r3.Vec{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])})
	}
	return r3.Scale(1/float64(len(pts)), c)
}
