package models

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is an indexed triangle surface in physical coordinates.
type Mesh struct {
	// Vertices are the vertex positions in mm
	Vertices []r3.Vec

	// Faces index into Vertices; winding is counter-clockwise seen from outside
	Faces [][3]int

	// Scalars optionally holds one value per vertex (smoothing error)
	Scalars []float64
}

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{
		Vertices: make([]r3.Vec, len(m.Vertices)),
		Faces:    make([][3]int, len(m.Faces)),
	}
	copy(out.Vertices, m.Vertices)
	copy(out.Faces, m.Faces)
	if m.Scalars != nil {
		out.Scalars = make([]float64, len(m.Scalars))
		copy(out.Scalars, m.Scalars)
	}
	return out
}

// Bounds returns the axis-aligned bounding box of the vertices.
// An empty mesh returns a zero box.
func (m *Mesh) Bounds() r3.Box {
	if len(m.Vertices) == 0 {
		return r3.Box{}
	}
	box := r3.Box{
		Min: r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)},
		Max: r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)},
	}
	for _, v := range m.Vertices {
		box.Min.X = math.Min(box.Min.X, v.X)
		box.Min.Y = math.Min(box.Min.Y, v.Y)
		box.Min.Z = math.Min(box.Min.Z, v.Z)
		box.Max.X = math.Max(box.Max.X, v.X)
		box.Max.Y = math.Max(box.Max.Y, v.Y)
		box.Max.Z = math.Max(box.Max.Z, v.Z)
	}
	return box
}

// FaceNormal returns the unit normal of face i, or the zero vector for a
// degenerate triangle.
func (m *Mesh) FaceNormal(i int) r3.Vec {
	f := m.Faces[i]
	a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
	n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
	if r3.Norm(n) == 0 {
		return r3.Vec{}
	}
	return r3.Unit(n)
}

// SignedVolume returns the enclosed volume using the divergence theorem.
// It is positive for a closed surface with outward winding.
func (m *Mesh) SignedVolume() float64 {
	var vol float64
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		vol += r3.Dot(a, r3.Cross(b, c))
	}
	return vol / 6
}
