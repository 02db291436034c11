package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestIndexToPhysical(t *testing.T) {
	g := Geometry{
		Origin:    [3]float64{10, 20, 30},
		Spacing:   [3]float64{2, 3, 4},
		Direction: [9]float64{-1, 0, 0, 0, -1, 0, 0, 0, 1},
	}

	p := g.IndexToPhysical(1, 1, 1)
	assert.InDelta(t, 8, p.X, 1e-12)
	assert.InDelta(t, 17, p.Y, 1e-12)
	assert.InDelta(t, 34, p.Z, 1e-12)
}

func TestIndexToPhysicalRotated(t *testing.T) {
	// Grid x runs along physical y, grid y along physical -x.
	g := Geometry{
		Spacing:   [3]float64{1, 1, 1},
		Direction: [9]float64{0, -1, 0, 1, 0, 0, 0, 0, 1},
	}

	p := g.IndexToPhysical(2, 0, 0)
	assert.InDelta(t, 0, p.X, 1e-12)
	assert.InDelta(t, 2, p.Y, 1e-12)

	p = g.IndexToPhysical(0, 3, 0)
	assert.InDelta(t, -3, p.X, 1e-12)
	assert.InDelta(t, 0, p.Y, 1e-12)
}

func TestGeometryValidate(t *testing.T) {
	require.NoError(t, IdentityGeometry().Validate())

	g := IdentityGeometry()
	g.Spacing[2] = 0
	assert.Error(t, g.Validate())

	g = IdentityGeometry()
	g.Direction = [9]float64{1, 0, 0, 1, 0, 0, 0, 0, 1}
	assert.Error(t, g.Validate())
}

func TestVolumeIndexing(t *testing.T) {
	v := NewVolume(4, 3, 2, IdentityGeometry())
	require.NoError(t, v.Validate())

	v.Set(3, 2, 1, 7)
	assert.Equal(t, 4*3*2-1, v.Index(3, 2, 1))
	assert.Equal(t, 7.0, v.At(3, 2, 1))
	assert.Equal(t, 0.0, v.At(-1, 0, 0))
	assert.Equal(t, 0.0, v.At(4, 0, 0))

	w := v.WithData(make([]float64, len(v.Data)))
	assert.Equal(t, v.Geometry, w.Geometry)
	assert.Equal(t, 0.0, w.At(3, 2, 1))
}

func TestVolumeValidateLength(t *testing.T) {
	v := &Volume{Data: make([]float64, 5), Width: 2, Height: 2, Depth: 2, Geometry: IdentityGeometry()}
	assert.Error(t, v.Validate())
}

func unitTetrahedron() *Mesh {
	return &Mesh{
		Vertices: []r3.Vec{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 0, Y: 0, Z: 1}},
		Faces:    [][3]int{{0, 2, 1}, {0, 1, 3}, {0, 3, 2}, {1, 2, 3}},
	}
}

func TestMeshSignedVolumeAndNormals(t *testing.T) {
	m := unitTetrahedron()
	assert.InDelta(t, 1.0/6, m.SignedVolume(), 1e-12)

	n := m.FaceNormal(0)
	assert.InDelta(t, -1, n.Z, 1e-12)

	n = m.FaceNormal(3)
	assert.InDelta(t, 1/math.Sqrt(3), n.X, 1e-12)
}

func TestMeshBoundsAndClone(t *testing.T) {
	m := unitTetrahedron()
	m.Scalars = []float64{1, 2, 3, 4}

	box := m.Bounds()
	assert.Equal(t, r3.Vec{}, box.Min)
	assert.Equal(t, r3.Vec{X: 1, Y: 1, Z: 1}, box.Max)

	c := m.Clone()
	c.Vertices[0].X = 5
	c.Scalars[0] = 9
	assert.Equal(t, 0.0, m.Vertices[0].X)
	assert.Equal(t, 1.0, m.Scalars[0])

	assert.Equal(t, r3.Box{}, (&Mesh{}).Bounds())
}
