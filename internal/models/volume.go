package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Geometry places a voxel grid in physical space.
type Geometry struct {
	// Origin is the physical position of voxel (0,0,0) in mm
	Origin [3]float64

	// Spacing is the physical size of a voxel along each grid axis in mm
	Spacing [3]float64

	// Direction holds the direction cosines as a row-major 3x3 matrix.
	// Column i is the physical direction of grid axis i.
	Direction [9]float64
}

// IdentityGeometry returns unit spacing, zero origin and identity direction.
func IdentityGeometry() Geometry {
	return Geometry{
		Spacing:   [3]float64{1, 1, 1},
		Direction: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
	}
}

// DirectionMatrix returns the direction cosines as a gonum matrix.
func (g Geometry) DirectionMatrix() *mat.Dense {
	d := g.Direction
	return mat.NewDense(3, 3, d[:])
}

// IndexToPhysical maps a continuous grid index to physical coordinates:
// origin + Direction * (index .* spacing).
func (g Geometry) IndexToPhysical(i, j, k float64) r3.Vec {
	scaled := mat.NewVecDense(3, []float64{
		i * g.Spacing[0],
		j * g.Spacing[1],
		k * g.Spacing[2],
	})
	var p mat.VecDense
	p.MulVec(g.DirectionMatrix(), scaled)
	return r3.Vec{
		X: g.Origin[0] + p.AtVec(0),
		Y: g.Origin[1] + p.AtVec(1),
		Z: g.Origin[2] + p.AtVec(2),
	}
}

// Validate checks that spacing is positive and the direction matrix is invertible.
func (g Geometry) Validate() error {
	for i, s := range g.Spacing {
		if !(s > 0) {
			return fmt.Errorf("spacing along axis %d must be positive, got %g", i, s)
		}
	}
	if det := mat.Det(g.DirectionMatrix()); det > -1e-9 && det < 1e-9 {
		return fmt.Errorf("direction matrix is singular")
	}
	return nil
}

// Volume is a 3D label volume loaded from a segmentation file
type Volume struct {
	// Data is the voxel data as a 1D array with x varying fastest:
	// index = z*Width*Height + y*Width + x
	Data []float64

	// Width is the size of the volume along the first grid axis in voxels
	Width int

	// Height is the size of the volume along the second grid axis in voxels
	Height int

	// Depth is the size of the volume along the third grid axis in voxels
	Depth int

	// Geometry places the grid in physical space
	Geometry Geometry
}

// NewVolume allocates a zero-filled volume.
func NewVolume(width, height, depth int, geometry Geometry) *Volume {
	return &Volume{
		Data:     make([]float64, width*height*depth),
		Width:    width,
		Height:   height,
		Depth:    depth,
		Geometry: geometry,
	}
}

// Index returns the position of voxel (x, y, z) in Data.
func (v *Volume) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// At returns the value at (x, y, z). Coordinates outside the grid read as 0.
func (v *Volume) At(x, y, z int) float64 {
	if x < 0 || y < 0 || z < 0 || x >= v.Width || y >= v.Height || z >= v.Depth {
		return 0
	}
	return v.Data[v.Index(x, y, z)]
}

// Set stores a value at (x, y, z).
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[v.Index(x, y, z)] = value
}

// WithData returns a volume sharing this volume's shape and geometry but
// holding the given data.
func (v *Volume) WithData(data []float64) *Volume {
	return &Volume{
		Data:     data,
		Width:    v.Width,
		Height:   v.Height,
		Depth:    v.Depth,
		Geometry: v.Geometry,
	}
}

// Validate checks that the data length matches the dimensions.
func (v *Volume) Validate() error {
	if v.Width <= 0 || v.Height <= 0 || v.Depth <= 0 {
		return fmt.Errorf("invalid dimensions %dx%dx%d", v.Width, v.Height, v.Depth)
	}
	if len(v.Data) != v.Width*v.Height*v.Depth {
		return fmt.Errorf("data length %d does not match dimensions %dx%dx%d",
			len(v.Data), v.Width, v.Height, v.Depth)
	}
	return v.Geometry.Validate()
}
