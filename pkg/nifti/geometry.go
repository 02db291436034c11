package nifti

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"niftitostl/internal/models"
)

// Frame selects the physical coordinate convention of loaded geometry.
type Frame int

const (
	// LPS is the ITK convention: x grows to the patient's left, y to
	// posterior. NIfTI affines are RAS, so rows 0 and 1 are negated.
	LPS Frame = iota
	// RAS keeps the NIfTI affine as stored.
	RAS
)

// ParseFrame parses "LPS" or "RAS" (case-insensitive).
func ParseFrame(s string) (Frame, error) {
	switch strings.ToUpper(s) {
	case "LPS", "":
		return LPS, nil
	case "RAS":
		return RAS, nil
	}
	return LPS, fmt.Errorf("unknown coordinate frame %q (want LPS or RAS)", s)
}

func (f Frame) String() string {
	if f == RAS {
		return "RAS"
	}
	return "LPS"
}

// rasToLPS is its own inverse.
var rasToLPS = mat.NewDiagDense(3, []float64{-1, -1, 1})

// geometryFromHeader derives origin, spacing and direction in RAS. The sform
// is preferred when present, then the qform, then plain pixdim spacing.
func geometryFromHeader(h *header) (models.Geometry, error) {
	switch {
	case h.SformCode > 0:
		return geometryFromSform(h)
	case h.QformCode > 0:
		return geometryFromQform(h), nil
	}
	g := models.IdentityGeometry()
	for i := 0; i < 3; i++ {
		g.Spacing[i] = pixdimSpacing(h.Pixdim[i+1])
	}
	return g, nil
}

func pixdimSpacing(p float32) float64 {
	s := math.Abs(float64(p))
	if s == 0 || math.IsNaN(s) {
		return 1
	}
	return s
}

func geometryFromSform(h *header) (models.Geometry, error) {
	rows := [3][4]float32{h.SrowX, h.SrowY, h.SrowZ}
	var g models.Geometry
	for c := 0; c < 3; c++ {
		col := mat.NewVecDense(3, []float64{
			float64(rows[0][c]), float64(rows[1][c]), float64(rows[2][c]),
		})
		s := mat.Norm(col, 2)
		if s == 0 {
			return g, errors.Errorf("sform column %d is zero", c)
		}
		g.Spacing[c] = s
		for r := 0; r < 3; r++ {
			g.Direction[r*3+c] = col.AtVec(r) / s
		}
	}
	for r := 0; r < 3; r++ {
		g.Origin[r] = float64(rows[r][3])
	}
	return g, nil
}

func geometryFromQform(h *header) models.Geometry {
	b, c, d := float64(h.QuaternB), float64(h.QuaternC), float64(h.QuaternD)
	a := 1 - (b*b + c*c + d*d)
	if a < 1e-7 {
		// 180 degree rotation: renormalise the vector part
		n := math.Sqrt(b*b + c*c + d*d)
		b, c, d = b/n, c/n, d/n
		a = 0
	} else {
		a = math.Sqrt(a)
	}

	qfac := 1.0
	if h.Pixdim[0] < 0 {
		qfac = -1
	}

	r := [9]float64{
		a*a + b*b - c*c - d*d, 2 * (b*c - a*d), 2 * (b*d + a*c),
		2 * (b*c + a*d), a*a + c*c - b*b - d*d, 2 * (c*d - a*b),
		2 * (b*d - a*c), 2 * (c*d + a*b), a*a + d*d - c*c - b*b,
	}
	r[2] *= qfac
	r[5] *= qfac
	r[8] *= qfac

	g := models.Geometry{
		Origin:    [3]float64{float64(h.QOffsetX), float64(h.QOffsetY), float64(h.QOffsetZ)},
		Direction: r,
	}
	for i := 0; i < 3; i++ {
		g.Spacing[i] = pixdimSpacing(h.Pixdim[i+1])
	}
	return g
}

// flipFrame converts geometry between RAS and LPS.
func flipFrame(g models.Geometry) models.Geometry {
	var dir mat.Dense
	dir.Mul(rasToLPS, g.DirectionMatrix())

	out := g
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out.Direction[r*3+c] = dir.At(r, c)
		}
	}
	out.Origin[0] = -g.Origin[0]
	out.Origin[1] = -g.Origin[1]
	return out
}

// toFrame converts RAS geometry to the requested frame.
func toFrame(g models.Geometry, f Frame) models.Geometry {
	if f == LPS {
		return flipFrame(g)
	}
	return g
}

// sformRows builds the RAS affine rows for geometry given in frame f.
func sformRows(g models.Geometry, f Frame) [3][4]float32 {
	if f == LPS {
		g = flipFrame(g)
	}
	var affine mat.Dense
	affine.Mul(g.DirectionMatrix(), mat.NewDiagDense(3, g.Spacing[:]))

	var rows [3][4]float32
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			rows[r][c] = float32(affine.At(r, c))
		}
		rows[r][3] = float32(g.Origin[r])
	}
	return rows
}
