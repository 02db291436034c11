// Package smoothing implements windowed-sinc low-pass smoothing of triangle
// meshes (Taubin's polynomial filter with a Hamming window). Compared to
// Laplacian smoothing it removes voxel staircase noise with little shrinkage.
package smoothing

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"niftitostl/internal/models"
)

// Options controls the filter.
type Options struct {
	// Iterations is the order of the Chebyshev expansion
	Iterations int

	// PassBand is the normalized pass-band frequency in (0, 2); lower
	// values smooth more
	PassBand float64

	// NonManifoldSmoothing lets vertices on edges shared by more than two
	// triangles move along those edges instead of staying fixed
	NonManifoldSmoothing bool

	// BoundarySmoothing lets vertices on open boundaries move along the boundary
	BoundarySmoothing bool

	// NormalizeCoordinates maps the mesh into [-1, 1] before filtering and
	// back afterwards
	NormalizeCoordinates bool

	// GenerateErrorScalars stores each vertex's displacement in Mesh.Scalars
	GenerateErrorScalars bool
}

// DefaultOptions returns the settings used for label meshes.
func DefaultOptions() Options {
	return Options{
		Iterations:           30,
		PassBand:             0.1,
		NonManifoldSmoothing: true,
		BoundarySmoothing:    true,
		NormalizeCoordinates: true,
		GenerateErrorScalars: true,
	}
}

// WindowedSinc returns a smoothed copy of m. Topology is unchanged.
func WindowedSinc(m *models.Mesh, opts Options) *models.Mesh {
	out := m.Clone()
	if len(out.Vertices) == 0 || opts.Iterations < 1 {
		if opts.GenerateErrorScalars {
			out.Scalars = make([]float64, len(out.Vertices))
		}
		return out
	}

	neighbors := buildNeighbors(m, opts)

	var centre r3.Vec
	scale := 1.0
	pts := out.Vertices
	if opts.NormalizeCoordinates {
		centre, scale = normalization(m)
		for i, p := range pts {
			pts[i] = r3.Scale(1/scale, r3.Sub(p, centre))
		}
	}

	c := coefficients(opts.Iterations, opts.PassBand)
	n := len(pts)

	// Chebyshev recurrence: T0 = x, T1 = x + 0.5*L(x),
	// T(k+1) = 2*T(k) + L(T(k)) - T(k-1), result = sum c[k]*T(k),
	// where L(x)_i is the mean of the neighbours minus x_i.
	prev := make([]r3.Vec, n)
	copy(prev, pts)
	cur := make([]r3.Vec, n)
	next := make([]r3.Vec, n)
	acc := make([]r3.Vec, n)

	for i := range pts {
		cur[i] = r3.Add(prev[i], r3.Scale(0.5, laplacian(prev, neighbors[i], i)))
		acc[i] = r3.Add(r3.Scale(c[0], prev[i]), r3.Scale(c[1], cur[i]))
	}
	for k := 2; k <= opts.Iterations; k++ {
		for i := range pts {
			next[i] = r3.Sub(r3.Add(r3.Scale(2, cur[i]), laplacian(cur, neighbors[i], i)), prev[i])
			acc[i] = r3.Add(acc[i], r3.Scale(c[k], next[i]))
		}
		prev, cur, next = cur, next, prev
	}

	for i := range pts {
		if neighbors[i] == nil {
			// fixed vertices stay exactly where they were
			pts[i] = m.Vertices[i]
			continue
		}
		p := acc[i]
		if opts.NormalizeCoordinates {
			p = r3.Add(r3.Scale(scale, p), centre)
		}
		pts[i] = p
	}

	if opts.GenerateErrorScalars {
		out.Scalars = make([]float64, n)
		for i := range pts {
			out.Scalars[i] = r3.Norm(r3.Sub(pts[i], m.Vertices[i]))
		}
	}
	return out
}

// laplacian returns the mean of the neighbours of vertex i minus its position.
func laplacian(pts []r3.Vec, nbrs []int, i int) r3.Vec {
	if len(nbrs) == 0 {
		return r3.Vec{}
	}
	var sum r3.Vec
	for _, j := range nbrs {
		sum = r3.Add(sum, pts[j])
	}
	return r3.Sub(r3.Scale(1/float64(len(nbrs)), sum), pts[i])
}

// normalization returns the bounding-box centre and the half extent of its
// longest side.
func normalization(m *models.Mesh) (r3.Vec, float64) {
	box := m.Bounds()
	centre := r3.Scale(0.5, r3.Add(box.Min, box.Max))
	size := r3.Sub(box.Max, box.Min)
	half := math.Max(size.X, math.Max(size.Y, size.Z)) / 2
	if half == 0 {
		half = 1
	}
	return centre, half
}

// coefficients returns the Chebyshev coefficients c[0..iterations] of the
// Hamming-windowed sinc filter. The pass-band offset sigma is found with
// Newton's method so that the filter response at the pass band is 1. When
// the search does not converge (very low orders or extreme pass bands) the
// unshifted filter is used instead, rescaled so that its DC gain is 1 and
// the mesh neither shrinks nor blows up.
func coefficients(iterations int, passBand float64) []float64 {
	n := iterations
	thetaPB := math.Acos(1 - 0.5*passBand)

	w := make([]float64, n+1)
	for i := range w {
		w[i] = 0.54 + 0.46*math.Cos(float64(i)*math.Pi/float64(n+1))
	}

	c := make([]float64, n+1)
	cprime := make([]float64, n+1)
	sigma := 0.0
	for iter := 0; n >= 2 && iter < 500; iter++ {
		windowedTerms(c, w, thetaPB+sigma)

		// coefficients of the derivative of the filter
		for i := range cprime {
			cprime[i] = 0
		}
		cprime[n-2] = 2 * float64(n-1) * c[n-1]
		for i := n - 3; i >= 0; i-- {
			cprime[i] = cprime[i+2] + 2*float64(i+1)*c[i+1]
		}

		f, fprime := 0.0, 0.0
		for i := 0; i <= n; i++ {
			t := math.Cos(float64(i) * thetaPB)
			f += c[i] * t
			fprime += cprime[i] * t
		}
		if math.Abs(f-1) < 1e-3 {
			return c
		}
		sigma -= (f - 1) / fprime
		if math.IsNaN(sigma) || math.IsInf(sigma, 0) {
			break
		}
	}

	windowedTerms(c, w, thetaPB)
	return floats.ScaleTo(c, 1/floats.Sum(c), c)
}

// windowedTerms fills c with the windowed sinc terms for cut-off theta.
func windowedTerms(c, w []float64, theta float64) {
	c[0] = w[0] * theta / math.Pi
	for i := 1; i < len(c); i++ {
		c[i] = 2 * w[i] * math.Sin(float64(i)*theta) / (float64(i) * math.Pi)
	}
}
