package smoothing

import "niftitostl/internal/models"

type edge [2]int

func makeEdge(a, b int) edge {
	if a > b {
		a, b = b, a
	}
	return edge{a, b}
}

// buildNeighbors returns the smoothing stencil of every vertex. Edges used
// by one triangle are boundary edges, edges used by more than two are
// non-manifold. A vertex on no such edge averages over all its neighbours.
// A vertex on exactly two of them is smoothed along those two edges only.
// Any other vertex on them is fixed (nil stencil), as is a vertex whose
// special edges are disabled by opts.
func buildNeighbors(m *models.Mesh, opts Options) [][]int {
	uses := make(map[edge]int)
	all := make([][]int, len(m.Vertices))
	add := func(a, b int) {
		e := makeEdge(a, b)
		if uses[e] == 0 {
			all[a] = append(all[a], b)
			all[b] = append(all[b], a)
		}
		uses[e]++
	}
	for _, f := range m.Faces {
		add(f[0], f[1])
		add(f[1], f[2])
		add(f[2], f[0])
	}

	stencil := make([][]int, len(m.Vertices))
	for i, nbrs := range all {
		if len(nbrs) == 0 {
			continue
		}
		var special []int
		fixed := false
		for _, j := range nbrs {
			switch n := uses[makeEdge(i, j)]; {
			case n == 1:
				fixed = fixed || !opts.BoundarySmoothing
				special = append(special, j)
			case n > 2:
				fixed = fixed || !opts.NonManifoldSmoothing
				special = append(special, j)
			}
		}
		switch {
		case fixed:
		case len(special) == 0:
			stencil[i] = nbrs
		case len(special) == 2:
			stencil[i] = special
		}
	}
	return stencil
}
