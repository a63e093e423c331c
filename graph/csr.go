// Package graph exports the finished neighbor graph in compressed
// sparse row form, the hand-off format manifold-learning consumers
// expect.
package graph

import (
	"slices"
	"sort"
)

// CSRMatrix is a sparse matrix in CSR format.
type CSRMatrix struct {
	Indptr  []int32   // Row pointers, length NRows+1
	Indices []int32   // Column indices
	Data    []float64 // Values
	NRows   int
	NCols   int
	NNZ     int
}

// FromKNN builds the sparse adjacency of a k-NN result. knnIndices rows
// may be -1 padded; sentinels and self-edges are elided, and Data
// carries the neighbor distances. With symmetric set, each edge is
// mirrored so the result equals max(W, Wᵀ) on the 0/1 pattern, which
// keeps the distance value for pairs recorded in both directions.
func FromKNN(knnIndices [][]int32, knnDistances [][]float64, symmetric bool) *CSRMatrix {
	n := len(knnIndices)
	if n == 0 {
		return &CSRMatrix{Indptr: []int32{0}}
	}

	type edge struct {
		col  int32
		dist float64
	}
	rows := make([][]edge, n)
	add := func(r int, e edge) {
		rows[r] = append(rows[r], e)
	}

	for i := range knnIndices {
		for slot, j := range knnIndices[i] {
			if j < 0 || j == int32(i) {
				continue
			}
			d := knnDistances[i][slot]
			add(i, edge{col: j, dist: d})
			if symmetric {
				add(int(j), edge{col: int32(i), dist: d})
			}
		}
	}

	m := &CSRMatrix{
		Indptr: make([]int32, n+1),
		NRows:  n,
		NCols:  n,
	}
	for i, es := range rows {
		sort.Slice(es, func(a, b int) bool { return es[a].col < es[b].col })
		for k, e := range es {
			// Mirrored edges can collide with recorded ones; keep the first.
			if k > 0 && es[k-1].col == e.col {
				continue
			}
			m.Indices = append(m.Indices, e.col)
			m.Data = append(m.Data, e.dist)
		}
		m.Indptr[i+1] = int32(len(m.Indices))
	}
	m.NNZ = len(m.Indices)
	return m
}

// Row returns row i's column indices and values.
func (g *CSRMatrix) Row(i int) ([]int32, []float64) {
	lo, hi := g.Indptr[i], g.Indptr[i+1]
	return g.Indices[lo:hi], g.Data[lo:hi]
}

// Degrees returns the number of stored entries per row.
func (g *CSRMatrix) Degrees() []int {
	deg := make([]int, g.NRows)
	for i := range deg {
		deg[i] = int(g.Indptr[i+1] - g.Indptr[i])
	}
	return deg
}

// HasEdge reports whether entry (i, j) is stored.
func (g *CSRMatrix) HasEdge(i int, j int32) bool {
	cols, _ := g.Row(i)
	_, found := slices.BinarySearch(cols, j)
	return found
}
