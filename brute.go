package knng

import (
	"github.com/nozzle/knng/distance"
	"github.com/nozzle/knng/internal/heap"
	"github.com/nozzle/knng/internal/parallel"
)

// BruteForce computes the exact k-NN graph by scanning all pairs.
// Quadratic; useful for small inputs and as the recall reference for
// the approximate builder.
func BruteForce(data [][]float64, k int, metric string) *KNNGraph {
	n := len(data)
	if n == 0 {
		return &KNNGraph{}
	}
	if k >= n {
		k = n - 1
	}

	distFunc := distance.GetOrDefault(metric)
	workers := parallel.NumWorkers()

	indices := make([][]int32, n)
	dists := make([][]float64, n)

	parallel.ParallelFor(0, n, workers, func(i int) {
		h := heap.New(k)
		xi := data[i]
		for j := range n {
			if j == i {
				continue
			}
			h.Push(int32(j), distFunc(xi, data[j]))
		}
		indices[i], dists[i] = h.Drain()
	})

	return &KNNGraph{
		Indices:   indices,
		Distances: dists,
		N:         n,
		K:         k,
	}
}
