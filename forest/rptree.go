// Package forest builds random projection trees and accumulates, for
// every point, the pool of candidate neighbors it shared a leaf with.
package forest

import (
	"errors"

	"gonum.org/v1/gonum/floats"

	"github.com/nozzle/knng/internal/rand"
	"github.com/nozzle/knng/internal/vmath"
	"github.com/nozzle/knng/progress"
)

// ErrTreeSplit is returned when a tree node holds fewer than 2 points.
// The recursion never produces such a node from valid input.
var ErrTreeSplit = errors.New("tree split failure")

// BuildTree runs one tree of the forest over all points, appending
// co-leaf candidates into the store. leafThreshold bounds the leaf
// size, maxDepth the recursion; rng drives the hyperplane draws.
func BuildTree(data [][]float64, store *PoolStore, mon *progress.Monitor, leafThreshold, maxDepth int, rng *rand.State) error {
	indices := make([]int32, len(data))
	for i := range indices {
		indices[i] = int32(i)
	}
	return searchTree(data, indices, store, mon, leafThreshold, maxDepth, rng)
}

// searchTree recursively partitions indices with random hyperplanes
// until leaves are small enough, then records all co-leaf pairs.
func searchTree(data [][]float64, indices []int32, store *PoolStore, mon *progress.Monitor, threshold, depth int, rng *rand.State) error {
	if mon.Aborted() {
		return nil
	}

	n := len(indices)
	if n < 2 {
		mon.Abort()
		return ErrTreeSplit
	}
	if n == 2 {
		store.appendPair(indices[0], indices[1])
		return nil
	}
	if n < threshold || depth == 0 {
		store.appendLeaf(indices)
		mon.Increment(n)
		return nil
	}

	// Pick two distinct pivot positions; on collision advance the
	// second cyclically until it differs.
	p1 := rand.Intn(rng, n)
	p2 := rand.Intn(rng, n)
	for p2 == p1 {
		p2 = (p2 + 1) % n
	}
	x1 := data[indices[p1]]
	x2 := data[indices[p2]]

	var left, right []int32

	normal := make([]float64, len(x1))
	floats.SubTo(normal, x1, x2)
	norm := floats.Norm(normal, 2)
	if norm > 0 {
		// Hyperplane through the pivot midpoint with unit normal.
		floats.Scale(1/norm, normal)
		var offset float64
		for d, v := range normal {
			offset += (x1[d] + x2[d]) / 2 * v
		}

		proj := make([]float64, n)
		for i, id := range indices {
			proj[i] = floats.Dot(data[id], normal) - offset
		}
		middle := vmath.Median(proj)

		// Ties go right.
		for i, id := range indices {
			if proj[i] > middle {
				left = append(left, id)
			} else {
				right = append(right, id)
			}
		}
	}

	if len(left) < 2 || len(right) < 2 {
		// Degenerate split: bisect positionally instead. The halves
		// overlap at the midpoint so a 3-point node still yields two
		// splittable sides.
		left = indices[:n/2+1]
		right = indices[n/2:]
	}

	if err := searchTree(data, left, store, mon, threshold, depth-1, rng); err != nil {
		return err
	}
	return searchTree(data, right, store, mon, threshold, depth-1, rng)
}
