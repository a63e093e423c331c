// Package refine turns candidate pools into a k-NN graph: a top-k
// reduction by true distance followed by iterative neighbors-of-
// neighbors exploration.
package refine

import (
	"errors"
	"fmt"

	"github.com/nozzle/knng/distance"
	"github.com/nozzle/knng/internal/heap"
	"github.com/nozzle/knng/internal/parallel"
	"github.com/nozzle/knng/progress"
)

// ErrBadNeighborMatrix is returned when reduction leaves a point with
// no neighbors at all.
var ErrBadNeighborMatrix = errors.New("bad neighbor matrix")

// Reduce prunes each candidate pool to the keep nearest candidates by
// true distance. Row i of the result lists point i's kept neighbors in
// ascending distance order, -1 padded; dists is aligned, with +Inf in
// the sentinel slots. Pools must be normalized (sorted, unique, seeded
// with the owning point, which is skipped here).
func Reduce(data [][]float64, pools [][]int32, keep int, dist distance.Func, mon *progress.Monitor, workers int) ([][]int32, [][]float64, error) {
	n := len(data)
	indices := make([][]int32, n)
	dists := make([][]float64, n)

	err := parallel.ParallelForErr(0, n, workers, func(i int) error {
		if mon.Aborted() {
			return nil
		}
		mon.Increment(1)

		h := heap.New(keep)
		xi := data[i]
		for _, c := range pools[i] {
			if c == int32(i) {
				continue
			}
			h.Push(c, dist(xi, data[c]))
		}

		row, rowDists := h.Drain()
		if row[0] == -1 {
			mon.Abort()
			return fmt.Errorf("point %d: %w", i, ErrBadNeighborMatrix)
		}
		indices[i] = row
		dists[i] = rowDists
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return indices, dists, nil
}
