package refine

import (
	"errors"
	"fmt"

	"github.com/nozzle/knng/distance"
	"github.com/nozzle/knng/internal/heap"
	"github.com/nozzle/knng/internal/parallel"
	"github.com/nozzle/knng/progress"
)

// ErrEmptyNeighborhood is returned when exploration cannot retain a
// single neighbor for some point, which happens only when every
// candidate is an exact duplicate of it.
var ErrEmptyNeighborhood = errors.New("failure in neighborhood exploration")

// Explore runs one neighbors-of-neighbors pass. For every point it
// re-scores the old neighbors and their neighbors, keeping the k
// nearest; zero-distance candidates are exact duplicates and are not
// retained. old rows are read as a frozen snapshot; the returned rows
// are freshly allocated, so iterations never alias. pools seed the
// per-point visited sets and must be normalized.
func Explore(data [][]float64, old [][]int32, pools [][]int32, k int, dist distance.Func, mon *progress.Monitor, workers int) ([][]int32, [][]float64, error) {
	n := len(data)
	indices := make([][]int32, n)
	dists := make([][]float64, n)

	err := parallel.ParallelForErr(0, n, workers, func(i int) error {
		if mon.Aborted() {
			return nil
		}
		mon.Increment(1)

		h := heap.New(k)
		vis := newVisited(pools[i])
		xi := data[i]

		for _, j := range old[i] {
			if j == -1 {
				break
			}
			if j == int32(i) {
				continue
			}
			d := dist(xi, data[j])
			if d == 0 {
				continue // duplicate
			}
			h.Push(j, d)

			// Friends of friend j.
			for _, c := range old[j] {
				if c == -1 {
					break
				}
				if c == int32(i) {
					continue
				}
				if vis.seen(c) {
					continue
				}
				d := dist(xi, data[c])
				if d == 0 {
					continue
				}
				h.Push(c, d)
			}
		}

		row, rowDists := h.Drain()
		if row[0] == -1 {
			mon.Abort()
			return fmt.Errorf("point %d: %w", i, ErrEmptyNeighborhood)
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
