// Package parallel provides the worker helpers shared by the build phases.
package parallel

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// NumWorkers returns the default number of workers for parallel operations.
func NumWorkers() int {
	return runtime.GOMAXPROCS(0)
}

// ParallelFor executes fn for indices [start, end) using n workers.
func ParallelFor(start, end, n int, fn func(i int)) {
	if n <= 1 {
		for i := start; i < end; i++ {
			fn(i)
		}
		return
	}

	total := end - start
	if total <= 0 {
		return
	}

	var wg sync.WaitGroup
	chunkSize := (total + n - 1) / n

	for w := 0; w < n; w++ {
		chunkStart := start + w*chunkSize
		chunkEnd := chunkStart + chunkSize
		if chunkEnd > end {
			chunkEnd = end
		}
		if chunkStart >= chunkEnd {
			break
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				fn(i)
			}
		}(chunkStart, chunkEnd)
	}

	wg.Wait()
}

// ParallelForErr executes fn for indices [start, end) using n workers and
// returns the first error. A failing index ends its worker's chunk; other
// workers finish theirs, so callers needing prompt exit poll their own
// abort flag inside fn.
func ParallelForErr(start, end, n int, fn func(i int) error) error {
	if n <= 1 {
		for i := start; i < end; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	total := end - start
	if total <= 0 {
		return nil
	}

	g := new(errgroup.Group)
	chunkSize := (total + n - 1) / n

	for w := 0; w < n; w++ {
		chunkStart := start + w*chunkSize
		chunkEnd := chunkStart + chunkSize
		if chunkEnd > end {
			chunkEnd = end
		}
		if chunkStart >= chunkEnd {
			break
		}

		g.Go(func() error {
			for i := chunkStart; i < chunkEnd; i++ {
				if err := fn(i); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}
