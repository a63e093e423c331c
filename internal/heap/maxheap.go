// Package heap provides the bounded max-heap used for top-k neighbor selection.
package heap

import "math"

// MaxHeap tracks the k nearest candidates seen so far.
// It is backed by parallel index/distance arrays of fixed capacity k,
// pre-filled with sentinels (-1, +Inf), with the largest retained
// distance always at the root. Pushing a candidate closer than the root
// evicts the root, so after any number of pushes the arrays hold the k
// smallest distances observed.
type MaxHeap struct {
	Indices   []int32
	Distances []float64
	size      int
	k         int
}

// New creates a bounded max-heap with capacity k.
func New(k int) *MaxHeap {
	h := &MaxHeap{
		Indices:   make([]int32, k),
		Distances: make([]float64, k),
		k:         k,
	}
	for i := range k {
		h.Indices[i] = -1
		h.Distances[i] = math.Inf(1)
	}
	return h
}

// Len returns the number of real (non-sentinel) entries.
func (h *MaxHeap) Len() int { return h.size }

// Cap returns the heap capacity.
func (h *MaxHeap) Cap() int { return h.k }

// MaxDist returns the largest retained distance (+Inf while not full).
func (h *MaxHeap) MaxDist() float64 { return h.Distances[0] }

// Push offers a candidate to the heap. It is accepted if the heap has
// room or the distance beats the current worst, and rejected if the
// index is already present. Returns true if the candidate was retained.
func (h *MaxHeap) Push(idx int32, dist float64) bool {
	if dist >= h.Distances[0] {
		return false
	}

	for i := range h.k {
		if h.Indices[i] == idx {
			return false
		}
	}

	// Replace root and sift down
	h.Distances[0] = dist
	h.Indices[0] = idx
	h.siftDown(0, h.k)

	if h.size < h.k {
		h.size++
	}

	return true
}

// siftDown restores the heap property for the first n slots after the
// root was replaced.
func (h *MaxHeap) siftDown(i, n int) {
	for {
		left := 2*i + 1
		right := 2*i + 2

		if left >= n {
			break
		}

		swap := i
		if h.Distances[left] > h.Distances[swap] {
			swap = left
		}
		if right < n && h.Distances[right] > h.Distances[swap] {
			swap = right
		}

		if swap == i {
			break
		}

		h.Distances[i], h.Distances[swap] = h.Distances[swap], h.Distances[i]
		h.Indices[i], h.Indices[swap] = h.Indices[swap], h.Indices[i]
		i = swap
	}
}

// Sort reorders the arrays ascending by distance, real entries first and
// sentinels last. The heap property no longer holds afterwards.
func (h *MaxHeap) Sort() {
	for i := h.k - 1; i > 0; i-- {
		h.Distances[0], h.Distances[i] = h.Distances[i], h.Distances[0]
		h.Indices[0], h.Indices[i] = h.Indices[i], h.Indices[0]
		h.siftDown(0, i)
	}
}

// Drain sorts the heap and hands over its arrays. The heap must not be
// used afterwards.
func (h *MaxHeap) Drain() ([]int32, []float64) {
	h.Sort()
	return h.Indices, h.Distances
}
