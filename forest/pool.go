package forest

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// PoolStore holds one growable candidate pool per point. Tree workers
// append co-leaf indices through the store's mutex, a whole leaf's
// worth of edges per acquisition. After the forest completes and
// Normalize has run, every pool is sorted, unique, contains its own
// point, and has at least 3 entries.
type PoolStore struct {
	mu        sync.Mutex
	pools     [][]int32
	completed int
}

// ErrPoolTooSmall is returned when a candidate pool holds fewer than 3
// entries after normalization. It signals degenerate input (such as an
// all-duplicate point set) and aborts the whole construction.
var ErrPoolTooSmall = errors.New("tree failure: candidate pool too small")

// NewPoolStore creates a store of n pools, each seeded with its own
// point index.
func NewPoolStore(n int) *PoolStore {
	pools := make([][]int32, n)
	for i := range pools {
		pools[i] = []int32{int32(i)}
	}
	return &PoolStore{pools: pools}
}

// appendPair records a 2-point leaf: each point gains the other.
func (s *PoolStore) appendPair(a, b int32) {
	s.mu.Lock()
	s.pools[a] = append(s.pools[a], b)
	s.pools[b] = append(s.pools[b], a)
	s.mu.Unlock()
}

// appendLeaf records an all-pairs leaf: every member gains every other
// member. One lock acquisition covers the whole leaf.
func (s *PoolStore) appendLeaf(indices []int32) {
	s.mu.Lock()
	for _, i := range indices {
		p := s.pools[i]
		p = slices.Grow(p, len(indices)-1)
		for _, j := range indices {
			if i != j {
				p = append(p, j)
			}
		}
		s.pools[i] = p
	}
	s.mu.Unlock()
}

// TreeDone marks one tree finished. If another tree already finished,
// all pools are normalized under the same lock; the first tree's
// contribution is deduplicated lazily once a second tree has landed.
func (s *PoolStore) TreeDone() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed++
	if s.completed < 2 {
		return nil
	}
	return s.normalizeLocked()
}

// Normalize sorts and deduplicates every pool and verifies the minimum
// pool size. Idempotent; called once more after the forest joins so
// reduction always reads canonical pools.
func (s *PoolStore) Normalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.normalizeLocked()
}

func (s *PoolStore) normalizeLocked() error {
	for i, p := range s.pools {
		slices.Sort(p)
		p = slices.Compact(p)
		s.pools[i] = p
		if len(p) < 3 {
			return fmt.Errorf("point %d has %d candidates: %w", i, len(p), ErrPoolTooSmall)
		}
	}
	return nil
}

// Pools returns the per-point candidate pools. Only valid once the
// forest has completed and Normalize has succeeded; the returned slices
// must be treated as read-only.
func (s *PoolStore) Pools() [][]int32 {
	return s.pools
}

// Len returns the number of points the store covers.
func (s *PoolStore) Len() int { return len(s.pools) }
