package refine

import "sort"

// visited tracks candidate indices whose distance to the owning point
// has already been evaluated this iteration. It is a sorted dense
// vector probed by binary search; insertion goes in at the upper bound
// so the order invariant holds.
type visited struct {
	v []int32
}

// newVisited seeds the set from a normalized candidate pool, which is
// already sorted and unique.
func newVisited(pool []int32) visited {
	v := make([]int32, len(pool), len(pool)*2)
	copy(v, pool)
	return visited{v: v}
}

// seen reports whether idx is already present, inserting it at its
// upper bound when absent so later probes find it.
func (s *visited) seen(idx int32) bool {
	at := sort.Search(len(s.v), func(i int) bool { return s.v[i] >= idx })
	if at < len(s.v) && s.v[at] == idx {
		return true
	}
	s.v = append(s.v, 0)
	copy(s.v[at+1:], s.v[at:])
	s.v[at] = idx
	return false
}
