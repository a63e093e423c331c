package refine

import (
	"slices"
	"testing"
)

func TestVisitedSeedsFromPool(t *testing.T) {
	vis := newVisited([]int32{1, 3, 5})
	for _, idx := range []int32{1, 3, 5} {
		if !vis.seen(idx) {
			t.Errorf("seeded index %d reported unseen", idx)
		}
	}
}

func TestVisitedInsertKeepsOrder(t *testing.T) {
	vis := newVisited([]int32{2, 6})

	for _, idx := range []int32{4, 0, 9, 6} {
		vis.seen(idx)
	}

	want := []int32{0, 2, 4, 6, 9}
	if !slices.Equal(vis.v, want) {
		t.Errorf("visited vector = %v, want %v", vis.v, want)
	}
}

func TestVisitedSecondProbeHits(t *testing.T) {
	vis := newVisited(nil)
	if vis.seen(7) {
		t.Error("first probe of 7 reported seen")
	}
	if !vis.seen(7) {
		t.Error("second probe of 7 reported unseen")
	}
	if len(vis.v) != 1 {
		t.Errorf("visited vector grew to %d entries, want 1", len(vis.v))
	}
}
