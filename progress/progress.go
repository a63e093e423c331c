// Package progress tracks completed work units across the build phases
// and carries the shared abort flag polled by workers.
package progress

import "sync/atomic"

// Monitor is a monotone work counter with a cooperative abort flag.
// All methods are safe for concurrent use. Workers call Increment as
// they finish units and poll Aborted at their probe points; anything
// holding a reference may call Abort to stop the computation.
type Monitor struct {
	total    int64
	done     atomic.Int64
	aborted  atomic.Bool
	callback func(done, total int)
}

// NewMonitor creates a monitor for total work units. callback, if
// non-nil, is invoked after every Increment with the clamped counter.
func NewMonitor(total int, callback func(done, total int)) *Monitor {
	return &Monitor{total: int64(total), callback: callback}
}

// Increment advances the counter by n units.
func (m *Monitor) Increment(n int) {
	m.done.Add(int64(n))
	if m.callback != nil {
		m.callback(m.Done(), m.Total())
	}
}

// Done returns completed work units, clamped to the total.
func (m *Monitor) Done() int {
	d := m.done.Load()
	if d > m.total {
		d = m.total
	}
	return int(d)
}

// Total returns the work estimate the monitor was created with.
func (m *Monitor) Total() int { return int(m.total) }

// Abort requests that all workers stop at their next probe.
func (m *Monitor) Abort() { m.aborted.Store(true) }

// Aborted reports whether an abort has been requested.
func (m *Monitor) Aborted() bool { return m.aborted.Load() }
