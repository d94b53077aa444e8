// Package stats provides per-node named counters that worker threads
// update with atomic operations and a background sampler reads without
// synchronising with the writers.
package stats

import "sync/atomic"

// Counter is a monotonically non-decreasing value owned by one node's
// workers and read by the sampler.
type Counter struct {
	name string
	v    atomic.Int64
}

// Inc adds one.
func (c *Counter) Inc() { c.v.Add(1) }

// Add adds n.
func (c *Counter) Add(n int64) { c.v.Add(n) }

// Load returns the current value.
func (c *Counter) Load() int64 { return c.v.Load() }

// Block is the set of counters belonging to one node. Counters are
// registered at construction time, before any worker runs, so the slice
// is immutable while the pipeline is live and snapshots need no lock.
type Block struct {
	prefix   string
	counters []*Counter
}

// NewBlock creates a counter block whose snapshot keys are prefixed
// with the given node name.
func NewBlock(prefix string) *Block {
	return &Block{prefix: prefix}
}

// Counter registers and returns a named counter. Must be called before
// the owning node starts processing.
func (b *Block) Counter(name string) *Counter {
	c := &Counter{name: name}
	b.counters = append(b.counters, c)
	return c
}

// Snapshot is a point-in-time reading of merged counters.
type Snapshot map[string]int64

// Snapshot reads every counter without blocking the writers.
func (b *Block) Snapshot() Snapshot {
	out := make(Snapshot, len(b.counters))
	for _, c := range b.counters {
		out[b.prefix+"."+c.name] = c.v.Load()
	}
	return out
}

// Merge folds other into s and returns s.
func (s Snapshot) Merge(other Snapshot) Snapshot {
	for k, v := range other {
		s[k] = v
	}
	return s
}

// Reporter produces a snapshot; the pipeline exposes one per node.
type Reporter func() Snapshot

// Callable consumes a merged snapshot on every sampler tick.
type Callable func(Snapshot)
