package pipeline

import (
	"context"

	"github.com/basewind/basewind/pkg/read"
	"github.com/basewind/basewind/pkg/stats"
)

// Node is one processing stage. The pipeline owns its bounded input
// queue and runs Workers() goroutines over it; Process is called once
// per record and may return zero records (a counted filter or aggregate
// decision), one, or several (a split).
//
// A record is owned by exactly one node at a time; ownership moves with
// the queue push. Nodes must never block outside their queue operations.
type Node interface {
	Name() string
	Workers() int
	Process(ctx context.Context, rec *read.Record) ([]*read.Record, error)
	StatsBlock() *stats.Block
}

// Flusher is implemented by nodes holding state that must reach durable
// storage before termination completes; the sink's queue only counts as
// empty once Flush has returned.
type Flusher interface {
	Flush(ctx context.Context) error
}
