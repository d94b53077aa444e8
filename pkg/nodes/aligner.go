package nodes

import (
	"context"

	"github.com/basewind/basewind/pkg/index"
	"github.com/basewind/basewind/pkg/pipeline"
	"github.com/basewind/basewind/pkg/read"
	"github.com/basewind/basewind/pkg/stats"
)

// Aligner maps each called read against a reference index and records
// the best hit. Unmapped reads pass through unannotated.
type Aligner struct {
	workers   int
	index     *index.Index
	block     *stats.Block
	processed *stats.Counter
	aligned   *stats.Counter
	unmapped  *stats.Counter
}

// NewAligner builds the alignment stage around a prebuilt index.
func NewAligner(ix *index.Index, workers int) *Aligner {
	block := stats.NewBlock("aligner")
	return &Aligner{
		workers:   workers,
		index:     ix,
		block:     block,
		processed: block.Counter("processed"),
		aligned:   block.Counter("aligned"),
		unmapped:  block.Counter("unmapped"),
	}
}

func (a *Aligner) Name() string             { return "aligner" }
func (a *Aligner) Workers() int             { return a.workers }
func (a *Aligner) StatsBlock() *stats.Block { return a.block }

func (a *Aligner) Process(_ context.Context, rec *read.Record) ([]*read.Record, error) {
	a.processed.Inc()
	if len(rec.Sequence) == 0 {
		a.unmapped.Inc()
		return []*read.Record{rec}, nil
	}
	hit, ok := a.index.Map(rec.Sequence)
	if !ok {
		a.unmapped.Inc()
		return []*read.Record{rec}, nil
	}
	rec.Alignment = &read.AlignmentHit{
		Target:      hit.Target,
		MapQ:        hit.MapQ,
		QueryStart:  hit.QueryStart,
		QueryEnd:    hit.QueryEnd,
		TargetStart: hit.TargetStart,
		TargetEnd:   hit.TargetEnd,
	}
	a.aligned.Inc()
	return []*read.Record{rec}, nil
}

var _ pipeline.Node = (*Aligner)(nil)
