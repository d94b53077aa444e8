package nodes

import (
	"context"

	"github.com/pkg/errors"

	"github.com/basewind/basewind/pkg/basecall"
	"github.com/basewind/basewind/pkg/pipeline"
	"github.com/basewind/basewind/pkg/read"
	"github.com/basewind/basewind/pkg/stats"
)

// Basecaller runs the model over scaled signal and attaches sequence,
// quality and the move table to the record.
type Basecaller struct {
	workers   int
	runner    basecall.Runner
	block     *stats.Block
	processed *stats.Counter
	empty     *stats.Counter
}

// NewBasecaller builds the decode stage around a runner. The runner's
// own counters live in the same block as the node's.
func NewBasecaller(runner basecall.Runner, workers int, block *stats.Block) *Basecaller {
	return &Basecaller{
		workers:   workers,
		runner:    runner,
		block:     block,
		processed: block.Counter("processed"),
		empty:     block.Counter("empty_calls"),
	}
}

func (b *Basecaller) Name() string             { return "basecaller" }
func (b *Basecaller) Workers() int             { return b.workers }
func (b *Basecaller) StatsBlock() *stats.Block { return b.block }

// Process decodes one record. An unscaled record is a wiring bug, not
// an input problem, so it fails the run.
func (b *Basecaller) Process(ctx context.Context, rec *read.Record) ([]*read.Record, error) {
	b.processed.Inc()
	if !rec.Scaled {
		return nil, errors.Errorf("record %s reached the basecaller unscaled", rec.ID)
	}

	res, err := b.runner.Basecall(ctx, rec.Signal)
	if err != nil {
		return nil, errors.Wrapf(err, "record %s", rec.ID)
	}
	rec.Sequence = res.Sequence
	rec.Quality = res.Quality
	rec.Moves = res.Moves
	rec.Stride = res.Stride
	if len(res.Sequence) == 0 {
		b.empty.Inc()
	}
	return []*read.Record{rec}, nil
}

var _ pipeline.Node = (*Basecaller)(nil)
