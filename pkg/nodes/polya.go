package nodes

import (
	"context"

	"github.com/basewind/basewind/pkg/pipeline"
	"github.com/basewind/basewind/pkg/read"
	"github.com/basewind/basewind/pkg/sequtil"
	"github.com/basewind/basewind/pkg/stats"
)

// minPolyARun is the shortest homopolymer run reported as a tail.
const minPolyARun = 5

// PolyAEstimator measures the poly-A tail of a called read. A read in
// template orientation ends in a run of A; a complement-orientation
// read starts with a run of T. The longer of the two wins, and only
// runs with signal evidence behind them are reported.
type PolyAEstimator struct {
	workers   int
	block     *stats.Block
	processed *stats.Counter
	estimated *stats.Counter
}

// NewPolyAEstimator builds the tail estimation stage.
func NewPolyAEstimator(workers int) *PolyAEstimator {
	block := stats.NewBlock("polya")
	return &PolyAEstimator{
		workers:   workers,
		block:     block,
		processed: block.Counter("processed"),
		estimated: block.Counter("estimated"),
	}
}

func (p *PolyAEstimator) Name() string             { return "polya" }
func (p *PolyAEstimator) Workers() int             { return p.workers }
func (p *PolyAEstimator) StatsBlock() *stats.Block { return p.block }

func (p *PolyAEstimator) Process(_ context.Context, rec *read.Record) ([]*read.Record, error) {
	p.processed.Inc()
	if len(rec.Sequence) == 0 || rec.Moves.Ones() != len(rec.Sequence) {
		return []*read.Record{rec}, nil
	}

	tail := sequtil.CountTrailing(rec.Sequence, 'A')
	head := sequtil.CountLeading(rec.Sequence, 'T')
	run := tail
	start, end := len(rec.Sequence)-tail, len(rec.Sequence)
	if head > tail {
		run = head
		start, end = 0, head
	}
	if run < minPolyARun {
		return []*read.Record{rec}, nil
	}

	// The run only counts as a tail if it occupies actual signal.
	coords := read.NewSequenceCoordinateMap(rec.Moves, rec.Stride, rec.SignalLen())
	lo, hi := coords.SampleInterval(start, end)
	if hi <= lo {
		return []*read.Record{rec}, nil
	}

	rec.PolyATail = run
	p.estimated.Inc()
	return []*read.Record{rec}, nil
}

var _ pipeline.Node = (*PolyAEstimator)(nil)
