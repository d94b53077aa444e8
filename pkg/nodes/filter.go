package nodes

import (
	"context"

	"github.com/basewind/basewind/pkg/pipeline"
	"github.com/basewind/basewind/pkg/read"
	"github.com/basewind/basewind/pkg/sequtil"
	"github.com/basewind/basewind/pkg/stats"
)

// ReadFilter drops reads below the configured quality or length
// thresholds. Every drop is counted, so the conservation check at the
// end of a run still balances.
type ReadFilter struct {
	workers   int
	minQScore float64
	minLength int
	block     *stats.Block
	processed *stats.Counter
	filtered  *stats.Counter
	shortened *stats.Counter
}

// NewReadFilter builds the filtering stage. Zero thresholds disable
// the corresponding check.
func NewReadFilter(minQScore float64, minLength, workers int) *ReadFilter {
	block := stats.NewBlock("filter")
	return &ReadFilter{
		workers:   workers,
		minQScore: minQScore,
		minLength: minLength,
		block:     block,
		processed: block.Counter("processed"),
		filtered:  block.Counter("reads_filtered"),
		shortened: block.Counter("reads_too_short"),
	}
}

func (f *ReadFilter) Name() string             { return "filter" }
func (f *ReadFilter) Workers() int             { return f.workers }
func (f *ReadFilter) StatsBlock() *stats.Block { return f.block }

func (f *ReadFilter) Process(_ context.Context, rec *read.Record) ([]*read.Record, error) {
	f.processed.Inc()
	if f.minLength > 0 && len(rec.Sequence) < f.minLength {
		f.filtered.Inc()
		f.shortened.Inc()
		return nil, nil
	}
	if f.minQScore > 0 && sequtil.MeanQScore(rec.Quality) < f.minQScore {
		f.filtered.Inc()
		return nil, nil
	}
	return []*read.Record{rec}, nil
}

var _ pipeline.Node = (*ReadFilter)(nil)
