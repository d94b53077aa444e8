package nodes

import (
	"context"

	"github.com/basewind/basewind/pkg/pipeline"
	"github.com/basewind/basewind/pkg/read"
	"github.com/basewind/basewind/pkg/stats"
)

// Converter finalises a record for emission: the raw signal is
// released, and the move table is dropped unless the caller asked for
// it. It runs last before the writer so every annotating stage still
// sees the full record.
type Converter struct {
	workers   int
	emitMoves bool
	block     *stats.Block
	processed *stats.Counter
}

// NewConverter builds the conversion stage.
func NewConverter(emitMoves bool, workers int) *Converter {
	block := stats.NewBlock("converter")
	return &Converter{
		workers:   workers,
		emitMoves: emitMoves,
		block:     block,
		processed: block.Counter("processed"),
	}
}

func (c *Converter) Name() string             { return "converter" }
func (c *Converter) Workers() int             { return c.workers }
func (c *Converter) StatsBlock() *stats.Block { return c.block }

func (c *Converter) Process(_ context.Context, rec *read.Record) ([]*read.Record, error) {
	c.processed.Inc()
	rec.Signal = nil
	if !c.emitMoves {
		rec.Moves = nil
	}
	return []*read.Record{rec}, nil
}

var _ pipeline.Node = (*Converter)(nil)
