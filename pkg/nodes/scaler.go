// Package nodes holds the concrete pipeline stages: signal scaling,
// basecalling, poly-A estimation, adapter trimming, barcode
// classification, filtering, alignment, conversion and the writer sink.
package nodes

import (
	"context"
	"math"
	"sort"

	"github.com/basewind/basewind/pkg/pipeline"
	"github.com/basewind/basewind/pkg/read"
	"github.com/basewind/basewind/pkg/stats"
)

// madScale converts a median absolute deviation into a standard
// deviation estimate for normally distributed noise.
const madScale = 1.4826

// Scaler normalises raw signal to zero median and unit spread so the
// decoder sees comparable levels regardless of run conditions.
type Scaler struct {
	workers   int
	block     *stats.Block
	processed *stats.Counter
}

// NewScaler builds the scaling stage with the given worker count.
func NewScaler(workers int) *Scaler {
	block := stats.NewBlock("scaler")
	return &Scaler{
		workers:   workers,
		block:     block,
		processed: block.Counter("processed"),
	}
}

func (s *Scaler) Name() string             { return "scaler" }
func (s *Scaler) Workers() int             { return s.workers }
func (s *Scaler) StatsBlock() *stats.Block { return s.block }

// Process scales the record's signal in place. Records that arrive
// already scaled pass through untouched.
func (s *Scaler) Process(_ context.Context, rec *read.Record) ([]*read.Record, error) {
	s.processed.Inc()
	if rec.Scaled || len(rec.Signal) == 0 {
		return []*read.Record{rec}, nil
	}

	med, mad := medMAD(rec.Signal)
	scale := mad * madScale
	if scale < 1e-9 {
		scale = 1
	}
	for i, v := range rec.Signal {
		rec.Signal[i] = (v - med) / scale
	}
	rec.Scaled = true
	rec.ShiftMedian = med
	rec.ScaleMAD = mad
	return []*read.Record{rec}, nil
}

func medMAD(signal []float32) (med, mad float32) {
	sorted := make([]float64, len(signal))
	for i, v := range signal {
		sorted[i] = float64(v)
	}
	sort.Float64s(sorted)
	m := median(sorted)

	for i, v := range sorted {
		sorted[i] = math.Abs(v - m)
	}
	sort.Float64s(sorted)
	return float32(m), float32(median(sorted))
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

var _ pipeline.Node = (*Scaler)(nil)
