package nodes

import (
	"context"

	"github.com/pkg/errors"

	"github.com/basewind/basewind/pkg/container"
	"github.com/basewind/basewind/pkg/pipeline"
	"github.com/basewind/basewind/pkg/read"
	"github.com/basewind/basewind/pkg/sequtil"
	"github.com/basewind/basewind/pkg/stats"
)

// Writer is the pipeline sink. It serialises records to the output
// artifact, suppresses ids that an earlier run already wrote, and
// flushes during termination so the artifact is durable before the run
// reports success. It always runs single-threaded.
type Writer struct {
	out       container.RecordWriter
	skip      map[string]struct{}
	block     *stats.Block
	processed *stats.Counter
	written   *stats.Counter
	skipped   *stats.Counter
}

// NewWriter builds the sink around an open record writer. skip holds
// ids recovered from a prior artifact; pass nil for a fresh run.
func NewWriter(out container.RecordWriter, skip map[string]struct{}) *Writer {
	block := stats.NewBlock("writer")
	return &Writer{
		out:       out,
		skip:      skip,
		block:     block,
		processed: block.Counter("processed"),
		written:   block.Counter("records_written"),
		skipped:   block.Counter("records_skipped"),
	}
}

func (w *Writer) Name() string             { return "writer" }
func (w *Writer) Workers() int             { return 1 }
func (w *Writer) StatsBlock() *stats.Block { return w.block }

// WriteHeader emits the run-level header. The driver calls it before
// the first record is pushed.
func (w *Writer) WriteHeader(h container.Header) error {
	return errors.Wrap(w.out.WriteHeader(h), "writer")
}

func (w *Writer) Process(_ context.Context, rec *read.Record) ([]*read.Record, error) {
	w.processed.Inc()
	if _, done := w.skip[rec.ID]; done {
		w.skipped.Inc()
		return nil, nil
	}
	out := container.FromRead(rec, sequtil.MeanQScore(rec.Quality))
	if err := w.out.WriteRecord(out); err != nil {
		return nil, errors.Wrapf(err, "record %s", rec.ID)
	}
	w.written.Inc()
	return nil, nil
}

// Flush makes everything written so far durable; the pipeline calls it
// during termination.
func (w *Writer) Flush(context.Context) error {
	return errors.Wrap(w.out.Sync(), "writer")
}

// Close closes the underlying artifact after the pipeline has
// terminated.
func (w *Writer) Close() error {
	return errors.Wrap(w.out.Close(), "writer")
}

var (
	_ pipeline.Node    = (*Writer)(nil)
	_ pipeline.Flusher = (*Writer)(nil)
)
