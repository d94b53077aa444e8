package stats

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// WrittenCounterKey is the merged-snapshot key the tracker follows; the
// writer node owns the underlying counter.
const WrittenCounterKey = "writer.records_written"

// ProgressTracker turns sampler snapshots into a progress bar and a
// final summary. It is driven from the sampler goroutine and, after
// termination, once more from the driver with the final snapshot.
type ProgressTracker struct {
	total     int
	startedAt time.Time
	written   int64
	bar       *progressbar.ProgressBar
}

// NewProgressTracker creates a tracker for an expected record total.
// With quiet set, no bar is rendered but totals are still tracked for
// the summary.
func NewProgressTracker(total int, quiet bool) *ProgressTracker {
	t := &ProgressTracker{
		total:     total,
		startedAt: time.Now(),
	}
	if !quiet {
		t.bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("basecalling"),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	}
	return t
}

// Update refreshes the bar from a merged snapshot.
func (t *ProgressTracker) Update(s Snapshot) {
	if n, ok := s[WrittenCounterKey]; ok {
		t.written = n
		if t.bar != nil {
			_ = t.bar.Set64(n)
		}
	}
}

// Summarize prints the completion line after the pipeline has drained.
func (t *ProgressTracker) Summarize(w io.Writer) {
	if t.bar != nil {
		_ = t.bar.Finish()
		fmt.Fprintln(w)
	}
	elapsed := time.Since(t.startedAt).Round(time.Millisecond)
	fmt.Fprintf(w, "processed %d/%d reads in %s\n", t.written, t.total, elapsed)
}

// Written returns the last observed written-record total.
func (t *ProgressTracker) Written() int64 { return t.written }
