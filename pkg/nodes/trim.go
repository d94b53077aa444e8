package nodes

import (
	"context"

	"github.com/basewind/basewind/pkg/align"
	"github.com/basewind/basewind/pkg/pipeline"
	"github.com/basewind/basewind/pkg/read"
	"github.com/basewind/basewind/pkg/realign"
	"github.com/basewind/basewind/pkg/stats"
)

// adapterSearchSpan bounds how far into each end of a read adapters
// are searched for.
const adapterSearchSpan = 150

// Adapter is one front/rear adapter pair to strip from called reads.
type Adapter struct {
	Name  string
	Front string
	Rear  string
}

// DefaultAdapters covers the standard ligation adapter.
var DefaultAdapters = []Adapter{
	{
		Name:  "LA",
		Front: "AATGTACTTCGTTCAGTTACGTATTGCT",
		Rear:  "GCAATACGTAACTGAACGAAGT",
	},
}

// AdapterTrimmer removes adapter sequence from read ends. The trimmed
// call replaces the record's sequence, and the move table is remapped
// onto the new call so signal coordinates stay valid downstream.
type AdapterTrimmer struct {
	workers   int
	adapters  []Adapter
	block     *stats.Block
	processed *stats.Counter
	trimmed   *stats.Counter
	remapped  *stats.Counter
	fallback  *stats.Counter
}

// NewAdapterTrimmer builds the trimming stage. A nil adapter list
// selects DefaultAdapters.
func NewAdapterTrimmer(adapters []Adapter, workers int) *AdapterTrimmer {
	if adapters == nil {
		adapters = DefaultAdapters
	}
	block := stats.NewBlock("adapter_trim")
	return &AdapterTrimmer{
		workers:   workers,
		adapters:  adapters,
		block:     block,
		processed: block.Counter("processed"),
		trimmed:   block.Counter("trimmed"),
		remapped:  block.Counter("moves_remapped"),
		fallback:  block.Counter("moves_fallback"),
	}
}

func (a *AdapterTrimmer) Name() string             { return "adapter_trim" }
func (a *AdapterTrimmer) Workers() int             { return a.workers }
func (a *AdapterTrimmer) StatsBlock() *stats.Block { return a.block }

func (a *AdapterTrimmer) Process(_ context.Context, rec *read.Record) ([]*read.Record, error) {
	a.processed.Inc()
	seq := rec.Sequence
	if len(seq) == 0 {
		return []*read.Record{rec}, nil
	}

	start, end := 0, len(seq)
	for _, adapter := range a.adapters {
		if s := findAdapterEnd(adapter.Front, seq); s > start {
			start = s
		}
		if e := findAdapterStart(adapter.Rear, seq); e < end {
			end = e
		}
	}
	if start == 0 && end == len(seq) {
		return []*read.Record{rec}, nil
	}
	if start >= end {
		// Adapter dimer; nothing of the read survives.
		rec.Sequence = ""
		rec.Quality = ""
		rec.Moves = nil
		rec.Trim = &read.TrimInterval{Start: 0, End: 0}
		a.trimmed.Inc()
		return []*read.Record{rec}, nil
	}

	a.trim(rec, start, end)
	a.trimmed.Inc()
	return []*read.Record{rec}, nil
}

// trim replaces the record's call with seq[start:end) and brings the
// move table along, preferring a full remap and falling back to block
// slicing when the remap finds no overlap.
func (a *AdapterTrimmer) trim(rec *read.Record, start, end int) {
	revised := rec.Sequence[start:end]
	if rec.Moves.Ones() != len(rec.Sequence) {
		// No usable table; trim the call alone.
		rec.Quality = rec.Quality[start:end]
		rec.Sequence = revised
		rec.Trim = &read.TrimInterval{Start: start, End: end}
		return
	}
	if res := realign.Realign(rec.Sequence, revised, rec.Moves); !res.Failed() {
		// The remapped table covers exactly the refined overlap window;
		// the call is clamped to it so the base-start count and the
		// sequence length stay equal even when the window ends before
		// the revised sequence does.
		lo := start + res.SeqOffset
		hi := lo + res.Moves.Ones()
		rec.Quality = rec.Quality[lo:hi]
		rec.Sequence = revised[res.SeqOffset : res.SeqOffset+res.Moves.Ones()]
		rec.Moves = res.Moves
		if cut := res.MoveOffset * rec.Stride; cut <= len(rec.Signal) {
			rec.Signal = rec.Signal[cut:]
		}
		rec.Trim = &read.TrimInterval{Start: lo, End: hi}
		a.remapped.Inc()
		return
	}

	// Remap failed; slice the table on block boundaries instead.
	starts := rec.Moves.BaseStarts()
	blockStart := starts[start]
	blockEnd := len(rec.Moves)
	if end < len(starts) {
		blockEnd = starts[end]
	}
	rec.Quality = rec.Quality[start:end]
	rec.Sequence = revised
	rec.Moves = append(read.MoveTable(nil), rec.Moves[blockStart:blockEnd]...)
	if cut := blockStart * rec.Stride; cut <= len(rec.Signal) {
		rec.Signal = rec.Signal[cut:]
	}
	rec.Trim = &read.TrimInterval{Start: start, End: end}
	a.fallback.Inc()
}

// findAdapterEnd locates a front adapter near the read start and
// returns the first base after it, or 0 when absent.
func findAdapterEnd(adapter, seq string) int {
	if adapter == "" {
		return 0
	}
	window := seq
	if len(window) > adapterSearchSpan {
		window = window[:adapterSearchSpan]
	}
	res, err := align.Align(adapter, window, align.ModeInfix)
	if err != nil || res.Distance > maxAdapterDistance(adapter) {
		return 0
	}
	return res.TargetEnd
}

// findAdapterStart locates a rear adapter near the read end and
// returns the first base of it, or len(seq) when absent.
func findAdapterStart(adapter, seq string) int {
	if adapter == "" {
		return len(seq)
	}
	offset := 0
	window := seq
	if len(window) > adapterSearchSpan {
		offset = len(seq) - adapterSearchSpan
		window = seq[offset:]
	}
	res, err := align.Align(adapter, window, align.ModeInfix)
	if err != nil || res.Distance > maxAdapterDistance(adapter) {
		return len(seq)
	}
	return offset + res.TargetStart
}

func maxAdapterDistance(adapter string) int { return len(adapter) / 4 }

var _ pipeline.Node = (*AdapterTrimmer)(nil)
