// Package realign remaps a per-sample move table from the coordinate
// system of an originally called sequence onto a revised call, so that
// downstream signal-coordinate operations keep working after a stage
// replaces a record's sequence.
package realign

import (
	"github.com/basewind/basewind/pkg/align"
	"github.com/basewind/basewind/pkg/index"
	"github.com/basewind/basewind/pkg/read"
)

// Result carries the realigned move table together with the offsets at
// which the refined overlap window begins in both coordinate systems:
// MoveOffset is the block index into the original table, SeqOffset the
// base index into the revised sequence. Callers use them to re-anchor
// previously computed signal intervals.
type Result struct {
	MoveOffset int
	SeqOffset  int
	Moves      read.MoveTable
}

// Failed reports whether realignment produced no usable table. The
// caller should fall back to skipping realignment, not abort the record.
func (r Result) Failed() bool { return r.MoveOffset < 0 }

var failed = Result{MoveOffset: -1, SeqOffset: -1}

// Realign builds a move table consistent with the revised sequence from
// the table of the original one.
//
// The original sequence is indexed and the revised sequence mapped
// against it to find the single best overlap window. The window start is
// refined by linear scan until the sequences agree base for base, the
// refined windows are globally aligned, and the alignment path is walked
// to emit the new table: a base start for every match, mismatch or
// revised-only base, and continuation flags (signal kept with the
// preceding base) for every original-only base.
func Realign(original, revised string, moves read.MoveTable) Result {
	if len(original) == 0 || len(revised) == 0 || len(moves) == 0 {
		return failed
	}
	if moves.Ones() != len(original) {
		return failed
	}

	ix, err := index.BuildFromSequence(original, 0)
	if err != nil {
		return failed
	}
	hit, ok := ix.Map(revised)
	if !ok {
		return failed
	}

	// Hit coordinates: the revised sequence was the query, the original
	// the indexed target.
	origStart, origEnd := hit.TargetStart, hit.TargetEnd
	revStart, revEnd := hit.QueryStart, hit.QueryEnd

	// The seed extension can start the window one or two bases off; walk
	// forward until both sequences agree at the window start.
	for origStart < origEnd && revStart < revEnd && original[origStart] != revised[revStart] {
		origStart++
		revStart++
	}
	if origStart >= origEnd || revStart >= revEnd {
		return failed
	}

	res, err := align.Align(revised[revStart:revEnd], original[origStart:origEnd], align.ModeGlobal)
	if err != nil {
		return failed
	}

	baseStarts := moves.BaseStarts()
	blocksFor := func(base int) int {
		if base+1 < len(baseStarts) {
			return baseStarts[base+1] - baseStarts[base]
		}
		return len(moves) - baseStarts[base]
	}

	newMoves := make(read.MoveTable, 0, len(moves))
	origBase := origStart
	for _, op := range res.Path {
		switch op {
		case align.OpMatch, align.OpMismatch:
			newMoves = append(newMoves, 1)
			for i := 1; i < blocksFor(origBase); i++ {
				newMoves = append(newMoves, 0)
			}
			origBase++
		case align.OpInsertQuery:
			// Base present only in the revised sequence; it gets a start
			// flag without consuming any original blocks.
			newMoves = append(newMoves, 1)
		case align.OpInsertTarget:
			// Base present only in the original sequence; its signal is
			// assigned to the preceding revised base, conserving trace
			// length.
			for i := 0; i < blocksFor(origBase); i++ {
				newMoves = append(newMoves, 0)
			}
			origBase++
		}
	}

	return Result{
		MoveOffset: baseStarts[origStart],
		SeqOffset:  revStart,
		Moves:      newMoves,
	}
}
