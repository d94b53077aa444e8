package read

// MoveTable is an ordered sequence of 0/1 flags, one per fixed-width
// signal block. A 1 marks the block at which a new base begins; the count
// of 1s equals the base count of the associated sequence.
type MoveTable []uint8

// Ones returns the number of base starts in the table.
func (m MoveTable) Ones() int {
	n := 0
	for _, v := range m {
		if v == 1 {
			n++
		}
	}
	return n
}

// CumSums returns the running total of base starts at every block index.
func (m MoveTable) CumSums() []int {
	sums := make([]int, len(m))
	if len(m) == 0 {
		return sums
	}
	sums[0] = int(m[0])
	for i := 1; i < len(m); i++ {
		sums[i] = sums[i-1] + int(m[i])
	}
	return sums
}

// BaseStarts returns, for each base, the block index at which it starts.
func (m MoveTable) BaseStarts() []int {
	starts := make([]int, 0, m.Ones())
	for i, v := range m {
		if v == 1 {
			starts = append(starts, i)
		}
	}
	return starts
}

// SequenceCoordinateMap projects base indices onto signal sample offsets.
type SequenceCoordinateMap struct {
	// starts[i] is the sample offset at which base i begins; the final
	// entry is the total signal length, so every base i occupies
	// [starts[i], starts[i+1]).
	starts []int
}

// NewSequenceCoordinateMap builds the map from a move table, the block
// stride in samples and the total signal length.
func NewSequenceCoordinateMap(moves MoveTable, stride, signalLen int) SequenceCoordinateMap {
	starts := make([]int, 0, moves.Ones()+1)
	for i, v := range moves {
		if v == 1 {
			starts = append(starts, i*stride)
		}
	}
	starts = append(starts, signalLen)
	return SequenceCoordinateMap{starts: starts}
}

// NumBases returns the number of bases covered by the map.
func (c SequenceCoordinateMap) NumBases() int { return len(c.starts) - 1 }

// SampleStart returns the sample offset at which base i begins.
func (c SequenceCoordinateMap) SampleStart(i int) int { return c.starts[i] }

// SampleInterval projects the base interval [start, end) onto the
// half-open sample interval it occupies.
func (c SequenceCoordinateMap) SampleInterval(start, end int) (int, int) {
	return c.starts[start], c.starts[end]
}
