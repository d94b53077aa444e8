package read_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basewind/basewind/pkg/read"
)

func TestMoveTableOnes(t *testing.T) {
	t.Parallel()

	moves := read.MoveTable{1, 1, 0, 0, 0, 1, 1, 1, 0, 0, 1, 0, 1}
	assert.Equal(t, 7, moves.Ones())
	assert.Equal(t, 0, read.MoveTable{}.Ones())
}

func TestMoveTableBaseStarts(t *testing.T) {
	t.Parallel()

	moves := read.MoveTable{1, 1, 0, 0, 0, 1, 1, 1, 0, 0, 1, 0, 1}
	assert.Equal(t, []int{0, 1, 5, 6, 7, 10, 12}, moves.BaseStarts())
}

func TestMoveTableCumSums(t *testing.T) {
	t.Parallel()

	moves := read.MoveTable{1, 0, 1, 1, 0}
	assert.Equal(t, []int{1, 1, 2, 3, 3}, moves.CumSums())
	assert.Empty(t, read.MoveTable{}.CumSums())
}

func TestSequenceCoordinateMap(t *testing.T) {
	t.Parallel()

	moves := read.MoveTable{1, 1, 0, 0, 0, 1, 1, 1, 0, 0, 1, 0, 1}
	cmap := read.NewSequenceCoordinateMap(moves, 1, len(moves))
	require.Equal(t, 7, cmap.NumBases())

	got := make([]int, cmap.NumBases())
	for i := range got {
		got[i] = cmap.SampleStart(i)
	}
	assert.Equal(t, []int{0, 1, 5, 6, 7, 10, 12}, got)

	start, end := cmap.SampleInterval(0, cmap.NumBases())
	assert.Equal(t, 0, start)
	assert.Equal(t, len(moves), end)
}

func TestSequenceCoordinateMapStride(t *testing.T) {
	t.Parallel()

	moves := read.MoveTable{1, 0, 1, 0}
	cmap := read.NewSequenceCoordinateMap(moves, 5, 20)
	require.Equal(t, 2, cmap.NumBases())
	assert.Equal(t, 0, cmap.SampleStart(0))
	assert.Equal(t, 10, cmap.SampleStart(1))

	start, end := cmap.SampleInterval(1, 2)
	assert.Equal(t, 10, start)
	assert.Equal(t, 20, end)
}

func TestRecordClone(t *testing.T) {
	t.Parallel()

	rec := &read.Record{
		ID:       "r1",
		Signal:   []float32{1, 2, 3},
		Sequence: "ACG",
		Quality:  "!!!",
		Moves:    read.MoveTable{1, 1, 1},
		Trim:     &read.TrimInterval{Start: 0, End: 3},
	}
	dup := rec.Clone()
	dup.Signal[0] = 9
	dup.Moves[0] = 0
	dup.Trim.Start = 1

	assert.Equal(t, float32(1), rec.Signal[0])
	assert.Equal(t, uint8(1), rec.Moves[0])
	assert.Equal(t, 0, rec.Trim.Start)
}
