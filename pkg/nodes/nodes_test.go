package nodes_test

import (
	"context"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basewind/basewind/pkg/basecall"
	"github.com/basewind/basewind/pkg/container"
	"github.com/basewind/basewind/pkg/index"
	"github.com/basewind/basewind/pkg/nodes"
	"github.com/basewind/basewind/pkg/read"
	"github.com/basewind/basewind/pkg/sequtil"
	"github.com/basewind/basewind/pkg/stats"
)

func randomSeq(rng *rand.Rand, n int) string {
	const bases = "ACGT"
	sb := make([]byte, n)
	for i := range sb {
		sb[i] = bases[rng.Intn(4)]
	}
	return string(sb)
}

func process(t *testing.T, n interface {
	Process(context.Context, *read.Record) ([]*read.Record, error)
}, rec *read.Record) *read.Record {
	t.Helper()
	outs, err := n.Process(context.Background(), rec)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	return outs[0]
}

func TestScalerNormalises(t *testing.T) {
	t.Parallel()

	rec := &read.Record{ID: "r", Signal: []float32{10, 12, 14, 16, 100}}
	out := process(t, nodes.NewScaler(1), rec)

	assert.True(t, out.Scaled)
	assert.InDelta(t, 14, out.ShiftMedian, 1e-6)
	assert.Positive(t, out.ScaleMAD)
	// The median sample sits at zero after scaling.
	assert.InDelta(t, 0, out.Signal[2], 1e-6)
	assert.Negative(t, out.Signal[0])
	assert.Positive(t, out.Signal[4])
}

func TestScalerIdempotent(t *testing.T) {
	t.Parallel()

	rec := &read.Record{ID: "r", Signal: []float32{1, 2, 3}, Scaled: true}
	before := append([]float32(nil), rec.Signal...)
	out := process(t, nodes.NewScaler(1), rec)
	assert.Equal(t, before, out.Signal)
}

func TestBasecallerCallsScaledSignal(t *testing.T) {
	t.Parallel()

	model, err := basecall.Load(basecall.Selection{Variant: basecall.VariantHac})
	require.NoError(t, err)
	block := stats.NewBlock("basecaller")
	runner, err := basecall.NewCPURunner(model, 0, 0, block)
	require.NoError(t, err)
	node := nodes.NewBasecaller(runner, 2, block)

	signal := make([]float32, 0, 4*model.Stride)
	for _, level := range []float32{-1, 0.3, 0.9, -0.2} {
		for i := 0; i < model.Stride; i++ {
			signal = append(signal, level)
		}
	}
	out := process(t, node, &read.Record{ID: "r", Signal: signal, Scaled: true})

	assert.NotEmpty(t, out.Sequence)
	assert.Equal(t, len(out.Sequence), out.Moves.Ones())
	assert.Equal(t, model.Stride, out.Stride)

	_, err = node.Process(context.Background(), &read.Record{ID: "raw"})
	require.Error(t, err, "unscaled records are a wiring bug")
}

func TestPolyAEstimator(t *testing.T) {
	t.Parallel()

	seq := "CGCGCGCGCG" + strings.Repeat("A", 12)
	moves := make(read.MoveTable, len(seq))
	for i := range moves {
		moves[i] = 1
	}
	rec := &read.Record{
		ID: "r", Sequence: seq, Moves: moves, Stride: 5,
		Signal: make([]float32, len(seq)*5),
	}
	out := process(t, nodes.NewPolyAEstimator(1), rec)
	assert.Equal(t, 12, out.PolyATail)

	// Below the minimum run length nothing is reported.
	short := &read.Record{
		ID: "s", Sequence: "CGCGCGAAA",
		Moves:  read.MoveTable{1, 1, 1, 1, 1, 1, 1, 1, 1},
		Stride: 5, Signal: make([]float32, 45),
	}
	out = process(t, nodes.NewPolyAEstimator(1), short)
	assert.Zero(t, out.PolyATail)
}

func TestAdapterTrimmerRemapsMoves(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	body := randomSeq(rng, 100)
	front := nodes.DefaultAdapters[0].Front
	seq := front + body

	moves := make(read.MoveTable, len(seq))
	for i := range moves {
		moves[i] = 1
	}
	rec := &read.Record{
		ID: "r", Sequence: seq,
		Quality: strings.Repeat("I", len(seq)),
		Moves:   moves, Stride: 5,
		Signal: make([]float32, len(seq)*5),
	}

	trimmer := nodes.NewAdapterTrimmer(nil, 1)
	out := process(t, trimmer, rec)

	require.NotNil(t, out.Trim)
	assert.True(t, strings.Contains(body, out.Sequence),
		"trimmed call must come from the insert")
	assert.GreaterOrEqual(t, len(out.Sequence), 70)
	assert.Equal(t, len(out.Sequence), out.Moves.Ones())
	assert.Equal(t, len(out.Sequence), len(out.Quality))
}

func TestAdapterTrimmerMovesMatchSequence(t *testing.T) {
	t.Parallel()

	// A repetitive insert can anchor the remap on a shifted diagonal
	// whose window ends before the revised call does; the emitted call
	// must still agree with its move table base for base.
	body := strings.Repeat("ACGTTGCAACGT", 9)
	seq := nodes.DefaultAdapters[0].Front + body
	moves := make(read.MoveTable, len(seq))
	for i := range moves {
		moves[i] = 1
	}
	rec := &read.Record{
		ID: "r", Sequence: seq,
		Quality: strings.Repeat("I", len(seq)),
		Moves:   moves, Stride: 5,
		Signal: make([]float32, len(seq)*5),
	}

	out := process(t, nodes.NewAdapterTrimmer(nil, 1), rec)
	require.NotNil(t, out.Trim)
	assert.NotEmpty(t, out.Sequence)
	assert.Equal(t, len(out.Sequence), out.Moves.Ones())
	assert.Equal(t, len(out.Sequence), len(out.Quality))
	assert.Equal(t, out.Trim.End-out.Trim.Start, len(out.Sequence))
}

func TestAdapterTrimmerDimer(t *testing.T) {
	t.Parallel()

	adapter := nodes.DefaultAdapters[0]
	seq := adapter.Front + adapter.Rear
	rec := &read.Record{
		ID: "r", Sequence: seq,
		Quality: strings.Repeat("I", len(seq)),
		Moves:   make(read.MoveTable, len(seq)),
		Stride:  5,
	}
	for i := range rec.Moves {
		rec.Moves[i] = 1
	}
	out := process(t, nodes.NewAdapterTrimmer(nil, 1), rec)
	assert.Empty(t, out.Sequence)
	assert.Empty(t, out.Moves)
}

func TestAdapterTrimmerPassThrough(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(11))
	body := randomSeq(rng, 80)
	rec := &read.Record{ID: "r", Sequence: body, Quality: strings.Repeat("I", 80)}
	out := process(t, nodes.NewAdapterTrimmer(nil, 1), rec)
	assert.Nil(t, out.Trim)
	assert.Equal(t, body, out.Sequence)
}

func TestBarcodeClassifier(t *testing.T) {
	t.Parallel()

	classifier, err := nodes.NewBarcodeClassifier("BW-KIT-4", false, 1)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	barcode := "ACAGACGACTACAAACGGAATCGA"
	rec := &read.Record{ID: "r", Sequence: barcode + randomSeq(rng, 150)}
	out := process(t, classifier, rec)
	require.NotNil(t, out.Barcode)
	assert.True(t, out.Barcode.Classified)
	assert.Equal(t, "BW-KIT-4-BC2", out.Barcode.Barcode)

	_, err = nodes.NewBarcodeClassifier("NO-SUCH-KIT", false, 1)
	require.Error(t, err)
	assert.True(t, nodes.KnownBarcodeKit("BW-KIT-8"))
}

func TestBarcodeClassifierBothEnds(t *testing.T) {
	t.Parallel()

	strict, err := nodes.NewBarcodeClassifier("BW-KIT-4", true, 1)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(9))
	barcode := "CCTGGTAACTGGGACACAAGACTC"
	insert := randomSeq(rng, 150)

	// Barcode only at the front: strict mode refuses to classify.
	oneEnd := &read.Record{ID: "one", Sequence: barcode + insert}
	out := process(t, strict, oneEnd)
	require.NotNil(t, out.Barcode)
	assert.False(t, out.Barcode.Classified)

	// Front barcode plus its reverse complement at the rear classifies.
	dual := &read.Record{ID: "dual", Sequence: barcode + insert + sequtil.ReverseComplement(barcode)}
	out = process(t, strict, dual)
	require.NotNil(t, out.Barcode)
	assert.True(t, out.Barcode.Classified)
	assert.Equal(t, "BW-KIT-4-BC3", out.Barcode.Barcode)
}

func TestReadFilterCountsDrops(t *testing.T) {
	t.Parallel()

	filter := nodes.NewReadFilter(10, 5, 1)

	outs, err := filter.Process(context.Background(), &read.Record{ID: "short", Sequence: "ACG", Quality: "III"})
	require.NoError(t, err)
	assert.Nil(t, outs)

	lowQ := &read.Record{ID: "lowq", Sequence: "ACGTACGT", Quality: strings.Repeat("#", 8)}
	outs, err = filter.Process(context.Background(), lowQ)
	require.NoError(t, err)
	assert.Nil(t, outs)

	good := &read.Record{ID: "good", Sequence: "ACGTACGT", Quality: strings.Repeat("I", 8)}
	out := process(t, filter, good)
	assert.Equal(t, "good", out.ID)

	snap := filter.StatsBlock().Snapshot()
	assert.Equal(t, int64(3), snap["filter.processed"])
	assert.Equal(t, int64(2), snap["filter.reads_filtered"])
	assert.Equal(t, int64(1), snap["filter.reads_too_short"])
}

func TestAlignerAnnotatesBestHit(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(5))
	ref := randomSeq(rng, 300)
	ix, err := index.Build([]index.FastaRecord{{ID: "chr1", Seq: ref}}, 0)
	require.NoError(t, err)

	aligner := nodes.NewAligner(ix, 2)
	out := process(t, aligner, &read.Record{ID: "r", Sequence: ref[50:150]})
	require.NotNil(t, out.Alignment)
	assert.Equal(t, "chr1", out.Alignment.Target)
	assert.Positive(t, out.Alignment.MapQ)

	miss := &read.Record{ID: "m", Sequence: strings.Repeat("A", 60)}
	out = process(t, aligner, miss)
	assert.Nil(t, out.Alignment)
}

func TestConverterStripsWorkingState(t *testing.T) {
	t.Parallel()

	rec := &read.Record{
		ID: "r", Sequence: "ACGT", Quality: "IIII",
		Signal: []float32{1, 2, 3}, Moves: read.MoveTable{1, 1, 1, 1},
	}
	out := process(t, nodes.NewConverter(false, 1), rec)
	assert.Nil(t, out.Signal)
	assert.Nil(t, out.Moves)

	keep := &read.Record{ID: "k", Moves: read.MoveTable{1}}
	out = process(t, nodes.NewConverter(true, 1), keep)
	assert.NotNil(t, out.Moves)
}

func TestWriterSkipsAndFlushes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.bwc")
	out, err := container.Open(path, container.FormatNative)
	require.NoError(t, err)

	writer := nodes.NewWriter(out, map[string]struct{}{"done": {}})
	require.NoError(t, writer.WriteHeader(container.Header{Model: "hac"}))

	outs, err := writer.Process(context.Background(), &read.Record{ID: "done", Sequence: "ACGT", Quality: "IIII"})
	require.NoError(t, err)
	assert.Nil(t, outs)
	_, err = writer.Process(context.Background(), &read.Record{ID: "fresh", Sequence: "ACGT", Quality: "IIII"})
	require.NoError(t, err)

	require.NoError(t, writer.Flush(context.Background()))
	require.NoError(t, writer.Close())

	res, err := container.Scan(path)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "fresh", res.Records[0].ID)

	snap := writer.StatsBlock().Snapshot()
	assert.Equal(t, int64(1), snap["writer.records_written"])
	assert.Equal(t, int64(1), snap["writer.records_skipped"])
}
