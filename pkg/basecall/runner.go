package basecall

import (
	"context"
	"math"
	"runtime"

	"github.com/pkg/errors"

	"github.com/basewind/basewind/pkg/read"
	"github.com/basewind/basewind/pkg/stats"
)

// Result is one called read: sequence, per-base quality and the move
// table mapping bases back to signal blocks. The number of ones in
// Moves always equals the sequence length.
type Result struct {
	Sequence string
	Quality  string
	Moves    read.MoveTable
	Stride   int
	// Chunks is how many decode windows the signal was split into.
	Chunks int
}

// Runner decodes scaled signal into sequence.
type Runner interface {
	Basecall(ctx context.Context, signal []float32) (Result, error)
	Model() Model
}

// CPURunner is a deterministic level-quantising decoder. Each stride
// block is reduced to its mean, the mean is quantised to one of four
// levels and a base is emitted whenever the level changes from the
// previous block. Identical input always yields the identical call.
type CPURunner struct {
	model   Model
	chunk   int
	overlap int
	decoded *stats.Counter
	chunks  *stats.Counter
}

// NewCPURunner builds a runner. Non-positive chunk or overlap values
// fall back to the model defaults; overlap must stay below chunk.
func NewCPURunner(model Model, chunkSize, overlap int, block *stats.Block) (*CPURunner, error) {
	if chunkSize <= 0 {
		chunkSize = model.DefaultChunk
	}
	if overlap <= 0 {
		overlap = model.DefaultOverlap
	}
	if overlap >= chunkSize {
		return nil, errors.Errorf("overlap %d must be smaller than chunk size %d", overlap, chunkSize)
	}
	r := &CPURunner{model: model, chunk: chunkSize, overlap: overlap}
	if block != nil {
		r.decoded = block.Counter("decoded")
		r.chunks = block.Counter("chunks")
	}
	return r, nil
}

// Model returns the loaded model.
func (r *CPURunner) Model() Model { return r.model }

var levelBases = [4]byte{'A', 'C', 'G', 'T'}

// quantise maps a scaled block mean onto one of four current levels.
func quantise(mean float32) int {
	switch {
	case mean < -0.5:
		return 0
	case mean < 0:
		return 1
	case mean < 0.5:
		return 2
	default:
		return 3
	}
}

// Basecall decodes one read's signal. The signal is expected to be
// scaled already; shorter signals than one stride yield an empty call.
func (r *CPURunner) Basecall(ctx context.Context, signal []float32) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, errors.Wrap(err, "basecall")
	}

	stride := r.model.Stride
	numBlocks := len(signal) / stride
	res := Result{Stride: stride, Chunks: numChunks(len(signal), r.chunk, r.overlap)}
	if numBlocks == 0 {
		return res, nil
	}

	seq := make([]byte, 0, numBlocks)
	qual := make([]byte, 0, numBlocks)
	moves := make(read.MoveTable, 0, numBlocks)

	prevLevel := -1
	for b := 0; b < numBlocks; b++ {
		block := signal[b*stride : (b+1)*stride]
		mean, dev := blockStats(block)
		level := quantise(mean)
		if level != prevLevel {
			seq = append(seq, levelBases[level])
			qual = append(qual, qualityChar(dev))
			moves = append(moves, 1)
			prevLevel = level
		} else {
			moves = append(moves, 0)
		}
	}

	res.Sequence = string(seq)
	res.Quality = string(qual)
	res.Moves = moves
	if r.decoded != nil {
		r.decoded.Inc()
		r.chunks.Add(int64(res.Chunks))
	}
	return res, nil
}

// numChunks counts the decode windows a signal spans: the first window
// is a full chunk, each later one advances by chunk minus overlap.
func numChunks(samples, chunk, overlap int) int {
	if samples <= chunk {
		return 1
	}
	step := chunk - overlap
	return 1 + (samples-chunk+step-1)/step
}

func blockStats(block []float32) (mean, dev float32) {
	var sum float64
	for _, s := range block {
		sum += float64(s)
	}
	m := sum / float64(len(block))
	var sq float64
	for _, s := range block {
		d := float64(s) - m
		sq += d * d
	}
	return float32(m), float32(math.Sqrt(sq / float64(len(block))))
}

// qualityChar maps block noise onto a Phred+33 character. Tight blocks
// score high; the scale is clamped to [2, 40].
func qualityChar(dev float32) byte {
	q := 40 - int(dev*80)
	if q < 2 {
		q = 2
	}
	if q > 40 {
		q = 40
	}
	return byte('!' + q)
}

// AutoBatchSize picks a batch size for the host when the caller passes
// zero: a multiple of 16 scaled by CPU count, clamped to [16, 512].
func AutoBatchSize(requested int) int {
	if requested > 0 {
		return requested
	}
	batch := runtime.NumCPU() * 4
	batch -= batch % 16
	if batch < 16 {
		batch = 16
	}
	if batch > 512 {
		batch = 512
	}
	return batch
}
