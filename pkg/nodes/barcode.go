package nodes

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/basewind/basewind/pkg/align"
	"github.com/basewind/basewind/pkg/pipeline"
	"github.com/basewind/basewind/pkg/read"
	"github.com/basewind/basewind/pkg/sequtil"
	"github.com/basewind/basewind/pkg/stats"
)

// barcodeSearchSpan bounds how far into each read end barcodes are
// searched for.
const barcodeSearchSpan = 120

// barcodeKits maps kit names to their barcode sequences. Barcode i of
// a kit is reported as "<kit>-BC<i+1>".
var barcodeKits = map[string][]string{
	"BW-KIT-4": {
		"CACAAAGACACCGACAACTTTCTT",
		"ACAGACGACTACAAACGGAATCGA",
		"CCTGGTAACTGGGACACAAGACTC",
		"TAGGGAAACACGATAGAATCCGAA",
	},
	"BW-KIT-8": {
		"CACAAAGACACCGACAACTTTCTT",
		"ACAGACGACTACAAACGGAATCGA",
		"CCTGGTAACTGGGACACAAGACTC",
		"TAGGGAAACACGATAGAATCCGAA",
		"AAGGTTACACAAACCCTGGACAAG",
		"GACTACTTTCTGCCTTTGCGAGAA",
		"AAGGATTCATTCCCACGGTAACAC",
		"ACGTAACTTGGTTTGTTCCCTGAA",
	},
}

// KnownBarcodeKit reports whether the named kit is available.
func KnownBarcodeKit(kit string) bool {
	_, ok := barcodeKits[kit]
	return ok
}

// BarcodeClassifier assigns each read to a barcode of the configured
// kit, or leaves it unclassified when no barcode scores well enough.
// With bothEnds set, a read only classifies when the same barcode is
// found at the front and (reverse-complemented) at the rear.
type BarcodeClassifier struct {
	workers      int
	kit          string
	barcodes     []string
	bothEnds     bool
	block        *stats.Block
	processed    *stats.Counter
	classified   *stats.Counter
	unclassified *stats.Counter
}

// NewBarcodeClassifier builds the classification stage for one kit.
func NewBarcodeClassifier(kit string, bothEnds bool, workers int) (*BarcodeClassifier, error) {
	barcodes, ok := barcodeKits[kit]
	if !ok {
		return nil, errors.Errorf("unknown barcode kit %q", kit)
	}
	block := stats.NewBlock("barcode")
	return &BarcodeClassifier{
		workers:      workers,
		kit:          kit,
		barcodes:     barcodes,
		bothEnds:     bothEnds,
		block:        block,
		processed:    block.Counter("processed"),
		classified:   block.Counter("classified"),
		unclassified: block.Counter("unclassified"),
	}, nil
}

func (b *BarcodeClassifier) Name() string             { return "barcode" }
func (b *BarcodeClassifier) Workers() int             { return b.workers }
func (b *BarcodeClassifier) StatsBlock() *stats.Block { return b.block }

func (b *BarcodeClassifier) Process(_ context.Context, rec *read.Record) ([]*read.Record, error) {
	b.processed.Inc()
	if len(rec.Sequence) == 0 {
		return []*read.Record{rec}, nil
	}

	head := rec.Sequence
	if len(head) > barcodeSearchSpan {
		head = head[:barcodeSearchSpan]
	}
	tail := rec.Sequence
	if len(tail) > barcodeSearchSpan {
		tail = tail[len(tail)-barcodeSearchSpan:]
	}

	best, bestDist := -1, 0
	for i, barcode := range b.barcodes {
		dist, found := b.placement(barcode, head, tail)
		if !found {
			continue
		}
		if best == -1 || dist < bestDist {
			best, bestDist = i, dist
		}
	}

	if best == -1 {
		rec.Barcode = &read.BarcodeResult{Kit: b.kit}
		b.unclassified.Inc()
		return []*read.Record{rec}, nil
	}
	rec.Barcode = &read.BarcodeResult{
		Kit:        b.kit,
		Barcode:    fmt.Sprintf("%s-BC%d", b.kit, best+1),
		Score:      len(b.barcodes[best]) - bestDist,
		Classified: true,
	}
	b.classified.Inc()
	return []*read.Record{rec}, nil
}

// placement searches both read ends for the barcode and returns the
// best edit distance within tolerance. Single-end mode accepts either
// orientation at either end; both-ends mode demands the forward
// barcode at the front and its reverse complement at the rear.
func (b *BarcodeClassifier) placement(barcode, head, tail string) (int, bool) {
	limit := len(barcode) / 4
	front := infixDistance(barcode, head, limit)
	rear := infixDistance(sequtil.ReverseComplement(barcode), tail, limit)

	if b.bothEnds {
		if front > limit || rear > limit {
			return 0, false
		}
		return front + rear, true
	}

	best := front
	for _, d := range []int{
		rear,
		infixDistance(barcode, tail, limit),
		infixDistance(sequtil.ReverseComplement(barcode), head, limit),
	} {
		if d < best {
			best = d
		}
	}
	return best, best <= limit
}

func infixDistance(probe, window string, limit int) int {
	res, err := align.Align(probe, window, align.ModeInfix)
	if err != nil {
		return limit + 1
	}
	return res.Distance
}

var _ pipeline.Node = (*BarcodeClassifier)(nil)
