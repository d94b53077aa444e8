// Package index implements a k-mer seed index over a set of target
// sequences with seed-and-extend mapping. It backs both the optional
// alignment stage and the overlap detection step of move-table
// realignment.
package index

import (
	"sort"

	"github.com/pkg/errors"
)

const (
	// DefaultK is the seed length used when the caller passes 0.
	DefaultK = 11
	// maxExtendErrors bounds mismatches tolerated while extending a
	// seed along its diagonal.
	maxExtendErrors = 8
	maxMapQ         = 60
)

type seedPos struct {
	target int
	pos    int
}

// Hit is the best placement of a query on one of the indexed targets.
// Coordinates are half-open in both systems.
type Hit struct {
	Target      string
	Score       int
	MapQ        int
	QueryStart  int
	QueryEnd    int
	TargetStart int
	TargetEnd   int
}

// Index is immutable after construction and safe for concurrent use.
type Index struct {
	k       int
	names   []string
	seqs    []string
	seedMap map[string][]seedPos
}

// Build indexes the given records with seed length k (0 selects
// DefaultK). Targets shorter than k are rejected.
func Build(records []FastaRecord, k int) (*Index, error) {
	if k <= 0 {
		k = DefaultK
	}
	if len(records) == 0 {
		return nil, errors.New("index: no target sequences")
	}
	ix := &Index{
		k:       k,
		seedMap: make(map[string][]seedPos),
	}
	for ti, rec := range records {
		if len(rec.Seq) < k {
			return nil, errors.Errorf("index: target %s shorter than seed length %d", rec.ID, k)
		}
		ix.names = append(ix.names, rec.ID)
		ix.seqs = append(ix.seqs, rec.Seq)
		for i := 0; i+k <= len(rec.Seq); i++ {
			kmer := rec.Seq[i : i+k]
			ix.seedMap[kmer] = append(ix.seedMap[kmer], seedPos{target: ti, pos: i})
		}
	}
	return ix, nil
}

// BuildFromSequence indexes a single anonymous sequence; used by the
// realigner to locate a revised call on the original one.
func BuildFromSequence(seq string, k int) (*Index, error) {
	return Build([]FastaRecord{{ID: "seq", Seq: seq}}, k)
}

type anchor struct {
	target     int
	score      int
	queryStart int
	queryEnd   int
	tgtStart   int
	tgtEnd     int
}

// Map finds the single best-scoring placement of query on the indexed
// targets. The second return is false when no seed hit survives.
func (ix *Index) Map(query string) (Hit, bool) {
	if len(query) < ix.k {
		return Hit{}, false
	}

	// One extended anchor per (target, diagonal), keeping the best.
	best := make(map[[2]int]anchor)
	for qi := 0; qi+ix.k <= len(query); qi++ {
		for _, sp := range ix.seedMap[query[qi:qi+ix.k]] {
			diag := sp.pos - qi
			key := [2]int{sp.target, diag}
			if _, seen := best[key]; seen {
				continue
			}
			best[key] = ix.extend(query, sp.target, qi, sp.pos)
		}
	}
	if len(best) == 0 {
		return Hit{}, false
	}

	anchors := make([]anchor, 0, len(best))
	for _, a := range best {
		anchors = append(anchors, a)
	}
	sort.Slice(anchors, func(i, j int) bool {
		if anchors[i].score != anchors[j].score {
			return anchors[i].score > anchors[j].score
		}
		if anchors[i].target != anchors[j].target {
			return anchors[i].target < anchors[j].target
		}
		return anchors[i].tgtStart < anchors[j].tgtStart
	})

	top := anchors[0]
	mapq := maxMapQ
	if len(anchors) > 1 && top.score > 0 {
		// Confidence falls with the score gap to the runner-up.
		second := anchors[1].score
		if second < 0 {
			second = 0
		}
		mapq = maxMapQ * (top.score - second) / top.score
	}
	return Hit{
		Target:      ix.names[top.target],
		Score:       top.score,
		MapQ:        mapq,
		QueryStart:  top.queryStart,
		QueryEnd:    top.queryEnd,
		TargetStart: top.tgtStart,
		TargetEnd:   top.tgtEnd,
	}, true
}

// extend grows a seed along its diagonal in both directions, tolerating
// a bounded number of mismatches and scoring match +1, mismatch -1.
func (ix *Index) extend(query string, target, qPos, tPos int) anchor {
	seq := ix.seqs[target]
	score := ix.k
	qEnd, tEnd := qPos+ix.k, tPos+ix.k
	errs := 0
	for qEnd < len(query) && tEnd < len(seq) && errs < maxExtendErrors {
		if query[qEnd] == seq[tEnd] {
			score++
		} else {
			score--
			errs++
		}
		qEnd++
		tEnd++
	}
	qStart, tStart := qPos, tPos
	errs = 0
	for qStart > 0 && tStart > 0 && errs < maxExtendErrors {
		if query[qStart-1] == seq[tStart-1] {
			score++
		} else {
			score--
			errs++
		}
		qStart--
		tStart--
	}
	return anchor{
		target:     target,
		score:      score,
		queryStart: qStart,
		queryEnd:   qEnd,
		tgtStart:   tStart,
		tgtEnd:     tEnd,
	}
}

// Names returns the indexed target names in build order, for run-level
// header metadata.
func (ix *Index) Names() []string {
	return append([]string(nil), ix.names...)
}

// TargetLen returns the length of the named target, or -1 if unknown.
func (ix *Index) TargetLen(name string) int {
	for i, n := range ix.names {
		if n == name {
			return len(ix.seqs[i])
		}
	}
	return -1
}
