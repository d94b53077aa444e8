// Package container implements the native output artifact: a framed
// binary file carrying a run-level header (model identity, invocation
// configuration, read groups) followed by length-prefixed records, each
// closed by a trailing marker. The marker is what lets a resumed run
// tell fully written records from a truncated tail.
package container

import (
	"encoding/json"

	"github.com/basewind/basewind/pkg/read"
)

// fileMagic opens the artifact; recordTrailer closes every record.
var fileMagic = [4]byte{'B', 'W', 'C', '1'}

const recordTrailer uint32 = 0x42575245 // "BWRE"

// InvocationConfig is the structured form of the options that produced
// an artifact. It is embedded in the header and deserialized directly
// on resume; resume never re-tokenizes a command line.
type InvocationConfig struct {
	Model         string   `json:"model"`
	Device        string   `json:"device"`
	BatchSize     int      `json:"batch_size"`
	ChunkSize     int      `json:"chunk_size"`
	Overlap       int      `json:"overlap"`
	MinQScore     float64  `json:"min_qscore"`
	MaxReads      int      `json:"max_reads"`
	Reference     string   `json:"reference,omitempty"`
	BarcodeKit    string   `json:"barcode_kit,omitempty"`
	EstimatePolyA bool     `json:"estimate_poly_a,omitempty"`
	NoTrim        bool     `json:"no_trim,omitempty"`
	EmitMoves     bool     `json:"emit_moves,omitempty"`
	Args          []string `json:"args,omitempty"`
}

// ReadGroup describes one run/model grouping in the header.
type ReadGroup struct {
	ID    string `json:"id"`
	Model string `json:"model"`
}

// Header is the run-level metadata written before the first record.
type Header struct {
	Model      string           `json:"model"`
	Invocation InvocationConfig `json:"invocation"`
	ReadGroups []ReadGroup      `json:"read_groups,omitempty"`
	References []string         `json:"references,omitempty"`
}

// Alignment mirrors the best-hit annotation in emitted form.
type Alignment struct {
	Target      string `json:"target"`
	MapQ        int    `json:"mapq"`
	QueryStart  int    `json:"query_start"`
	QueryEnd    int    `json:"query_end"`
	TargetStart int    `json:"target_start"`
	TargetEnd   int    `json:"target_end"`
}

// Record is the emitted form of one read.
type Record struct {
	ID        string     `json:"id"`
	Sequence  string     `json:"sequence"`
	Quality   string     `json:"quality"`
	Moves     []uint8    `json:"moves,omitempty"`
	Stride    int        `json:"stride,omitempty"`
	MeanQ     float64    `json:"mean_q"`
	Alignment *Alignment `json:"alignment,omitempty"`
	Barcode   string     `json:"barcode,omitempty"`
	PolyATail int        `json:"poly_a_tail,omitempty"`
}

// FromRead builds the emitted form of a pipeline record.
func FromRead(rec *read.Record, meanQ float64) Record {
	out := Record{
		ID:        rec.ID,
		Sequence:  rec.Sequence,
		Quality:   rec.Quality,
		MeanQ:     meanQ,
		PolyATail: rec.PolyATail,
	}
	if len(rec.Moves) > 0 {
		out.Moves = []uint8(rec.Moves)
		out.Stride = rec.Stride
	}
	if rec.Alignment != nil {
		out.Alignment = &Alignment{
			Target:      rec.Alignment.Target,
			MapQ:        rec.Alignment.MapQ,
			QueryStart:  rec.Alignment.QueryStart,
			QueryEnd:    rec.Alignment.QueryEnd,
			TargetStart: rec.Alignment.TargetStart,
			TargetEnd:   rec.Alignment.TargetEnd,
		}
	}
	if rec.Barcode != nil && rec.Barcode.Classified {
		out.Barcode = rec.Barcode.Barcode
	}
	return out
}

func (r Record) marshal() ([]byte, error) { return json.Marshal(r) }
