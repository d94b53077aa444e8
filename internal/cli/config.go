// Package cli wires the basecall command line: flag parsing, option
// validation and the driver that assembles and runs the pipeline.
package cli

import (
	"os"

	"github.com/pkg/errors"

	"github.com/basewind/basewind/pkg/basecall"
	"github.com/basewind/basewind/pkg/container"
	"github.com/basewind/basewind/pkg/nodes"
)

// Config is the validated invocation of the basecall command.
type Config struct {
	ModelArg string
	DataDir  string

	Device    string
	Output    string
	Threads   int
	BatchSize int
	ChunkSize int
	Overlap   int

	Reference  string
	ResumeFrom string
	ReadIDs    string

	BarcodeKit      string
	BarcodeBothEnds bool
	EstimatePolyA   bool
	NoTrim          bool
	EmitMoves       bool
	EmitFastq       bool
	EmitTSV         bool

	MinQScore     float64
	MinReadLength int
	MaxReads      int

	DumpStatsFile   string
	DumpStatsFilter string
	DrawPipeline    string
	Quiet           bool
	Verbose         bool
}

// Format returns the output format the flags select.
func (c Config) Format() container.Format {
	switch {
	case c.EmitFastq:
		return container.FormatFastq
	case c.EmitTSV:
		return container.FormatTSV
	default:
		return container.FormatNative
	}
}

// Validate rejects inconsistent flag combinations before any work
// starts. The model argument is parsed here so a typo fails fast.
func (c Config) Validate() error {
	if _, err := basecall.ParseSelection(c.ModelArg); err != nil {
		return err
	}
	info, err := os.Stat(c.DataDir)
	if err != nil {
		return errors.Wrapf(err, "data directory %s", c.DataDir)
	}
	if !info.IsDir() {
		return errors.Errorf("data path %s is not a directory", c.DataDir)
	}

	if c.EmitFastq && c.EmitTSV {
		return errors.New("--emit-fastq and --emit-tsv are mutually exclusive")
	}
	if c.EmitFastq && c.Reference != "" {
		return errors.New("--emit-fastq cannot carry alignments; drop --reference or the flag")
	}
	if c.ResumeFrom != "" && c.Format() != container.FormatNative {
		return errors.New("--resume-from requires the native output format")
	}
	if c.EstimatePolyA && c.NoTrim {
		return errors.New("--estimate-poly-a needs adapter trimming; drop --no-trim")
	}
	if c.BarcodeKit != "" && !nodes.KnownBarcodeKit(c.BarcodeKit) {
		return errors.Errorf("unknown barcode kit %q", c.BarcodeKit)
	}
	if c.BarcodeBothEnds && c.BarcodeKit == "" {
		return errors.New("--barcode-both-ends needs --kit-name")
	}
	if c.MinQScore < 0 {
		return errors.New("--min-qscore must not be negative")
	}
	if c.Overlap > 0 && c.ChunkSize > 0 && c.Overlap >= c.ChunkSize {
		return errors.New("--overlap must be smaller than --chunksize")
	}
	return nil
}
