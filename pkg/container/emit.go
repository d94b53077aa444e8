package container

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Format selects the on-disk shape of the output artifact.
type Format int

const (
	// FormatNative is the framed binary artifact; the only format a
	// later run can resume from.
	FormatNative Format = iota
	// FormatFastq emits four-line FASTQ records.
	FormatFastq
	// FormatTSV emits one tab-separated line per record.
	FormatTSV
)

func (f Format) String() string {
	switch f {
	case FormatFastq:
		return "fastq"
	case FormatTSV:
		return "tsv"
	default:
		return "native"
	}
}

// RecordWriter is the sink-facing surface shared by all formats.
type RecordWriter interface {
	WriteHeader(Header) error
	WriteRecord(Record) error
	Sync() error
	Close() error
}

// Open creates a writer for path in the requested format.
func Open(path string, format Format) (RecordWriter, error) {
	switch format {
	case FormatNative:
		return NewWriter(path)
	case FormatFastq, FormatTSV:
		return newTextWriter(path, format)
	default:
		return nil, errors.Errorf("unknown output format %d", format)
	}
}

type textWriter struct {
	file   *os.File
	bw     *bufio.Writer
	format Format
}

func newTextWriter(path string, format Format) (*textWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create %s", path)
	}
	return &textWriter{file: file, bw: bufio.NewWriter(file), format: format}, nil
}

func (w *textWriter) WriteHeader(h Header) error {
	if w.format != FormatTSV {
		return nil
	}
	_, err := fmt.Fprintf(w.bw, "#model=%s\n#id\tsequence\tquality\tmean_q\tbarcode\ttarget\n", h.Model)
	return errors.Wrap(err, "write header line")
}

func (w *textWriter) WriteRecord(r Record) error {
	var err error
	switch w.format {
	case FormatFastq:
		desc := fastqDescription(r)
		_, err = fmt.Fprintf(w.bw, "@%s%s\n%s\n+\n%s\n", r.ID, desc, r.Sequence, r.Quality)
	case FormatTSV:
		target := "*"
		if r.Alignment != nil {
			target = r.Alignment.Target
		}
		barcode := r.Barcode
		if barcode == "" {
			barcode = "unclassified"
		}
		_, err = fmt.Fprintf(w.bw, "%s\t%s\t%s\t%.2f\t%s\t%s\n",
			r.ID, r.Sequence, r.Quality, r.MeanQ, barcode, target)
	}
	return errors.Wrapf(err, "write record %s", r.ID)
}

// fastqDescription packs annotations into the FASTQ description field.
func fastqDescription(r Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, " qs:f:%.2f", r.MeanQ)
	if r.Barcode != "" {
		fmt.Fprintf(&sb, " BC:Z:%s", r.Barcode)
	}
	if r.PolyATail > 0 {
		fmt.Fprintf(&sb, " pt:i:%d", r.PolyATail)
	}
	return sb.String()
}

func (w *textWriter) Sync() error {
	if err := w.bw.Flush(); err != nil {
		return errors.Wrap(err, "flush")
	}
	return errors.Wrap(w.file.Sync(), "sync")
}

func (w *textWriter) Close() error {
	if err := w.bw.Flush(); err != nil {
		w.file.Close()
		return errors.Wrap(err, "flush")
	}
	return errors.Wrap(w.file.Close(), "close")
}
