package container

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
)

const maxFrameSize = 64 << 20

// Writer appends framed records to an artifact on disk.
//
// Layout: magic, u32 header length, header JSON, then per record a u32
// payload length, payload JSON and the trailer word. A record without
// its trailer is treated as never written.
type Writer struct {
	file *os.File
	bw   *bufio.Writer
}

// NewWriter truncates path and writes nothing; the header goes out on
// the first WriteHeader call.
func NewWriter(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create %s", path)
	}
	return &Writer{file: file, bw: bufio.NewWriter(file)}, nil
}

// WriteHeader writes the magic and run-level metadata. It must be
// called exactly once, before any record.
func (w *Writer) WriteHeader(h Header) error {
	payload, err := json.Marshal(h)
	if err != nil {
		return errors.Wrap(err, "marshal header")
	}
	if _, err := w.bw.Write(fileMagic[:]); err != nil {
		return errors.Wrap(err, "write magic")
	}
	if err := binary.Write(w.bw, binary.LittleEndian, uint32(len(payload))); err != nil {
		return errors.Wrap(err, "write header length")
	}
	_, err = w.bw.Write(payload)
	return errors.Wrap(err, "write header")
}

// WriteRecord frames one record. The trailer goes out last, so a crash
// mid-record leaves a tail the scanner will discard.
func (w *Writer) WriteRecord(r Record) error {
	payload, err := r.marshal()
	if err != nil {
		return errors.Wrapf(err, "marshal record %s", r.ID)
	}
	if err := binary.Write(w.bw, binary.LittleEndian, uint32(len(payload))); err != nil {
		return errors.Wrap(err, "write record length")
	}
	if _, err := w.bw.Write(payload); err != nil {
		return errors.Wrap(err, "write record")
	}
	return errors.Wrap(binary.Write(w.bw, binary.LittleEndian, recordTrailer), "write record trailer")
}

// Sync flushes buffered frames to the operating system.
func (w *Writer) Sync() error {
	if err := w.bw.Flush(); err != nil {
		return errors.Wrap(err, "flush")
	}
	return errors.Wrap(w.file.Sync(), "sync")
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.bw.Flush(); err != nil {
		w.file.Close()
		return errors.Wrap(err, "flush")
	}
	return errors.Wrap(w.file.Close(), "close")
}

// ScanResult is everything recoverable from an artifact.
type ScanResult struct {
	Header Header
	// Records holds every record whose trailer was present, in file
	// order.
	Records []Record
	// Truncated reports whether the file ended inside a record frame.
	Truncated bool
}

// Scan reads an artifact back, keeping only complete records. A file
// cut off mid-record yields the records before the cut and sets
// Truncated; a file cut off inside the header is an error.
func Scan(path string) (*ScanResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %s", path)
	}
	defer file.Close()

	br := bufio.NewReader(file)
	res := &ScanResult{}

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, errors.Wrapf(err, "%s: read magic", path)
	}
	if magic != fileMagic {
		return nil, errors.Errorf("%s: not a basewind artifact", path)
	}
	headerPayload, err := readFrame(br)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: read header", path)
	}
	if err := json.Unmarshal(headerPayload, &res.Header); err != nil {
		return nil, errors.Wrapf(err, "%s: decode header", path)
	}

	for {
		payload, err := readFrame(br)
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			res.Truncated = true
			return res, nil
		}
		var trailer uint32
		if err := binary.Read(br, binary.LittleEndian, &trailer); err != nil || trailer != recordTrailer {
			res.Truncated = true
			return res, nil
		}
		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			res.Truncated = true
			return res, nil
		}
		res.Records = append(res.Records, rec)
	}
}

// readFrame reads one u32-prefixed payload. io.EOF means a clean end
// before the length word; any other failure means a torn frame.
func readFrame(br *bufio.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(br, binary.LittleEndian, &length); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "read frame length")
	}
	if length > maxFrameSize {
		return nil, errors.Errorf("frame length %d exceeds limit", length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(br, payload); err != nil {
		return nil, errors.Wrap(err, "read frame payload")
	}
	return payload, nil
}
