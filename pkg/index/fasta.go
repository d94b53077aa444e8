package index

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// FastaRecord is one named sequence from a FASTA file.
type FastaRecord struct {
	ID  string
	Seq string
}

// ReadFasta parses all records from r. Sequence lines are concatenated
// and upper-cased; the record id is the header token before the first
// whitespace.
func ReadFasta(r io.Reader) ([]FastaRecord, error) {
	var (
		records []FastaRecord
		id      string
		seq     strings.Builder
	)
	flush := func() {
		if id != "" {
			records = append(records, FastaRecord{ID: id, Seq: seq.String()})
		}
		seq.Reset()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<24)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line[0] == '>' {
			flush()
			fields := strings.Fields(line[1:])
			if len(fields) == 0 {
				return nil, errors.New("fasta: header with no id")
			}
			id = fields[0]
			continue
		}
		if id == "" {
			return nil, errors.New("fasta: sequence before first header")
		}
		seq.WriteString(strings.ToUpper(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "fasta: scan")
	}
	flush()
	if len(records) == 0 {
		return nil, errors.New("fasta: no records")
	}
	return records, nil
}

// ReadFastaFile reads all records from the file at path.
func ReadFastaFile(path string) ([]FastaRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "fasta: open %s", path)
	}
	defer f.Close()
	return ReadFasta(f)
}
