// Package datasource loads raw signal reads from a directory of .sig
// files, one JSON document per read.
package datasource

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/basewind/basewind/pkg/read"
)

const signalExt = ".sig"

// signalFile is the on-disk shape of one read.
type signalFile struct {
	ID         string    `json:"id"`
	SampleRate int       `json:"sample_rate"`
	Samples    []float32 `json:"samples"`
}

// IsDataPresent reports whether dir holds at least one signal file.
func IsDataPresent(dir string) bool {
	names, err := listSignalFiles(dir)
	return err == nil && len(names) > 0
}

// CountReads returns how many reads Load will emit given the same
// skip set and cap. The caller sizes progress reporting with it.
func CountReads(dir string, skip map[string]struct{}, maxReads int) (int, error) {
	names, err := listSignalFiles(dir)
	if err != nil {
		return 0, err
	}
	if len(names) == 0 {
		return 0, errors.Errorf("no signal data found in %s", dir)
	}
	n := 0
	for _, name := range names {
		sf, err := parseSignalFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if _, done := skip[readID(sf, name)]; done {
			continue
		}
		n++
		if maxReads > 0 && n >= maxReads {
			break
		}
	}
	return n, nil
}

// Loader streams a directory's reads in deterministic name order.
type Loader struct {
	dir      string
	skip     map[string]struct{}
	maxReads int
	log      zerolog.Logger
}

// NewLoader builds a loader. Reads whose id is in skip are not
// emitted; maxReads caps emission when positive.
func NewLoader(dir string, skip map[string]struct{}, maxReads int, log zerolog.Logger) *Loader {
	return &Loader{dir: dir, skip: skip, maxReads: maxReads, log: log}
}

// Load parses every signal file and hands the resulting records to
// emit, stopping early on context cancellation, an emit error or the
// read cap. Malformed files are logged and skipped. An empty
// directory is an error.
func (l *Loader) Load(ctx context.Context, emit func(*read.Record) error) error {
	names, err := listSignalFiles(l.dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return errors.Errorf("no signal data found in %s", l.dir)
	}

	emitted := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "load")
		}
		if l.maxReads > 0 && emitted >= l.maxReads {
			return nil
		}
		path := filepath.Join(l.dir, name)
		sf, err := parseSignalFile(path)
		if err != nil {
			l.log.Warn().Err(err).Str("file", name).Msg("skipping unreadable signal file")
			continue
		}
		id := readID(sf, name)
		if _, done := l.skip[id]; done {
			continue
		}
		rec := &read.Record{
			ID:         id,
			Signal:     sf.Samples,
			SampleRate: sf.SampleRate,
		}
		if err := emit(rec); err != nil {
			return err
		}
		emitted++
	}
	return nil
}

// readID returns the file's declared id, or a name-seeded uuid when
// the file carries none. The fallback must be stable across runs, or
// a resumed run could never match the id against its skip set and
// would write the read twice.
func readID(sf *signalFile, name string) string {
	if sf.ID != "" {
		return sf.ID
	}
	stem := strings.TrimSuffix(name, signalExt)
	return stem + "-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte("basewind.sig/"+name)).String()
}

func listSignalFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read data directory %s", dir)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), signalExt) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func parseSignalFile(path string) (*signalFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var sf signalFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if len(sf.Samples) == 0 {
		return nil, errors.Errorf("%s holds no samples", path)
	}
	return &sf, nil
}
