package datasource_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basewind/basewind/internal/datasource"
	"github.com/basewind/basewind/pkg/read"
)

func writeSignalFile(t *testing.T, dir, name, id string, samples []float32) {
	t.Helper()
	doc := map[string]any{"sample_rate": 4000, "samples": samples}
	if id != "" {
		doc["id"] = id
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func collectReads(t *testing.T, l *datasource.Loader) []*read.Record {
	t.Helper()
	var recs []*read.Record
	require.NoError(t, l.Load(context.Background(), func(r *read.Record) error {
		recs = append(recs, r)
		return nil
	}))
	return recs
}

func TestLoadOrderedByName(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSignalFile(t, dir, "b.sig", "read-b", []float32{1, 2})
	writeSignalFile(t, dir, "a.sig", "read-a", []float32{3, 4})
	writeSignalFile(t, dir, "ignored.txt", "x", []float32{5})

	recs := collectReads(t, datasource.NewLoader(dir, nil, 0, zerolog.Nop()))
	require.Len(t, recs, 2)
	assert.Equal(t, "read-a", recs[0].ID)
	assert.Equal(t, "read-b", recs[1].ID)
	assert.Equal(t, []float32{3, 4}, recs[0].Signal)
	assert.Equal(t, 4000, recs[0].SampleRate)
}

func TestLoadSkipsAndCaps(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, id := range []string{"r1", "r2", "r3", "r4"} {
		writeSignalFile(t, dir, id+".sig", id, []float32{1})
	}

	skip := map[string]struct{}{"r2": {}}
	recs := collectReads(t, datasource.NewLoader(dir, skip, 2, zerolog.Nop()))
	require.Len(t, recs, 2)
	assert.Equal(t, "r1", recs[0].ID)
	assert.Equal(t, "r3", recs[1].ID)

	n, err := datasource.CountReads(dir, skip, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLoadEmptyDirectoryFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := datasource.NewLoader(dir, nil, 0, zerolog.Nop())
	err := l.Load(context.Background(), func(*read.Record) error { return nil })
	require.Error(t, err)

	assert.False(t, datasource.IsDataPresent(dir))
	_, err = datasource.CountReads(dir, nil, 0)
	require.Error(t, err)
}

func TestLoadSkipsMalformedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSignalFile(t, dir, "good.sig", "good", []float32{1})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.sig"), []byte("not json"), 0o644))

	recs := collectReads(t, datasource.NewLoader(dir, nil, 0, zerolog.Nop()))
	require.Len(t, recs, 1)
	assert.Equal(t, "good", recs[0].ID)
}

func TestLoadGeneratesStableMissingIds(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSignalFile(t, dir, "anon.sig", "", []float32{1, 2})

	recs := collectReads(t, datasource.NewLoader(dir, nil, 0, zerolog.Nop()))
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0].ID, "anon-")
	assert.Greater(t, len(recs[0].ID), len("anon-"))

	// The generated id must repeat across runs, or a resume could never
	// recognise the read as already written.
	again := collectReads(t, datasource.NewLoader(dir, nil, 0, zerolog.Nop()))
	require.Len(t, again, 1)
	assert.Equal(t, recs[0].ID, again[0].ID)

	skipped := datasource.NewLoader(dir, map[string]struct{}{recs[0].ID: {}}, 0, zerolog.Nop())
	var leaked []string
	require.NoError(t, skipped.Load(context.Background(), func(r *read.Record) error {
		leaked = append(leaked, r.ID)
		return nil
	}))
	assert.Empty(t, leaked)
}
