package cli_test

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basewind/basewind/internal/cli"
	"github.com/basewind/basewind/pkg/container"
)

func writeSignalFile(t *testing.T, dir, id string, samples []float32) {
	t.Helper()
	doc := map[string]any{"id": id, "sample_rate": 4000, "samples": samples}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".sig"), data, 0o644))
}

// wavySignal yields a raw trace whose scaled form steps through
// distinct levels, so the decoder always produces a call.
func wavySignal(blocks, stride int, seed int64) []float32 {
	rng := rand.New(rand.NewSource(seed))
	signal := make([]float32, 0, blocks*stride)
	levels := []float32{0, 10, 20, 30}
	for b := 0; b < blocks; b++ {
		level := levels[rng.Intn(len(levels))]
		for i := 0; i < stride; i++ {
			signal = append(signal, level)
		}
	}
	return signal
}

func dataDir(t *testing.T, ids []string) string {
	t.Helper()
	dir := t.TempDir()
	for i, id := range ids {
		writeSignalFile(t, dir, id, wavySignal(120, 5, int64(i+1)))
	}
	return dir
}

func baseConfig(dataDir, output string) cli.Config {
	return cli.Config{
		ModelArg: "hac",
		DataDir:  dataDir,
		Device:   "cpu",
		Output:   output,
		Threads:  4,
		Quiet:    true,
	}
}

func TestValidateRejectsConflicts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cases := []struct {
		name   string
		mutate func(*cli.Config)
	}{
		{"bad model", func(c *cli.Config) { c.ModelArg = "ultra" }},
		{"missing data dir", func(c *cli.Config) { c.DataDir = filepath.Join(dir, "nope") }},
		{"both emit flags", func(c *cli.Config) { c.EmitFastq = true; c.EmitTSV = true }},
		{"fastq with reference", func(c *cli.Config) { c.EmitFastq = true; c.Reference = "ref.fa" }},
		{"resume with fastq", func(c *cli.Config) { c.EmitFastq = true; c.ResumeFrom = "prior.bwc" }},
		{"poly-a without trimming", func(c *cli.Config) { c.EstimatePolyA = true; c.NoTrim = true }},
		{"unknown kit", func(c *cli.Config) { c.BarcodeKit = "NO-SUCH-KIT" }},
		{"negative qscore", func(c *cli.Config) { c.MinQScore = -1 }},
		{"overlap too large", func(c *cli.Config) { c.ChunkSize = 100; c.Overlap = 100 }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := baseConfig(dir, "out.bwc")
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	good := baseConfig(dir, "out.bwc")
	assert.NoError(t, good.Validate())
}

func TestRunProducesArtifact(t *testing.T) {
	t.Parallel()

	dir := dataDir(t, []string{"r1", "r2", "r3", "r4"})
	out := filepath.Join(t.TempDir(), "calls.bwc")
	cfg := baseConfig(dir, out)

	require.NoError(t, cli.Run(context.Background(), cfg, zerolog.Nop()))

	res, err := container.Scan(out)
	require.NoError(t, err)
	assert.False(t, res.Truncated)
	require.Len(t, res.Records, 4)
	assert.Equal(t, "hac", res.Header.Model)
	assert.Equal(t, "cpu", res.Header.Invocation.Device)
	for _, rec := range res.Records {
		assert.NotEmpty(t, rec.Sequence)
		assert.Equal(t, len(rec.Sequence), len(rec.Quality))
	}
}

func TestRunTruncateAndResume(t *testing.T) {
	t.Parallel()

	ids := []string{"r1", "r2", "r3", "r4"}
	dir := dataDir(t, ids)
	out := filepath.Join(t.TempDir(), "calls.bwc")

	require.NoError(t, cli.Run(context.Background(), baseConfig(dir, out), zerolog.Nop()))

	// Simulate a crash mid-record: tear the last frame.
	info, err := os.Stat(out)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(out, info.Size()-7))

	torn, err := container.Scan(out)
	require.NoError(t, err)
	require.True(t, torn.Truncated)
	require.Len(t, torn.Records, 3)

	resumed := baseConfig(dir, out)
	resumed.ResumeFrom = out
	require.NoError(t, cli.Run(context.Background(), resumed, zerolog.Nop()))

	res, err := container.Scan(out)
	require.NoError(t, err)
	assert.False(t, res.Truncated)
	require.Len(t, res.Records, 4, "exactly one record per read, no gaps")

	seen := map[string]int{}
	for _, rec := range res.Records {
		seen[rec.ID]++
	}
	for _, id := range ids {
		assert.Equal(t, 1, seen[id], "read %s", id)
	}
}

func TestRunResumeIsIdempotent(t *testing.T) {
	t.Parallel()

	dir := dataDir(t, []string{"r1", "r2"})
	out := filepath.Join(t.TempDir(), "calls.bwc")
	require.NoError(t, cli.Run(context.Background(), baseConfig(dir, out), zerolog.Nop()))

	// Resuming a complete artifact must change nothing.
	resumed := baseConfig(dir, out)
	resumed.ResumeFrom = out
	require.NoError(t, cli.Run(context.Background(), resumed, zerolog.Nop()))

	res, err := container.Scan(out)
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
}

func TestRunResumeRejectsModelMismatch(t *testing.T) {
	t.Parallel()

	dir := dataDir(t, []string{"r1"})
	out := filepath.Join(t.TempDir(), "calls.bwc")
	require.NoError(t, cli.Run(context.Background(), baseConfig(dir, out), zerolog.Nop()))

	resumed := baseConfig(dir, out)
	resumed.ModelArg = "sup"
	resumed.ResumeFrom = out
	require.Error(t, cli.Run(context.Background(), resumed, zerolog.Nop()))
}

func TestRunMaxReads(t *testing.T) {
	t.Parallel()

	dir := dataDir(t, []string{"r1", "r2", "r3"})
	out := filepath.Join(t.TempDir(), "calls.bwc")
	cfg := baseConfig(dir, out)
	cfg.MaxReads = 2

	require.NoError(t, cli.Run(context.Background(), cfg, zerolog.Nop()))

	res, err := container.Scan(out)
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
}

func TestRunReadIDsRestricts(t *testing.T) {
	t.Parallel()

	dir := dataDir(t, []string{"r1", "r2", "r3"})
	idFile := filepath.Join(t.TempDir(), "ids.txt")
	require.NoError(t, os.WriteFile(idFile, []byte("r2\n"), 0o644))

	out := filepath.Join(t.TempDir(), "calls.bwc")
	cfg := baseConfig(dir, out)
	cfg.ReadIDs = idFile

	require.NoError(t, cli.Run(context.Background(), cfg, zerolog.Nop()))

	res, err := container.Scan(out)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "r2", res.Records[0].ID)
}

func TestRootCommandWiring(t *testing.T) {
	t.Parallel()

	root := cli.NewRootCommand()
	cmd, _, err := root.Find([]string{"basecall"})
	require.NoError(t, err)
	assert.Equal(t, "basecall MODEL DATA", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("resume-from"))
	assert.NotNil(t, cmd.Flags().Lookup("dump-stats-file"))
}
