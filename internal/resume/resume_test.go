package resume_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basewind/basewind/internal/resume"
	"github.com/basewind/basewind/pkg/container"
)

func writePrior(t *testing.T, path, model string, ids []string) {
	t.Helper()
	w, err := container.NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(container.Header{
		Model:      model,
		Invocation: container.InvocationConfig{Model: model, Device: "cpu"},
	}))
	for _, id := range ids {
		require.NoError(t, w.WriteRecord(container.Record{ID: id, Sequence: "ACGT", Quality: "IIII"}))
	}
	require.NoError(t, w.Close())
}

func TestRecoveryLadder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prior.bwc")
	writePrior(t, path, "hac", []string{"r1", "r2"})

	l := resume.NewLoader(path, zerolog.Nop())
	assert.Equal(t, resume.StateIdle, l.State())

	require.NoError(t, l.Inspect())
	assert.Equal(t, resume.StateValidating, l.State())

	require.NoError(t, l.Validate("hac"))
	assert.Equal(t, resume.StateReady, l.State())

	ids := l.ProcessedIDs()
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "r1")

	out := filepath.Join(t.TempDir(), "next.bwc")
	w, err := container.NewWriter(out)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(l.Header()))
	n, err := l.Replay(w)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, w.Close())

	res, err := container.Scan(out)
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
}

func TestInspectDropsTornTail(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prior.bwc")
	writePrior(t, path, "hac", []string{"r1", "r2", "r3"})
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-5))

	l := resume.NewLoader(path, zerolog.Nop())
	require.NoError(t, l.Inspect())
	require.NoError(t, l.Validate("hac"))
	assert.Len(t, l.ProcessedIDs(), 2)
}

func TestValidateRejectsModelMismatch(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prior.bwc")
	writePrior(t, path, "hac@v4.2.0", []string{"r1"})

	l := resume.NewLoader(path, zerolog.Nop())
	require.NoError(t, l.Inspect())
	err := l.Validate("sup@v4.2.0")
	require.Error(t, err)
	assert.Equal(t, resume.StateRejected, l.State())

	_, err = l.Replay(nil)
	require.Error(t, err, "a rejected recovery must not replay")
}

func TestInspectRejectsUnreadableArtifact(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prior.bwc")
	require.NoError(t, os.WriteFile(path, []byte("not an artifact"), 0o644))

	l := resume.NewLoader(path, zerolog.Nop())
	require.Error(t, l.Inspect())
	assert.Equal(t, resume.StateRejected, l.State())
}

func TestLadderEnforcesOrder(t *testing.T) {
	t.Parallel()

	l := resume.NewLoader("unused", zerolog.Nop())
	require.Error(t, l.Validate("hac"), "validate before inspect")
	_, err := l.Replay(nil)
	require.Error(t, err)
}
