package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/nebulaec/internal/storage/shard"
	"github.com/piwi3910/nebulaec/internal/testutil"
)

// run executes the CLI with args against dataDir and returns stdout.
func run(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd("test")
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--data", dataDir}, args...))

	err := cmd.Execute()

	return out.String(), err
}

func writeInput(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "input.bin")
	require.NoError(t, os.WriteFile(path, data, 0600))

	return path
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	dataDir := t.TempDir()
	data := testutil.RandomBytes(t, 10_000)
	input := writeInput(t, data)

	out, err := run(t, dataDir, "-k", "4", "-m", "2", "--segment-size", "4096", "encode", input, "--name", "blob")
	require.NoError(t, err)
	assert.Contains(t, out, "Encoded")
	assert.Contains(t, out, "Segments:    3")

	store, err := shard.NewStore(dataDir)
	require.NoError(t, err)

	// Lose two fragments of the first segment.
	require.NoError(t, os.Remove(store.FragmentPath("blob", 0, 1)))
	require.NoError(t, os.Remove(store.FragmentPath("blob", 0, 4)))

	output := filepath.Join(t.TempDir(), "out.bin")
	_, err = run(t, dataDir, "decode", "blob", output)
	require.NoError(t, err)

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestEncodeWithCompression(t *testing.T) {
	dataDir := t.TempDir()
	data := bytes.Repeat([]byte("erasure coded payload "), 2000)
	input := writeInput(t, data)

	out, err := run(t, dataDir, "--compression", "zstd", "encode", input, "--name", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "Compressed:")

	store, err := shard.NewStore(dataDir)
	require.NoError(t, err)

	m, err := store.ReadManifest("text")
	require.NoError(t, err)
	assert.Equal(t, "zstd", m.Compression)
	assert.Less(t, m.StoredSize, m.Size)

	out, err = run(t, dataDir, "decode", "text", "-")
	require.NoError(t, err)
	assert.Equal(t, string(data), out)
}

func TestReconstructCmd(t *testing.T) {
	dataDir := t.TempDir()
	input := writeInput(t, testutil.RandomBytes(t, 5000))

	_, err := run(t, dataDir, "--preset", "minimal", "--segment-size", "2048", "encode", input, "--name", "obj")
	require.NoError(t, err)

	store, err := shard.NewStore(dataDir)
	require.NoError(t, err)

	original, err := os.ReadFile(store.FragmentPath("obj", 1, 4))
	require.NoError(t, err)

	require.NoError(t, os.Remove(store.FragmentPath("obj", 1, 4)))
	require.NoError(t, os.Remove(store.FragmentPath("obj", 2, 0)))

	out, err := run(t, dataDir, "needed", "obj")
	require.NoError(t, err)
	assert.Contains(t, out, "[4]")
	assert.Contains(t, out, "[0]")

	out, err = run(t, dataDir, "reconstruct", "obj")
	require.NoError(t, err)
	assert.Contains(t, out, "Reconstructed fragments [0 4]")

	rebuilt, err := os.ReadFile(store.FragmentPath("obj", 1, 4))
	require.NoError(t, err)
	assert.Equal(t, original, rebuilt)
	assert.True(t, store.FragmentExists(t.Context(), "obj", 2, 0))

	out, err = run(t, dataDir, "reconstruct", "obj")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to reconstruct")
}

func TestVerifyCmd(t *testing.T) {
	dataDir := t.TempDir()
	input := writeInput(t, testutil.RandomBytes(t, 3000))

	_, err := run(t, dataDir, "encode", input, "--name", "obj")
	require.NoError(t, err)

	out, err := run(t, dataDir, "verify", "obj")
	require.NoError(t, err)
	assert.Contains(t, out, "ok")

	// Swap in a fragment from a different stripe.
	other := writeInput(t, testutil.RandomBytes(t, 3000))
	_, err = run(t, dataDir, "encode", other, "--name", "other")
	require.NoError(t, err)

	store, err := shard.NewStore(dataDir)
	require.NoError(t, err)

	foreign, err := os.ReadFile(store.FragmentPath("other", 0, 2))
	require.NoError(t, err)
	_, err = store.WriteFragment(t.Context(), "obj", 0, 2, foreign)
	require.NoError(t, err)

	out, err = run(t, dataDir, "verify", "obj")
	assert.ErrorIs(t, err, ErrVerifyFailed)
	assert.Contains(t, out, "FAILED")
}

func TestInfoCmd(t *testing.T) {
	out, err := run(t, t.TempDir(), "-k", "4", "-m", "2", "--segment-size", "1000", "info", "--size", "2500")
	require.NoError(t, err)
	assert.Contains(t, out, "Segments:")
	assert.Contains(t, out, "k=4, m=2")
	assert.Contains(t, out, "50.0%")

	_, err = run(t, t.TempDir(), "info", "--size", "lots")
	assert.Error(t, err)
}

func TestListDeleteCmd(t *testing.T) {
	dataDir := t.TempDir()
	input := writeInput(t, testutil.RandomBytes(t, 100))

	_, err := run(t, dataDir, "--driver", "striping", "-k", "3", "encode", input, "--name", "small")
	require.NoError(t, err)

	out, err := run(t, dataDir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "small")
	assert.Contains(t, out, "striping 3+0")

	_, err = run(t, dataDir, "delete", "small")
	require.NoError(t, err)

	_, err = run(t, dataDir, "decode", "small", "-")
	assert.ErrorIs(t, err, shard.ErrObjectNotFound)
}

func TestInvalidConfig(t *testing.T) {
	_, err := run(t, t.TempDir(), "--driver", "raid5", "list")
	assert.Error(t, err)
}
