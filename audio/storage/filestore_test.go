package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := New(filepath.Join(t.TempDir(), "audio_files"))
	require.NoError(t, err)
	return fs
}

func TestNewCreatesRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "audio")
	fs, err := New(dir)
	require.NoError(t, err)

	info, err := os.Stat(fs.Root())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.NoError(t, fs.CheckWritable())
}

func TestSaveAndReadBack(t *testing.T) {
	fs := newStore(t)
	content := []byte("ID3 fake mp3")

	path, written, err := fs.Save(context.Background(), bytes.NewReader(content), "en_abc.mp3", 1024)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), written)
	assert.Equal(t, filepath.Join(fs.Root(), "en_abc.mp3"), path)

	size, err := fs.Size("en_abc.mp3")
	require.NoError(t, err)
	assert.Equal(t, int64(12), size)
	assert.True(t, fs.Exists("en_abc.mp3"))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")

	f, info, err := fs.Open("en_abc.mp3")
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, int64(12), info.Size())
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestSaveRejectsOversizedStream(t *testing.T) {
	fs := newStore(t)

	_, _, err := fs.Save(context.Background(), strings.NewReader(strings.Repeat("x", 11)), "big.mp3", 10)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.False(t, fs.Exists("big.mp3"))

	entries, err := os.ReadDir(fs.Root())
	require.NoError(t, err)
	assert.Empty(t, entries, "partial files must be cleaned up")

	_, written, err := fs.Save(context.Background(), strings.NewReader(strings.Repeat("x", 10)), "exact.mp3", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), written)
}

func TestSaveStopsOnCancelledContext(t *testing.T) {
	fs := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := fs.Save(ctx, strings.NewReader("data"), "cancelled.mp3", 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, fs.Exists("cancelled.mp3"))
}

func TestPathTraversalRejected(t *testing.T) {
	fs := newStore(t)

	for _, name := range []string{"", "..", "../escape.mp3", "a/b.mp3", `a\b.mp3`, "x..y"} {
		_, _, err := fs.Save(context.Background(), strings.NewReader("x"), name, 0)
		assert.ErrorIs(t, err, ErrInvalidName, name)

		_, _, err = fs.Open(name)
		assert.ErrorIs(t, err, ErrInvalidName, name)

		_, err = fs.Remove(name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
		assert.False(t, fs.Exists(name))
	}
}

func TestRemove(t *testing.T) {
	fs := newStore(t)
	_, _, err := fs.Save(context.Background(), strings.NewReader("x"), "gone.wav", 0)
	require.NoError(t, err)

	removed, err := fs.Remove("gone.wav")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = fs.Remove("gone.wav")
	require.NoError(t, err)
	assert.False(t, removed)

	_, _, err = fs.Open("gone.wav")
	assert.ErrorIs(t, err, ErrNotExist)
	_, err = fs.Size("gone.wav")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestRenameStagedFile(t *testing.T) {
	fs := newStore(t)
	ctx := context.Background()

	_, _, err := fs.Save(ctx, strings.NewReader("staged"), ".upload_abc.mp3", 0)
	require.NoError(t, err)

	_, _, err = fs.Open(".upload_abc.mp3")
	assert.ErrorIs(t, err, ErrNotExist, "staging files are not served")

	require.NoError(t, fs.Rename(".upload_abc.mp3", "ar_abc.mp3"))
	assert.False(t, fs.Exists(".upload_abc.mp3"))

	f, _, err := fs.Open("ar_abc.mp3")
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "staged", string(data))

	_, _, err = fs.Save(ctx, strings.NewReader("other"), ".upload_def.mp3", 0)
	require.NoError(t, err)
	assert.Error(t, fs.Rename(".upload_def.mp3", "ar_abc.mp3"), "existing target is kept")
	assert.ErrorIs(t, fs.Rename(".upload_missing.mp3", "en_x.mp3"), ErrNotExist)
	assert.ErrorIs(t, fs.Rename(".upload_def.mp3", "../escape.mp3"), ErrInvalidName)
}
