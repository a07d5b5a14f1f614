package storage

import (
	"bytes"
	"chat-relay/errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newTestStore(t *testing.T, maxSize int64) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "uploads"), maxSize, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return store
}

func TestFileStore_Save(t *testing.T) {
	t.Run("should store an allowed image under a unique name", func(t *testing.T) {
		req := require.New(t)
		store := newTestStore(t, 1024)
		content := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 64)...)

		first, err := store.Save("holiday.PNG", bytes.NewReader(content))
		req.NoError(err)
		second, err := store.Save("holiday.PNG", bytes.NewReader(content))
		req.NoError(err)

		req.Equal("image/png", first.MimeType)
		req.Equal("holiday.PNG", first.Name)
		req.Equal(int64(len(content)), first.Size)
		req.True(strings.HasPrefix(first.URL, URLPrefix))
		req.True(strings.HasSuffix(first.URL, ".png"))
		req.NotEqual(first.URL, second.URL)

		path, err := store.Path(strings.TrimPrefix(first.URL, URLPrefix))
		req.NoError(err)
		stored, err := os.ReadFile(path)
		req.NoError(err)
		req.Equal(content, stored)
	})

	t.Run("should accept plain text", func(t *testing.T) {
		req := require.New(t)
		store := newTestStore(t, 1024)

		file, err := store.Save("notes.txt", strings.NewReader("meeting at noon\n"))

		req.NoError(err)
		req.Equal("text/plain", file.MimeType)
	})

	t.Run("should refuse a type outside the allow-list", func(t *testing.T) {
		req := require.New(t)
		store := newTestStore(t, 1024)

		_, err := store.Save("page.txt", strings.NewReader("<html><body><script>alert(1)</script></body></html>"))

		req.ErrorIs(err, errors.ErrUnsupportedFileType)
	})

	t.Run("should refuse a file above the size limit and leave nothing behind", func(t *testing.T) {
		req := require.New(t)
		store := newTestStore(t, 100)

		_, err := store.Save("big.txt", strings.NewReader(strings.Repeat("a", 101)))

		req.ErrorIs(err, errors.ErrFileTooLarge)
		entries, err := os.ReadDir(store.dir)
		req.NoError(err)
		req.Empty(entries)
	})

	t.Run("should refuse an empty file", func(t *testing.T) {
		req := require.New(t)
		store := newTestStore(t, 100)

		_, err := store.Save("empty.txt", strings.NewReader(""))

		req.ErrorIs(err, errors.ErrValidation)
	})
}

func TestFileStore_Path_Stays_In_Upload_Dir(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t, 100)

	for _, name := range []string{"", "../secret", "a/b.txt", ".hidden", "missing.txt"} {
		_, err := store.Path(name)
		req.ErrorIs(err, errors.ErrNotFound, name)
	}
}
