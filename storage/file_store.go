package storage

import (
	"bytes"
	"chat-relay/domain/mimetypes"
	"chat-relay/errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// sniffLength is the number of leading bytes handed to the MIME detector.
const sniffLength = 3072

const URLPrefix = "/uploads/"

type StoredFile struct {
	URL      string
	Name     string
	MimeType string
	Size     int64
}

// FileStore keeps uploaded attachments on the local disk.
type FileStore struct {
	dir     string
	maxSize int64
	log     *slog.Logger
	now     func() time.Time
}

func NewFileStore(dir string, maxSize int64, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir, maxSize: maxSize, log: log, now: time.Now}, nil
}

// Save sniffs the content type, refuses anything outside the allow-list or above
// the size limit, and writes the file under a unique name.
func (s *FileStore) Save(originalName string, r io.Reader) (StoredFile, error) {
	head := make([]byte, sniffLength)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return StoredFile{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return StoredFile{}, fmt.Errorf("%w: empty file", errors.ErrValidation)
	}

	detected := mimetype.Detect(head)
	mimeType, ok := allowed(detected)
	if !ok {
		return StoredFile{}, fmt.Errorf("%w: %s", errors.ErrUnsupportedFileType, detected.String())
	}

	fileName := fmt.Sprintf("%d-%s%s", s.now().UnixNano(), uuid.NewString(), extension(originalName, detected))
	path := filepath.Join(s.dir, fileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return StoredFile{}, fmt.Errorf("create %s: %w", fileName, err)
	}

	// One byte over the limit is enough to know the file is too large
	size, err := io.Copy(file, io.LimitReader(io.MultiReader(bytes.NewReader(head), r), s.maxSize+1))
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && size > s.maxSize {
		err = fmt.Errorf("%w: limit is %d bytes", errors.ErrFileTooLarge, s.maxSize)
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			s.log.Warn("Unable to remove rejected upload", "path", path, "error", rmErr)
		}
		return StoredFile{}, err
	}

	s.log.Debug("Upload stored", "file", fileName, "mime_type", mimeType, "size", size)
	return StoredFile{
		URL:      URLPrefix + fileName,
		Name:     displayName(originalName, fileName),
		MimeType: mimeType,
		Size:     size,
	}, nil
}

// Path resolves a stored file name to its location on disk.
// Names that could escape the upload directory are not found.
func (s *FileStore) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: file %q", errors.ErrNotFound, name)
	}
	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: file %q", errors.ErrNotFound, name)
	}
	return path, nil
}

// allowed returns the canonical allow-listed type matching the detected one.
// Parents are not considered: text/html descends from text/plain.
func allowed(detected *mimetype.MIME) (string, bool) {
	for _, candidate := range mimetypes.Attachable {
		if detected.Is(string(candidate)) {
			return string(candidate), true
		}
	}
	return "", false
}

func extension(originalName string, detected *mimetype.MIME) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if ext != "" && len(ext) <= 8 && !strings.ContainsAny(ext, `/\ `) {
		return ext
	}
	return detected.Extension()
}

func displayName(originalName, fallback string) string {
	name := filepath.Base(strings.ReplaceAll(originalName, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return fallback
	}
	return name
}
