// Package storage manages the directory holding the ebook files.
//
// Records in the library document only reference files by name
// ("ebooks://<fileName>"); this package owns the bytes. Nothing here takes
// the document lock, so the services call it before or after a critical
// section, never inside one.
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/model"
)

// DefaultExtension is used when the uploaded file has none.
const DefaultExtension = ".pdf"

// tempPattern names in-flight copies inside the base directory.
const tempPattern = ".upload-*"

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// FileStore keeps ebook files flat in one base directory.
type FileStore struct {
	basePath string
}

// NewFileStore creates the base directory if missing.
func NewFileStore(basePath string) (*FileStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

func (f *FileStore) BasePath() string {
	return f.basePath
}

// SanitizeTitle replaces every character outside [a-zA-Z0-9.-] with "_".
func SanitizeTitle(title string) string {
	return unsafeChars.ReplaceAllString(title, "_")
}

// DestinationName derives "<sanitized-title>_<id><ext>" where ext comes
// from originalName, defaulting to .pdf.
func DestinationName(title, id, originalName string) string {
	ext := filepath.Ext(originalName)
	if ext == "" {
		ext = DefaultExtension
	}
	return SanitizeTitle(title) + "_" + id + SanitizeTitle(ext)
}

// Copy copies src into the store as name and returns the size of the copy
// as reported by stat. The bytes land in a temporary file first and are
// renamed over name only once complete, so an existing file of the same
// name stays intact when the copy fails.
func (f *FileStore) Copy(src, name string) (int64, error) {
	target, err := f.Path(name)
	if err != nil {
		return 0, err
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(f.basePath, tempPattern)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return 0, fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return 0, fmt.Errorf("sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("close file: %w", err)
	}

	info, err := os.Stat(tmpName)
	if err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("stat file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("chmod file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("rename file: %w", err)
	}
	return info.Size(), nil
}

// Remove deletes name. A file that is already gone is not an error.
func (f *FileStore) Remove(name string) error {
	target, err := f.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// Read returns the content of name. A missing file yields an error
// wrapping fs.ErrNotExist.
func (f *FileStore) Read(name string) ([]byte, error) {
	target, err := f.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// Path joins name onto the base directory. Names that would escape the
// directory are rejected.
func (f *FileStore) Path(name string) (string, error) {
	name = strings.TrimPrefix(name, model.EbookScheme)
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(f.basePath, name), nil
}

// Exists reports whether path names an existing file. It never fails.
func Exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// ProtocolURL is the reference stored in Ebook.FilePath for name.
func ProtocolURL(name string) string {
	return model.EbookScheme + name
}
