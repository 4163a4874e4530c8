package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileBackend keeps the document in a single JSON file.
//
// ATOMIC WRITES:
// Write never truncates the live file. It writes a temp file in the same
// directory, fsyncs it, then renames it over the document. rename(2) within
// one filesystem is atomic, so a reader sees either the old document or the
// new one, never a prefix of it, even if the process dies mid-write.
type FileBackend struct {
	path         string
	templatePath string
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend stores the document at path. If templatePath names an
// existing file, a new document is seeded from it instead of the empty
// default.
func NewFileBackend(path, templatePath string) *FileBackend {
	return &FileBackend{path: path, templatePath: templatePath}
}

func (f *FileBackend) Location() string {
	return f.path
}

func (f *FileBackend) Init(_ context.Context, seed []byte) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return false, fmt.Errorf("create data dir: %w", err)
	}
	if _, err := os.Stat(f.path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat document: %w", err)
	}

	data := seed
	if f.templatePath != "" {
		tmpl, err := os.ReadFile(f.templatePath)
		switch {
		case err == nil:
			data = tmpl
		case !errors.Is(err, fs.ErrNotExist):
			return false, fmt.Errorf("read template: %w", err)
		}
	}
	if err := writeAtomic(f.path, data); err != nil {
		return false, err
	}
	return true, nil
}

func (f *FileBackend) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return data, nil
}

func (f *FileBackend) Write(_ context.Context, data []byte) error {
	return writeAtomic(f.path, data)
}

// writeAtomic replaces path with data using temp-file-then-rename.
func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
