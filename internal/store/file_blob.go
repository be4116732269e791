package store

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"

	apperrors "call-intelligence-go/internal/errors"
)

// FileBlob stores the blob as a local file.
type FileBlob struct {
	path string
}

// NewFileBlob returns a blob at path.
func NewFileBlob(path string) *FileBlob {
	return &FileBlob{path: path}
}

func (b *FileBlob) Location() string { return b.path }

func (b *FileBlob) Exists(_ context.Context) (bool, error) {
	_, err := os.Stat(b.path)
	if err == nil {
		return true, nil
	}
	if stderrors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (b *FileBlob) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	return data, err
}

// Write replaces the file through a temp file in the same directory and a rename, so a
// failed write never leaves a truncated workbook behind. A destination held open or
// locked by another process yields a DESTINATION_BUSY error.
func (b *FileBlob) Write(_ context.Context, data []byte) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return b.classify(err)
	}
	if err := probeWritable(b.path); err != nil {
		return b.classify(err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return b.classify(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return b.classify(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return b.classify(err)
	}
	if err := tmp.Close(); err != nil {
		return b.classify(err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return b.classify(err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		return b.classify(err)
	}
	return nil
}

// probeWritable opens an existing destination for writing without truncating it. This is
// where a file held open by a spreadsheet application shows up as a sharing violation.
func probeWritable(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return f.Close()
}

func (b *FileBlob) classify(err error) error {
	if isBusy(err) {
		return apperrors.NewDestinationBusy(b.path, err)
	}
	return err
}
