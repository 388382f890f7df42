// Package spool buffers uploaded files on local disk for the length of a request.
package spool

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/nuestrovinculo/vinculo/common/logger"
)

// Spool writes incoming files to a directory
type Spool struct {
	dir string
	log *logger.Logger
}

// New creates a spool rooted at dir
func New(dir string, log *logger.Logger) *Spool {
	return &Spool{dir: dir, log: log}
}

// File is a spooled upload. Release must be called on every path.
type File struct {
	Path string
	Size int64
	log  *logger.Logger
}

// Save copies src into a new file named upload-<uuid>
func (s *Spool) Save(src io.Reader) (*File, error) {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}

	path := filepath.Join(s.dir, "upload-"+uuid.NewString())
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}

	f := &File{Path: path, log: s.log}
	f.Size, err = io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		f.Release()
		return nil, fmt.Errorf("write spool file: %w", err)
	}
	return f, nil
}

// ReadAll loads the spooled bytes
func (f *File) ReadAll() ([]byte, error) {
	return os.ReadFile(f.Path)
}

// Release deletes the file. Failures are logged, never returned.
func (f *File) Release() {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		f.log.Warn("failed to remove spooled upload", "path", f.Path, "error", err)
	}
}
