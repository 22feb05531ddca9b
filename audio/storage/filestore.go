// Package storage keeps uploaded audio bytes on the local filesystem.
// Writes stream through a temp file that is fsynced and atomically renamed.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidName rejects names that could escape the storage root
	ErrInvalidName = errors.New("invalid storage name")
	// ErrTooLarge is returned when a stream exceeds the allowed size
	ErrTooLarge = errors.New("file exceeds maximum size")
	// ErrNotExist is returned when the named file is absent
	ErrNotExist = errors.New("file does not exist")
)

// FileStore manages physical audio files under one root directory
type FileStore struct {
	root string
}

// New creates the root directory if it is missing
func New(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", root, err)
	}
	return &FileStore{root: root}, nil
}

// Root returns the storage directory
func (fs *FileStore) Root() string {
	return fs.root
}

// Save streams r into name. At most maxBytes are accepted; a longer stream
// removes the partial file and returns ErrTooLarge. maxBytes <= 0 disables
// the limit. Returns the full path and the number of bytes written.
func (fs *FileStore) Save(ctx context.Context, r io.Reader, name string, maxBytes int64) (string, int64, error) {
	fullPath, err := fs.resolve(name)
	if err != nil {
		return "", 0, err
	}
	tmpPath := fullPath + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	src := io.Reader(&contextReader{ctx: ctx, r: r})
	if maxBytes > 0 {
		src = io.LimitReader(src, maxBytes+1)
	}

	written, err := io.Copy(f, src)
	if err == nil && maxBytes > 0 && written > maxBytes {
		err = ErrTooLarge
	}
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		if errors.Is(err, ErrTooLarge) {
			return "", 0, err
		}
		return "", 0, fmt.Errorf("failed to write %s: %w", name, err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("failed to finalize %s: %w", name, err)
	}

	return fullPath, written, nil
}

// Rename moves a stored file to a new name. An existing target is an error.
func (fs *FileStore) Rename(from, to string) error {
	src, err := fs.resolve(from)
	if err != nil {
		return err
	}
	dst, err := fs.resolve(to)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("failed to rename %s: %s already exists", from, to)
	}
	if err := os.Rename(src, dst); err != nil {
		if os.IsNotExist(err) {
			return ErrNotExist
		}
		return fmt.Errorf("failed to rename %s: %w", from, err)
	}
	return nil
}

// Size returns the size of a stored file in bytes
func (fs *FileStore) Size(name string) (int64, error) {
	fullPath, err := fs.resolve(name)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotExist
		}
		return 0, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	return info.Size(), nil
}

// Exists reports whether name is a stored regular file
func (fs *FileStore) Exists(name string) bool {
	fullPath, err := fs.resolve(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && info.Mode().IsRegular()
}

// Remove deletes name. It reports false with a nil error when the file was
// already absent.
func (fs *FileStore) Remove(name string) (bool, error) {
	fullPath, err := fs.resolve(name)
	if err != nil {
		return false, err
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to remove %s: %w", name, err)
	}
	return true, nil
}

// Open returns the stored file for range reads. The caller closes it.
// Dot-prefixed names are staging files and are never served.
func (fs *FileStore) Open(name string) (*os.File, os.FileInfo, error) {
	fullPath, err := fs.resolve(name)
	if err != nil {
		return nil, nil, err
	}
	if strings.HasPrefix(name, ".") {
		return nil, nil, ErrNotExist
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotExist
		}
		return nil, nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, ErrNotExist
	}
	return f, info, nil
}

// CheckWritable verifies the root accepts new files
func (fs *FileStore) CheckWritable() error {
	f, err := os.CreateTemp(fs.root, ".writecheck-*")
	if err != nil {
		return fmt.Errorf("storage directory not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func (fs *FileStore) resolve(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") ||
		strings.ContainsRune(name, 0) {
		return "", ErrInvalidName
	}
	return filepath.Join(fs.root, name), nil
}

// contextReader stops a copy once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
