// Package blob stores session-scoped audio artifacts.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Ref identifies one stored blob relative to its store root.
type Ref string

// ErrInvalidPath rejects paths that escape the store root.
var ErrInvalidPath = errors.New("invalid blob path")

// Store persists blobs and reads them back.
type Store interface {
	Put(ctx context.Context, path string, data []byte) (Ref, error)
	Open(ctx context.Context, ref Ref) (io.ReadCloser, error)
}

// ChunkPath is the session-scoped location of one chunk recording.
func ChunkPath(sessionID string, seq int) string {
	return filepath.Join(sessionID, fmt.Sprintf("%06d.wav", seq))
}

// FileStore keeps blobs under a directory on local disk.
type FileStore struct {
	root string
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Root returns the store directory.
func (s *FileStore) Root() string {
	return s.root
}

// Put writes data atomically and returns its ref.
func (s *FileStore) Put(ctx context.Context, path string, data []byte) (Ref, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o700); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create blob temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write blob %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close blob %q: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return "", fmt.Errorf("chmod blob %q: %w", path, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		return "", fmt.Errorf("commit blob %q: %w", path, err)
	}
	return Ref(filepath.ToSlash(filepath.Clean(path))), nil
}

// Open returns a reader for a stored blob.
func (s *FileStore) Open(ctx context.Context, ref Ref) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.resolve(string(ref))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("open blob %q: %w", ref, err)
	}
	return f, nil
}

func (s *FileStore) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(path)))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return filepath.Join(s.root, clean), nil
}
