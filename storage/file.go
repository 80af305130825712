package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Constants for file locking
const (
	lockTimeout    = 3 * time.Second
	lockMaxRetries = 3
	lockRetryDelay = 100 * time.Millisecond
)

// FileStore keeps every blob as <dir>/<name>.json. It implements both Remote
// and Drafts. The version of a blob is the sha256 of its content, so a write
// conditioned on a version fails if anyone else rewrote the file since it
// was read.
type FileStore struct {
	dir string

	// File system abstractions
	fs          FileSystem
	lockFactory FileLockFactory

	// mu serializes writers inside this process; the file lock covers
	// writers in other processes.
	mu sync.Mutex
}

// FileStoreOption is a function that modifies FileStore configuration
type FileStoreOption func(*FileStore)

// WithFileSystem sets a custom FileSystem implementation
func WithFileSystem(fs FileSystem) FileStoreOption {
	return func(s *FileStore) {
		s.fs = fs
	}
}

// WithFileLockFactory sets a custom FileLockFactory implementation
func WithFileLockFactory(factory FileLockFactory) FileStoreOption {
	return func(s *FileStore) {
		s.lockFactory = factory
	}
}

// NewFileStore creates a file-backed store rooted at dir, creating it if needed
func NewFileStore(dir string, opts ...FileStoreOption) (*FileStore, error) {
	s := &FileStore{dir: dir}
	for _, opt := range opts {
		opt(s)
	}

	// Set defaults for dependencies not provided via options
	if s.fs == nil {
		s.fs = OSFileSystem{}
	}
	if s.lockFactory == nil {
		s.lockFactory = FlockFactory{}
	}

	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return s, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// contentVersion derives the version token of a blob from its bytes
func contentVersion(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// read returns the blob at path; no locking here, caller must handle it
func (s *FileStore) read(path string) (Blob, error) {
	if _, err := s.fs.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Blob{}, nil
	}
	content, err := s.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Blob{}, nil
		}
		return Blob{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Blob{Content: content, Version: contentVersion(content)}, nil
}

// acquireLock attempts to acquire an exclusive file lock with retry logic
func (s *FileStore) acquireLock(ctx context.Context, lock FileLock) error {
	for i := 0; i < lockMaxRetries; i++ {
		locked, err := lock.TryLockContext(ctx, lockRetryDelay)
		if err != nil {
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if locked {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}

	return fmt.Errorf("failed to acquire lock after %d attempts", lockMaxRetries)
}

// withLock runs fn holding both the process mutex and the file lock for path
func (s *FileStore) withLock(ctx context.Context, path string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	lock := s.lockFactory.New(path + ".lock")
	if err := s.acquireLock(ctx, lock); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	return fn()
}

// ReadBlob implements Remote.ReadBlob
func (s *FileStore) ReadBlob(ctx context.Context, name string) (Blob, error) {
	return s.read(s.path(name))
}

// WriteBlob implements Remote.WriteBlob
func (s *FileStore) WriteBlob(ctx context.Context, name string, content []byte, expectedVersion string) (string, error) {
	path := s.path(name)
	var version string
	err := s.withLock(ctx, path, func() error {
		current, err := s.read(path)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return fmt.Errorf("blob %s changed since it was read: %w", name, ErrVersionConflict)
		}
		if err := s.fs.WriteFile(path, content); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		version = contentVersion(content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return version, nil
}

// Get implements Drafts.Get
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	blob, err := s.read(s.path(key))
	if err != nil {
		return nil, err
	}
	return blob.Content, nil
}

// Set implements Drafts.Set
func (s *FileStore) Set(ctx context.Context, key string, value []byte) error {
	path := s.path(key)
	return s.withLock(ctx, path, func() error {
		if err := s.fs.WriteFile(path, value); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		return nil
	})
}
