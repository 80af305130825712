package storage

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// FileLock defines the interface for cross-process file locking
type FileLock interface {
	// TryLockContext attempts to acquire an exclusive lock with retries
	TryLockContext(ctx context.Context, retryInterval time.Duration) (bool, error)

	// Unlock releases the lock
	Unlock() error
}

// FileLockFactory creates FileLock instances
type FileLockFactory interface {
	// New creates a new FileLock for the given path
	New(path string) FileLock
}

// FlockFactory is the default factory implementation using flock
type FlockFactory struct{}

// New implements FileLockFactory.New
func (FlockFactory) New(path string) FileLock {
	return flock.New(path)
}

// MockFileLock provides a mock implementation of FileLock for testing
type MockFileLock struct {
	isLocked  bool
	LockError error

	LockAttempts   int
	UnlockAttempts int
}

// TryLockContext implements FileLock.TryLockContext
func (m *MockFileLock) TryLockContext(ctx context.Context, retryInterval time.Duration) (bool, error) {
	m.LockAttempts++
	if m.LockError != nil {
		return false, m.LockError
	}
	if m.isLocked {
		return false, nil
	}
	m.isLocked = true
	return true, nil
}

// Unlock implements FileLock.Unlock
func (m *MockFileLock) Unlock() error {
	m.UnlockAttempts++
	m.isLocked = false
	return nil
}

// MockFileLockFactory hands out one MockFileLock per path
type MockFileLockFactory struct {
	mu    sync.Mutex
	locks map[string]*MockFileLock
}

// NewMockFileLockFactory creates a new mock factory
func NewMockFileLockFactory() *MockFileLockFactory {
	return &MockFileLockFactory{locks: make(map[string]*MockFileLock)}
}

// New implements FileLockFactory.New
func (f *MockFileLockFactory) New(path string) FileLock {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lock, exists := f.locks[path]; exists {
		return lock
	}
	lock := &MockFileLock{}
	f.locks[path] = lock
	return lock
}

// GetLock returns the mock lock for a path (for testing)
func (f *MockFileLockFactory) GetLock(path string) *MockFileLock {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locks[path]
}
