package storage

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// MemoryRemote provides an in-memory implementation of Remote for testing.
// Versions are decimal counters starting at "1".
type MemoryRemote struct {
	mu    sync.RWMutex
	blobs map[string]memoryBlob

	// Optional errors for simulating collaborator failures
	ReadError  error
	WriteError error

	// For tracking calls
	Reads  int
	Writes int
}

type memoryBlob struct {
	content []byte
	version int
}

// NewMemoryRemote creates an empty in-memory remote store
func NewMemoryRemote() *MemoryRemote {
	return &MemoryRemote{
		blobs: make(map[string]memoryBlob),
	}
}

// ReadBlob implements Remote.ReadBlob
func (m *MemoryRemote) ReadBlob(ctx context.Context, name string) (Blob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Reads++
	if m.ReadError != nil {
		return Blob{}, m.ReadError
	}

	b, exists := m.blobs[name]
	if !exists {
		return Blob{}, nil
	}
	return Blob{
		Content: append([]byte(nil), b.content...),
		Version: strconv.Itoa(b.version),
	}, nil
}

// WriteBlob implements Remote.WriteBlob
func (m *MemoryRemote) WriteBlob(ctx context.Context, name string, content []byte, expectedVersion string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Writes++
	if m.WriteError != nil {
		return "", m.WriteError
	}

	current := ""
	b, exists := m.blobs[name]
	if exists {
		current = strconv.Itoa(b.version)
	}
	if current != expectedVersion {
		return "", fmt.Errorf("blob %s at version %q, expected %q: %w", name, current, expectedVersion, ErrVersionConflict)
	}

	next := b.version + 1
	m.blobs[name] = memoryBlob{
		content: append([]byte(nil), content...),
		version: next,
	}
	return strconv.Itoa(next), nil
}

// Put seeds a blob without a version check (for testing)
func (m *MemoryRemote) Put(name string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.blobs[name]
	m.blobs[name] = memoryBlob{content: append([]byte(nil), content...), version: b.version + 1}
}

// Content returns the raw content of a blob (for testing)
func (m *MemoryRemote) Content(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, exists := m.blobs[name]
	if !exists {
		return nil, false
	}
	return append([]byte(nil), b.content...), true
}

// MemoryDrafts provides an in-memory implementation of Drafts for testing
type MemoryDrafts struct {
	mu     sync.RWMutex
	values map[string][]byte

	GetError error
	SetError error

	Gets int
	Sets int
}

// NewMemoryDrafts creates an empty in-memory draft store
func NewMemoryDrafts() *MemoryDrafts {
	return &MemoryDrafts{
		values: make(map[string][]byte),
	}
}

// Get implements Drafts.Get
func (m *MemoryDrafts) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Gets++
	if m.GetError != nil {
		return nil, m.GetError
	}
	v, exists := m.values[key]
	if !exists {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

// Set implements Drafts.Set
func (m *MemoryDrafts) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Sets++
	if m.SetError != nil {
		return m.SetError
	}
	m.values[key] = append([]byte(nil), value...)
	return nil
}
