package storage

import (
	"bytes"
	"io/fs"
	"os"

	"github.com/natefinch/atomic"
)

// FileSystem defines the file operations the file backend needs.
// This abstraction allows for easy mocking in tests.
type FileSystem interface {
	// Stat returns file info for the given path
	Stat(name string) (fs.FileInfo, error)

	// ReadFile reads the entire file and returns its contents
	ReadFile(name string) ([]byte, error)

	// WriteFile replaces the file contents atomically
	WriteFile(name string, data []byte) error

	// MkdirAll creates a directory and any missing parents
	MkdirAll(path string, perm fs.FileMode) error
}

// OSFileSystem is the default implementation using the os package
type OSFileSystem struct{}

// Stat implements FileSystem.Stat
func (OSFileSystem) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

// ReadFile implements FileSystem.ReadFile
func (OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// WriteFile implements FileSystem.WriteFile.
// atomic.WriteFile writes a temp file in the same directory and renames it
// over the target, so readers never observe a partial blob.
func (OSFileSystem) WriteFile(name string, data []byte) error {
	return atomic.WriteFile(name, bytes.NewReader(data))
}

// MkdirAll implements FileSystem.MkdirAll
func (OSFileSystem) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}
