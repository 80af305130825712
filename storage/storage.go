// Package storage defines the two storage collaborators the document store
// persists through, and their backends.
//
// A Remote holds one JSON array blob per collection and supports
// conditional writes keyed on an opaque version token. Drafts is a plain
// key-value store holding the per-device overlay of unsynced edits, one
// value per collection under DraftKey(collection).
//
// Every backend here implements at least one of the two interfaces:
//
//	memory  - in-process maps, used by tests
//	file    - one JSON file per blob under a directory, flock-guarded
//	github  - files in a git repository through the GitHub contents API
//	redis   - hashes guarded by WATCH/MULTI
//	sqlite  - a single blobs table with a version column
//	mongo   - one document per blob with a version field
//
// Open picks a pair of backends from configuration.
package storage

import (
	"context"
	"errors"
)

// ErrVersionConflict is returned by Remote.WriteBlob when the blob's current
// version does not match the expected version supplied by the caller.
var ErrVersionConflict = errors.New("storage: version conflict")

// Blob is the content of a named remote blob plus the version token it was
// read at. An absent blob has nil Content and an empty Version.
type Blob struct {
	Content []byte
	Version string
}

// Exists reports whether the blob was present when read.
func (b Blob) Exists() bool {
	return b.Version != ""
}

// Remote is the authoritative store for collections.
type Remote interface {
	// ReadBlob returns the named blob. A missing blob is not an error.
	ReadBlob(ctx context.Context, name string) (Blob, error)

	// WriteBlob replaces the named blob if its current version equals
	// expectedVersion (empty meaning "must not exist yet") and returns the
	// new version. A mismatch returns ErrVersionConflict.
	WriteBlob(ctx context.Context, name string, content []byte, expectedVersion string) (string, error)
}

// Drafts is the local overlay for unsynced edits.
type Drafts interface {
	// Get returns the stored value, or nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key.
	Set(ctx context.Context, key string, value []byte) error
}

// DraftKey returns the key under which a collection's drafts are stored.
func DraftKey(collection string) string {
	return collection + "_drafts"
}
