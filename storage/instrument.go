package storage

import (
	"context"
	"errors"

	"github.com/arthur-debert/cookbook/internal/metrics"
)

func observe(backend, op string, err error) {
	result := "ok"
	switch {
	case errors.Is(err, ErrVersionConflict):
		result = "conflict"
	case err != nil:
		result = "error"
	}
	metrics.StorageOperations.WithLabelValues(backend, op, result).Inc()
}

type instrumentedRemote struct {
	Remote
	backend string
}

func (r instrumentedRemote) ReadBlob(ctx context.Context, name string) (Blob, error) {
	b, err := r.Remote.ReadBlob(ctx, name)
	observe(r.backend, "read_blob", err)
	return b, err
}

func (r instrumentedRemote) WriteBlob(ctx context.Context, name string, content []byte, expectedVersion string) (string, error) {
	v, err := r.Remote.WriteBlob(ctx, name, content, expectedVersion)
	observe(r.backend, "write_blob", err)
	return v, err
}

type instrumentedDrafts struct {
	Drafts
	backend string
}

func (d instrumentedDrafts) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := d.Drafts.Get(ctx, key)
	observe(d.backend, "get_draft", err)
	return v, err
}

func (d instrumentedDrafts) Set(ctx context.Context, key string, value []byte) error {
	err := d.Drafts.Set(ctx, key, value)
	observe(d.backend, "set_draft", err)
	return err
}

// InstrumentRemote counts every call made through r under the backend label
func InstrumentRemote(r Remote, backend string) Remote {
	return instrumentedRemote{Remote: r, backend: backend}
}

// InstrumentDrafts counts every call made through d under the backend label
func InstrumentDrafts(d Drafts, backend string) Drafts {
	return instrumentedDrafts{Drafts: d, backend: backend}
}
