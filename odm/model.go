package odm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/arthur-debert/cookbook/storage"
)

// record is one stored JSON object
type record = map[string]interface{}

// Model is the collection-level API of one schema: fetch, save, delete and
// the query entry points.
type Model struct {
	name     string
	schema   *Schema
	registry *Registry
	logger   *slog.Logger

	// mu guards the caches below
	mu            sync.Mutex
	remote        []record
	remoteLoaded  bool
	drafts        []record
	draftsLoaded  bool
	remoteVersion string

	// writeMu serializes saves and deletes on this model
	writeMu sync.Mutex
}

// Name returns the collection name
func (m *Model) Name() string { return m.name }

// Schema returns the model's schema
func (m *Model) Schema() *Schema { return m.schema }

// New creates a document from schema defaults, then applies fields as
// modifications
func (m *Model) New(fields map[string]interface{}) *Document {
	d := newDocument(m)
	d.isNew = true
	for _, path := range sortedKeys(fields) {
		d.Set(path, fields[path])
	}
	return d
}

// hydrate builds an unmodified document from a stored record. Slices and
// maps are copied so the document never aliases a cached record.
func (m *Model) hydrate(rec record, isDraft bool) *Document {
	d := newDocument(m)
	d.isDraft = isDraft
	for _, path := range sortedKeys(rec) {
		d.Set(path, cloneValue(rec[path]), SkipMarkModified())
	}
	return d
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func decodeRecords(content []byte) ([]record, error) {
	if len(content) == 0 {
		return nil, nil
	}
	var records []record
	if err := json.Unmarshal(content, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func encodeRecords(records []record) ([]byte, error) {
	if records == nil {
		records = []record{}
	}
	return json.MarshalIndent(records, "", "  ")
}

func indexOf(records []record, id string) int {
	return slices.IndexFunc(records, func(r record) bool { return idOf(r["id"]) == id })
}

// Refresh drops the cached partitions; the next fetch reads both stores
func (m *Model) Refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.remote, m.remoteLoaded, m.remoteVersion = nil, false, ""
	m.drafts, m.draftsLoaded = nil, false
}

// remoteRecords returns the remote partition, reading it once
func (m *Model) remoteRecords(ctx context.Context) ([]record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.remoteLoaded {
		m.logger.Debug("remote cache hit", "records", len(m.remote))
		return slices.Clone(m.remote), nil
	}

	blob, err := m.registry.remote.ReadBlob(ctx, m.name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", m.name, err)
	}
	records, err := decodeRecords(blob.Content)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", m.name, err)
	}
	m.remote, m.remoteVersion, m.remoteLoaded = records, blob.Version, true
	m.logger.Debug("remote loaded", "records", len(records), "version", blob.Version)
	return slices.Clone(records), nil
}

// draftRecords returns the draft partition. It is re-read on every call
// unless the registry caches all partitions.
func (m *Model) draftRecords(ctx context.Context) ([]record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.draftsLoaded && m.registry.policy == CacheAll {
		return slices.Clone(m.drafts), nil
	}

	records, err := m.readDrafts(ctx)
	if err != nil {
		return nil, err
	}
	m.drafts, m.draftsLoaded = records, true
	return slices.Clone(records), nil
}

func (m *Model) readDrafts(ctx context.Context) ([]record, error) {
	key := storage.DraftKey(m.name)
	content, err := m.registry.drafts.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	records, err := decodeRecords(content)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return records, nil
}

// Fetch returns the collection snapshot: draft documents first, then remote
// ones. A draft shadowing a remote record shares its id.
func (m *Model) Fetch(ctx context.Context) ([]*Document, error) {
	remote, err := m.remoteRecords(ctx)
	if err != nil {
		return nil, err
	}
	drafts, err := m.draftRecords(ctx)
	if err != nil {
		return nil, err
	}
	return m.reconcile(remote, drafts), nil
}

// Save runs the save hooks around persisting d. With AsDraft the document is
// upserted into the draft partition. Otherwise it is inserted (when new) or
// replaced by id in the remote blob, written conditionally on the version
// read just before; a concurrent writer surfaces as
// storage.ErrVersionConflict. A committed draft is then removed from the
// overlay. Validation is not enforced.
func (m *Model) Save(ctx context.Context, d *Document, opts SaveOptions) error {
	if d.model != m {
		return fmt.Errorf("save %s: document belongs to %s", m.name, d.model.name)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := m.schema.Exec(ctx, BeforeSave, d, opts); err != nil {
		return err
	}

	rec := d.ToObject()
	if opts.AsDraft {
		if err := m.upsertDraft(ctx, rec); err != nil {
			return err
		}
		d.isDraft = true
	} else {
		if err := m.commit(ctx, rec, d.isNew); err != nil {
			return err
		}
		if d.isDraft {
			if _, err := m.removeDraft(ctx, d.ID()); err != nil {
				m.logger.Warn("committed document left a stale draft", "id", d.ID(), "error", err)
			}
		}
		d.isDraft = false
		d.isNew = false
	}
	d.clearModified()

	return m.schema.Exec(ctx, AfterSave, d, opts)
}

// Delete runs the delete hooks around removing d. Draft documents are
// removed from the overlay only, and an absent draft is not an error. Remote
// documents are removed with a conditional write; an absent id returns
// ErrNotFound.
func (m *Model) Delete(ctx context.Context, d *Document) error {
	if d.model != m {
		return fmt.Errorf("delete %s: document belongs to %s", m.name, d.model.name)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	opts := SaveOptions{AsDraft: d.isDraft}
	if err := m.schema.Exec(ctx, BeforeDelete, d, opts); err != nil {
		return err
	}

	if d.isDraft {
		removed, err := m.removeDraft(ctx, d.ID())
		if err != nil {
			return err
		}
		if !removed {
			m.logger.Debug("draft already absent", "id", d.ID())
		}
	} else if err := m.removeRemote(ctx, d.ID()); err != nil {
		return err
	}

	return m.schema.Exec(ctx, AfterDelete, d, opts)
}

// commit writes rec into the remote blob
func (m *Model) commit(ctx context.Context, rec record, isNew bool) error {
	return m.rewriteRemote(ctx, func(records []record) ([]record, error) {
		id := idOf(rec["id"])
		i := indexOf(records, id)
		switch {
		case i >= 0:
			records[i] = rec
		case isNew:
			records = append(records, rec)
		default:
			return nil, fmt.Errorf("save %s %s: %w", m.name, id, ErrNotFound)
		}
		return records, nil
	})
}

func (m *Model) removeRemote(ctx context.Context, id string) error {
	return m.rewriteRemote(ctx, func(records []record) ([]record, error) {
		i := indexOf(records, id)
		if i < 0 {
			return nil, fmt.Errorf("delete %s %s: %w", m.name, id, ErrNotFound)
		}
		return slices.Delete(records, i, i+1), nil
	})
}

// rewriteRemote reads the remote blob, applies change and writes the result
// conditioned on the version read. The cache is replaced only once the write
// succeeded.
func (m *Model) rewriteRemote(ctx context.Context, change func([]record) ([]record, error)) error {
	blob, err := m.registry.remote.ReadBlob(ctx, m.name)
	if err != nil {
		return fmt.Errorf("read %s: %w", m.name, err)
	}
	records, err := decodeRecords(blob.Content)
	if err != nil {
		return fmt.Errorf("decode %s: %w", m.name, err)
	}

	records, err = change(records)
	if err != nil {
		return err
	}

	content, err := encodeRecords(records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", m.name, err)
	}
	version, err := m.registry.remote.WriteBlob(ctx, m.name, content, blob.Version)
	if err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			m.logger.Warn("remote write conflict", "version", blob.Version, "error", err)
		}
		return fmt.Errorf("write %s: %w", m.name, err)
	}

	// Re-decode so the cache holds the same JSON types a fresh read would
	cached, err := decodeRecords(content)
	if err != nil {
		return fmt.Errorf("decode %s: %w", m.name, err)
	}
	m.mu.Lock()
	m.remote, m.remoteVersion, m.remoteLoaded = cached, version, true
	m.mu.Unlock()

	m.logger.Info("remote written", "records", len(cached), "version", version)
	return nil
}

func (m *Model) upsertDraft(ctx context.Context, rec record) error {
	_, err := m.rewriteDrafts(ctx, func(records []record) ([]record, bool) {
		if i := indexOf(records, idOf(rec["id"])); i >= 0 {
			records[i] = rec
		} else {
			records = append(records, rec)
		}
		return records, true
	})
	return err
}

// removeDraft drops the draft with id and reports whether one existed
func (m *Model) removeDraft(ctx context.Context, id string) (bool, error) {
	return m.rewriteDrafts(ctx, func(records []record) ([]record, bool) {
		i := indexOf(records, id)
		if i < 0 {
			return records, false
		}
		return slices.Delete(records, i, i+1), true
	})
}

// rewriteDrafts reads the draft partition, applies change and writes it back
// when change reports it did something
func (m *Model) rewriteDrafts(ctx context.Context, change func([]record) ([]record, bool)) (bool, error) {
	records, err := m.readDrafts(ctx)
	if err != nil {
		return false, err
	}
	records, changed := change(records)
	if !changed {
		return false, nil
	}

	content, err := encodeRecords(records)
	if err != nil {
		return false, fmt.Errorf("encode %s drafts: %w", m.name, err)
	}
	key := storage.DraftKey(m.name)
	if err := m.registry.drafts.Set(ctx, key, content); err != nil {
		return false, fmt.Errorf("write %s: %w", key, err)
	}

	cached, err := decodeRecords(content)
	if err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	m.mu.Lock()
	m.drafts, m.draftsLoaded = cached, true
	m.mu.Unlock()

	m.logger.Info("drafts written", "records", len(cached))
	return true, nil
}

// Query returns an empty query on the model
func (m *Model) Query() *Query {
	return &Query{model: m, limit: -1}
}

// Find selects the documents matching filter
func (m *Model) Find(filter Filter) *Query { return m.Query().Find(filter) }

// FindOne selects the first document matching filter
func (m *Model) FindOne(filter Filter) *Query { return m.Query().FindOne(filter) }

// FindByID selects the document with id
func (m *Model) FindByID(id string) *Query { return m.Query().FindByID(id) }

// Count counts the documents matching filter
func (m *Model) Count(filter Filter) *Query { return m.Query().Count(filter) }

// Search ranks the documents matching filter by relevance to text
func (m *Model) Search(text string, filter Filter) *Query { return m.Query().Search(text, filter) }
