package odm

import (
	"bytes"
	"encoding/json"
)

// reconcile builds the collection snapshot from both partitions. Each draft
// is marked modified on the fields whose projection differs from its remote
// counterpart, or from a defaults-only document when it has none. Drafts are
// placed first so id deduplication keeps them.
func (m *Model) reconcile(remote, drafts []record) []*Document {
	remoteDocs := make([]*Document, 0, len(remote))
	byID := make(map[string]*Document, len(remote))
	for _, rec := range remote {
		d := m.hydrate(rec, false)
		remoteDocs = append(remoteDocs, d)
		if _, seen := byID[d.ID()]; !seen {
			byID[d.ID()] = d
		}
	}

	out := make([]*Document, 0, len(drafts)+len(remote))
	for _, rec := range drafts {
		d := m.hydrate(rec, true)
		base, ok := byID[d.ID()]
		d.isNew = !ok
		if !ok {
			base = newDocument(m)
		}
		for _, path := range diffPaths(d, base) {
			d.MarkModified(path)
		}
		out = append(out, d)
	}

	if len(drafts) > 0 {
		m.logger.Debug("drafts reconciled", "drafts", len(drafts), "remote", len(remote))
	}
	return append(out, remoteDocs...)
}

// diffPaths lists the schema fields, id excluded, whose JSON projection
// differs between a and b
func diffPaths(a, b *Document) []string {
	objA, objB := a.ToObject(), b.ToObject()
	var paths []string
	for _, path := range a.model.schema.Paths() {
		if path == "id" {
			continue
		}
		if !bytes.Equal(projectionJSON(objA, path), projectionJSON(objB, path)) {
			paths = append(paths, path)
		}
	}
	return paths
}

func projectionJSON(obj map[string]interface{}, path string) []byte {
	v, ok := obj[path]
	if !ok {
		return []byte("null")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
