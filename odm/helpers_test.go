package odm

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/arthur-debert/cookbook/storage"
)

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *storage.MemoryRemote, *storage.MemoryDrafts) {
	t.Helper()
	remote := storage.NewMemoryRemote()
	drafts := storage.NewMemoryDrafts()
	return NewRegistry(remote, drafts, opts...), remote, drafts
}

func nonEmpty(v interface{}) bool {
	s, ok := v.(string)
	return ok && s != ""
}

func trim(v interface{}) interface{} {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return v
}

func recipeSchema() *Schema {
	return NewSchema(Fields{
		"title":     {Type: String, Searchable: true, Set: trim, Validate: nonEmpty},
		"summary":   {Type: String},
		"servings":  {Type: Number, Default: 1},
		"tags":      {Type: Array, Default: []interface{}{}},
		"favorite":  {Type: Bool, Default: false},
		"category":  {Type: ID, Ref: "categories"},
		"cuisines":  {Type: Array, Ref: "cuisines"},
		"updatedAt": {Type: Time},
	})
}

func categorySchema() *Schema {
	return NewSchema(Fields{
		"name": {Type: String, Searchable: true},
	})
}

// setup registers recipes, categories and cuisines on a fresh registry
func setup(t *testing.T, opts ...Option) (*Registry, *storage.MemoryRemote, *storage.MemoryDrafts) {
	t.Helper()
	reg, remote, drafts := newTestRegistry(t, opts...)
	reg.Model("recipes", recipeSchema())
	reg.Model("categories", categorySchema())
	reg.Model("cuisines", categorySchema())
	return reg, remote, drafts
}

func model(t *testing.T, reg *Registry, name string) *Model {
	t.Helper()
	m, err := reg.Lookup(name)
	if err != nil {
		t.Fatalf("lookup %s: %v", name, err)
	}
	return m
}

func seedRemote(t *testing.T, remote *storage.MemoryRemote, name string, records ...map[string]interface{}) {
	t.Helper()
	b, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	remote.Put(name, b)
}

func seedDrafts(t *testing.T, drafts *storage.MemoryDrafts, name string, records ...map[string]interface{}) {
	t.Helper()
	b, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	if err := drafts.Set(context.Background(), storage.DraftKey(name), b); err != nil {
		t.Fatalf("seed drafts: %v", err)
	}
}

func remoteContent(t *testing.T, remote *storage.MemoryRemote, name string) []map[string]interface{} {
	t.Helper()
	b, ok := remote.Content(name)
	if !ok {
		return nil
	}
	var records []map[string]interface{}
	if err := json.Unmarshal(b, &records); err != nil {
		t.Fatalf("decode remote %s: %v", name, err)
	}
	return records
}

func draftContent(t *testing.T, drafts *storage.MemoryDrafts, name string) []map[string]interface{} {
	t.Helper()
	b, err := drafts.Get(context.Background(), storage.DraftKey(name))
	if err != nil {
		t.Fatalf("get drafts: %v", err)
	}
	if b == nil {
		return nil
	}
	var records []map[string]interface{}
	if err := json.Unmarshal(b, &records); err != nil {
		t.Fatalf("decode drafts %s: %v", name, err)
	}
	return records
}

func ids(docs []*Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID()
	}
	return out
}
