// Package testutil loads the shared catalog fixture into in-memory stores
// and provides assertion helpers for query results.
package testutil

import (
	"context"
	_ "embed"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/arthur-debert/cookbook/catalog"
	"github.com/arthur-debert/cookbook/odm"
	"github.com/arthur-debert/cookbook/storage"
)

//go:embed testdata/catalog.json
var catalogFixture []byte

// Collection records keyed by collection name
type Partition map[string][]map[string]interface{}

// fixtureData represents the JSON structure in catalog.json
type fixtureData struct {
	Remote Partition `json:"remote"`
	Drafts Partition `json:"drafts"`
}

// Universe gives tests access to the stores and the raw fixture records
type Universe struct {
	Registry *odm.Registry
	Catalog  *catalog.Catalog
	Remote   *storage.MemoryRemote
	Drafts   *storage.MemoryDrafts

	// Seeded records, per partition and collection
	RemoteRecords Partition
	DraftRecords  Partition
}

// Fixture ids
const (
	Royal    = "rec-royal"    // remote, favorite dessert
	Glacage  = "rec-glacage"  // remote, overridden by a draft
	PotAuFeu = "rec-potaufeu" // remote, favorite main
	Royale   = "rec-royale"   // remote, starter
	Risotto  = "rec-risotto"  // remote, italian
	Ramen    = "rec-ramen"    // remote, japanese
	Tatin    = "rec-tatin"    // draft only

	Desserts = "cat-desserts"
	Plats    = "cat-plats"
	Entrees  = "cat-entrees"
)

// LoadCatalog seeds fresh in-memory stores with the catalog fixture and
// registers the catalog collections over them
func LoadCatalog(t *testing.T, opts ...odm.Option) *Universe {
	t.Helper()

	var fixture fixtureData
	if err := json.Unmarshal(catalogFixture, &fixture); err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}

	remote := storage.NewMemoryRemote()
	drafts := storage.NewMemoryDrafts()

	for _, name := range collectionNames(fixture.Remote) {
		data, err := json.Marshal(fixture.Remote[name])
		if err != nil {
			t.Fatalf("failed to encode %s: %v", name, err)
		}
		remote.Put(name, data)
	}
	for _, name := range collectionNames(fixture.Drafts) {
		data, err := json.Marshal(fixture.Drafts[name])
		if err != nil {
			t.Fatalf("failed to encode %s drafts: %v", name, err)
		}
		if err := drafts.Set(context.Background(), storage.DraftKey(name), data); err != nil {
			t.Fatalf("failed to seed %s drafts: %v", name, err)
		}
	}

	opts = append([]odm.Option{odm.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	reg := odm.NewRegistry(remote, drafts, opts...)

	return &Universe{
		Registry:      reg,
		Catalog:       catalog.Register(reg),
		Remote:        remote,
		Drafts:        drafts,
		RemoteRecords: fixture.Remote,
		DraftRecords:  fixture.Drafts,
	}
}

func collectionNames(p Partition) []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Record returns the seeded remote record with id, or nil
func (u *Universe) Record(collection, id string) map[string]interface{} {
	return find(u.RemoteRecords[collection], id)
}

// Draft returns the seeded draft record with id, or nil
func (u *Universe) Draft(collection, id string) map[string]interface{} {
	return find(u.DraftRecords[collection], id)
}

func find(records []map[string]interface{}, id string) map[string]interface{} {
	for _, rec := range records {
		if rec["id"] == id {
			return rec
		}
	}
	return nil
}
