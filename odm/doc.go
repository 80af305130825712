// Package odm is a small object-document mapper over JSON blobs.
//
// A Registry owns the storage collaborators and every Model registered on
// it. A Model binds a collection name to a Schema and keeps the collection's
// records cached in memory. Each collection lives in two partitions:
//
//   - the remote blob "<collection>", authoritative, written with optimistic
//     version checks;
//   - the draft blob "<collection>_drafts", local unsynced edits.
//
// Fetching a Model overlays drafts on remote records. Drafts come first, so
// a query deduplicating by id prefers the draft. A draft's modified paths are
// rebuilt by comparing it with its remote counterpart (or with a defaults-only
// document when there is none). That comparison cannot tell a field set back
// to its original value from one never touched.
//
// Queries are full scans over the fetched snapshot:
//
//	docs, err := recipes.Find(odm.Filter{"favorite": true}).
//		Sort(odm.SortKey{Field: "updatedAt", Dir: odm.Desc}).
//		Limit(10).
//		Populate("category").
//		ExecAll(ctx)
package odm
