package testutil

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/cookbook/odm"
)

// IDs returns the ids of docs in order
func IDs(docs []*odm.Document) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID()
	}
	return ids
}

func suffix(context []string) string {
	if len(context) == 0 {
		return ""
	}
	return " " + strings.Join(context, " ")
}

// AssertDocumentCount verifies the number of documents
func AssertDocumentCount(t *testing.T, docs []*odm.Document, expected int, context ...string) {
	t.Helper()
	if len(docs) != expected {
		t.Errorf("expected %d documents%s, got %d: %v", expected, suffix(context), len(docs), IDs(docs))
	}
}

// AssertDocumentExists verifies a document with id is in docs
func AssertDocumentExists(t *testing.T, docs []*odm.Document, id string) {
	t.Helper()
	for _, d := range docs {
		if d.ID() == id {
			return
		}
	}
	t.Errorf("document %s not found in %v", id, IDs(docs))
}

// AssertDocumentNotExists verifies no document with id is in docs
func AssertDocumentNotExists(t *testing.T, docs []*odm.Document, id string) {
	t.Helper()
	for _, d := range docs {
		if d.ID() == id {
			t.Errorf("document %s should not be in results", id)
			return
		}
	}
}

// AssertIDs verifies docs hold exactly the ids in order
func AssertIDs(t *testing.T, docs []*odm.Document, want ...string) {
	t.Helper()
	if diff := cmp.Diff(want, IDs(docs)); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

// AssertField verifies the value at path, compared through its JSON form so
// numbers and times compare the way they are stored
func AssertField(t *testing.T, doc *odm.Document, path string, want interface{}) {
	t.Helper()
	got := doc.ToObject()[path]
	gotJSON, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("encode %s.%s: %v", doc.ID(), path, err)
	}
	wantJSON, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("encode expected %s: %v", path, err)
	}
	if string(gotJSON) != string(wantJSON) {
		t.Errorf("%s.%s = %s, want %s", doc.ID(), path, gotJSON, wantJSON)
	}
}
