package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/cookbook/internal/testutil"
	"github.com/arthur-debert/cookbook/odm"
	"github.com/arthur-debert/cookbook/storage"
)

// run executes the CLI against the fixture stores and returns stdout
func run(t *testing.T, u *testutil.Universe, args ...string) (string, error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(home, "cache"))
	t.Setenv("COOKBOOK_CONFIG", "")

	var out, errOut bytes.Buffer
	a := newApp(&out, &errOut)
	a.open = func(ctx context.Context, cfg storage.Config) (*storage.Backends, error) {
		return &storage.Backends{Remote: u.Remote, Drafts: u.Drafts}, nil
	}
	a.setupLogs = func(level slog.Level, toStderr bool, stderr io.Writer) (*slog.Logger, io.Closer, error) {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil, nil
	}

	err := a.execute(args)
	return out.String(), err
}

func mustRun(t *testing.T, u *testutil.Universe, args ...string) string {
	t.Helper()
	out, err := run(t, u, args...)
	if err != nil {
		t.Fatalf("cookbook %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func decodeList(t *testing.T, out string) []map[string]interface{} {
	t.Helper()
	var docs []map[string]interface{}
	if err := json.Unmarshal([]byte(out), &docs); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	return docs
}

func listIDs(t *testing.T, out string) []string {
	t.Helper()
	var ids []string
	for _, d := range decodeList(t, out) {
		ids = append(ids, d["id"].(string))
	}
	return ids
}

// tableIDs returns the first column of every row after the header
func tableIDs(out string) []string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	var ids []string
	for _, line := range lines[1:] {
		if fields := strings.Fields(line); len(fields) > 0 {
			ids = append(ids, fields[0])
		}
	}
	return ids
}

func remoteRecords(t *testing.T, u *testutil.Universe, collection string) map[string]map[string]interface{} {
	t.Helper()
	data, _ := u.Remote.Content(collection)
	return byID(t, data)
}

func draftRecords(t *testing.T, u *testutil.Universe, collection string) map[string]map[string]interface{} {
	t.Helper()
	data, err := u.Drafts.Get(context.Background(), storage.DraftKey(collection))
	if err != nil {
		t.Fatal(err)
	}
	return byID(t, data)
}

func byID(t *testing.T, data []byte) map[string]map[string]interface{} {
	t.Helper()
	out := make(map[string]map[string]interface{})
	if len(data) == 0 {
		return out
	}
	var records []map[string]interface{}
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	for _, rec := range records {
		out[rec["id"].(string)] = rec
	}
	return out
}

func TestList(t *testing.T) {
	u := testutil.LoadCatalog(t)

	t.Run("table", func(t *testing.T) {
		out := mustRun(t, u, "list", "--sort", "title")
		if !strings.HasPrefix(out, "ID") || !strings.Contains(strings.SplitN(out, "\n", 2)[0], "TITLE") {
			t.Errorf("missing header:\n%s", out)
		}
		want := []string{testutil.Glacage, testutil.Royal, testutil.PotAuFeu, testutil.Ramen, testutil.Risotto, testutil.Royale, testutil.Tatin}
		if diff := cmp.Diff(want, tableIDs(out)); diff != "" {
			t.Errorf("rows mismatch (-want +got):\n%s", diff)
		}
		if !strings.Contains(out, "draft (new)") {
			t.Errorf("draft-only recipe should be labelled:\n%s", out)
		}
	})

	t.Run("json filter and sort", func(t *testing.T) {
		out := mustRun(t, u, "list", "-f", "json", "--filter", "favorite=true", "--sort", "servings:desc")
		want := []string{testutil.Royal, testutil.PotAuFeu, testutil.Ramen}
		if diff := cmp.Diff(want, listIDs(t, out)); diff != "" {
			t.Errorf("ids mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("skip and limit", func(t *testing.T) {
		out := mustRun(t, u, "list", "-f", "json", "--sort", "prepMinutes", "--skip", "1", "--limit", "2")
		// tatin has no prepMinutes and sorts first
		want := []string{testutil.Glacage, testutil.Risotto}
		if diff := cmp.Diff(want, listIDs(t, out)); diff != "" {
			t.Errorf("ids mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("populate", func(t *testing.T) {
		out := mustRun(t, u, "list", "-f", "json", "--filter", "cuisine=cui-jp", "--populate", "cuisine")
		docs := decodeList(t, out)
		if len(docs) != 1 {
			t.Fatalf("expected one recipe, got %d", len(docs))
		}
		cuisine, ok := docs[0]["cuisine"].(map[string]interface{})
		if !ok || cuisine["name"] != "Japonaise" {
			t.Errorf("cuisine not populated: %#v", docs[0]["cuisine"])
		}
	})

	t.Run("other collection", func(t *testing.T) {
		out := mustRun(t, u, "list", "-c", "categories", "-f", "json", "--sort", "name")
		want := []string{testutil.Desserts, testutil.Entrees, testutil.Plats}
		if diff := cmp.Diff(want, listIDs(t, out)); diff != "" {
			t.Errorf("ids mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestSearch(t *testing.T) {
	u := testutil.LoadCatalog(t)

	out := mustRun(t, u, "search", "royal")
	if diff := cmp.Diff([]string{testutil.Royale, testutil.Royal}, tableIDs(out)); diff != "" {
		t.Errorf("ranking mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(out, "Le **Royal**") {
		t.Errorf("matches should be highlighted:\n%s", out)
	}

	out = mustRun(t, u, "search", "glacage", "--highlight=")
	if diff := cmp.Diff([]string{testutil.Glacage}, tableIDs(out)); diff != "" {
		t.Errorf("accent-insensitive search mismatch (-want +got):\n%s", diff)
	}
	if strings.Contains(out, "**") {
		t.Errorf("highlighting should be disabled:\n%s", out)
	}
}

func TestSearch_Explain(t *testing.T) {
	u := testutil.LoadCatalog(t)

	out := mustRun(t, u, "search", "royal", "--explain")
	want := [][]string{
		{"ID", "FIELD", "MATCHES"},
		{testutil.Royale, "title", "prefix,word_prefix,substring"},
		{testutil.Royal, "title", "word,word_prefix,substring"},
	}
	var got [][]string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		got = append(got, strings.Fields(line))
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("explain mismatch (-want +got):\n%s", diff)
	}

	out = mustRun(t, u, "search", "glacage", "--explain", "-f", "json")
	var rows []map[string]interface{}
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(rows) != 1 || rows[0]["id"] != testutil.Glacage {
		t.Fatalf("rows = %v", rows)
	}
	if diff := cmp.Diff([]interface{}{"prefix", "word", "word_prefix", "substring"}, rows[0]["matches"]); diff != "" {
		t.Errorf("folded matches mismatch (-want +got):\n%s", diff)
	}
}

func TestCount(t *testing.T) {
	u := testutil.LoadCatalog(t)

	if out := mustRun(t, u, "count"); out != "7\n" {
		t.Errorf("count = %q, want 7", out)
	}
	if out := mustRun(t, u, "count", "--filter", "favorite=true"); out != "3\n" {
		t.Errorf("favorite count = %q, want 3", out)
	}
	if out := mustRun(t, u, "count", "--search", "royal"); out != "2\n" {
		t.Errorf("search count = %q, want 2", out)
	}

	out := mustRun(t, u, "count", "-f", "json", "--filter", "tags=hiver")
	var got map[string]int
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatal(err)
	}
	if got["count"] != 2 {
		t.Errorf("json count = %v, want 2", got)
	}
}

func TestShow(t *testing.T) {
	u := testutil.LoadCatalog(t)

	out := mustRun(t, u, "show", testutil.Royal, "--populate", "category")
	if !strings.Contains(out, "Desserts") || !strings.Contains(out, "Le Royal") {
		t.Errorf("show output incomplete:\n%s", out)
	}

	out = mustRun(t, u, "show", testutil.Glacage, "-f", "yaml")
	var doc map[string]interface{}
	if err := yaml.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode yaml: %v\n%s", err, out)
	}
	if doc["title"] != "Glaçage miroir noir" {
		t.Errorf("show should prefer the draft, got title %v", doc["title"])
	}

	if _, err := run(t, u, "show", "nope"); !errors.Is(err, odm.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := run(t, u, "show"); err == nil {
		t.Error("expected an error without an id")
	}
}

func TestAdd(t *testing.T) {
	u := testutil.LoadCatalog(t)

	out := mustRun(t, u, "add", "-f", "json",
		"--set", "title=Clafoutis", "--set", "servings=6", "--set", "tags=Cerises, été")
	var created map[string]interface{}
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	id := created["id"].(string)

	rec, ok := remoteRecords(t, u, "recipes")[id]
	if !ok {
		t.Fatalf("%s not committed", id)
	}
	if rec["title"] != "Clafoutis" || rec["servings"] != 6.0 {
		t.Errorf("committed record = %v", rec)
	}
	if diff := cmp.Diff([]interface{}{"cerises", "été"}, rec["tags"]); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}

	t.Run("draft", func(t *testing.T) {
		out := mustRun(t, u, "add", "-f", "json", "--draft", "--set", "id=brouillon", "--set", "title=Brouillon")
		if !strings.Contains(out, "brouillon") {
			t.Fatalf("unexpected output:\n%s", out)
		}
		if _, ok := draftRecords(t, u, "recipes")["brouillon"]; !ok {
			t.Error("draft not stored in the overlay")
		}
		if _, ok := remoteRecords(t, u, "recipes")["brouillon"]; ok {
			t.Error("draft should not be committed")
		}
	})

	t.Run("invalid", func(t *testing.T) {
		writes := u.Remote.Writes
		_, err := run(t, u, "add", "--set", "servings=0")
		var verrs odm.ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("expected validation errors, got %v", err)
		}
		if _, ok := verrs["title"]; !ok {
			t.Errorf("title should fail validation: %v", verrs)
		}
		if _, ok := verrs["servings"]; !ok {
			t.Errorf("servings should fail validation: %v", verrs)
		}
		if u.Remote.Writes != writes {
			t.Error("an invalid document must not be written")
		}
	})

	t.Run("bad values", func(t *testing.T) {
		if _, err := run(t, u, "add", "--set", "servings=many"); err == nil {
			t.Error("expected a parse error")
		}
		if _, err := run(t, u, "add", "--set", "colour=red"); err == nil {
			t.Error("expected an unknown field error")
		}
		if _, err := run(t, u, "add", "--set", "title"); err == nil {
			t.Error("expected a field=value error")
		}
	})
}

func TestEdit(t *testing.T) {
	u := testutil.LoadCatalog(t)

	mustRun(t, u, "edit", testutil.Ramen, "--set", "servings=3", "--unset", "prepMinutes")
	rec := remoteRecords(t, u, "recipes")[testutil.Ramen]
	if rec["servings"] != 3.0 {
		t.Errorf("servings = %v, want 3", rec["servings"])
	}
	if rec["prepMinutes"] != nil {
		t.Errorf("prepMinutes = %v, want cleared", rec["prepMinutes"])
	}

	t.Run("as draft", func(t *testing.T) {
		mustRun(t, u, "edit", testutil.Risotto, "--set", "favorite=true", "--draft")
		if remoteRecords(t, u, "recipes")[testutil.Risotto]["favorite"] != false {
			t.Error("draft edit should leave the remote record alone")
		}
		if draftRecords(t, u, "recipes")[testutil.Risotto]["favorite"] != true {
			t.Error("draft edit not stored")
		}
	})

	t.Run("errors", func(t *testing.T) {
		if _, err := run(t, u, "edit", "nope", "--set", "servings=2"); !errors.Is(err, odm.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := run(t, u, "edit", testutil.Ramen, "--set", "id=other"); err == nil {
			t.Error("changing the id should fail")
		}
		if _, err := run(t, u, "edit", testutil.Ramen, "--unset", "colour"); err == nil {
			t.Error("unsetting an unknown field should fail")
		}
	})
}

func TestDelete(t *testing.T) {
	u := testutil.LoadCatalog(t)

	out := mustRun(t, u, "delete", testutil.Glacage)
	if out != "discarded draft "+testutil.Glacage+"\n" {
		t.Errorf("unexpected output %q", out)
	}
	out = mustRun(t, u, "show", testutil.Glacage, "-f", "json")
	if !strings.Contains(out, `"title": "Glaçage miroir"`) {
		t.Errorf("the committed version should remain:\n%s", out)
	}

	out = mustRun(t, u, "delete", testutil.Risotto)
	if out != "deleted "+testutil.Risotto+"\n" {
		t.Errorf("unexpected output %q", out)
	}
	if _, ok := remoteRecords(t, u, "recipes")[testutil.Risotto]; ok {
		t.Error("risotto should be removed from the remote store")
	}
}

func TestDraftsAndPublish(t *testing.T) {
	u := testutil.LoadCatalog(t)

	out := mustRun(t, u, "drafts")
	if diff := cmp.Diff([]string{testutil.Glacage, testutil.Tatin}, tableIDs(out)); diff != "" {
		t.Errorf("drafts mismatch (-want +got):\n%s", diff)
	}

	if _, err := run(t, u, "publish"); err == nil {
		t.Error("publish without ids or --all should fail")
	}
	if _, err := run(t, u, "publish", testutil.Royal); !errors.Is(err, odm.ErrNotFound) {
		t.Errorf("publishing a document without draft should fail with ErrNotFound, got %v", err)
	}

	if out := mustRun(t, u, "publish", testutil.Tatin); out != "published 1 draft\n" {
		t.Errorf("unexpected output %q", out)
	}
	if _, ok := remoteRecords(t, u, "recipes")[testutil.Tatin]; !ok {
		t.Error("tatin should be committed")
	}

	if out := mustRun(t, u, "publish", "--all"); out != "published 1 draft\n" {
		t.Errorf("unexpected output %q", out)
	}
	if got := remoteRecords(t, u, "recipes")[testutil.Glacage]["title"]; got != "Glaçage miroir noir" {
		t.Errorf("glacage title = %v after publish", got)
	}
	if drafts := draftRecords(t, u, "recipes"); len(drafts) != 0 {
		t.Errorf("overlay should be empty, got %d drafts", len(drafts))
	}
	if out := mustRun(t, u, "drafts"); len(tableIDs(out)) != 0 {
		t.Errorf("no drafts expected:\n%s", out)
	}
}

func TestImport(t *testing.T) {
	u := testutil.LoadCatalog(t)
	dir := t.TempDir()

	arrayFile := filepath.Join(dir, "recipes.jsonc")
	arrayContent := `// pancakes for the Chandeleur
[
  {"id": "imp-crepes", "title": "Crêpes", "servings": 4, "tags": ["Chandeleur"],},
]`
	if err := os.WriteFile(arrayFile, []byte(arrayContent), 0o644); err != nil {
		t.Fatal(err)
	}
	if out := mustRun(t, u, "import", arrayFile); out != "imported 1 recipes\n" {
		t.Errorf("unexpected output %q", out)
	}
	rec := remoteRecords(t, u, "recipes")["imp-crepes"]
	if rec == nil || rec["title"] != "Crêpes" {
		t.Fatalf("imported record = %v", rec)
	}

	objectFile := filepath.Join(dir, "catalog.json")
	objectContent := `{
  "categories": [{"id": "cat-soupes", "name": "Soupes"}],
  "recipes": [{"id": "imp-veloute", "title": "Velouté", "category": "cat-soupes"}]
}`
	if err := os.WriteFile(objectFile, []byte(objectContent), 0o644); err != nil {
		t.Fatal(err)
	}
	out := mustRun(t, u, "import", objectFile, "--draft")
	if out != "imported 1 categories\nimported 1 recipes\n" {
		t.Errorf("unexpected output %q", out)
	}
	if _, ok := draftRecords(t, u, "categories")["cat-soupes"]; !ok {
		t.Error("category should be imported as a draft")
	}

	t.Run("invalid record aborts before writing", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		content := `[{"id": "ok", "title": "Fine"}, {"id": "bad", "title": ""}]`
		if err := os.WriteFile(bad, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		writes := u.Remote.Writes
		if _, err := run(t, u, "import", bad); err == nil || !strings.Contains(err.Error(), "record 1") {
			t.Errorf("expected an error naming record 1, got %v", err)
		}
		if u.Remote.Writes != writes {
			t.Error("nothing should be written when a record is invalid")
		}
	})

	t.Run("unknown collection", func(t *testing.T) {
		file := filepath.Join(dir, "widgets.json")
		if err := os.WriteFile(file, []byte(`{"widgets": [{}]}`), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := run(t, u, "import", file); !errors.Is(err, odm.ErrUnknownModel) {
			t.Errorf("expected ErrUnknownModel, got %v", err)
		}
	})
}

func TestImport_ExportedDocuments(t *testing.T) {
	u := testutil.LoadCatalog(t)
	dir := filepath.Join(t.TempDir(), "export")
	mustRun(t, u, "export", "--dir", dir, "--filter", "cuisine=cui-jp")
	mustRun(t, u, "export", "--as", "plaintext", "--dir", dir, "--filter", "cuisine=cui-jp")

	findCopy := func(records map[string]map[string]interface{}) map[string]interface{} {
		for id, rec := range records {
			if id != "rec-ramen" && rec["title"] == "Ramen shoyu" {
				return rec
			}
		}
		return nil
	}

	out := mustRun(t, u, "import", filepath.Join(dir, "ramen-shoyu-rec-ramen.md"))
	if out != "imported 1 recipes\n" {
		t.Errorf("unexpected output %q", out)
	}
	rec := findCopy(remoteRecords(t, u, "recipes"))
	if rec == nil {
		t.Fatal("markdown import should create a copy of the recipe")
	}
	want := map[string]interface{}{
		"description": "Bouillon de poulet à la sauce soja",
		"category":    "cat-plats",
		"cuisine":     "cui-jp",
		"ingredients": []interface{}{"nouilles", "sauce soja", "œufs"},
		"steps":       []interface{}{"Préparer le bouillon", "Cuire les nouilles"},
		"servings":    2.0,
		"favorite":    true,
	}
	for k, v := range want {
		if diff := cmp.Diff(v, rec[k]); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", k, diff)
		}
	}

	mustRun(t, u, "import", "--draft", filepath.Join(dir, "ramen-shoyu-rec-ramen.txt"))
	draft := findCopy(draftRecords(t, u, "recipes"))
	if draft == nil {
		t.Fatal("plain text import should create a draft")
	}
	if draft["cuisine"] != "cui-jp" || draft["prepMinutes"] != 120.0 {
		t.Errorf("draft = %v", draft)
	}

	t.Run("unknown reference label", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "tajine.md")
		content := "---\ncuisine: Marocaine\n---\n\n# Tajine\n"
		if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		writes := u.Remote.Writes
		if _, err := run(t, u, "import", file); err == nil || !strings.Contains(err.Error(), "Marocaine") {
			t.Errorf("expected an unresolved cuisine error, got %v", err)
		}
		if u.Remote.Writes != writes {
			t.Error("nothing should be written for an unresolved reference")
		}
	})
}

func TestExport(t *testing.T) {
	u := testutil.LoadCatalog(t)

	out := mustRun(t, u, "export", "--filter", "cuisine=cui-jp")
	for _, want := range []string{"# Ramen shoyu", "cuisine: Japonaise", "category: Plats", "## Ingredients", "- nouilles", "Bouillon de poulet"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown export missing %q:\n%s", want, out)
		}
	}

	dir := filepath.Join(t.TempDir(), "export")
	out = mustRun(t, u, "export", "--as", "plaintext", "--dir", dir, "--filter", "favorite=true")
	if out != "exported 3 documents to "+dir+"\n" {
		t.Errorf("unexpected output %q", out)
	}
	data, err := os.ReadFile(filepath.Join(dir, "ramen-shoyu-rec-ramen.txt"))
	if err != nil {
		t.Fatalf("exported file missing: %v", err)
	}
	for _, want := range []string{"cuisine: Japonaise", "---\n\nRamen shoyu\n\n", "Ingredients:\n  - nouilles"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("plaintext export missing %q:\n%s", want, data)
		}
	}

	if _, err := run(t, u, "export", "--as", "pdf"); err == nil {
		t.Error("expected an unknown format error")
	}
}

func TestGlobalErrors(t *testing.T) {
	u := testutil.LoadCatalog(t)

	if _, err := run(t, u, "list", "-f", "xml"); err == nil {
		t.Error("expected an unknown output format error")
	}
	if _, err := run(t, u, "list", "-c", "widgets"); !errors.Is(err, odm.ErrUnknownModel) {
		t.Errorf("expected ErrUnknownModel, got %v", err)
	}
	if _, err := run(t, u, "list", "--remote", "s3"); err == nil {
		t.Error("expected a configuration error for an unknown backend")
	}
	if _, err := run(t, u, "list", "--sort", "title:sideways"); err == nil {
		t.Error("expected a sort error")
	}
}
