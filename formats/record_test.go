package formats

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func recipeRecord() map[string]interface{} {
	return map[string]interface{}{
		"id":          "r1",
		"title":       "Le Royal",
		"description": "Mousse au chocolat sur croustillant praliné.",
		"ingredients": []interface{}{"200 g chocolat noir", "3 oeufs"},
		"steps":       []interface{}{"Fondre le chocolat", "Monter les blancs"},
		"tags":        []interface{}{},
		"servings":    8.0,
		"prepMinutes": 45.0,
		"category":    nil,
		"updatedAt":   time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestRecordMarkdown(t *testing.T) {
	got := Record(Markdown, recipeRecord(), "title", "description")

	wantInOrder := []string{
		"---\n",
		"id: r1",
		"prepMinutes: 45",
		"servings: 8",
		"---\n\n# Le Royal\n\nMousse au chocolat sur croustillant praliné.",
		"## Ingredients\n\n- 200 g chocolat noir\n- 3 oeufs",
		"## Steps\n\n- Fondre le chocolat\n- Monter les blancs",
	}
	rest := got
	for _, want := range wantInOrder {
		i := strings.Index(rest, want)
		if i < 0 {
			t.Fatalf("output missing %q (in order)\nGot:\n%s", want, got)
		}
		rest = rest[i+len(want):]
	}

	for _, absent := range []string{"category", "Tags", "description:"} {
		if strings.Contains(got, absent) {
			t.Errorf("output should not contain %q\nGot:\n%s", absent, got)
		}
	}
}

func TestRecordPlainText(t *testing.T) {
	got := Record(PlainText, recipeRecord(), "title", "description")

	if !strings.Contains(got, "\n---\n\nLe Royal\n\nMousse au chocolat") {
		t.Errorf("missing title block\nGot:\n%s", got)
	}
	if !strings.Contains(got, "Ingredients:\n  - 200 g chocolat noir\n  - 3 oeufs") {
		t.Errorf("missing ingredients section\nGot:\n%s", got)
	}
	if !strings.Contains(got, "updatedAt: 2024-01-01T10:00:00Z") {
		t.Errorf("missing timestamp metadata\nGot:\n%s", got)
	}
}

func TestParse(t *testing.T) {
	for _, f := range []*DocumentFormat{Markdown, PlainText} {
		t.Run(f.Name, func(t *testing.T) {
			doc := Record(f, recipeRecord(), "title", "description")
			got, err := Parse(f, doc, "title", "description")
			if err != nil {
				t.Fatalf("parse: %v\n%s", err, doc)
			}

			want := map[string]interface{}{
				"id":          "r1",
				"title":       "Le Royal",
				"description": "Mousse au chocolat sur croustillant praliné.",
				"ingredients": []interface{}{"200 g chocolat noir", "3 oeufs"},
				"steps":       []interface{}{"Fondre le chocolat", "Monter les blancs"},
			}
			for k, v := range want {
				if diff := cmp.Diff(v, got[k]); diff != "" {
					t.Errorf("%s mismatch (-want +got):\n%s", k, diff)
				}
			}
			if s := fmt.Sprint(got["servings"]); s != "8" {
				t.Errorf("servings = %q, want 8", s)
			}
			if _, ok := got["tags"]; ok {
				t.Errorf("empty list should not be rendered, got tags %v", got["tags"])
			}
		})
	}
}

func TestParse_BodyAfterList(t *testing.T) {
	doc := "# Soupe\n\nChaude.\n\n## Ingredients\n\n- eau\n- sel\n\nServir vite."
	got, err := Parse(Markdown, doc, "title", "description")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := map[string]interface{}{
		"title":       "Soupe",
		"description": "Chaude.\n\nServir vite.",
		"ingredients": []interface{}{"eau", "sel"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parse mismatch (-want +got):\n%s", diff)
	}

	if _, err := Parse(PlainText, "  \n", "title", "description"); err == nil {
		t.Error("expected an error for an empty document")
	}
}

func TestFieldName(t *testing.T) {
	for _, field := range []string{"steps", "prepMinutes", "x"} {
		if got := fieldName(heading(field)); got != field {
			t.Errorf("fieldName(heading(%q)) = %q", field, got)
		}
	}
}

func TestForFile(t *testing.T) {
	tests := map[string]string{
		"le-royal-r1.md": "markdown",
		"NOTES.TXT":      "plaintext",
		"recipes.json":   "",
	}
	for path, want := range tests {
		f, ok := ForFile(path)
		got := ""
		if ok {
			got = f.Name
		}
		if got != want {
			t.Errorf("ForFile(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestHeading(t *testing.T) {
	tests := map[string]string{
		"steps":       "Steps",
		"prepMinutes": "Prep minutes",
		"x":           "X",
	}
	for in, want := range tests {
		if got := heading(in); got != want {
			t.Errorf("heading(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		format *DocumentFormat
		id     string
		title  string
		want   string
	}{
		{Markdown, "r1", "Le Royal", "le-royal-r1.md"},
		{PlainText, "r2", "Crème brûlée!", "crème-brûlée-r2.txt"},
		{Markdown, "r3", "  ", "r3.md"},
	}
	for _, tt := range tests {
		if got := Filename(tt.format, tt.id, tt.title); got != tt.want {
			t.Errorf("Filename(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}
