package formats

import (
	"testing"
	"time"
)

func TestPlainTextSerialize(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		content  string
		metadata map[string]interface{}
		want     string
	}{
		{
			name:    "with title and content",
			title:   "Tarte tatin",
			content: "Caraméliser les pommes.",
			want:    "Tarte tatin\n\nCaraméliser les pommes.",
		},
		{
			name:    "empty title",
			content: "Just content here.",
			want:    "Just content here.",
		},
		{
			name:    "empty content",
			title:   "Just Title",
			want:    "Just Title\n\n",
		},
		{
			name:    "multiline content",
			title:   "Title",
			content: "Line 1\nLine 2\nLine 3",
			want:    "Title\n\nLine 1\nLine 2\nLine 3",
		},
		{
			name:    "metadata sorted",
			title:   "Le Royal",
			content: "Mousse.",
			metadata: map[string]interface{}{
				"servings":  8,
				"favorite":  true,
				"updatedAt": time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
				"tags":      []interface{}{"chocolat", "fête"},
			},
			want: "favorite: true\nservings: 8\ntags: chocolat, fête\nupdatedAt: 2024-01-01T10:00:00Z\n---\n\nLe Royal\n\nMousse.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlainText.Serialize(tt.title, tt.content, tt.metadata)
			if got != tt.want {
				t.Errorf("Serialize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlainTextDeserialize(t *testing.T) {
	tests := []struct {
		name        string
		document    string
		wantTitle   string
		wantContent string
		wantError   bool
	}{
		{
			name:        "title and content",
			document:    "Le Royal\n\nMousse au chocolat.",
			wantTitle:   "Le Royal",
			wantContent: "Mousse au chocolat.",
		},
		{
			name:        "title and blank lines",
			document:    "Title\n\n\n\nContent after blanks.",
			wantTitle:   "Title",
			wantContent: "Content after blanks.",
		},
		{
			name:        "no blank second line",
			document:    "Line one\nLine two",
			wantContent: "Line one\nLine two",
		},
		{
			name:        "only title",
			document:    "Just Title\n\n",
			wantTitle:   "Just Title",
			wantContent: "",
		},
		{
			name:      "empty document",
			document:  "",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, content, _, err := PlainText.Deserialize(tt.document)
			if tt.wantError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if title != tt.wantTitle {
				t.Errorf("title = %q, want %q", title, tt.wantTitle)
			}
			if content != tt.wantContent {
				t.Errorf("content = %q, want %q", content, tt.wantContent)
			}
		})
	}
}

func TestPlainTextMetadataRoundTrip(t *testing.T) {
	metadata := map[string]interface{}{
		"id":        "r1",
		"servings":  8,
		"portions":  1,
		"ratio":     0.5,
		"favorite":  true,
		"createdAt": time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}

	serialized := PlainText.Serialize("Le Royal", "Mousse.", metadata)
	title, content, got, err := PlainText.Deserialize(serialized)
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if title != "Le Royal" || content != "Mousse." {
		t.Errorf("title=%q content=%q", title, content)
	}

	if got["id"] != "r1" || got["servings"] != 8 || got["portions"] != 1 || got["ratio"] != 0.5 || got["favorite"] != true {
		t.Errorf("metadata = %#v", got)
	}
	created, ok := got["createdAt"].(time.Time)
	if !ok || !created.Equal(metadata["createdAt"].(time.Time)) {
		t.Errorf("createdAt = %#v", got["createdAt"])
	}
	if len(got) != len(metadata) {
		t.Errorf("metadata has %d keys, want %d", len(got), len(metadata))
	}
}

func TestPlainTextHeading(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"Steps:", "Steps", true},
		{"Prep minutes:", "Prep minutes", true},
		{"  - Fondre", "", false},
		{"servings: 8", "", false},
		{"Servir chaud.", "", false},
	}
	for _, tt := range tests {
		got, ok := PlainText.Heading(tt.line)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Heading(%q) = %q, %v, want %q, %v", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPlainTextList(t *testing.T) {
	got := PlainText.List("Steps", []string{"Fondre", "Mélanger"})
	want := "Steps:\n  - Fondre\n  - Mélanger"
	if got != want {
		t.Errorf("List() = %q, want %q", got, want)
	}
}
