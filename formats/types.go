// Package formats renders documents as human-readable text for export and
// reads them back for import.
package formats

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// DocumentFormat defines how documents are serialized and deserialized
type DocumentFormat struct {
	// Name is the format identifier (alphanumeric, dashes, underscores, lowercase)
	Name string

	// Extension is the file extension including the dot (e.g., ".txt", ".md")
	Extension string

	// Serialize converts title, content and optional metadata into the
	// formatted document string
	Serialize func(title, content string, metadata map[string]interface{}) string

	// Deserialize extracts title, content and metadata from the formatted
	// document string. Returns empty title if none found, error if both
	// title and content are empty
	Deserialize func(document string) (title string, content string, metadata map[string]interface{}, err error)

	// List renders a titled list of items as one content section
	List func(heading string, items []string) string

	// Heading reports whether line opens a section rendered by List, and
	// its heading
	Heading func(line string) (string, bool)
}

// registry holds all available document formats
var registry = make(map[string]*DocumentFormat)

// Register adds a new document format to the registry
func Register(format *DocumentFormat) error {
	// Validate format name (alphanumeric, dashes, underscores, lowercase)
	if !isValidFormatName(format.Name) {
		return fmt.Errorf("invalid format name %q: must be lowercase alphanumeric with dashes and underscores only", format.Name)
	}

	// Normalize extension
	if !strings.HasPrefix(format.Extension, ".") {
		format.Extension = "." + format.Extension
	}

	if _, exists := registry[format.Name]; exists {
		return fmt.Errorf("format %q already registered", format.Name)
	}

	registry[format.Name] = format
	return nil
}

// Get returns a document format by name
func Get(name string) (*DocumentFormat, error) {
	format, exists := registry[name]
	if !exists {
		return nil, fmt.Errorf("unknown format %q (available: %s)", name, strings.Join(List(), ", "))
	}
	return format, nil
}

// ForFile returns the format whose extension matches path
func ForFile(path string) (*DocumentFormat, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, name := range List() {
		if f := registry[name]; f.Extension == ext {
			return f, true
		}
	}
	return nil, false
}

// List returns all registered format names, sorted
func List() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// isValidFormatName checks if a format name is valid
func isValidFormatName(name string) bool {
	if name == "" {
		return false
	}

	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' && r != '_' {
			return false
		}
	}
	return true
}
