package formats

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Record renders a projected document (a field map as produced by
// ToObject) with format f. titleKey and bodyKey name the fields used as
// title and lead paragraph; every other list of strings becomes a section
// rendered with f.List, and the remaining non-empty fields become metadata.
func Record(f *DocumentFormat, rec map[string]interface{}, titleKey, bodyKey string) string {
	title, _ := rec[titleKey].(string)
	body, _ := rec[bodyKey].(string)

	keys := make([]string, 0, len(rec))
	for k := range rec {
		if k != titleKey && k != bodyKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var sections []string
	if strings.TrimSpace(body) != "" {
		sections = append(sections, strings.TrimSpace(body))
	}

	metadata := make(map[string]interface{})
	for _, k := range keys {
		v := rec[k]
		if items, ok := stringItems(v); ok && f.List != nil {
			if len(items) > 0 {
				sections = append(sections, f.List(heading(k), items))
			}
			continue
		}
		if v == nil {
			continue
		}
		metadata[k] = v
	}

	return f.Serialize(title, strings.Join(sections, "\n\n"), metadata)
}

// Parse reads a document rendered by Record back into a field map. The
// title goes to titleKey and the lead text to bodyKey. Each list section
// becomes a []interface{} under the field its heading names, and metadata
// entries are copied as decoded.
func Parse(f *DocumentFormat, document, titleKey, bodyKey string) (map[string]interface{}, error) {
	title, content, metadata, err := f.Deserialize(document)
	if err != nil {
		return nil, err
	}

	rec := make(map[string]interface{}, len(metadata)+2)
	for k, v := range metadata {
		rec[k] = v
	}
	if title != "" {
		rec[titleKey] = title
	}

	var body []string
	var section string
	for _, line := range strings.Split(content, "\n") {
		if f.Heading != nil {
			if h, ok := f.Heading(line); ok && h != "" {
				section = fieldName(h)
				rec[section] = []interface{}{}
				continue
			}
		}
		if section != "" {
			trimmed := strings.TrimSpace(line)
			if item, ok := strings.CutPrefix(trimmed, "- "); ok {
				rec[section] = append(rec[section].([]interface{}), strings.TrimSpace(item))
				continue
			}
			if trimmed == "" {
				continue
			}
			section = ""
		}
		body = append(body, line)
	}
	if text := strings.TrimSpace(strings.Join(body, "\n")); text != "" {
		rec[bodyKey] = text
	}
	return rec, nil
}

// fieldName reverses heading: "Prep minutes" becomes "prepMinutes"
func fieldName(heading string) string {
	var b strings.Builder
	for i, word := range strings.Fields(heading) {
		runes := []rune(strings.ToLower(word))
		if i > 0 {
			runes[0] = unicode.ToUpper(runes[0])
		}
		b.WriteString(string(runes))
	}
	return b.String()
}

// stringItems reports v as a list of strings when every element is one
func stringItems(v interface{}) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []interface{}:
		items := make([]string, 0, len(list))
		for _, el := range list {
			s, ok := el.(string)
			if !ok {
				return nil, false
			}
			items = append(items, s)
		}
		return items, true
	}
	return nil, false
}

// heading turns a field name like "prepMinutes" into "Prep minutes"
func heading(field string) string {
	var b strings.Builder
	for i, r := range field {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Filename returns a file name for a record exported with f
func Filename(f *DocumentFormat, id, title string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToLower(r)
		case r == ' ', r == '-', r == '_':
			return '-'
		}
		return -1
	}, strings.TrimSpace(title))
	if slug == "" {
		return fmt.Sprintf("%s%s", id, f.Extension)
	}
	return fmt.Sprintf("%s-%s%s", slug, id, f.Extension)
}
