package odm

import "fmt"

// Filter maps field names to expected values. The keys "$and" and "$or"
// hold lists of sub-filters; an empty or absent list is vacuously true.
// "$search" holds a text ranked by relevance and is ignored when matching.
//
// A field matches when its value equals the expected one under the field's
// type. An array field matches a scalar by membership and an array element
// by element. A missing field equals nil.
type Filter map[string]interface{}

const (
	keyAnd    = "$and"
	keyOr     = "$or"
	keySearch = "$search"
)

// searchText returns the $search entry of the filter
func (f Filter) searchText() string {
	s, _ := f[keySearch].(string)
	return s
}

// subFilters accepts the list shapes a caller or a JSON decoder produces
func subFilters(v interface{}) ([]Filter, bool) {
	switch list := v.(type) {
	case nil:
		return nil, true
	case []Filter:
		return list, true
	case []map[string]interface{}:
		out := make([]Filter, len(list))
		for i, f := range list {
			out[i] = f
		}
		return out, true
	case []interface{}:
		out := make([]Filter, 0, len(list))
		for _, el := range list {
			switch f := el.(type) {
			case Filter:
				out = append(out, f)
			case map[string]interface{}:
				out = append(out, f)
			default:
				return nil, false
			}
		}
		return out, true
	}
	return nil, false
}

// matches reports whether d satisfies the filter
func (f Filter) matches(d *Document) bool {
	for key, expected := range f {
		switch key {
		case keyAnd:
			subs, ok := subFilters(expected)
			if !ok {
				return false
			}
			for _, sub := range subs {
				if !sub.matches(d) {
					return false
				}
			}
		case keyOr:
			subs, ok := subFilters(expected)
			if !ok {
				return false
			}
			if len(subs) == 0 {
				continue
			}
			found := false
			for _, sub := range subs {
				if sub.matches(d) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case keySearch:
			continue
		default:
			if !fieldMatches(d, key, expected) {
				return false
			}
		}
	}
	return true
}

func fieldMatches(d *Document, path string, expected interface{}) bool {
	actual := d.Get(path)
	if f, ok := d.model.schema.fields[path]; ok && f.Type != Array {
		expected = normalize(f.Type, expected)
	}

	list, isList := actual.([]interface{})
	if !isList {
		return valuesEqual(actual, expected)
	}
	if want, ok := normalize(Array, expected).([]interface{}); ok {
		return valuesEqual(list, want)
	}
	for _, el := range list {
		if valuesEqual(el, expected) {
			return true
		}
	}
	return false
}

// ParseFilter builds an equality filter from textual values, e.g. query
// parameters. Each value is parsed with its field's type; an array field
// keeps the raw text so it matches by membership. Unknown fields are an
// error.
func (s *Schema) ParseFilter(params map[string]string) (Filter, error) {
	filter := make(Filter, len(params))
	for name, raw := range params {
		f, ok := s.fields[name]
		if !ok {
			return nil, fmt.Errorf("unknown field %q", name)
		}
		if f.Type == Array {
			filter[name] = raw
			continue
		}
		v, err := f.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		filter[name] = v
	}
	return filter, nil
}
