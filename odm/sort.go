package odm

import (
	"fmt"
	"sort"
	"strings"
)

// Direction is a sort direction
type Direction int

const (
	Asc  Direction = 1
	Desc Direction = -1
)

// SortKey orders by one field
type SortKey struct {
	Field string
	Dir   Direction
}

// ParseDirection accepts 1, "asc" and "ascending" or -1, "desc" and
// "descending"
func ParseDirection(v interface{}) (Direction, error) {
	switch d := v.(type) {
	case Direction:
		if d == Asc || d == Desc {
			return d, nil
		}
	case string:
		switch strings.ToLower(d) {
		case "1", "asc", "ascending":
			return Asc, nil
		case "-1", "desc", "descending":
			return Desc, nil
		}
	default:
		if f, ok := toFloat(v); ok {
			switch f {
			case 1:
				return Asc, nil
			case -1:
				return Desc, nil
			}
		}
	}
	return 0, fmt.Errorf("invalid sort direction: %v", v)
}

// ParseSort parses "field[:dir],field[:dir]...", e.g. "updatedAt:desc,title".
// A leading "-" on a field also means descending.
func ParseSort(spec string) ([]SortKey, error) {
	var keys []SortKey
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		field, dir, hasDir := strings.Cut(part, ":")
		key := SortKey{Field: strings.TrimSpace(field), Dir: Asc}
		if strings.HasPrefix(key.Field, "-") {
			key.Field, key.Dir = key.Field[1:], Desc
		}
		if hasDir {
			d, err := ParseDirection(strings.TrimSpace(dir))
			if err != nil {
				return nil, err
			}
			key.Dir = d
		}
		if key.Field == "" {
			return nil, fmt.Errorf("invalid sort: empty field in %q", spec)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// sortDocuments orders docs by keys; the first key that tells two documents
// apart decides. Equal documents keep their order.
func sortDocuments(docs []*Document, keys []SortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range keys {
			c := compareValues(docs[i].Get(key.Field), docs[j].Get(key.Field))
			if c == 0 {
				continue
			}
			if key.Dir == Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}
