package odm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a save or delete references an id absent
	// from the partition it targets
	ErrNotFound = errors.New("document not found")

	// ErrNoOperation is returned when a query is executed before Find,
	// FindOne, FindByID, Count or Search selected what it does
	ErrNoOperation = errors.New("query has no operation")

	// ErrUnknownModel is returned when a name does not resolve to a
	// registered model
	ErrUnknownModel = errors.New("unknown model")
)

// ValidationError describes one field that failed its validator
type ValidationError struct {
	Path  string      `json:"path"`
	Value interface{} `json:"value"`
}

// ValidationErrors maps failing field names to their error. Validate returns
// it as data; it also implements error for callers treating it as fatal.
type ValidationErrors map[string]ValidationError

func (v ValidationErrors) Error() string {
	paths := make([]string, 0, len(v))
	for p := range v {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	parts := make([]string, len(paths))
	for i, p := range paths {
		parts[i] = fmt.Sprintf("%s (%v)", p, v[p].Value)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}
