package odm

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Schema holds the field definitions and lifecycle hooks of a collection
type Schema struct {
	fields Fields
	hooks  map[Event][]Hook
	now    func() time.Time
}

// NewSchema creates a schema with the given fields. Every schema owns an "id"
// field defaulting to a new UUID; fields may redefine it.
func NewSchema(fields Fields) *Schema {
	s := &Schema{
		fields: Fields{
			"id": {Type: ID, Default: func() interface{} { return uuid.New().String() }},
		},
		hooks: make(map[Event][]Hook),
		now:   time.Now,
	}
	return s.Add(fields)
}

// Add merges field definitions into the schema, replacing existing ones
func (s *Schema) Add(fields Fields) *Schema {
	for name, f := range fields {
		s.fields[name] = f
	}
	return s
}

// Field returns the definition of name
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Paths returns every field name, sorted
func (s *Schema) Paths() []string {
	paths := make([]string, 0, len(s.fields))
	for name := range s.fields {
		paths = append(paths, name)
	}
	sort.Strings(paths)
	return paths
}

// SearchableFields returns the sorted names of fields marked Searchable
func (s *Schema) SearchableFields() []string {
	var paths []string
	for _, name := range s.Paths() {
		if s.fields[name].Searchable {
			paths = append(paths, name)
		}
	}
	return paths
}

// SetTimeFunc replaces the clock used by Timestamps
func (s *Schema) SetTimeFunc(fn func() time.Time) *Schema {
	s.now = fn
	return s
}

// Timestamps adds createdAt and updatedAt fields and a save hook stamping
// them. updatedAt is set on every save, createdAt on the first save of a new
// document. Installing it twice registers the hook twice.
func (s *Schema) Timestamps() *Schema {
	s.Add(Fields{
		"createdAt": {Type: Time},
		"updatedAt": {Type: Time},
	})
	return s.Pre(OpSave, func(_ context.Context, d *Document, _ SaveOptions) error {
		now := s.now()
		d.Set("updatedAt", now)
		if d.IsNew() && d.Get("createdAt") == nil {
			d.Set("createdAt", now)
		}
		return nil
	})
}
