package odm

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

// Document is one record bound to a Model. Field access goes through the
// schema: reads apply getters, writes apply setters and record the path as
// modified.
type Document struct {
	model    *Model
	doc      map[string]interface{}
	modified []string
	isNew    bool
	isDraft  bool
}

type access struct {
	noGetter bool
	noSetter bool
	skipMark bool
}

// AccessOption tunes a single Get or Set
type AccessOption func(*access)

// WithoutGetter returns the stored value as is
func WithoutGetter() AccessOption { return func(a *access) { a.noGetter = true } }

// WithoutSetter stores the value without the field's setter
func WithoutSetter() AccessOption { return func(a *access) { a.noSetter = true } }

// SkipMarkModified stores the value without recording the path as modified
func SkipMarkModified() AccessOption { return func(a *access) { a.skipMark = true } }

func accessOf(opts []AccessOption) access {
	var a access
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

func newDocument(m *Model) *Document {
	d := &Document{model: m, doc: make(map[string]interface{})}
	for _, path := range m.schema.Paths() {
		if v := m.schema.fields[path].defaultValue(); v != nil {
			d.Set(path, v, SkipMarkModified())
		}
	}
	return d
}

// Model returns the model the document belongs to
func (d *Document) Model() *Model { return d.model }

// ID returns the document's id
func (d *Document) ID() string { return idOf(d.doc["id"]) }

// Same reports whether both documents are the same logical record
func (d *Document) Same(other *Document) bool {
	return other != nil && d.ID() == other.ID()
}

// IsNew reports whether the document was never committed to the remote store
func (d *Document) IsNew() bool { return d.isNew }

// IsDraft reports whether the document lives in the draft overlay
func (d *Document) IsDraft() bool { return d.isDraft }

// Get returns the value at path through the field's getter
func (d *Document) Get(path string, opts ...AccessOption) interface{} {
	a := accessOf(opts)
	v := d.doc[path]
	if f, ok := d.model.schema.fields[path]; ok && f.Get != nil && !a.noGetter {
		return f.Get(v)
	}
	return v
}

// Set stores value at path through the field's setter and marks the path
// modified. Paths the schema does not declare are ignored.
func (d *Document) Set(path string, value interface{}, opts ...AccessOption) {
	f, ok := d.model.schema.fields[path]
	if !ok {
		return
	}
	a := accessOf(opts)
	if f.Set != nil && !a.noSetter {
		value = f.Set(value)
	}
	d.doc[path] = normalize(f.Type, value)
	if !a.skipMark {
		d.MarkModified(path)
	}
}

// Assign sets every entry of partial whose value differs from the current
// one, in key order. Slices and maps are compared by identity, not contents.
func (d *Document) Assign(partial map[string]interface{}) {
	for _, path := range sortedKeys(partial) {
		v := partial[path]
		f, ok := d.model.schema.fields[path]
		if !ok {
			continue
		}
		if sameValue(d.Get(path), normalize(f.Type, v)) {
			continue
		}
		d.Set(path, v)
	}
}

// IsModified reports whether any of paths is modified, or with no argument
// whether anything is
func (d *Document) IsModified(paths ...string) bool {
	if len(paths) == 0 {
		return len(d.modified) > 0
	}
	for _, p := range paths {
		if slices.Contains(d.modified, p) {
			return true
		}
	}
	return false
}

// MarkModified records path as modified
func (d *Document) MarkModified(path string) {
	if !slices.Contains(d.modified, path) {
		d.modified = append(d.modified, path)
	}
}

// UnmarkModified clears the modified flag of path
func (d *Document) UnmarkModified(path string) {
	d.modified = slices.DeleteFunc(d.modified, func(p string) bool { return p == path })
}

// ModifiedPaths returns the modified paths in the order they were first set
func (d *Document) ModifiedPaths() []string {
	return slices.Clone(d.modified)
}

func (d *Document) clearModified() {
	d.modified = nil
}

// ToObject projects every stored schema field through its getter and
// transform. References become their id; slices and maps are shallow
// copies. Falsy values (nil, false, 0, "") pass through unconverted.
func (d *Document) ToObject() map[string]interface{} {
	obj := make(map[string]interface{}, len(d.doc))
	for _, path := range d.model.schema.Paths() {
		if _, ok := d.doc[path]; !ok {
			continue
		}
		f := d.model.schema.fields[path]
		v := d.Get(path)
		if f.Transform != nil {
			v = f.Transform(v)
		}
		obj[path] = project(v)
	}
	return obj
}

func project(v interface{}) interface{} {
	if !truthy(v) {
		return v
	}
	switch x := v.(type) {
	case *Document:
		return x.ID()
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, el := range x {
			if doc, ok := el.(*Document); ok {
				out[i] = doc.ID()
				continue
			}
			out[i] = el
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, el := range x {
			out[k] = el
		}
		return out
	}
	return v
}

// Expanded is ToObject with populated references rendered as their own
// objects instead of their ids
func (d *Document) Expanded() map[string]interface{} {
	obj := d.ToObject()
	for path := range obj {
		switch v := d.doc[path].(type) {
		case *Document:
			obj[path] = v.Expanded()
		case []interface{}:
			if len(v) == 0 {
				continue
			}
			if _, ok := v[0].(*Document); !ok {
				continue
			}
			out := make([]interface{}, 0, len(v))
			for _, el := range v {
				if doc, ok := el.(*Document); ok {
					out = append(out, doc.Expanded())
				}
			}
			obj[path] = out
		}
	}
	return obj
}

// MarshalJSON encodes ToObject
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.ToObject())
}

// Validate runs every field validator against the current value. It returns
// nil when all pass; fields without a validator always pass.
func (d *Document) Validate() ValidationErrors {
	var errs ValidationErrors
	for _, path := range d.model.schema.Paths() {
		f := d.model.schema.fields[path]
		if f.Validate == nil {
			continue
		}
		v := d.Get(path)
		if f.Validate(v) {
			continue
		}
		if errs == nil {
			errs = make(ValidationErrors)
		}
		errs[path] = ValidationError{Path: path, Value: v}
	}
	return errs
}

// Populate replaces the id (or ids) stored at path with the referenced
// documents, looked up with FindByID on the field's Ref model. A missing
// single reference becomes nil; missing array elements are dropped. Fields
// without Ref are left alone.
func (d *Document) Populate(ctx context.Context, path string) error {
	f, ok := d.model.schema.fields[path]
	if !ok || f.Ref == "" {
		return nil
	}
	target, err := d.model.registry.Lookup(f.Ref)
	if err != nil {
		return fmt.Errorf("populate %s.%s: %w", d.model.name, path, err)
	}

	switch v := d.doc[path].(type) {
	case nil:
		return nil
	case []interface{}:
		resolved := make([]interface{}, 0, len(v))
		for _, el := range v {
			id := idOf(el)
			if id == "" {
				continue
			}
			ref, err := target.FindByID(id).ExecOne(ctx)
			if err != nil {
				return fmt.Errorf("populate %s.%s: %w", d.model.name, path, err)
			}
			if ref != nil {
				resolved = append(resolved, ref)
			}
		}
		d.doc[path] = resolved
	default:
		id := idOf(v)
		if id == "" {
			return nil
		}
		ref, err := target.FindByID(id).ExecOne(ctx)
		if err != nil {
			return fmt.Errorf("populate %s.%s: %w", d.model.name, path, err)
		}
		if ref == nil {
			d.doc[path] = nil
			return nil
		}
		d.doc[path] = ref
	}
	return nil
}

// Save persists the document; see Model.Save
func (d *Document) Save(ctx context.Context, opts SaveOptions) error {
	return d.model.Save(ctx, d, opts)
}

// Delete removes the document; see Model.Delete
func (d *Document) Delete(ctx context.Context) error {
	return d.model.Delete(ctx, d)
}
