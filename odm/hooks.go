package odm

import (
	"context"
	"fmt"
)

// Event is a point in a document's lifecycle where hooks run
type Event int

const (
	BeforeSave Event = iota
	AfterSave
	BeforeDelete
	AfterDelete
)

func (e Event) String() string {
	switch e {
	case BeforeSave:
		return "before save"
	case AfterSave:
		return "after save"
	case BeforeDelete:
		return "before delete"
	case AfterDelete:
		return "after delete"
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// Op is an operation hooks can wrap with Pre and Post
type Op int

const (
	OpSave Op = iota
	OpDelete
)

// SaveOptions are passed to Save and to every hook
type SaveOptions struct {
	// AsDraft keeps the document in the local draft overlay instead of
	// committing it to the remote store
	AsDraft bool
}

// Hook runs around a save or delete. A before hook returning an error
// aborts the operation before any storage I/O.
type Hook func(ctx context.Context, d *Document, opts SaveOptions) error

// On registers h for event. Hooks run in registration order.
func (s *Schema) On(event Event, h Hook) *Schema {
	s.hooks[event] = append(s.hooks[event], h)
	return s
}

// Pre registers h to run before op
func (s *Schema) Pre(op Op, h Hook) *Schema {
	if op == OpDelete {
		return s.On(BeforeDelete, h)
	}
	return s.On(BeforeSave, h)
}

// Post registers h to run after op succeeded
func (s *Schema) Post(op Op, h Hook) *Schema {
	if op == OpDelete {
		return s.On(AfterDelete, h)
	}
	return s.On(AfterSave, h)
}

// Exec runs the hooks registered for event sequentially and stops at the
// first error
func (s *Schema) Exec(ctx context.Context, event Event, d *Document, opts SaveOptions) error {
	for i, h := range s.hooks[event] {
		if err := h(ctx, d, opts); err != nil {
			return fmt.Errorf("%s hook %d: %w", event, i, err)
		}
	}
	return nil
}
