package odm

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/arthur-debert/cookbook/storage"
)

// CachePolicy decides which partitions a Model keeps in memory
type CachePolicy int

const (
	// CacheRemote caches the remote partition for the registry's lifetime
	// and re-reads drafts on every fetch, so same-session draft edits made
	// elsewhere show up immediately
	CacheRemote CachePolicy = iota

	// CacheAll caches both partitions
	CacheAll
)

// ParseCachePolicy maps "remote" and "all" to their policy
func ParseCachePolicy(s string) (CachePolicy, error) {
	switch s {
	case "", "remote":
		return CacheRemote, nil
	case "all":
		return CacheAll, nil
	}
	return 0, fmt.Errorf("unknown cache policy: %q (supported: remote, all)", s)
}

// Registry owns the storage collaborators and every registered Model.
// Models resolve references through their registry.
type Registry struct {
	remote storage.Remote
	drafts storage.Drafts
	logger *slog.Logger
	policy CachePolicy

	mu     sync.RWMutex
	models map[string]*Model
}

// Option configures a Registry
type Option func(*Registry)

// WithLogger sets the logger used by the registry and its models
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithCachePolicy selects what models cache between fetches
func WithCachePolicy(policy CachePolicy) Option {
	return func(r *Registry) {
		r.policy = policy
	}
}

// NewRegistry creates a registry over the given stores
func NewRegistry(remote storage.Remote, drafts storage.Drafts, opts ...Option) *Registry {
	r := &Registry{
		remote: remote,
		drafts: drafts,
		logger: slog.Default(),
		models: make(map[string]*Model),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Model registers schema under the collection name and returns its Model.
// Registering a name again replaces the previous model.
func (r *Registry) Model(name string, schema *Schema) *Model {
	m := &Model{
		name:     name,
		schema:   schema,
		registry: r,
		logger:   r.logger.With("collection", name),
	}

	r.mu.Lock()
	r.models[name] = m
	r.mu.Unlock()
	return m
}

// Lookup returns the model registered under name
func (r *Registry) Lookup(name string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return m, nil
}

// Names returns the registered collection names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Refresh drops the caches of every model
func (r *Registry) Refresh() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.models {
		m.Refresh()
	}
}
