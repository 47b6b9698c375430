package model

import (
	"fmt"
	"sort"
	"sync"

	"github.com/folio-db/folio/dal"
	"github.com/folio-db/folio/schema"
)

// Registry holds the models of one application, bound to one database
// handle. Registration is explicit; nothing is registered as a side
// effect of importing a package. Safe for concurrent use.
type Registry struct {
	db     *dal.DB
	mu     sync.RWMutex
	models map[string]*Model
}

// NewRegistry returns an empty registry bound to db.
func NewRegistry(db *dal.DB) *Registry {
	return &Registry{db: db, models: make(map[string]*Model)}
}

// Register binds the schema to the registry's database handle and
// records the model under the schema's logical name. Registering the
// same name twice is an error.
func (r *Registry) Register(s *schema.Schema, opts ...Option) (*Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.models[s.Name()]; dup {
		return nil, fmt.Errorf("folio/model: model %q already registered", s.Name())
	}
	m := New(r.db, s, opts...)
	r.models[s.Name()] = m
	return m, nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(s *schema.Schema, opts ...Option) *Model {
	m, err := r.Register(s, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Lookup returns the model registered under name.
func (r *Registry) Lookup(name string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// Models returns all registered models sorted by name.
func (r *Registry) Models() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Model, len(names))
	for i, name := range names {
		out[i] = r.models[name]
	}
	return out
}
