package entities

import (
	"context"
	"sync"
)

// Source resolves instances of a single entity type to their serialized
// attribute map. Implementations return (nil, nil) when the id is unknown.
type Source interface {
	FindByID(ctx context.Context, id int64) (map[string]any, error)
}

// Resolver is the capability-lookup table keyed by type identifier. Types
// without a registered source resolve to nil rather than failing: the ledger
// keeps history for entities this service cannot materialize.
type Resolver struct {
	mu      sync.RWMutex
	sources map[string]Source
}

func NewResolver() *Resolver {
	return &Resolver{sources: make(map[string]Source)}
}

// Register installs the source for a type identifier, replacing any
// previous registration.
func (r *Resolver) Register(typeIdentifier string, source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[typeIdentifier] = source
}

// Registered reports whether a source exists for the type identifier.
func (r *Resolver) Registered(typeIdentifier string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sources[typeIdentifier]
	return ok
}

// Resolve materializes the referenced entity, or nil when the type has no
// source or the instance does not exist.
func (r *Resolver) Resolve(ctx context.Context, ref Ref) (map[string]any, error) {
	if ref.IsZero() {
		return nil, nil
	}

	r.mu.RLock()
	source, ok := r.sources[ref.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	return source.FindByID(ctx, ref.ID)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, id int64) (map[string]any, error)

func (f SourceFunc) FindByID(ctx context.Context, id int64) (map[string]any, error) {
	return f(ctx, id)
}
