package sources

import "github.com/helixir/paper-search-service/internal/domain"

// Registry holds all source instances, indexed by id and queryable by
// capability. It is the routing authority for the dispatch engine.
//
// A registry is populated once during process startup and is read-only
// afterwards; there is no removal API and Register must not be called
// concurrently with reads. After construction it is safe for unsynchronized
// concurrent reads from any number of dispatch calls.
type Registry struct {
	byID  map[string]Source
	order []Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Source)}
}

// Register adds a source. It returns *domain.DuplicateSourceError if the id
// is already present, leaving the registry unchanged. Called only during
// process startup.
func (r *Registry) Register(source Source) error {
	id := source.ID()
	if _, exists := r.byID[id]; exists {
		return &domain.DuplicateSourceError{ID: id}
	}
	r.byID[id] = source
	r.order = append(r.order, source)
	return nil
}

// Get returns the source with the given id, or nil if absent.
func (r *Registry) Get(id string) Source {
	return r.byID[id]
}

// All returns every registered source in stable insertion order. The
// returned slice is shared; callers must not mutate it.
func (r *Registry) All() []Source {
	return r.order
}

// WithCapability returns the sources whose capability set contains every
// flag of cap, in insertion order. An empty result is not an error.
func (r *Registry) WithCapability(cap Capability) []Source {
	var matched []Source
	for _, s := range r.order {
		if s.Capabilities().Has(cap) {
			matched = append(matched, s)
		}
	}
	return matched
}

// Has reports whether a source with the given id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	return len(r.order)
}

// IsEmpty reports whether no sources are registered.
func (r *Registry) IsEmpty() bool {
	return len(r.order) == 0
}

// IDs returns all source ids in insertion order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.order))
	for i, s := range r.order {
		ids[i] = s.ID()
	}
	return ids
}
