package repository

import (
	"fmt"
)

// Registry maps model names to their collection. Like the schema registry
// it is filled at startup and read-only afterwards.
type Registry struct {
	collections map[string]Collection
}

// NewRegistry creates a registry holding collections
func NewRegistry(collections ...Collection) (*Registry, error) {
	r := &Registry{collections: make(map[string]Collection, len(collections))}
	for _, c := range collections {
		if _, exists := r.collections[c.Name()]; exists {
			return nil, fmt.Errorf("%w: %s", ErrCollectionExists, c.Name())
		}
		r.collections[c.Name()] = c
	}
	return r, nil
}

// Get returns the collection of a model
func (r *Registry) Get(name string) (Collection, error) {
	c, ok := r.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return c, nil
}
