// internal/template/registry.go
package template

import (
	"sort"
	"sync"

	apperrors "application-engine/internal/common/errors"
)

// Registry is the read-only lookup from typeId to compiled template.
// It is populated at process start and safely shared by all concurrent
// requests afterwards.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]*Template)}
}

// Register validates and admits a template. Registering the same typeId
// twice replaces the earlier definition.
func (r *Registry) Register(t *Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.TypeID] = t
	return nil
}

// Get returns the template for typeID.
func (r *Registry) Get(typeID string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[typeID]
	if !ok {
		return nil, apperrors.NewTemplateNotFoundError(typeID)
	}
	return t, nil
}

// TypeIDs lists the registered application types, sorted.
func (r *Registry) TypeIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
