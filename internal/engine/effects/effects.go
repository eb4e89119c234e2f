// Package effects executes the on-exit side effect declarations of a
// state after a transition commits. Effects are best-effort: a failed
// notification is logged, never escalated, and never rolls a commit
// back.
package effects

import (
	"context"
	"fmt"
	"sync"

	"application-engine/internal/common/logger"
	"application-engine/internal/models"
	"application-engine/internal/template"
)

// Handler is one registered side effect.
type Handler func(ctx context.Context, app *models.Application, params map[string]interface{}) error

// Registry holds the named effect handlers available to templates.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a named handler. Registering a name twice is a
// configuration error.
func (r *Registry) Register(name string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("effect %q already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// Get returns the named handler.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Executor runs effect declarations in order.
type Executor struct {
	registry *Registry
	logger   logger.Logger
}

func NewExecutor(registry *Registry, log logger.Logger) *Executor {
	return &Executor{registry: registry, logger: log}
}

// Run executes each declaration, logging and skipping failures.
func (e *Executor) Run(ctx context.Context, decls []template.EffectDecl, app *models.Application) {
	for _, decl := range decls {
		handler, ok := e.registry.Get(decl.Name)
		if !ok {
			e.logger.Warn("side effect not registered", map[string]interface{}{
				"effect":        decl.Name,
				"applicationId": app.ID,
			})
			continue
		}
		if err := handler(ctx, app, decl.Params); err != nil {
			e.logger.Error("side effect failed", map[string]interface{}{
				"effect":        decl.Name,
				"applicationId": app.ID,
				"error":         err.Error(),
			})
		}
	}
}
