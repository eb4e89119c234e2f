// Package providers runs the external data fetch declarations attached
// to a state. Declared operations fan out concurrently with independent
// per-operation timeouts; the orchestrator always waits for every
// operation because a partial patch has diagnostic value even when the
// overall call fails.
package providers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "application-engine/internal/common/errors"
	"application-engine/internal/common/logger"
	"application-engine/internal/common/metrics"
	"application-engine/internal/models"
	"application-engine/internal/template"
)

// Provider is one registered external data fetch operation. The engine
// is agnostic to what it does.
type Provider func(ctx context.Context, app *models.Application) (interface{}, error)

// Registry holds the named providers available to templates. It is
// populated at process start and read-only afterwards.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a named provider. Registering a name twice is a
// configuration error.
func (r *Registry) Register(name string, p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.providers[name] = p
	return nil
}

// Get returns the named provider.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// PatchEntry is the outcome of one fetch. Failures set the key too, so
// the failure stays observable in externalData.
type PatchEntry struct {
	Key       string
	Value     interface{}
	Status    models.FetchStatus
	Reason    string
	FetchedAt time.Time
}

// Patch maps externalData keys to fetch outcomes.
type Patch map[string]PatchEntry

// ApplyTo merges the patch into the application's externalData. Values
// are overwritten; the per-key attempt history is only ever appended.
func (p Patch) ApplyTo(app *models.Application) {
	if len(p) == 0 {
		return
	}
	if app.ExternalData == nil {
		app.ExternalData = make(map[string]models.ExternalDataEntry, len(p))
	}
	for key, entry := range p {
		prev := app.ExternalData[key]
		next := models.ExternalDataEntry{
			Value:     entry.Value,
			Status:    entry.Status,
			FetchedAt: entry.FetchedAt,
			History: append(prev.History, models.FetchAttempt{
				At:     entry.FetchedAt,
				Status: entry.Status,
				Reason: entry.Reason,
			}),
		}
		if entry.Status == models.FetchFailure {
			// Keep the last good value visible alongside the failure.
			next.Value = prev.Value
		}
		app.ExternalData[key] = next
	}
}

// Orchestrator executes provider declarations with bounded concurrency.
type Orchestrator struct {
	registry       *Registry
	defaultTimeout time.Duration
	maxConcurrent  int
	logger         logger.Logger
	clock          func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithMaxConcurrent bounds the fan-out width.
func WithMaxConcurrent(n int) Option {
	return func(o *Orchestrator) { o.maxConcurrent = n }
}

func New(registry *Registry, defaultTimeout time.Duration, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:       registry,
		defaultTimeout: defaultTimeout,
		maxConcurrent:  8,
		logger:         log,
		clock:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes every declaration and returns the full patch. When a
// required declaration fails the error is PrerequisiteFetchFailed, but
// the patch is still returned so the caller can record the partial
// results for diagnostics. Optional failures never produce an error. A
// slow operation only delays its own slot: each gets its own timeout
// derived from ctx, so cancelling ctx abandons the whole fan-out.
func (o *Orchestrator) Run(ctx context.Context, decls []template.ProviderDecl, app *models.Application) (Patch, error) {
	if len(decls) == 0 {
		return Patch{}, nil
	}

	results := make([]PatchEntry, len(decls))
	var wg sync.WaitGroup
	sem := make(chan struct{}, o.maxConcurrent)

	for i, decl := range decls {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, decl template.ProviderDecl) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = o.runOne(ctx, decl, app)
		}(i, decl)
	}
	wg.Wait()

	patch := make(Patch, len(decls))
	var failedRequired []string
	for i, decl := range decls {
		entry := results[i]
		patch[entry.Key] = entry
		if entry.Status == models.FetchFailure {
			metrics.ProviderFetchesFailed.WithLabelValues(decl.Name).Inc()
			if decl.Required {
				failedRequired = append(failedRequired, entry.Key)
			}
		} else {
			metrics.ProviderFetchesCompleted.WithLabelValues(decl.Name).Inc()
		}
	}

	if len(failedRequired) > 0 {
		sort.Strings(failedRequired)
		return patch, apperrors.NewPrerequisiteFetchFailedError(failedRequired, nil)
	}
	return patch, nil
}

func (o *Orchestrator) runOne(ctx context.Context, decl template.ProviderDecl, app *models.Application) (entry PatchEntry) {
	entry = PatchEntry{Key: decl.DataKey(), FetchedAt: o.clock().UTC()}

	provider, ok := o.registry.Get(decl.Name)
	if !ok {
		entry.Status = models.FetchFailure
		entry.Reason = fmt.Sprintf("provider %q not registered", decl.Name)
		return entry
	}

	timeout := decl.Timeout
	if timeout <= 0 {
		timeout = o.defaultTimeout
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("data provider panicked", map[string]interface{}{
				"provider": decl.Name,
				"recover":  r,
			})
			entry.Status = models.FetchFailure
			entry.Reason = fmt.Sprintf("panic: %v", r)
		}
		metrics.ProviderFetchDuration.WithLabelValues(decl.Name).Observe(time.Since(start).Seconds())
	}()

	value, err := provider(opCtx, app)
	if err != nil {
		o.logger.Warn("data provider failed", map[string]interface{}{
			"provider": decl.Name,
			"key":      entry.Key,
			"required": decl.Required,
			"error":    err.Error(),
		})
		entry.Status = models.FetchFailure
		entry.Reason = err.Error()
		return entry
	}

	entry.Status = models.FetchSuccess
	entry.Value = value
	return entry
}
