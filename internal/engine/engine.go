// Package engine drives applications through their template's state
// graph. ApplyEvent is the single write path: every mutation of an
// application flows through its permission, guard, validation and
// fetch pipeline before anything is committed.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	apperrors "application-engine/internal/common/errors"
	"application-engine/internal/common/logger"
	"application-engine/internal/common/metrics"
	"application-engine/internal/engine/effects"
	"application-engine/internal/engine/lifecycle"
	"application-engine/internal/engine/permissions"
	"application-engine/internal/engine/providers"
	"application-engine/internal/engine/schema"
	"application-engine/internal/models"
	"application-engine/internal/store"
	"application-engine/internal/template"
)

// assigneesPath is the reserved payload key that updates the
// application's assignee list instead of its answers. A role may write
// it only when its writable mask grants the path.
const assigneesPath = "assignees"

// Engine applies events to stored applications.
type Engine struct {
	templates *template.Registry
	store     store.Store
	orch      *providers.Orchestrator
	effects   *effects.Executor
	audit     store.AuditSink
	logger    logger.Logger
	clock     func() time.Time
	newID     func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the commit timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithIDGenerator overrides application and audit record id generation.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// WithAuditSink attaches an external audit sink. Indexing failures are
// logged, never surfaced.
func WithAuditSink(sink store.AuditSink) Option {
	return func(e *Engine) { e.audit = sink }
}

// WithEffects attaches the on-exit side effect executor.
func WithEffects(exec *effects.Executor) Option {
	return func(e *Engine) { e.effects = exec }
}

func New(templates *template.Registry, st store.Store, orch *providers.Orchestrator, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		templates: templates,
		store:     st,
		orch:      orch,
		logger:    log,
		clock:     time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start creates a new application in its template's initial state. The
// initial state's on-entry fetches run before the application is
// persisted; a failed required fetch means nothing is created.
func (e *Engine) Start(ctx context.Context, typeID string, id models.Identity) (*models.Application, error) {
	tpl, err := e.templates.Get(typeID)
	if err != nil {
		return nil, err
	}
	initial, ok := tpl.StateNamed(tpl.Initial)
	if !ok {
		return nil, apperrors.NewTemplateInvalidError(typeID, "initial state missing")
	}

	now := e.clock()
	app := &models.Application{
		ID:           e.newID(),
		TypeID:       typeID,
		State:        initial.Name,
		Answers:      map[string]interface{}{},
		ExternalData: map[string]models.ExternalDataEntry{},
		CreatedBy:    id.Actor(),
		PruneAt:      lifecycle.PruneAt(initial.Lifecycle, now),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if len(initial.OnEntry) > 0 {
		patch, err := e.orch.Run(ctx, initial.OnEntry, app)
		if err != nil {
			return nil, err
		}
		patch.ApplyTo(app)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.store.Create(ctx, app); err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}

	e.logger.Info("application started", map[string]interface{}{
		"applicationId": app.ID,
		"typeId":        typeID,
		"state":         app.State,
		"subject":       id.SubjectID,
	})
	return app, nil
}

// ApplyEvent drives one application through a single transition. The
// pipeline order is fixed: permission, guard, payload merge,
// validation, on-entry fetches, commit. Any failure leaves the stored
// snapshot untouched; on a version conflict the caller reloads and
// retries the whole call.
func (e *Engine) ApplyEvent(ctx context.Context, applicationID string, event template.Event, id models.Identity, payload map[string]interface{}) (*models.Application, error) {
	started := e.clock()
	app, version, err := e.load(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	tpl, err := e.templates.Get(app.TypeID)
	if err != nil {
		return nil, err
	}
	current, ok := tpl.StateNamed(app.State)
	if !ok {
		return nil, apperrors.NewTemplateInvalidError(app.TypeID, "state "+app.State+" not defined")
	}

	transition, ok := current.Transitions[event]
	if !ok {
		e.countFailure(app.TypeID, event, apperrors.ErrCodeInvalidEvent)
		return nil, apperrors.NewInvalidEventError(app.State, string(event))
	}

	decision := permissions.Resolve(tpl, app, id)
	if !decision.Permits(event) {
		e.countFailure(app.TypeID, event, apperrors.ErrCodeForbidden)
		return nil, apperrors.NewForbiddenError(string(event))
	}

	if transition.Guard != nil && !transition.Guard.Check(app) {
		e.countFailure(app.TypeID, event, apperrors.ErrCodeGuardRejected)
		return nil, apperrors.NewGuardRejectedError(transition.Guard.Name)
	}

	// Duplicate-delivery transitions acknowledge without committing.
	if transition.NoOp {
		return app, nil
	}

	target, ok := tpl.StateNamed(transition.Target)
	if !ok {
		return nil, apperrors.NewTemplateInvalidError(app.TypeID, "state "+transition.Target+" not defined")
	}

	next := app.Clone()
	mergePayload(next, payload, decision.Writable)

	if result := schema.Validate(next.Answers, tpl.Schema, target.Scope); !result.Valid {
		e.countFailure(app.TypeID, event, apperrors.ErrCodeValidationFailed)
		return nil, apperrors.NewValidationFailedError(result.Errors)
	}

	if len(target.OnEntry) > 0 {
		patch, err := e.orch.Run(ctx, target.OnEntry, next)
		if err != nil {
			e.countFailure(app.TypeID, event, apperrors.ErrCodePrerequisiteFetchFailed)
			return nil, err
		}
		patch.ApplyTo(next)
	}

	now := e.clock()
	next.State = target.Name
	next.PruneAt = lifecycle.Resolve(app.PruneAt, target.Lifecycle, now)
	next.UpdatedAt = now

	record := models.AuditRecord{
		ID:        e.newID(),
		FromState: app.State,
		ToState:   target.Name,
		Event:     string(event),
		Subject:   id.SubjectID,
		Role:      string(decision.PrimaryRole()),
		At:        now,
	}
	next.Audit = append(next.Audit, record)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.commit(ctx, next, version); err != nil {
		e.countFailure(app.TypeID, event, apperrors.CodeOf(err))
		return nil, err
	}

	metrics.TransitionsCompleted.WithLabelValues(app.TypeID, string(event)).Inc()
	metrics.TransitionDuration.WithLabelValues(app.TypeID).Observe(e.clock().Sub(started).Seconds())
	e.logger.Info("transition applied", map[string]interface{}{
		"applicationId": app.ID,
		"typeId":        app.TypeID,
		"event":         string(event),
		"fromState":     app.State,
		"toState":       target.Name,
		"subject":       id.SubjectID,
	})

	e.afterCommit(ctx, current, next, record)
	return next, nil
}

// ResolvePermissions previews the caller's access to an application
// without applying anything.
func (e *Engine) ResolvePermissions(ctx context.Context, applicationID string, id models.Identity) (permissions.Decision, error) {
	app, _, err := e.load(ctx, applicationID)
	if err != nil {
		return permissions.Decision{}, err
	}
	tpl, err := e.templates.Get(app.TypeID)
	if err != nil {
		return permissions.Decision{}, err
	}
	return permissions.Resolve(tpl, app, id), nil
}

// Delete removes an application. The caller must hold a role granting
// the built-in delete event in the current state.
func (e *Engine) Delete(ctx context.Context, applicationID string, id models.Identity) error {
	app, _, err := e.load(ctx, applicationID)
	if err != nil {
		return err
	}
	tpl, err := e.templates.Get(app.TypeID)
	if err != nil {
		return err
	}
	decision := permissions.Resolve(tpl, app, id)
	if !decision.Permits(template.EventDelete) {
		return apperrors.NewForbiddenError(string(template.EventDelete))
	}
	if err := e.store.Delete(ctx, applicationID); err != nil {
		if err == store.ErrNotFound {
			return apperrors.NewApplicationNotFoundError(applicationID)
		}
		return apperrors.NewPersistenceError(err)
	}
	e.logger.Info("application deleted", map[string]interface{}{
		"applicationId": applicationID,
		"subject":       id.SubjectID,
	})
	return nil
}

func (e *Engine) load(ctx context.Context, applicationID string) (*models.Application, int64, error) {
	app, version, err := e.store.Load(ctx, applicationID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, 0, apperrors.NewApplicationNotFoundError(applicationID)
		}
		return nil, 0, apperrors.NewPersistenceError(err)
	}
	return app, version, nil
}

func (e *Engine) commit(ctx context.Context, app *models.Application, expectedVersion int64) error {
	err := e.store.Commit(ctx, app, expectedVersion)
	switch err {
	case nil:
		return nil
	case store.ErrVersionConflict:
		return apperrors.NewVersionConflictError(app.ID)
	case store.ErrNotFound:
		return apperrors.NewApplicationNotFoundError(app.ID)
	default:
		return apperrors.NewPersistenceError(err)
	}
}

// afterCommit runs the post-commit tail: source-state exit effects and
// audit export. Both are best-effort.
func (e *Engine) afterCommit(ctx context.Context, exited template.State, app *models.Application, record models.AuditRecord) {
	// Self-transitions stay in the state, so its exit effects do not fire.
	if e.effects != nil && len(exited.OnExit) > 0 && record.FromState != record.ToState {
		e.effects.Run(ctx, exited.OnExit, app)
	}
	if e.audit != nil {
		if err := e.audit.Index(ctx, app, record); err != nil {
			e.logger.Warn("audit export failed", map[string]interface{}{
				"applicationId": app.ID,
				"recordId":      record.ID,
				"error":         err.Error(),
			})
		}
	}
}

func (e *Engine) countFailure(typeID string, event template.Event, code apperrors.ErrorCode) {
	metrics.TransitionsFailed.WithLabelValues(typeID, string(event), string(code)).Inc()
}

// mergePayload copies payload values the writable mask permits into the
// application. Unwritable paths are dropped silently so a transition
// either applies all permitted fields or fails before touching any.
func mergePayload(app *models.Application, payload map[string]interface{}, writable template.FieldMask) {
	if len(payload) == 0 {
		return
	}
	for _, pv := range schema.Flatten(payload) {
		if !writable.Allows(pv.Path) {
			continue
		}
		if pv.Path == assigneesPath {
			app.Assignees = toStringSlice(pv.Value)
			continue
		}
		schema.SetPath(app.Answers, pv.Path, pv.Value)
	}
}

func toStringSlice(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
