// Package store defines the persistence collaborator contract the
// engine commits through. Concurrency correctness reduces to the
// optimistic-concurrency check here: Commit must reject a snapshot
// whose expected version no longer matches the stored one.
package store

import (
	"context"
	"errors"
	"time"

	"application-engine/internal/models"
)

var (
	// ErrNotFound is returned when no application exists under the id.
	ErrNotFound = errors.New("application not found")
	// ErrVersionConflict is returned when the snapshot was modified
	// concurrently; the caller must reload and retry the whole call.
	ErrVersionConflict = errors.New("application version conflict")
)

// PruneCandidate identifies one expired application.
type PruneCandidate struct {
	ID     string
	TypeID string
}

// Store is the persistence collaborator contract.
type Store interface {
	// Create stores a new application at version 1.
	Create(ctx context.Context, app *models.Application) error

	// Load returns the application snapshot and its current version.
	Load(ctx context.Context, id string) (*models.Application, int64, error)

	// Commit stores the snapshot if and only if the stored version
	// still equals expectedVersion, then increments the version.
	Commit(ctx context.Context, app *models.Application, expectedVersion int64) error

	// Delete removes the application.
	Delete(ctx context.Context, id string) error

	// ListExpired returns up to limit applications whose prune-at
	// timestamp has passed.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]PruneCandidate, error)
}
