// internal/store/memory.go
package store

import (
	"context"
	"sync"
	"time"

	"application-engine/internal/models"
)

type memoryRecord struct {
	app     *models.Application
	version int64
}

// MemoryStore is an in-memory Store with the same optimistic
// concurrency semantics as the persistent ones. Snapshots are deep
// copied on every load and commit so callers never share state.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryRecord)}
}

func (s *MemoryStore) Create(ctx context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[app.ID] = memoryRecord{app: app.Clone(), version: 1}
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*models.Application, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, 0, ErrNotFound
	}
	return rec.app.Clone(), rec.version, nil
}

func (s *MemoryStore) Commit(ctx context.Context, app *models.Application, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[app.ID]
	if !ok {
		return ErrNotFound
	}
	if rec.version != expectedVersion {
		return ErrVersionConflict
	}
	s.records[app.ID] = memoryRecord{app: app.Clone(), version: expectedVersion + 1}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]PruneCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []PruneCandidate
	for id, rec := range s.records {
		if rec.app.PruneAt != nil && !rec.app.PruneAt.After(now) {
			out = append(out, PruneCandidate{ID: id, TypeID: rec.app.TypeID})
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// Len reports the number of stored applications.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
