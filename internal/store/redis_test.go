// internal/store/redis_test.go
package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"application-engine/internal/models"
)

func newMiniredisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	assert.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client), mr
}

func draftApp(id string) *models.Application {
	pruneAt := time.Now().Add(24 * time.Hour)
	return &models.Application{
		ID:      id,
		TypeID:  "accident-claim",
		State:   "PREREQUISITES",
		Answers: map[string]interface{}{},
		PruneAt: &pruneAt,
	}
}

func TestRedisStore_CreateLoadCommit(t *testing.T) {
	ctx := context.Background()
	s, _ := newMiniredisStore(t)

	assert.NoError(t, s.Create(ctx, draftApp("draft-1")))

	app, version, err := s.Load(ctx, "draft-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), version)
	assert.Equal(t, "PREREQUISITES", app.State)

	app.State = "DRAFT"
	assert.NoError(t, s.Commit(ctx, app, version))

	reloaded, version, err := s.Load(ctx, "draft-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(2), version)
	assert.Equal(t, "DRAFT", reloaded.State)
}

func TestRedisStore_LoadMissing(t *testing.T) {
	s, _ := newMiniredisStore(t)
	_, _, err := s.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_CommitStaleVersion(t *testing.T) {
	ctx := context.Background()
	s, _ := newMiniredisStore(t)
	assert.NoError(t, s.Create(ctx, draftApp("draft-1")))

	app, version, err := s.Load(ctx, "draft-1")
	assert.NoError(t, err)

	app.State = "DRAFT"
	assert.NoError(t, s.Commit(ctx, app, version))

	// Second commit against the already consumed version.
	app.State = "REVIEW"
	assert.ErrorIs(t, s.Commit(ctx, app, version), ErrVersionConflict)
}

func TestRedisStore_CommitMissing(t *testing.T) {
	s, _ := newMiniredisStore(t)
	assert.ErrorIs(t, s.Commit(context.Background(), draftApp("gone"), 1), ErrNotFound)
}

func TestRedisStore_Delete(t *testing.T) {
	ctx := context.Background()
	s, _ := newMiniredisStore(t)
	assert.NoError(t, s.Create(ctx, draftApp("draft-1")))

	assert.NoError(t, s.Delete(ctx, "draft-1"))
	assert.ErrorIs(t, s.Delete(ctx, "draft-1"), ErrNotFound)
}

func TestRedisStore_TTLTracksPruneAt(t *testing.T) {
	ctx := context.Background()
	s, mr := newMiniredisStore(t)
	assert.NoError(t, s.Create(ctx, draftApp("draft-1")))

	ttl := mr.TTL("application:draft-1")
	assert.Greater(t, ttl, 23*time.Hour)
	assert.LessOrEqual(t, ttl, 24*time.Hour)
}

func TestRedisStore_LoadConnectionError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewRedisStore(client)

	mock.ExpectGet("application:draft-1").SetErr(errors.New("connection refused"))

	_, _, err := s.Load(context.Background(), "draft-1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_ExpiredKeyIsGone(t *testing.T) {
	ctx := context.Background()
	s, mr := newMiniredisStore(t)
	assert.NoError(t, s.Create(ctx, draftApp("draft-1")))

	mr.FastForward(25 * time.Hour)

	_, _, err := s.Load(ctx, "draft-1")
	assert.ErrorIs(t, err, ErrNotFound)

	candidates, listErr := s.ListExpired(ctx, time.Now(), 10)
	assert.NoError(t, listErr)
	assert.Empty(t, candidates)
}
