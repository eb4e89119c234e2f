// internal/store/redis.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"application-engine/internal/models"
)

// RedisStore keeps ephemeral applications (pre-application drafts) in
// Redis. The key TTL mirrors the prune-at timestamp so Redis performs
// the expiry itself; ListExpired is therefore always empty and the
// sweeper has nothing to do for this store. Optimistic concurrency is
// implemented with WATCH on the application key.
type RedisStore struct {
	client *redis.Client
	prefix string
}

type redisEnvelope struct {
	Application *models.Application `json:"application"`
	Version     int64               `json:"version"`
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "application:"}
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

func (s *RedisStore) Create(ctx context.Context, app *models.Application) error {
	return s.write(ctx, redisEnvelope{Application: app, Version: 1})
}

func (s *RedisStore) Load(ctx context.Context, id string) (*models.Application, int64, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Result()
	if err == redis.Nil {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load application: %w", err)
	}
	var env redisEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal application: %w", err)
	}
	return env.Application, env.Version, nil
}

func (s *RedisStore) Commit(ctx context.Context, app *models.Application, expectedVersion int64) error {
	key := s.key(app.ID)
	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var env redisEnvelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			return err
		}
		if env.Version != expectedVersion {
			return ErrVersionConflict
		}

		next, err := json.Marshal(redisEnvelope{Application: app, Version: expectedVersion + 1})
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, expiration(app.PruneAt))
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txn, key)
	if err == redis.TxFailedErr {
		return ErrVersionConflict
	}
	return err
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	deleted, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete application: %w", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

// ListExpired is a no-op: expiry is delegated to Redis key TTLs.
func (s *RedisStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]PruneCandidate, error) {
	return nil, nil
}

func (s *RedisStore) write(ctx context.Context, env redisEnvelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal application: %w", err)
	}
	if err := s.client.Set(ctx, s.key(env.Application.ID), raw, expiration(env.Application.PruneAt)).Err(); err != nil {
		return fmt.Errorf("failed to store application: %w", err)
	}
	return nil
}

// expiration maps the prune-at timestamp onto a key TTL. A prune-at in
// the past still gets a short grace period so an in-flight transition
// can move the application to a longer-lived state first.
func expiration(pruneAt *time.Time) time.Duration {
	if pruneAt == nil {
		return 0
	}
	ttl := time.Until(*pruneAt)
	if ttl < time.Minute {
		return time.Minute
	}
	return ttl
}
