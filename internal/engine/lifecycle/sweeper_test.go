// internal/engine/lifecycle/sweeper_test.go
package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"application-engine/internal/common/logger"
	"application-engine/internal/models"
	"application-engine/internal/store"
)

func storedApp(id string, pruneAt *time.Time) *models.Application {
	return &models.Application{
		ID:      id,
		TypeID:  "accident-claim",
		State:   "DRAFT",
		PruneAt: pruneAt,
	}
}

func TestSweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)
	assert.NoError(t, mem.Create(ctx, storedApp("expired-1", &past)))
	assert.NoError(t, mem.Create(ctx, storedApp("expired-2", &past)))
	assert.NoError(t, mem.Create(ctx, storedApp("fresh", &future)))
	assert.NoError(t, mem.Create(ctx, storedApp("durable", nil)))

	sweeper := NewSweeper(mem, "@every 10m", 100, logger.NewTestLogger(t))
	pruned, err := sweeper.Sweep(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 2, pruned)
	assert.Equal(t, 2, mem.Len())

	_, _, err = mem.Load(ctx, "fresh")
	assert.NoError(t, err)
	_, _, err = mem.Load(ctx, "expired-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSweeper_Sweep_Empty(t *testing.T) {
	sweeper := NewSweeper(store.NewMemoryStore(), "@every 10m", 100, logger.NewTestLogger(t))
	pruned, err := sweeper.Sweep(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, pruned)
}

func TestSweeper_Sweep_RespectsBatchSize(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	past := time.Now().UTC().Add(-time.Hour)
	for _, id := range []string{"a", "b", "c", "d"} {
		assert.NoError(t, mem.Create(ctx, storedApp(id, &past)))
	}

	sweeper := NewSweeper(mem, "@every 10m", 2, logger.NewTestLogger(t))
	pruned, err := sweeper.Sweep(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 2, pruned)
	assert.Equal(t, 2, mem.Len())
}

func TestSweeper_StartStop(t *testing.T) {
	sweeper := NewSweeper(store.NewMemoryStore(), "@every 1h", 10, logger.NewTestLogger(t))
	assert.NoError(t, sweeper.Start())
	sweeper.Stop()
}

func TestSweeper_Start_BadSchedule(t *testing.T) {
	sweeper := NewSweeper(store.NewMemoryStore(), "not a schedule", 10, logger.NewTestLogger(t))
	assert.Error(t, sweeper.Start())
}
