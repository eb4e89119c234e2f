// internal/engine/lifecycle/sweeper.go
package lifecycle

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"application-engine/internal/common/logger"
	"application-engine/internal/common/metrics"
	"application-engine/internal/store"
)

// Sweeper periodically removes applications whose prune-at timestamp
// has passed.
type Sweeper struct {
	store     store.Store
	schedule  string
	batchSize int
	logger    logger.Logger
	cron      *cron.Cron
}

func NewSweeper(s store.Store, schedule string, batchSize int, log logger.Logger) *Sweeper {
	return &Sweeper{
		store:     s,
		schedule:  schedule,
		batchSize: batchSize,
		logger:    log.WithFields(map[string]interface{}{"component": "prune-sweeper"}),
	}
}

// Start schedules sweeps on the configured cron expression.
func (s *Sweeper) Start() error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("prune sweep failed", map[string]interface{}{"error": err.Error()})
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("prune sweeper started", map[string]interface{}{"schedule": s.schedule})
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep removes one batch of expired applications and reports how many
// were pruned. Individual delete failures are logged and skipped so one
// bad record cannot wedge the sweep.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	candidates, err := s.store.ListExpired(ctx, time.Now().UTC(), s.batchSize)
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, c := range candidates {
		if err := s.store.Delete(ctx, c.ID); err != nil {
			s.logger.Warn("failed to prune application", map[string]interface{}{
				"applicationId": c.ID,
				"error":         err.Error(),
			})
			continue
		}
		metrics.ApplicationsPruned.WithLabelValues(c.TypeID).Inc()
		pruned++
	}

	if pruned > 0 {
		s.logger.Info("prune sweep completed", map[string]interface{}{
			"pruned":     pruned,
			"candidates": len(candidates),
		})
	}
	return pruned, nil
}
