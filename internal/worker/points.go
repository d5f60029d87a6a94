package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kickin-server/internal/config"
	"github.com/kickin-server/internal/postgres"
	"github.com/kickin-server/internal/redis"
)

// PointsWorker keeps the Redis point projection aligned with the
// PostgreSQL source of truth. Settlement updates the projection
// directly on the hot path; this worker rebuilds it at boot and
// reconciles drift on a slow cycle.
type PointsWorker struct {
	boards  *redis.Leaderboard
	store   *postgres.Repository
	config  *config.SyncConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewPointsWorker creates a points reconciliation worker.
func NewPointsWorker(boards *redis.Leaderboard, store *postgres.Repository, cfg *config.SyncConfig, logger *slog.Logger) *PointsWorker {
	return &PointsWorker{
		boards: boards,
		store:  store,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start rebuilds the projection once, then begins the reconcile loop.
func (w *PointsWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.Rebuild(ctx); err != nil {
		w.logger.Error("initial points rebuild failed", "error", err)
		// The reconcile loop will retry; the server still comes up.
	}

	w.logger.Info("points worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the reconcile loop and waits for it to finish.
func (w *PointsWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("points worker stopped")
	return nil
}

// IsRunning returns whether the worker loop is active.
func (w *PointsWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *PointsWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.Rebuild(ctx); err != nil {
				w.logger.Error("points reconcile failed", "error", err)
			}
		}
	}
}

// Rebuild pushes every user's total point from PostgreSQL into the
// Redis sorted set, in batches.
func (w *PointsWorker) Rebuild(ctx context.Context) error {
	start := time.Now()

	points, err := w.store.AllPoints(ctx)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		w.logger.Debug("no points to sync")
		return nil
	}

	batchSize := w.config.BatchSize
	if batchSize == 0 {
		batchSize = 1000
	}

	batch := make(map[string]int64, batchSize)
	for userID, point := range points {
		batch[userID] = point
		if len(batch) >= batchSize {
			if err := w.boards.BatchSetPoints(ctx, batch); err != nil {
				return err
			}
			batch = make(map[string]int64, batchSize)
		}
	}
	if len(batch) > 0 {
		if err := w.boards.BatchSetPoints(ctx, batch); err != nil {
			return err
		}
	}

	w.logger.Info("points sync completed",
		"users", len(points),
		"duration", time.Since(start),
	)
	return nil
}
