package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/audiolift/api/internal/storage"
)

var (
	cleanupRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "upload_cleanup_runs_total",
		Help: "Number of cleanup sweeps executed.",
	})

	cleanupFilesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "upload_cleanup_files_deleted_total",
		Help: "Number of stale upload files deleted by cleanup sweeps.",
	})

	cleanupDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "upload_cleanup_duration_seconds",
		Help:    "Duration of cleanup sweeps in seconds.",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
	})
)

// CleanupService removes stale files from the upload area. Uploads are
// written to disk before validation, so rejected and abandoned inputs
// accumulate there until a sweep deletes them.
type CleanupService struct {
	store     *storage.Store
	threshold time.Duration
	interval  time.Duration
	logger    *slog.Logger

	mu sync.Mutex // serializes sweeps between the ticker and the HTTP trigger
}

// NewCleanupService creates a cleanup service. Files older than threshold
// are deleted; interval <= 0 disables the periodic sweep, leaving only the
// manual trigger.
func NewCleanupService(store *storage.Store, threshold, interval time.Duration, logger *slog.Logger) *CleanupService {
	return &CleanupService{
		store:     store,
		threshold: threshold,
		interval:  interval,
		logger:    logger.With(slog.String("component", "cleanup")),
	}
}

// RunOnce deletes every stale file under the upload area and returns the
// number deleted. The first delete failure aborts the sweep; files removed
// before the failure stay removed and are reflected in the returned count.
func (c *CleanupService) RunOnce() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	cleanupRunsTotal.Inc()

	stale, err := c.store.ListOlderThan(c.store.UploadDir(), c.threshold)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, path := range stale {
		if err := c.store.Delete(path); err != nil {
			return deleted, err
		}
		deleted++
	}

	cleanupFilesDeletedTotal.Add(float64(deleted))
	cleanupDurationSeconds.Observe(time.Since(start).Seconds())
	return deleted, nil
}

// Start launches the periodic sweeper. It runs until ctx is cancelled; a
// failed sweep is logged and the next tick proceeds normally.
func (c *CleanupService) Start(ctx context.Context) {
	if c.interval <= 0 {
		c.logger.Info("periodic cleanup disabled")
		return
	}
	go c.run(ctx)
}

func (c *CleanupService) run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info("cleanup sweeper started", "interval", c.interval, "threshold", c.threshold)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("cleanup sweeper stopped")
			return
		case <-ticker.C:
			deleted, err := c.RunOnce()
			if err != nil {
				c.logger.Error("cleanup sweep failed", "deleted", deleted, "error", err)
				continue
			}
			if deleted > 0 {
				c.logger.Info("cleanup sweep completed", "deleted", deleted)
			}
		}
	}
}
