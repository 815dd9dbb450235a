package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"route-optimization-service/internal/platform/metrics"
	"route-optimization-service/internal/ports"
	"time"

	"github.com/robfig/cron/v3"
)

// CachePurgeJob periodically drops expired geocode cache entries so that
// failed lookups become eligible for retry and storage stays bounded.
type CachePurgeJob struct {
	cache    ports.ExpiringCache
	schedule string
	timeout  time.Duration
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewCachePurgeJob schedules purges on schedule, a standard cron expression or
// descriptor such as "@every 10m".
func NewCachePurgeJob(cache ports.ExpiringCache, schedule string, logger *slog.Logger) *CachePurgeJob {
	return &CachePurgeJob{
		cache:    cache,
		schedule: schedule,
		timeout:  time.Minute,
		cron:     cron.New(),
		logger:   logger.With("component", "cache_purge_job"),
	}
}

func (j *CachePurgeJob) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, func() {
		_, _ = j.RunOnce(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule cache purge %q: %w", j.schedule, err)
	}

	j.cron.Start()
	j.logger.Info("cache purge job started", "schedule", j.schedule)
	return nil
}

// Stop halts scheduling and waits for a running purge to finish.
func (j *CachePurgeJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("cache purge job stopped")
}

// RunOnce performs a single purge and reports how many entries were removed.
func (j *CachePurgeJob) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	n, err := j.cache.PurgeExpired(ctx)
	if n > 0 {
		metrics.CachePurgedTotal.Add(float64(n))
	}
	if err != nil {
		j.logger.ErrorContext(ctx, "cache purge failed", "removed", n, "error", err)
		return n, err
	}

	j.logger.DebugContext(ctx, "cache purge finished", "removed", n)
	return n, nil
}
