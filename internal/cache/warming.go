package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-forecast-service/internal/models"
	"github.com/kjstillabower/weather-forecast-service/internal/observability"
)

// OverviewFetcher is implemented by the service layer. Fetching an overview fills
// both the current and weekly caches for a query.
type OverviewFetcher interface {
	GetOverview(ctx context.Context, q models.Query) (models.Overview, error)
}

// CacheWarmer prefetches overviews for a fixed list of queries.
type CacheWarmer struct {
	fetcher OverviewFetcher
	logger  *zap.Logger
}

// NewCacheWarmer creates a CacheWarmer. A nil logger disables warm logging.
func NewCacheWarmer(fetcher OverviewFetcher, logger *zap.Logger) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{fetcher: fetcher, logger: logger}
}

// Warm fetches every query concurrently. The returned error joins all per-query failures.
func (w *CacheWarmer) Warm(ctx context.Context, queries []models.Query) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	w.logger.Info("warming cache", zap.Int("locations", len(queries)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, q := range queries {
		q := q
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.fetcher.GetOverview(ctx, q); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("warm %s: %w", q, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	w.logger.Info("cache warming complete",
		zap.Int("locations", len(queries)),
		zap.Int("errors", len(errs)),
		zap.Float64("duration_seconds", duration))
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %w", errors.Join(errs...))
	}
	return nil
}

// WarmPeriodic warms immediately and then every interval on a gocron scheduler until
// ctx is done. Runs never overlap; a slow run delays the next one.
func (w *CacheWarmer) WarmPeriodic(ctx context.Context, queries []models.Query, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("cache warming: interval must be positive, got %s", interval)
	}

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()
	_, err := scheduler.Every(interval).Do(func() {
		if err := w.Warm(ctx, queries); err != nil {
			w.logger.Warn("periodic cache warm failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule cache warming: %w", err)
	}

	scheduler.StartAsync()
	<-ctx.Done()
	scheduler.Stop()
	return ctx.Err()
}
