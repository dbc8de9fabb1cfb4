// Package service serves normalized current weather and daily forecasts, caching
// upstream results for a short TTL.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/kjstillabower/weather-forecast-service/internal/cache"
	"github.com/kjstillabower/weather-forecast-service/internal/client"
	"github.com/kjstillabower/weather-forecast-service/internal/forecast"
	"github.com/kjstillabower/weather-forecast-service/internal/models"
	"github.com/kjstillabower/weather-forecast-service/internal/normalize"
	"github.com/kjstillabower/weather-forecast-service/internal/observability"
)

const (
	kindCurrent  = "current"
	kindWeekly   = "weekly"
	kindOverview = "overview"
)

// Options configures ForecastService.
type Options struct {
	CacheTTL        time.Duration
	CoalesceEnabled bool
	CoalesceTimeout time.Duration
}

// ForecastService is the cache-aside layer between handlers and the upstream client.
// Upstream errors are returned wrapped; there is no stale fallback.
type ForecastService struct {
	client   client.WeatherClient
	current  cache.Cache[models.CurrentWeather]
	weekly   cache.Cache[models.WeeklyForecast]
	ttl      time.Duration
	stampede *stampedeTracker

	// nil when coalescing is disabled
	currentCoalescer *coalescer[models.CurrentWeather]
	weeklyCoalescer  *coalescer[models.WeeklyForecast]
}

func NewForecastService(c client.WeatherClient, current cache.Cache[models.CurrentWeather], weekly cache.Cache[models.WeeklyForecast], opts Options) *ForecastService {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	s := &ForecastService{
		client:   c,
		current:  current,
		weekly:   weekly,
		ttl:      opts.CacheTTL,
		stampede: newStampedeTracker(),
	}
	if opts.CoalesceEnabled && opts.CoalesceTimeout > 0 {
		s.currentCoalescer = newCoalescer[models.CurrentWeather](opts.CoalesceTimeout)
		s.weeklyCoalescer = newCoalescer[models.WeeklyForecast](opts.CoalesceTimeout)
	}
	return s
}

// GetCurrent returns normalized current weather for q.
func (s *ForecastService) GetCurrent(ctx context.Context, q models.Query) (models.CurrentWeather, error) {
	observability.RecordWeatherQuery(kindCurrent, q.String())
	return s.getCurrent(ctx, q)
}

// GetWeekly returns up to seven daily summaries for q, with weekday names in q.Lang.
func (s *ForecastService) GetWeekly(ctx context.Context, q models.Query) (models.WeeklyForecast, error) {
	observability.RecordWeatherQuery(kindWeekly, q.String())
	return s.getWeekly(ctx, q)
}

// GetOverview fetches current and weekly concurrently and fails if either fails.
// Each result is built from its own pair of fetches.
func (s *ForecastService) GetOverview(ctx context.Context, q models.Query) (models.Overview, error) {
	observability.RecordWeatherQuery(kindOverview, q.String())

	var (
		wg                    sync.WaitGroup
		current               models.CurrentWeather
		weekly                models.WeeklyForecast
		currentErr, weeklyErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		current, currentErr = s.getCurrent(ctx, q)
	}()
	go func() {
		defer wg.Done()
		weekly, weeklyErr = s.getWeekly(ctx, q)
	}()
	wg.Wait()

	if err := errors.Join(currentErr, weeklyErr); err != nil {
		return models.Overview{}, err
	}
	return models.Overview{Current: current, Weekly: weekly}, nil
}

func (s *ForecastService) getCurrent(ctx context.Context, q models.Query) (models.CurrentWeather, error) {
	return getOrFetch(ctx, s, kindCurrent, q, s.current, s.currentCoalescer, func(ctx context.Context) (models.CurrentWeather, error) {
		raw, err := s.client.GetCurrent(ctx, q)
		if err != nil {
			return models.CurrentWeather{}, err
		}
		return normalize.Current(raw), nil
	})
}

func (s *ForecastService) getWeekly(ctx context.Context, q models.Query) (models.WeeklyForecast, error) {
	return getOrFetch(ctx, s, kindWeekly, q, s.weekly, s.weeklyCoalescer, func(ctx context.Context) (models.WeeklyForecast, error) {
		raw, err := s.client.GetForecast(ctx, q)
		if err != nil {
			return models.WeeklyForecast{}, err
		}
		return forecast.NewAggregator(language.Make(q.Lang)).AggregatePayload(raw), nil
	})
}

// getOrFetch is the cache-aside path shared by both kinds. The store happens inside
// the fetch so a coalesced group writes the cache once.
func getOrFetch[T any](ctx context.Context, s *ForecastService, kind string, q models.Query, c cache.Cache[T], co *coalescer[T], fetch func(context.Context) (T, error)) (T, error) {
	key := q.Key()
	start := time.Now()
	logger := observability.LoggerFromContext(ctx)

	cached, ok, err := c.Get(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		observability.CacheHitsTotal.WithLabelValues(kind).Inc()
		logger.Debug("weather served", zap.String("kind", kind), zap.String("key", key), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		return cached, nil
	}
	observability.CacheMissesTotal.WithLabelValues(kind).Inc()

	// current and weekly share a query key, so the kind keeps an overview from
	// counting as its own stampede.
	stampedeKey := kind + ":" + key
	if misses := s.stampede.RecordMiss(stampedeKey); misses > 1 {
		observability.CacheStampedeDetectedTotal.WithLabelValues(observability.MetricLocationLabel(q.String())).Inc()
	}
	defer s.stampede.Resolve(stampedeKey)

	fetchAndStore := func(ctx context.Context) (T, error) {
		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}
		if setErr := c.Set(ctx, key, v, s.ttl); setErr != nil {
			observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(setErr)).Inc()
			logger.Warn("cache set failed", zap.String("key", key), zap.Error(setErr))
		}
		return v, nil
	}

	var v T
	if co != nil {
		var shared bool
		v, shared, err = co.Do(ctx, key, fetchAndStore)
		if shared && err == nil {
			observability.RequestCoalescingHitsTotal.WithLabelValues(kind).Inc()
		}
	} else {
		v, err = fetchAndStore(ctx)
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("fetch %s weather for %s: %w", kind, q, err)
	}
	logger.Debug("weather served", zap.String("kind", kind), zap.String("key", key), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	return v, nil
}

// categorizeCacheError returns a stable label for cache error metrics.
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	}
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "timeout"):
		return "timeout"
	case strings.Contains(errStr, "connection"), strings.Contains(errStr, "network"):
		return "connection"
	case strings.Contains(errStr, "decode"), strings.Contains(errStr, "encode"):
		return "serialization"
	}
	return "unknown"
}
