package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-forecast-service/internal/cache"
	"github.com/kjstillabower/weather-forecast-service/internal/circuitbreaker"
	"github.com/kjstillabower/weather-forecast-service/internal/client"
	"github.com/kjstillabower/weather-forecast-service/internal/config"
	"github.com/kjstillabower/weather-forecast-service/internal/health"
	httphandler "github.com/kjstillabower/weather-forecast-service/internal/http"
	"github.com/kjstillabower/weather-forecast-service/internal/models"
	"github.com/kjstillabower/weather-forecast-service/internal/observability"
	"github.com/kjstillabower/weather-forecast-service/internal/service"
	"github.com/kjstillabower/weather-forecast-service/internal/validation"
)

const breakerComponent = "weather_api"

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	var clientOpts []client.Option
	if cfg.CircuitBreakerEnabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Component:        breakerComponent,
			IsFailure:        client.BreakerCountsFailure,
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.CircuitBreakerTransitionsTotal.WithLabelValues(breakerComponent, from.String(), to.String()).Inc()
				observability.CircuitBreakerState.WithLabelValues(breakerComponent).Set(float64(to))
				logger.Warn("circuit breaker state change", zap.String("from", from.String()), zap.String("to", to.String()))
			},
		})
		clientOpts = append(clientOpts, client.WithCircuitBreaker(cb))
		observability.CircuitBreakerState.WithLabelValues(breakerComponent).Set(float64(circuitbreaker.StateClosed))
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	weatherClient, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout, clientOpts...)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	var (
		currentCache cache.Cache[models.CurrentWeather]
		weeklyCache  cache.Cache[models.WeeklyForecast]
		cachePing    func() error
		closeCache   func() error
	)
	switch cfg.CacheBackend {
	case "memcached":
		mc := cache.NewMemcachedClient(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		current := cache.NewMemcachedCache[models.CurrentWeather](mc, "current")
		currentCache = current
		weeklyCache = cache.NewMemcachedCache[models.WeeklyForecast](mc, "weekly")
		cachePing = current.Ping
		closeCache = mc.Close
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		currentCache = cache.NewInMemoryCache[models.CurrentWeather]()
		weeklyCache = cache.NewInMemoryCache[models.WeeklyForecast]()
		logger.Info("cache backend: in_memory")
	}

	forecastService := service.NewForecastService(weatherClient, currentCache, weeklyCache, service.Options{
		CacheTTL:        cfg.CacheTTL,
		CoalesceEnabled: cfg.CoalesceEnabled,
		CoalesceTimeout: cfg.CoalesceTimeout,
	})

	tracker := health.NewTracker()
	checker := health.NewChecker(health.Config{
		RateLimitRPS:           cfg.RateLimitRPS,
		OverloadWindow:         cfg.OverloadWindow,
		OverloadThresholdPct:   cfg.OverloadThresholdPct,
		IdleWindow:             cfg.IdleWindow,
		IdleThresholdReqPerMin: cfg.IdleThresholdReqPerMin,
		MinimumLifespan:        cfg.MinimumLifespan,
		DegradedWindow:         cfg.DegradedWindow,
		DegradedErrorPct:       cfg.DegradedErrorPct,
		StartTime:              time.Now(),
		CachePing:              cachePing,
	}, tracker, weatherClient, logger)

	observability.RegisterTrafficGauges(tracker, cfg.OverloadWindow)
	if len(cfg.TrackedLocations) > 0 {
		observability.SetTrackedLocations(cfg.TrackedLocations)
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(forecastService, checker, tracker, validation.Options{
		MinCityLen:  cfg.CityMinLen,
		MaxCityLen:  cfg.CityMaxLen,
		DefaultLang: cfg.DefaultLang,
	}, logger)
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		Logger:         logger,
		Limiter:        limiter,
		Tracker:        tracker,
		RequestTimeout: cfg.RequestTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.WarmEnabled && len(cfg.TrackedLocations) > 0 {
		queries, err := warmQueries(cfg.TrackedLocations, cfg.DefaultLang)
		if err != nil {
			logger.Fatal("cache warming", zap.Error(err))
		}
		warmer := cache.NewCacheWarmer(forecastService, logger)
		go func() {
			if err := warmer.WarmPeriodic(ctx, queries, cfg.WarmInterval); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("periodic cache warming stopped", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	health.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	if err := httphandler.WaitForInFlight(shutdownCtx, 100*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if closeCache != nil {
		if err := closeCache(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}

	logger.Info("shutdown complete")
	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry flush: %v\n", err)
	}
}

// warmQueries builds city queries for the tracked locations in the default language.
func warmQueries(locations []string, defaultLang string) ([]models.Query, error) {
	lang, err := validation.UpstreamLang(defaultLang)
	if err != nil {
		return nil, fmt.Errorf("default language: %w", err)
	}
	queries := make([]models.Query, 0, len(locations))
	for _, loc := range locations {
		city, err := validation.ValidateLocation(loc, 1, 0)
		if err != nil {
			return nil, fmt.Errorf("tracked location %q: %w", loc, err)
		}
		queries = append(queries, models.Query{City: city, Lang: lang})
	}
	return queries, nil
}
