// Package health derives the service status reported by /health from request
// outcomes, upstream key validity and the shutdown flag.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the value of the "status" field in /health responses.
type Status string

const (
	StatusHealthy      Status = "healthy"
	StatusIdle         Status = "idle"
	StatusDegraded     Status = "degraded"
	StatusOverloaded   Status = "overloaded"
	StatusShuttingDown Status = "shutting-down"
)

// KeyValidator checks that upstream credentials are accepted.
type KeyValidator interface {
	ValidateAPIKey(ctx context.Context) error
}

// Config holds the thresholds used by Check. Zero windows disable the matching check.
type Config struct {
	RateLimitRPS         int
	OverloadWindow       time.Duration
	OverloadThresholdPct int

	IdleWindow             time.Duration
	IdleThresholdReqPerMin int
	MinimumLifespan        time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int

	StartTime time.Time

	// CachePing reports cache backend reachability; nil omits the cache check.
	CachePing func() error
}

// Result is the outcome of one health evaluation.
type Result struct {
	Status Status
	Reason string
	Checks map[string]string
}

// Serving reports whether the instance should keep receiving traffic.
func (r Result) Serving() bool {
	return r.Status == StatusHealthy || r.Status == StatusIdle
}

// Checker evaluates health in priority order and logs status transitions.
type Checker struct {
	cfg       Config
	tracker   *Tracker
	validator KeyValidator
	logger    *zap.Logger

	mu   sync.Mutex
	prev Status
}

func NewChecker(cfg Config, tracker *Tracker, validator KeyValidator, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StartTime.IsZero() {
		cfg.StartTime = time.Now()
	}
	return &Checker{cfg: cfg, tracker: tracker, validator: validator, logger: logger}
}

// Check returns the current status. Order: shutting-down > api key invalid >
// overloaded > idle > degraded > healthy.
func (c *Checker) Check(ctx context.Context) Result {
	status, reason := c.evaluate(ctx)

	c.mu.Lock()
	if c.prev != "" && c.prev != status {
		c.logger.Info("health status transition",
			zap.String("previous_status", string(c.prev)),
			zap.String("current_status", string(status)),
			zap.String("reason", reason))
	}
	c.prev = status
	c.mu.Unlock()

	checks := map[string]string{"weatherApi": "healthy"}
	if status == StatusDegraded {
		checks["weatherApi"] = "unhealthy"
	}
	if c.cfg.CachePing != nil {
		checks["cache"] = "healthy"
		if err := c.cfg.CachePing(); err != nil {
			checks["cache"] = "unhealthy"
		}
	}
	return Result{Status: status, Reason: reason, Checks: checks}
}

func (c *Checker) evaluate(ctx context.Context) (Status, string) {
	if IsShuttingDown() {
		return StatusShuttingDown, "signal"
	}
	if c.validator != nil {
		if err := c.validator.ValidateAPIKey(ctx); err != nil {
			return StatusDegraded, "api_key_invalid"
		}
	}
	if c.tracker == nil {
		return StatusHealthy, ""
	}

	if c.cfg.OverloadWindow > 0 && c.cfg.RateLimitRPS > 0 && c.cfg.OverloadThresholdPct > 0 {
		capacity := float64(c.cfg.RateLimitRPS) * c.cfg.OverloadWindow.Seconds()
		threshold := capacity * float64(c.cfg.OverloadThresholdPct) / 100
		if float64(c.tracker.RequestCount(c.cfg.OverloadWindow)) > threshold {
			return StatusOverloaded, "overload_threshold"
		}
	}

	if c.cfg.IdleWindow > 0 && c.cfg.MinimumLifespan > 0 && time.Since(c.cfg.StartTime) >= c.cfg.MinimumLifespan {
		minimum := float64(c.cfg.IdleThresholdReqPerMin) * c.cfg.IdleWindow.Minutes()
		if float64(c.tracker.WeatherRequestCount(c.cfg.IdleWindow)) < minimum {
			return StatusIdle, "low_traffic"
		}
	}

	if c.cfg.DegradedWindow > 0 && c.cfg.DegradedErrorPct > 0 {
		errs, total := c.tracker.ErrorRate(c.cfg.DegradedWindow)
		if total > 0 && float64(errs)*100/float64(total) >= float64(c.cfg.DegradedErrorPct) {
			return StatusDegraded, "error_rate_breach"
		}
	}
	return StatusHealthy, ""
}
