package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubValidator struct{ err error }

func (s stubValidator) ValidateAPIKey(context.Context) error { return s.err }

func baseConfig() Config {
	return Config{
		RateLimitRPS:           1,
		OverloadWindow:         10 * time.Second,
		OverloadThresholdPct:   100,
		IdleWindow:             time.Minute,
		IdleThresholdReqPerMin: 2,
		MinimumLifespan:        time.Minute,
		DegradedWindow:         time.Minute,
		DegradedErrorPct:       50,
		StartTime:              time.Now().Add(-time.Hour),
	}
}

func TestChecker_Priority(t *testing.T) {
	tests := []struct {
		name       string
		shutdown   bool
		keyErr     error
		setup      func(tr *Tracker)
		wantStatus Status
		wantReason string
	}{
		{
			name:       "shutting down wins over everything",
			shutdown:   true,
			keyErr:     errors.New("bad key"),
			wantStatus: StatusShuttingDown,
			wantReason: "signal",
		},
		{
			name:       "invalid key",
			keyErr:     errors.New("bad key"),
			wantStatus: StatusDegraded,
			wantReason: "api_key_invalid",
		},
		{
			name: "overloaded",
			setup: func(tr *Tracker) {
				for i := 0; i < 11; i++ {
					tr.RecordDenied()
				}
			},
			wantStatus: StatusOverloaded,
			wantReason: "overload_threshold",
		},
		{
			name:       "idle with no traffic",
			wantStatus: StatusIdle,
			wantReason: "low_traffic",
		},
		{
			name: "degraded on error rate",
			setup: func(tr *Tracker) {
				tr.RecordRequest()
				tr.RecordRequest()
				tr.RecordError()
				tr.RecordSuccess()
			},
			wantStatus: StatusDegraded,
			wantReason: "error_rate_breach",
		},
		{
			name: "healthy",
			setup: func(tr *Tracker) {
				tr.RecordRequest()
				tr.RecordRequest()
				tr.RecordSuccess()
				tr.RecordSuccess()
			},
			wantStatus: StatusHealthy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetShuttingDown(tt.shutdown)
			defer SetShuttingDown(false)

			tr := NewTracker()
			if tt.setup != nil {
				tt.setup(tr)
			}
			c := NewChecker(baseConfig(), tr, stubValidator{err: tt.keyErr}, nil)
			got := c.Check(context.Background())
			if got.Status != tt.wantStatus || got.Reason != tt.wantReason {
				t.Errorf("Check() = (%s, %q), want (%s, %q)", got.Status, got.Reason, tt.wantStatus, tt.wantReason)
			}
		})
	}
}

func TestChecker_IdleSkippedBeforeMinimumLifespan(t *testing.T) {
	cfg := baseConfig()
	cfg.StartTime = time.Now()
	c := NewChecker(cfg, NewTracker(), stubValidator{}, nil)
	if got := c.Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("Status = %s, want healthy", got.Status)
	}
}

func TestChecker_NilTracker(t *testing.T) {
	c := NewChecker(Config{}, nil, nil, nil)
	got := c.Check(context.Background())
	if got.Status != StatusHealthy || !got.Serving() {
		t.Errorf("Check() = %+v, want healthy and serving", got)
	}
}

func TestChecker_Checks(t *testing.T) {
	cfg := Config{CachePing: func() error { return errors.New("down") }}
	c := NewChecker(cfg, nil, stubValidator{err: errors.New("bad")}, nil)
	got := c.Check(context.Background())
	if got.Checks["weatherApi"] != "unhealthy" {
		t.Errorf("weatherApi check = %q, want unhealthy", got.Checks["weatherApi"])
	}
	if got.Checks["cache"] != "unhealthy" {
		t.Errorf("cache check = %q, want unhealthy", got.Checks["cache"])
	}
	if got.Serving() {
		t.Error("Serving() = true for degraded")
	}
}

func TestChecker_LogsTransition(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	v := &stubValidator{}
	c := NewChecker(Config{}, nil, v, zap.New(core))

	c.Check(context.Background())
	v.err = errors.New("revoked")
	c.Check(context.Background())
	c.Check(context.Background())

	entries := logs.FilterMessage("health status transition").All()
	if len(entries) != 1 {
		t.Fatalf("transition logs = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["previous_status"] != "healthy" || fields["current_status"] != "degraded" {
		t.Errorf("transition fields = %v", fields)
	}
}

func TestShutdownFlag(t *testing.T) {
	SetShuttingDown(true)
	if !IsShuttingDown() {
		t.Error("IsShuttingDown() = false after SetShuttingDown(true)")
	}
	SetShuttingDown(false)
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true after SetShuttingDown(false)")
	}
}
