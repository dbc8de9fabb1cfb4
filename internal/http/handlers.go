// Package http exposes current weather, daily forecasts and service health over JSON.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-forecast-service/internal/client"
	"github.com/kjstillabower/weather-forecast-service/internal/health"
	"github.com/kjstillabower/weather-forecast-service/internal/models"
	"github.com/kjstillabower/weather-forecast-service/internal/observability"
	"github.com/kjstillabower/weather-forecast-service/internal/validation"
)

const (
	serviceName    = "weather-forecast-service"
	serviceVersion = "dev"
)

// ForecastProvider is the subset of service.ForecastService used by handlers.
type ForecastProvider interface {
	GetCurrent(ctx context.Context, q models.Query) (models.CurrentWeather, error)
	GetWeekly(ctx context.Context, q models.Query) (models.WeeklyForecast, error)
	GetOverview(ctx context.Context, q models.Query) (models.Overview, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	forecasts ForecastProvider
	checker   *health.Checker
	tracker   *health.Tracker
	queryOpts validation.Options
	logger    *zap.Logger
}

// NewHandler returns a new Handler. checker and tracker may be nil; /health then
// reports healthy and request outcomes are not recorded.
func NewHandler(forecasts ForecastProvider, checker *health.Checker, tracker *health.Tracker, queryOpts validation.Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		forecasts: forecasts,
		checker:   checker,
		tracker:   tracker,
		queryOpts: queryOpts,
		logger:    logger,
	}
}

// GetCurrent handles GET /weather/current.
func (h *Handler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	serveQuery(h, w, r, h.forecasts.GetCurrent)
}

// GetWeekly handles GET /weather/weekly.
func (h *Handler) GetWeekly(w http.ResponseWriter, r *http.Request) {
	serveQuery(h, w, r, h.forecasts.GetWeekly)
}

// GetOverview handles GET /weather/overview.
func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	serveQuery(h, w, r, h.forecasts.GetOverview)
}

// serveQuery parses the query string, calls fetch and writes either the result or
// the mapped error. Outcomes feed the health tracker.
func serveQuery[T any](h *Handler, w http.ResponseWriter, r *http.Request, fetch func(context.Context, models.Query) (T, error)) {
	q, err := validation.ParseQuery(r.URL.Query(), h.queryOpts)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}

	h.recordRequest()
	result, err := fetch(r.Context(), q)
	if err != nil {
		status := writeServiceError(w, r, err)
		if status >= http.StatusInternalServerError {
			h.recordError()
		} else {
			h.recordSuccess()
		}
		return
	}
	h.recordSuccess()
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) recordRequest() {
	if h.tracker != nil {
		h.tracker.RecordRequest()
	}
}

func (h *Handler) recordSuccess() {
	if h.tracker != nil {
		h.tracker.RecordSuccess()
	}
}

func (h *Handler) recordError() {
	if h.tracker != nil {
		h.tracker.RecordError()
	}
}

// GetHealth handles GET /health. Serving statuses return 200, all others 503.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := health.Result{Status: health.StatusHealthy, Checks: map[string]string{"weatherApi": "healthy"}}
	if h.checker != nil {
		result = h.checker.Check(r.Context())
	}

	statusCode := http.StatusOK
	if !result.Serving() {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, map[string]interface{}{
		"status":    result.Status,
		"service":   serviceName,
		"version":   serviceVersion,
		"checks":    result.Checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error":{"code","message","requestId"}}; requestId is the
// correlation id of the request.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// writeQueryError answers 400 for validation failures and 500 for anything else
// ParseQuery might surface.
func writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	if validation.IsValidationError(err) {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}
	observability.LoggerFromContext(r.Context()).Error("query parsing failed", zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Unable to process request")
}

// writeServiceError maps a service error to a response and returns the status written.
// Unknown locations are 404; every other failure is reported as upstream unavailable.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) int {
	logger := observability.LoggerFromContext(r.Context())
	switch {
	case errors.Is(err, client.ErrLocationNotFound):
		writeError(w, r, http.StatusNotFound, "LOCATION_NOT_FOUND", "Location not found")
		return http.StatusNotFound
	default:
		logger.Debug("upstream error", zap.Error(err), zap.String("category", string(client.CategorizeError(err))))
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch weather data")
		return http.StatusServiceUnavailable
	}
}
