package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-forecast-service/internal/health"
	"github.com/kjstillabower/weather-forecast-service/internal/observability"
)

// RouterConfig holds the pieces NewRouter wires around the handler.
type RouterConfig struct {
	Logger         *zap.Logger
	Limiter        *rate.Limiter // nil disables rate limiting
	Tracker        *health.Tracker
	RequestTimeout time.Duration
}

// NewRouter registers /health, /metrics and the /weather routes. Only /weather is
// rate limited and bounded by RequestTimeout. All routes live on the root router so
// a wrong method on a known path is answered with 405.
func NewRouter(h *Handler, cfg RouterConfig) *mux.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler()).Methods("GET")

	weatherChain := []mux.MiddlewareFunc{RateLimitMiddleware(cfg.Limiter, cfg.Tracker)}
	if cfg.RequestTimeout > 0 {
		weatherChain = append(weatherChain, TimeoutMiddleware(cfg.RequestTimeout))
	}
	weather := func(fn http.HandlerFunc) http.Handler {
		var handler http.Handler = fn
		for i := len(weatherChain) - 1; i >= 0; i-- {
			handler = weatherChain[i](handler)
		}
		return handler
	}
	router.Handle("/weather/current", weather(h.GetCurrent)).Methods("GET")
	router.Handle("/weather/weekly", weather(h.GetWeekly)).Methods("GET")
	router.Handle("/weather/overview", weather(h.GetOverview)).Methods("GET")
	return router
}
