// Package client fetches raw current-weather and forecast payloads from an
// OpenWeatherMap-compatible API.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/weather-forecast-service/internal/circuitbreaker"
	"github.com/kjstillabower/weather-forecast-service/internal/models"
	"github.com/kjstillabower/weather-forecast-service/internal/observability"
	"github.com/kjstillabower/weather-forecast-service/internal/rawjson"
)

// DefaultBaseURL is the OpenWeatherMap 2.5 API root.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

const (
	endpointCurrent  = "current"
	endpointForecast = "forecast"

	// validationCity is a location every valid key can resolve.
	validationCity = "London"
)

// WeatherClient fetches upstream payloads. Implementations make one attempt per call.
type WeatherClient interface {
	GetCurrent(ctx context.Context, q models.Query) (rawjson.Value, error)
	GetForecast(ctx context.Context, q models.Query) (rawjson.Value, error)
	ValidateAPIKey(ctx context.Context) error
}

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
	ErrCircuitOpen      = errors.New("upstream circuit open")
)

// OpenWeatherClient implements WeatherClient over HTTP.
type OpenWeatherClient struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
}

// Option customizes an OpenWeatherClient.
type Option func(*OpenWeatherClient)

// WithCircuitBreaker routes data calls through cb. Build cb with
// IsFailure: BreakerCountsFailure so bad keys and unknown locations do not trip it.
func WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *OpenWeatherClient) { c.breaker = cb }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *OpenWeatherClient) { c.client = hc }
}

// NewOpenWeatherClient returns a client for baseURL (DefaultBaseURL when empty).
// timeout bounds each request.
func NewOpenWeatherClient(apiKey, baseURL string, timeout time.Duration, opts ...Option) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &OpenWeatherClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BreakerCountsFailure reports whether err should count toward opening the circuit.
// Caller mistakes (bad key, unknown location) do not.
func BreakerCountsFailure(err error) bool {
	return !errors.Is(err, ErrInvalidAPIKey) && !errors.Is(err, ErrLocationNotFound)
}

// GetCurrent fetches GET {base}/weather for q.
func (c *OpenWeatherClient) GetCurrent(ctx context.Context, q models.Query) (rawjson.Value, error) {
	return c.fetch(ctx, endpointCurrent, "/weather", q)
}

// GetForecast fetches GET {base}/forecast (5-day, 3-hour samples) for q.
func (c *OpenWeatherClient) GetForecast(ctx context.Context, q models.Query) (rawjson.Value, error) {
	return c.fetch(ctx, endpointForecast, "/forecast", q)
}

func (c *OpenWeatherClient) fetch(ctx context.Context, endpoint, path string, q models.Query) (rawjson.Value, error) {
	var result rawjson.Value
	call := func() error {
		var err error
		result, err = c.callAPI(ctx, endpoint, path, q)
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Call(ctx, call)
		if errors.Is(err, circuitbreaker.ErrOpen) {
			observability.WeatherAPIErrorsTotal.WithLabelValues(endpoint, string(ErrorCategoryCircuitOpen)).Inc()
			return rawjson.Value{}, fmt.Errorf("%w: %s", ErrCircuitOpen, endpoint)
		}
	} else {
		err = call()
	}
	if err != nil {
		observability.WeatherAPIErrorsTotal.WithLabelValues(endpoint, string(CategorizeError(err))).Inc()
		return rawjson.Value{}, err
	}
	return result, nil
}

func (c *OpenWeatherClient) callAPI(ctx context.Context, endpoint, path string, q models.Query) (rawjson.Value, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, path, q)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		return rawjson.Value{}, fmt.Errorf("build request: %w", err)
	}
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WeatherAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		observability.WeatherAPIDuration.WithLabelValues(endpoint, "error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return rawjson.Value{}, fmt.Errorf("request timeout: %w", err)
		}
		return rawjson.Value{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())

	if err := mapStatus(resp.StatusCode); err != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return rawjson.Value{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return rawjson.Value{}, fmt.Errorf("read response body: %w", err)
	}
	v, err := rawjson.Decode(body)
	if err != nil {
		return rawjson.Value{}, fmt.Errorf("parse response: %w", err)
	}
	return v, nil
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, path string, q models.Query) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	if q.Coordinates != nil {
		params.Set("lat", strconv.FormatFloat(q.Coordinates.Lat, 'f', -1, 64))
		params.Set("lon", strconv.FormatFloat(q.Coordinates.Lon, 'f', -1, 64))
	} else {
		params.Set("q", q.City)
	}
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	if q.Lang != "" {
		params.Set("lang", q.Lang)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// mapStatus turns a non-2xx status into a sentinel error.
func mapStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidAPIKey, code)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: HTTP %d", ErrLocationNotFound, code)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP %d", ErrRateLimited, code)
	default:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, code)
	}
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}

// ValidateAPIKey makes one current-weather call for a fixed city. It bypasses the
// circuit breaker so health reflects the key, not breaker state.
func (c *OpenWeatherClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := c.buildRequest(ctx, "/weather", models.Query{City: validationCity})
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: API key is invalid or not activated", ErrInvalidAPIKey)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}
	return nil
}
