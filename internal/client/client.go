package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// UpstreamClient is the forecast provider surface used by the service layer.
type UpstreamClient interface {
	FetchForecast(ctx context.Context, lat, lon float64) (models.WeatherSnapshot, error)
	FetchAirQuality(ctx context.Context, lat, lon float64) (*models.AirQuality, error)
	SearchPlaces(ctx context.Context, query string, count int, language string) ([]models.GeoLocation, error)
}

var (
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrRateLimited       = errors.New("rate limited")
	ErrBadRequest        = errors.New("bad request")
	ErrMalformedResponse = errors.New("malformed response")
	ErrCircuitOpen       = errors.New("circuit breaker open")
	ErrInvalidEndpoint   = errors.New("invalid endpoint")
)

// Provider names label metrics and circuit breakers.
const (
	ProviderForecast   = "forecast"
	ProviderAirQuality = "air_quality"
	ProviderGeocoding  = "geocoding"
)

// Response bodies larger than this are rejected as malformed.
const maxBodyBytes = 8 << 20

// Endpoints holds the base URLs of the three Open-Meteo APIs.
type Endpoints struct {
	Forecast   string
	AirQuality string
	Geocoding  string
}

// DefaultEndpoints returns the public Open-Meteo base URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Forecast:   "https://api.open-meteo.com/v1",
		AirQuality: "https://air-quality-api.open-meteo.com/v1",
		Geocoding:  "https://geocoding-api.open-meteo.com/v1",
	}
}

// Options tunes transport reliability. Zero fields take DefaultOptions values.
type Options struct {
	Timeout         time.Duration
	RetryAttempts   int
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	HTTPClient      *http.Client
	Logger          *zap.Logger
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:         5 * time.Second,
		RetryAttempts:   3,
		RetryBaseDelay:  100 * time.Millisecond,
		RetryMaxDelay:   2 * time.Second,
		RateLimitRPS:    10,
		RateLimitBurst:  20,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = d.RetryAttempts
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = d.RetryBaseDelay
	}
	if o.RetryMaxDelay <= 0 {
		o.RetryMaxDelay = d.RetryMaxDelay
	}
	if o.RateLimitRPS <= 0 {
		o.RateLimitRPS = d.RateLimitRPS
	}
	if o.RateLimitBurst <= 0 {
		o.RateLimitBurst = d.RateLimitBurst
	}
	if o.BreakerFailures == 0 {
		o.BreakerFailures = d.BreakerFailures
	}
	if o.BreakerTimeout <= 0 {
		o.BreakerTimeout = d.BreakerTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// OpenMeteoClient talks to the Open-Meteo forecast, air-quality and geocoding APIs.
// One token bucket is shared by all three; each has its own circuit breaker.
type OpenMeteoClient struct {
	endpoints      Endpoints
	client         *http.Client
	timeout        time.Duration
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	limiter        *rate.Limiter
	breakers       map[string]*gobreaker.CircuitBreaker
	logger         *zap.Logger
}

// NewOpenMeteoClient validates endpoints and builds a client.
func NewOpenMeteoClient(endpoints Endpoints, opts Options) (*OpenMeteoClient, error) {
	for name, raw := range map[string]string{
		ProviderForecast:   endpoints.Forecast,
		ProviderAirQuality: endpoints.AirQuality,
		ProviderGeocoding:  endpoints.Geocoding,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%w: %s endpoint %q", ErrInvalidEndpoint, name, raw)
		}
	}

	opts = opts.withDefaults()
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	c := &OpenMeteoClient{
		endpoints:      endpoints,
		client:         httpClient,
		timeout:        opts.Timeout,
		retryAttempts:  opts.RetryAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		retryMaxDelay:  opts.RetryMaxDelay,
		limiter:        rate.NewLimiter(rate.Limit(opts.RateLimitRPS), opts.RateLimitBurst),
		breakers:       make(map[string]*gobreaker.CircuitBreaker, 3),
		logger:         opts.Logger,
	}
	for _, p := range []string{ProviderForecast, ProviderAirQuality, ProviderGeocoding} {
		c.breakers[p] = newBreaker(p, opts.BreakerFailures, opts.BreakerTimeout, opts.Logger)
	}
	return c, nil
}

func newBreaker(provider string, failures uint32, timeout time.Duration, logger *zap.Logger) *gobreaker.CircuitBreaker {
	observability.CircuitBreakerState.WithLabelValues(provider).Set(0)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Caller mistakes and cancellations say nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrBadRequest) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			logger.Warn("circuit breaker state change",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// getJSON performs GET base/path?params with retries and decodes the body into out.
func (c *OpenMeteoClient) getJSON(ctx context.Context, provider, base, path string, params url.Values, out any) error {
	var lastErr error
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.UpstreamRetriesTotal.WithLabelValues(provider).Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		err := c.callAPI(ctx, provider, base, path, params, out)
		if err == nil {
			return nil
		}
		lastErr = err
		observability.UpstreamErrorsTotal.WithLabelValues(provider, string(CategorizeError(err))).Inc()
		if ctx.Err() != nil || !isRetryable(err) {
			return err
		}
		c.logger.Debug("retrying upstream call",
			zap.String("provider", provider),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return fmt.Errorf("exhausted retries: %w", lastErr)
}

// callAPI makes one attempt through the rate limiter and the provider's breaker.
func (c *OpenMeteoClient) callAPI(ctx context.Context, provider, base, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	_, err := c.breakers[provider].Execute(func() (interface{}, error) {
		return nil, c.do(ctx, provider, base, path, params, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s: %v", ErrCircuitOpen, provider, err)
	}
	return err
}

func (c *OpenMeteoClient) do(ctx context.Context, provider, base, path string, params url.Values, out any) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := buildRequest(reqCtx, base, path, params)
	if err != nil {
		return err
	}
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(provider, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(provider, "error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("request timeout: %w", err)
		}
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := observability.StatusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(provider, status).Inc()
	observability.UpstreamDuration.WithLabelValues(provider, status).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := handleErrorResponse(resp.StatusCode, body); err != nil {
		return err
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("%w: body exceeds %d bytes", ErrMalformedResponse, maxBodyBytes)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: parse response: %v", ErrMalformedResponse, err)
	}
	return nil
}

func buildRequest(ctx context.Context, base, path string, params url.Values) (*http.Request, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// providerError is the body Open-Meteo returns with 4xx responses.
type providerError struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

func handleErrorResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	switch {
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case statusCode >= 400 && statusCode < 500:
		var pe providerError
		if json.Unmarshal(body, &pe) == nil && pe.Reason != "" {
			return fmt.Errorf("%w: HTTP %d: %s", ErrBadRequest, statusCode, pe.Reason)
		}
		return fmt.Errorf("%w: HTTP %d", ErrBadRequest, statusCode)
	default:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, statusCode)
	}
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return strings.Contains(err.Error(), "http request failed")
}

func (c *OpenMeteoClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
