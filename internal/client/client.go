package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/circuitbreaker"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

const (
	DefaultOpenMeteoURL = "https://api.open-meteo.com/v1"
	providerOpenMeteo   = "open_meteo"
)

// WeatherClient issues forecast queries against the weather provider.
type WeatherClient interface {
	Forecast(ctx context.Context, q Query) (ForecastResponse, error)
}

var (
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrRateLimited       = errors.New("rate limited")
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError reports a non-success HTTP status from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s unavailable: HTTP %d", e.Provider, e.StatusCode)
}

// Unwrap lets errors.Is match ErrRateLimited for 429 and ErrUpstreamFailure otherwise.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return ErrUpstreamFailure
}

// Query selects the field sets of one /forecast request. Timezone is always "auto".
type Query struct {
	Latitude       float64
	Longitude      float64
	CurrentWeather bool
	Daily          []string
	Hourly         []string
	ForecastDays   int
}

// ForecastResponse is the subset of the Open-Meteo /forecast body this service reads.
// Blocks that were not requested are nil.
type ForecastResponse struct {
	Latitude         float64         `json:"latitude"`
	Longitude        float64         `json:"longitude"`
	Timezone         string          `json:"timezone"`
	UTCOffsetSeconds int             `json:"utc_offset_seconds"`
	CurrentWeather   *CurrentWeather `json:"current_weather"`
	Daily            *DailyBlock     `json:"daily"`
	Hourly           *HourlyBlock    `json:"hourly"`
}

type CurrentWeather struct {
	Temperature   float64 `json:"temperature"`
	WeatherCode   int     `json:"weathercode"`
	WindSpeed     float64 `json:"windspeed"`
	WindDirection float64 `json:"winddirection"`
	Time          string  `json:"time"`
}

type DailyBlock struct {
	Time             []string  `json:"time"`
	Temperature2mMax []float64 `json:"temperature_2m_max"`
	Temperature2mMin []float64 `json:"temperature_2m_min"`
	WeatherCode      []int     `json:"weathercode"`
}

type HourlyBlock struct {
	Time          []string  `json:"time"`
	Temperature2m []float64 `json:"temperature_2m"`
	WeatherCode   []int     `json:"weathercode"`
}

// OpenMeteoClient talks to the Open-Meteo forecast API. It makes exactly one
// attempt per call; callers decide what a failure means.
type OpenMeteoClient struct {
	apiURL  string
	timeout time.Duration
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
}

// NewOpenMeteoClient returns a client for apiURL (the /v1 base), defaulting to the public endpoint.
func NewOpenMeteoClient(apiURL string, timeout time.Duration) (*OpenMeteoClient, error) {
	apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if apiURL == "" {
		apiURL = DefaultOpenMeteoURL
	}
	if _, err := url.Parse(apiURL); err != nil {
		return nil, fmt.Errorf("invalid weather API URL: %w", err)
	}
	return &OpenMeteoClient{
		apiURL:  apiURL,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker guards subsequent calls with cb. Nil disables it.
func (c *OpenMeteoClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

// Forecast performs one GET /forecast for q.
func (c *OpenMeteoClient) Forecast(ctx context.Context, q Query) (ForecastResponse, error) {
	if c.breaker == nil {
		return c.callAPI(ctx, q)
	}
	var out ForecastResponse
	err := c.breaker.Call(ctx, func() error {
		var callErr error
		out, callErr = c.callAPI(ctx, q)
		return callErr
	})
	return out, err
}

func (c *OpenMeteoClient) callAPI(ctx context.Context, q Query) (ForecastResponse, error) {
	start := time.Now()
	logger := observability.LoggerFromContext(ctx)

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.buildRequest(reqCtx, q)
	if err != nil {
		recordCall(providerOpenMeteo, "error", start)
		return ForecastResponse{}, fmt.Errorf("build request: %w", err)
	}
	logger.Debug("weather API request", zap.String("url", req.URL.String()))

	resp, err := c.client.Do(req)
	if err != nil {
		recordCall(providerOpenMeteo, "error", start)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return ForecastResponse{}, fmt.Errorf("request timeout: %w", err)
		}
		return ForecastResponse{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	recordCall(providerOpenMeteo, statusLabel(resp.StatusCode), start)
	if err := handleErrorResponse(providerOpenMeteo, resp); err != nil {
		return ForecastResponse{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ForecastResponse{}, fmt.Errorf("read response body: %w", err)
	}

	var out ForecastResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return ForecastResponse{}, fmt.Errorf("parse response: %w", err)
	}
	if err := checkBlocks(q, out); err != nil {
		return ForecastResponse{}, err
	}
	return out, nil
}

func (c *OpenMeteoClient) buildRequest(ctx context.Context, q Query) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL + "/forecast")
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("latitude", FormatCoord(q.Latitude))
	params.Set("longitude", FormatCoord(q.Longitude))
	if q.CurrentWeather {
		params.Set("current_weather", "true")
	}
	if len(q.Daily) > 0 {
		params.Set("daily", strings.Join(q.Daily, ","))
	}
	if len(q.Hourly) > 0 {
		params.Set("hourly", strings.Join(q.Hourly, ","))
	}
	params.Set("timezone", "auto")
	if q.ForecastDays > 0 {
		params.Set("forecast_days", strconv.Itoa(q.ForecastDays))
	}
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}
	return req, nil
}

// checkBlocks rejects a 200 body that lacks a block q asked for.
func checkBlocks(q Query, resp ForecastResponse) error {
	if q.CurrentWeather && resp.CurrentWeather == nil {
		return fmt.Errorf("%w: missing current_weather", ErrMalformedResponse)
	}
	if len(q.Daily) > 0 && resp.Daily == nil {
		return fmt.Errorf("%w: missing daily", ErrMalformedResponse)
	}
	if len(q.Hourly) > 0 && resp.Hourly == nil {
		return fmt.Errorf("%w: missing hourly", ErrMalformedResponse)
	}
	return nil
}

func handleErrorResponse(provider string, resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Provider: provider, StatusCode: resp.StatusCode}
	}
	return nil
}

// FormatCoord renders a coordinate with the shortest exact decimal form.
// Cache keys and query strings share it so identical inputs stay identical.
func FormatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func recordCall(provider, status string, start time.Time) {
	observability.UpstreamCallsTotal.WithLabelValues(provider, status).Inc()
	observability.UpstreamDuration.WithLabelValues(provider, status).Observe(time.Since(start).Seconds())
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
