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
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

const (
	DefaultNominatimURL      = "https://nominatim.openstreetmap.org"
	DefaultGeocoderUserAgent = "weather-dashboard/1.0"
	providerNominatim        = "nominatim"

	// CurrentLocationName is shown when reverse geocoding yields no usable name.
	CurrentLocationName = "현재 위치"
	// UnknownCountry stands in for a missing country code.
	UnknownCountry = "XX"
)

// ErrPlaceNotFound is returned when forward geocoding matches nothing.
var ErrPlaceNotFound = errors.New("place not found")

// Geocoder resolves place names to coordinates and back.
type Geocoder interface {
	Search(ctx context.Context, query string, limit int) ([]Place, error)
	Reverse(ctx context.Context, lat, lon float64) models.PlaceName
}

// Address holds the structured address parts Nominatim returns with addressdetails.
type Address struct {
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	Borough       string `json:"borough"`
	CityDistrict  string `json:"city_district"`
	Suburb        string `json:"suburb"`
	Neighbourhood string `json:"neighbourhood"`
	Hamlet        string `json:"hamlet"`
	CountryCode   string `json:"country_code"`
}

// Place is one forward-geocoding match. Nominatim encodes coordinates as strings.
type Place struct {
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	DisplayName string   `json:"display_name"`
	CountryCode string   `json:"country_code"`
	Address     *Address `json:"address"`
}

// ReverseResponse is the subset of a /reverse body used to name a point.
type ReverseResponse struct {
	DisplayName string   `json:"display_name"`
	CountryCode string   `json:"country_code"`
	Address     *Address `json:"address"`
}

// Location converts the match into a Location: the display name up to the
// first comma, and the upper-cased country code or UnknownCountry.
func (p Place) Location() (models.Location, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(p.Lat), 64)
	if err != nil {
		return models.Location{}, fmt.Errorf("%w: lat %q", ErrMalformedResponse, p.Lat)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(p.Lon), 64)
	if err != nil {
		return models.Location{}, fmt.Errorf("%w: lon %q", ErrMalformedResponse, p.Lon)
	}
	name, _, _ := strings.Cut(p.DisplayName, ",")

	country := p.CountryCode
	if country == "" && p.Address != nil {
		country = p.Address.CountryCode
	}
	return models.Location{
		Latitude:  lat,
		Longitude: lon,
		Name:      name,
		Country:   upperOr(country, UnknownCountry),
	}, nil
}

// NominatimClient calls the OpenStreetMap Nominatim API. Requests share one
// outbound limiter to respect the public instance's usage policy.
type NominatimClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// NewNominatimClient returns a client for baseURL. rps <= 0 disables the outbound limiter.
func NewNominatimClient(baseURL, userAgent string, timeout time.Duration, rps float64, logger *zap.Logger) *NominatimClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = DefaultGeocoderUserAgent
	}
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NominatimClient{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
		limiter:   limiter,
		logger:    logger,
	}
}

// Search forward-geocodes query. Zero matches return ErrPlaceNotFound; a
// non-success status returns a *StatusError.
func (c *NominatimClient) Search(ctx context.Context, query string, limit int) ([]Place, error) {
	if limit <= 0 {
		limit = 1
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("addressdetails", "1")

	var places []Place
	if err := c.get(ctx, "/search", params, &places); err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrPlaceNotFound, query)
	}
	if len(places) > limit {
		places = places[:limit]
	}
	return places, nil
}

// Reverse names the point at lat/lon. It never fails: any error yields
// {CurrentLocationName, UnknownCountry}.
func (c *NominatimClient) Reverse(ctx context.Context, lat, lon float64) models.PlaceName {
	resp, err := c.reverse(ctx, lat, lon)
	if err != nil {
		observability.ReverseGeocodeFallbacksTotal.Inc()
		observability.UpstreamErrorsTotal.WithLabelValues(providerNominatim, string(CategorizeError(err))).Inc()
		c.logger.Warn("reverse geocode failed", zap.Float64("lat", lat), zap.Float64("lon", lon), zap.Error(err))
		return models.PlaceName{Name: CurrentLocationName, Country: UnknownCountry}
	}
	name := PlaceNameFromReverse(resp)
	if name.Name == CurrentLocationName {
		observability.ReverseGeocodeFallbacksTotal.Inc()
	}
	return name
}

func (c *NominatimClient) reverse(ctx context.Context, lat, lon float64) (ReverseResponse, error) {
	params := url.Values{}
	params.Set("lat", FormatCoord(lat))
	params.Set("lon", FormatCoord(lon))
	params.Set("format", "json")
	params.Set("accept-language", "ko")

	var out ReverseResponse
	if err := c.get(ctx, "/reverse", params, &out); err != nil {
		return ReverseResponse{}, err
	}
	return out, nil
}

// PlaceNameFromReverse derives a display name from a reverse-geocoding body.
// Priority: city|town|village, then borough|city_district|suburb, then
// neighbourhood|hamlet; the first two non-empty parts are joined with a space.
// Without address parts it uses the first comma segment of display_name, and
// finally CurrentLocationName.
func PlaceNameFromReverse(resp ReverseResponse) models.PlaceName {
	country := resp.CountryCode
	if resp.Address != nil && resp.Address.CountryCode != "" {
		country = resp.Address.CountryCode
	}
	country = upperOr(country, UnknownCountry)

	if a := resp.Address; a != nil {
		var parts []string
		for _, p := range []string{
			firstNonEmpty(a.City, a.Town, a.Village),
			firstNonEmpty(a.Borough, a.CityDistrict, a.Suburb),
			firstNonEmpty(a.Neighbourhood, a.Hamlet),
		} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) > 2 {
			parts = parts[:2]
		}
		if len(parts) > 0 {
			return models.PlaceName{Name: strings.Join(parts, " "), Country: country}
		}
	}

	if resp.DisplayName != "" {
		first, _, _ := strings.Cut(resp.DisplayName, ",")
		if first = strings.TrimSpace(first); first != "" {
			return models.PlaceName{Name: first, Country: country}
		}
	}
	return models.PlaceName{Name: CurrentLocationName, Country: country}
}

func (c *NominatimClient) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.wait(ctx); err != nil {
		return fmt.Errorf("geocoder throttle: %w", err)
	}

	start := time.Now()
	u := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		recordCall(providerNominatim, "error", start)
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}
	observability.LoggerFromContext(ctx).Debug("geocoder request", zap.String("url", u))

	resp, err := c.client.Do(req)
	if err != nil {
		recordCall(providerNominatim, "error", start)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("request timeout: %w", err)
		}
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	recordCall(providerNominatim, statusLabel(resp.StatusCode), start)
	if err := handleErrorResponse(providerNominatim, resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *NominatimClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	start := time.Now()
	err := c.limiter.Wait(ctx)
	observability.GeocoderThrottleWaitSeconds.Observe(time.Since(start).Seconds())
	return err
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func upperOr(s, fallback string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return fallback
	}
	return s
}
