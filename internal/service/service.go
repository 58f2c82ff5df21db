package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/cache"
	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/weathercode"
)

const (
	kindCurrent  = "current"
	kindForecast = "forecast"
	kindHourly   = "hourly"
	kindPlace    = "place"

	// DefaultForecastDelay is the fixed pause before each forecast request.
	DefaultForecastDelay = 500 * time.Millisecond

	// Placeholders for values the free forecast tier does not provide.
	placeholderPressure = 1013
	placeholderHumidity = 65
	sunsetOffset        = 12 * time.Hour

	forecastHorizonDays = 7
	hourlyHorizonPoints = 24

	unknownCountry = client.UnknownCountry

	hourlyTimeLayout = "2006-01-02T15:04"
	dailyTimeLayout  = "2006-01-02"
)

var (
	currentDaily  = []string{"temperature_2m_max", "temperature_2m_min"}
	forecastDaily = []string{"temperature_2m_max", "temperature_2m_min", "weathercode"}
	hourlyFields  = []string{"temperature_2m", "weathercode"}
)

// Options tunes a WeatherService. Zero values select the defaults.
type Options struct {
	// TTL is the cache lifetime of each payload.
	TTL time.Duration
	// ForecastDelay is waited before every uncached forecast request. Negative disables it.
	ForecastDelay time.Duration
	// Zone defines the caller's "today" for the hourly series. Defaults to time.Local.
	Zone *time.Location
}

// WeatherService is the cache-aside adapter between callers and the weather
// and geocoding providers. Every fetch makes at most one upstream attempt and
// caches only successful results. Concurrent misses on one key each fetch.
type WeatherService struct {
	weather         client.WeatherClient
	geocoder        client.Geocoder
	cache           cache.Cache
	ttl             time.Duration
	forecastDelay   time.Duration
	zone            *time.Location
	now             func() time.Time
	stampedeTracker *stampedeTracker
}

// NewWeatherService creates a WeatherService. geocoder may be nil when place
// lookups are not needed.
func NewWeatherService(weather client.WeatherClient, geocoder client.Geocoder, c cache.Cache, opts Options) *WeatherService {
	if opts.TTL <= 0 {
		opts.TTL = cache.DefaultTTL
	}
	if opts.ForecastDelay == 0 {
		opts.ForecastDelay = DefaultForecastDelay
	}
	if opts.ForecastDelay < 0 {
		opts.ForecastDelay = 0
	}
	if opts.Zone == nil {
		opts.Zone = time.Local
	}
	return &WeatherService{
		weather:         weather,
		geocoder:        geocoder,
		cache:           c,
		ttl:             opts.TTL,
		forecastDelay:   opts.ForecastDelay,
		zone:            opts.Zone,
		now:             time.Now,
		stampedeTracker: newStampedeTracker(),
	}
}

// CacheKey is the deterministic cache key for kind at loc.
func CacheKey(kind string, loc models.Location) string {
	return kind + "_" + client.FormatCoord(loc.Latitude) + "_" + client.FormatCoord(loc.Longitude)
}

// CurrentWeather returns current conditions for loc.
func (s *WeatherService) CurrentWeather(ctx context.Context, loc models.Location) (models.CurrentWeather, error) {
	out, err := cached(ctx, s, kindCurrent, loc, func(ctx context.Context) (models.CurrentWeather, error) {
		resp, err := s.weather.Forecast(ctx, client.Query{
			Latitude:       loc.Latitude,
			Longitude:      loc.Longitude,
			CurrentWeather: true,
			Daily:          currentDaily,
			ForecastDays:   1,
		})
		if err != nil {
			return models.CurrentWeather{}, err
		}
		return s.buildCurrent(loc, resp)
	})
	if err != nil {
		return models.CurrentWeather{}, s.fail(ctx, kindCurrent, ErrCurrentUnavailable, err, loc)
	}
	return out, nil
}

// Forecast returns up to seven days starting today for loc.
func (s *WeatherService) Forecast(ctx context.Context, loc models.Location) (models.ForecastSeries, error) {
	out, err := cached(ctx, s, kindForecast, loc, func(ctx context.Context) (models.ForecastSeries, error) {
		if err := s.waitForecastDelay(ctx); err != nil {
			return models.ForecastSeries{}, err
		}
		resp, err := s.weather.Forecast(ctx, client.Query{
			Latitude:     loc.Latitude,
			Longitude:    loc.Longitude,
			Daily:        forecastDaily,
			ForecastDays: forecastHorizonDays,
		})
		if err != nil {
			return models.ForecastSeries{}, err
		}
		return buildForecast(loc, resp)
	})
	if err != nil {
		return models.ForecastSeries{}, s.fail(ctx, kindForecast, ErrForecastUnavailable, err, loc)
	}
	return out, nil
}

// Hourly returns one point per hour of today in the service zone. Hours the
// provider does not return are skipped, so the series can be shorter than 24.
func (s *WeatherService) Hourly(ctx context.Context, loc models.Location) (models.HourlySeries, error) {
	out, err := cached(ctx, s, kindHourly, loc, func(ctx context.Context) (models.HourlySeries, error) {
		resp, err := s.weather.Forecast(ctx, client.Query{
			Latitude:     loc.Latitude,
			Longitude:    loc.Longitude,
			Hourly:       hourlyFields,
			ForecastDays: 1,
		})
		if err != nil {
			return models.HourlySeries{}, err
		}
		return s.buildHourly(resp)
	})
	if err != nil {
		return models.HourlySeries{}, s.fail(ctx, kindHourly, ErrHourlyUnavailable, err, loc)
	}
	return out, nil
}

// WeatherByPlace geocodes name to its best match and returns that point's
// current weather. Geocoding and weather failures are reported alike.
func (s *WeatherService) WeatherByPlace(ctx context.Context, name string) (models.CurrentWeather, error) {
	loc, err := s.ResolvePlace(ctx, name)
	if err != nil {
		return models.CurrentWeather{}, s.fail(ctx, kindPlace, ErrPlaceWeatherUnavailable, err, models.Location{Name: name})
	}
	out, err := s.CurrentWeather(ctx, loc)
	if err != nil {
		return models.CurrentWeather{}, fetchFailure(ErrPlaceWeatherUnavailable, err)
	}
	return out, nil
}

// ResolvePlace forward-geocodes name and converts the first match to a Location.
func (s *WeatherService) ResolvePlace(ctx context.Context, name string) (models.Location, error) {
	if s.geocoder == nil {
		return models.Location{}, errors.New("geocoder not configured")
	}
	places, err := s.geocoder.Search(ctx, name, 1)
	if err != nil {
		return models.Location{}, err
	}
	return places[0].Location()
}

// ReverseGeocode names the point at lat/lon. It never fails.
func (s *WeatherService) ReverseGeocode(ctx context.Context, lat, lon float64) models.PlaceName {
	if s.geocoder == nil {
		return models.PlaceName{Name: client.CurrentLocationName, Country: unknownCountry}
	}
	return s.geocoder.Reverse(ctx, lat, lon)
}

// cached serves kind at loc from the cache or, on a miss, from fetch. Cache
// failures are treated as misses.
func cached[T any](ctx context.Context, s *WeatherService, kind string, loc models.Location, fetch func(context.Context) (T, error)) (T, error) {
	key := CacheKey(kind, loc)
	logger := observability.LoggerFromContext(ctx)
	start := time.Now()
	observability.WeatherQueriesTotal.WithLabelValues(kind).Inc()

	hit, ok, err := cache.GetJSON[T](ctx, s.cache, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		observability.CacheHitsTotal.WithLabelValues(kind).Inc()
		logger.Debug("weather served", zap.String("key", key), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		return hit, nil
	}
	observability.CacheMissesTotal.WithLabelValues(kind).Inc()

	if concurrent := s.stampedeTracker.RecordMiss(key); concurrent > 1 {
		observability.CacheStampedeDetectedTotal.WithLabelValues(kind).Inc()
	}
	defer s.stampedeTracker.RecordHit(key)

	logger.Debug("cache miss, fetching upstream", zap.String("key", key))
	out, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if setErr := cache.SetJSON(ctx, s.cache, key, out, s.ttl); setErr != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(setErr)).Inc()
		logger.Warn("cache set failed", zap.String("key", key), zap.Error(setErr))
	}
	logger.Debug("weather served", zap.String("key", key), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	return out, nil
}

func (s *WeatherService) fail(ctx context.Context, kind string, op, cause error, loc models.Location) error {
	provider := "open_meteo"
	if kind == kindPlace {
		provider = "nominatim"
	}
	observability.UpstreamErrorsTotal.WithLabelValues(provider, string(client.CategorizeError(cause))).Inc()
	observability.LoggerFromContext(ctx).Warn("weather fetch failed",
		zap.String("kind", kind),
		zap.String("location", loc.Name),
		zap.Float64("lat", loc.Latitude),
		zap.Float64("lon", loc.Longitude),
		zap.Error(cause),
	)
	return fetchFailure(op, cause)
}

func (s *WeatherService) waitForecastDelay(ctx context.Context) error {
	if s.forecastDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.forecastDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *WeatherService) buildCurrent(loc models.Location, resp client.ForecastResponse) (models.CurrentWeather, error) {
	cw := resp.CurrentWeather
	if cw == nil || resp.Daily == nil || len(resp.Daily.Temperature2mMin) == 0 || len(resp.Daily.Temperature2mMax) == 0 {
		return models.CurrentWeather{}, fmt.Errorf("%w: current_weather or daily bounds absent", client.ErrMalformedResponse)
	}
	observed, err := time.ParseInLocation(hourlyTimeLayout, cw.Time, s.zone)
	if err != nil {
		return models.CurrentWeather{}, fmt.Errorf("%w: current_weather.time %q", client.ErrMalformedResponse, cw.Time)
	}
	now := s.now()
	return models.CurrentWeather{
		Name:  loc.Name,
		Coord: models.Coordinates{Latitude: resp.Latitude, Longitude: resp.Longitude},
		Main: models.CurrentMain{
			Temp:      cw.Temperature,
			FeelsLike: cw.Temperature,
			TempMin:   resp.Daily.Temperature2mMin[0],
			TempMax:   resp.Daily.Temperature2mMax[0],
			Pressure:  placeholderPressure,
			Humidity:  placeholderHumidity,
		},
		Weather: []models.Condition{translate(cw.WeatherCode)},
		Wind:    models.Wind{Speed: cw.WindSpeed, Deg: cw.WindDirection},
		Sys: models.Sys{
			Country: countryOrUnknown(loc.Country),
			Sunrise: now.Unix(),
			Sunset:  now.Add(sunsetOffset).Unix(),
		},
		DT: observed.Unix(),
	}, nil
}

func buildForecast(loc models.Location, resp client.ForecastResponse) (models.ForecastSeries, error) {
	d := resp.Daily
	if d == nil {
		return models.ForecastSeries{}, fmt.Errorf("%w: daily absent", client.ErrMalformedResponse)
	}
	n := minLen(len(d.Time), len(d.Temperature2mMax), len(d.Temperature2mMin), len(d.WeatherCode))
	if n > forecastHorizonDays {
		n = forecastHorizonDays
	}

	list := make([]models.ForecastDay, 0, n)
	for i := 0; i < n; i++ {
		day, err := time.Parse(dailyTimeLayout, d.Time[i])
		if err != nil {
			return models.ForecastSeries{}, fmt.Errorf("%w: daily.time %q", client.ErrMalformedResponse, d.Time[i])
		}
		high, low := d.Temperature2mMax[i], d.Temperature2mMin[i]
		list = append(list, models.ForecastDay{
			DT: day.Unix(),
			Main: models.DayMain{
				Temp:     (high + low) / 2,
				TempMin:  low,
				TempMax:  high,
				Humidity: placeholderHumidity,
			},
			Weather: []models.Condition{translate(d.WeatherCode[i])},
			DTText:  d.Time[i],
		})
	}
	return models.ForecastSeries{
		List: list,
		City: models.City{Name: loc.Name, Country: countryOrUnknown(loc.Country)},
	}, nil
}

// buildHourly scans the series once per hour of today, keeping the first
// match. Unparseable times never match.
func (s *WeatherService) buildHourly(resp client.ForecastResponse) (models.HourlySeries, error) {
	h := resp.Hourly
	if h == nil {
		return models.HourlySeries{}, fmt.Errorf("%w: hourly absent", client.ErrMalformedResponse)
	}
	n := minLen(len(h.Time), len(h.Temperature2m), len(h.WeatherCode))
	times := make([]time.Time, n)
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		t, err := time.ParseInLocation(hourlyTimeLayout, h.Time[i], s.zone)
		times[i], valid[i] = t, err == nil
	}

	ty, tm, td := s.now().In(s.zone).Date()
	list := make([]models.HourlyPoint, 0, hourlyHorizonPoints)
	for hour := 0; hour < hourlyHorizonPoints; hour++ {
		idx := -1
		for i := 0; i < n; i++ {
			if !valid[i] {
				continue
			}
			y, m, d := times[i].Date()
			if times[i].Hour() == hour && y == ty && m == tm && d == td {
				idx = i
				break
			}
		}
		if idx < 0 {
			observability.HourlyPointsMissingTotal.Inc()
			continue
		}
		list = append(list, models.HourlyPoint{
			DT:      times[idx].Unix(),
			Temp:    h.Temperature2m[idx],
			Weather: translate(h.WeatherCode[idx]),
			DTText:  h.Time[idx],
		})
	}
	return models.HourlySeries{List: list}, nil
}

func translate(code int) models.Condition {
	if !weathercode.Known(code) {
		observability.UnknownWeatherCodesTotal.Inc()
	}
	return weathercode.Translate(code)
}

func countryOrUnknown(country string) string {
	if country == "" {
		return unknownCountry
	}
	return country
}

func minLen(lens ...int) int {
	n := lens[0]
	for _, l := range lens[1:] {
		if l < n {
			n = l
		}
	}
	return n
}

// categorizeCacheError returns a stable label for cache error metrics (timeout, connection, decode, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	if strings.Contains(errStr, "cache decode") || strings.Contains(errStr, "cache encode") {
		return "decode"
	}
	return "unknown"
}
