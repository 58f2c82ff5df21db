package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/lifecycle"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/service"
	"github.com/kjstillabower/weather-dashboard/internal/traffic"
	"github.com/kjstillabower/weather-dashboard/internal/validation"
)

// Place names accepted by /weather/place/{name}, in runes.
const (
	placeMinLength = 1
	placeMaxLength = 100
)

// WeatherService is what the handlers need from *service.WeatherService.
type WeatherService interface {
	CurrentWeather(ctx context.Context, loc models.Location) (models.CurrentWeather, error)
	Forecast(ctx context.Context, loc models.Location) (models.ForecastSeries, error)
	Hourly(ctx context.Context, loc models.Location) (models.HourlySeries, error)
	WeatherByPlace(ctx context.Context, name string) (models.CurrentWeather, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) models.PlaceName
}

// HealthConfig holds thresholds and probes for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// CachePing, when set, is called to check cache reachability. Used for memcached and redis.
	CachePing func() error
	// CircuitState, when set, reports the weather client's breaker state.
	CircuitState func() string
	Version      string
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weather          WeatherService
	healthConfig     *HealthConfig
	logger           *zap.Logger
	now              func() time.Time
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. healthConfig may be nil.
func NewHandler(weather WeatherService, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	return &Handler{
		weather:      weather,
		healthConfig: healthConfig,
		logger:       logger,
		now:          time.Now,
	}
}

// GetCurrent handles GET /weather/current?lat=&lon=[&name=&country=].
func (h *Handler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	loc, ok := locationFromQuery(w, r)
	if !ok {
		return
	}
	result, err := h.weather.CurrentWeather(r.Context(), loc)
	respond(w, r, result, err)
}

// GetForecast handles GET /weather/forecast?lat=&lon=[&name=&country=].
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	loc, ok := locationFromQuery(w, r)
	if !ok {
		return
	}
	result, err := h.weather.Forecast(r.Context(), loc)
	respond(w, r, result, err)
}

// GetHourly handles GET /weather/hourly?lat=&lon=.
func (h *Handler) GetHourly(w http.ResponseWriter, r *http.Request) {
	loc, ok := locationFromQuery(w, r)
	if !ok {
		return
	}
	result, err := h.weather.Hourly(r.Context(), loc)
	respond(w, r, result, err)
}

// GetPlace handles GET /weather/place/{name}.
func (h *Handler) GetPlace(w http.ResponseWriter, r *http.Request) {
	name, err := validation.ValidatePlaceName(mux.Vars(r)["name"], placeMinLength, placeMaxLength)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return
	}
	result, err := h.weather.WeatherByPlace(r.Context(), name)
	respond(w, r, result, err)
}

// GetReverseGeocode handles GET /geocode/reverse?lat=&lon=. A geocoder failure
// still answers 200 with the placeholder name.
func (h *Handler) GetReverseGeocode(w http.ResponseWriter, r *http.Request) {
	coords, err := validation.ParseCoordinates(r.URL.Query().Get("lat"), r.URL.Query().Get("lon"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
		return
	}
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, h.weather.ReverseGeocode(r.Context(), coords.Latitude, coords.Longitude))
}

// locationFromQuery parses lat/lon and the optional display fields. It writes
// the 400 itself and returns false on bad input.
func locationFromQuery(w http.ResponseWriter, r *http.Request) (models.Location, bool) {
	q := r.URL.Query()
	coords, err := validation.ParseCoordinates(q.Get("lat"), q.Get("lon"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
		return models.Location{}, false
	}
	name := strings.TrimSpace(q.Get("name"))
	if name == "" {
		name = client.CurrentLocationName
	}
	return models.Location{
		Latitude:  coords.Latitude,
		Longitude: coords.Longitude,
		Name:      name,
		Country:   strings.ToUpper(strings.TrimSpace(q.Get("country"))),
	}, true
}

// respond writes a fetch result and records its outcome for the health check.
func respond(w http.ResponseWriter, r *http.Request, result any, err error) {
	if err != nil {
		if errors.Is(err, client.ErrPlaceNotFound) {
			traffic.RecordSuccess()
			writeError(w, r, http.StatusNotFound, "PLACE_NOT_FOUND", service.UserMessage(err))
			return
		}
		traffic.RecordError()
		writeServiceError(w, r, err)
		return
	}
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, result)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"weatherApi": "healthy"}
	if result.status == "degraded" {
		checks["weatherApi"] = "unhealthy"
	}
	version := "dev"
	if h.healthConfig != nil {
		if h.healthConfig.CachePing != nil {
			checks["cache"] = "healthy"
			if err := h.healthConfig.CachePing(); err != nil {
				checks["cache"] = "unhealthy"
				observability.LoggerFromContext(r.Context()).Debug("cache ping failed", zap.Error(err))
			}
		}
		if h.healthConfig.CircuitState != nil {
			checks["circuitBreaker"] = h.healthConfig.CircuitState()
		}
		if h.healthConfig.Version != "" {
			version = h.healthConfig.Version
		}
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   "weather-dashboard",
		"version":   version,
		"checks":    checks,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > circuit open > error-rate breach > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if h.healthConfig.CircuitState != nil && h.healthConfig.CircuitState() == "open" {
		return healthResult{"degraded", http.StatusServiceUnavailable, "circuit_open"}
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		stats := traffic.Window(h.healthConfig.DegradedWindow)
		if stats.Errors > 0 && stats.ErrorPct() >= float64(h.healthConfig.DegradedErrorPct) {
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope. requestId is the correlation ID, if any.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// writeServiceError writes 503 with the localized message and logs the cause.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", service.UserMessage(err))
	observability.LoggerFromContext(r.Context()).Debug("upstream error",
		zap.Error(err),
		zap.String("category", string(client.CategorizeError(err))))
}
