package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// NewRouter mounts the API. Provider-backed routes get the rate limiter and
// request timeout; /health and /metrics get neither.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter, requestTimeout time.Duration) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	// Provider routes sit on the root router so a method mismatch is a 405.
	provider := func(next http.HandlerFunc) http.Handler {
		return RateLimitMiddleware(limiter)(TimeoutMiddleware(requestTimeout)(next))
	}
	router.Handle("/weather/current", provider(h.GetCurrent)).Methods(http.MethodGet)
	router.Handle("/weather/forecast", provider(h.GetForecast)).Methods(http.MethodGet)
	router.Handle("/weather/hourly", provider(h.GetHourly)).Methods(http.MethodGet)
	router.Handle("/weather/place/{name}", provider(h.GetPlace)).Methods(http.MethodGet)
	router.Handle("/geocode/reverse", provider(h.GetReverseGeocode)).Methods(http.MethodGet)

	return router
}
