package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/traffic"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestMiddleware_CorrelationIDGenerated(t *testing.T) {
	router := newTestRouter(&mockWeatherService{current: seoulCurrent()}, nil, zap.NewNop())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/weather/current?lat=1&lon=2", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if id := w.Header().Get("X-Correlation-ID"); len(id) != 36 {
		t.Errorf("X-Correlation-ID = %q, want a generated UUID", id)
	}
}

func TestMiddleware_CorrelationIDPropagated(t *testing.T) {
	router := newTestRouter(&mockWeatherService{}, nil, zap.NewNop())

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Correlation-ID", "client-provided-id")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "client-provided-id" {
		t.Errorf("X-Correlation-ID = %q, want client-provided-id", got)
	}
}

func TestMiddleware_MetricsLabelledByTemplate(t *testing.T) {
	router := newTestRouter(&mockWeatherService{current: seoulCurrent()}, nil, zap.NewNop())
	counter := observability.HTTPRequestsTotal.WithLabelValues("GET", "/weather/place/{name}", "2xx")
	before := counterValue(t, counter)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/weather/place/Paris", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/weather/place/Rome", nil))

	if got := counterValue(t, counter) - before; got != 2 {
		t.Errorf("requests for /weather/place/{name} = %v, want 2", got)
	}
}

func TestMiddleware_MetricsRecordsNonOK(t *testing.T) {
	router := newTestRouter(&mockWeatherService{}, nil, zap.NewNop())
	counter := observability.HTTPRequestsTotal.WithLabelValues("GET", "/weather/current", "4xx")
	before := counterValue(t, counter)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/weather/current?lat=bad&lon=1", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if got := counterValue(t, counter) - before; got != 1 {
		t.Errorf("4xx count delta = %v, want 1", got)
	}
}

func TestMiddleware_MetricsRoute(t *testing.T) {
	router := newTestRouter(&mockWeatherService{}, nil, zap.NewNop())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "httpRequestsInFlight") {
		t.Error("metrics body missing httpRequestsInFlight")
	}
}

func TestTimeoutMiddleware_SetsDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool
	router := mux.NewRouter()
	router.Use(TimeoutMiddleware(time.Second))
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	})

	start := time.Now()
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", nil))

	if !ok {
		t.Fatal("context has no deadline")
	}
	if d := deadline.Sub(start); d <= 0 || d > time.Second+100*time.Millisecond {
		t.Errorf("deadline in %v, want about 1s", d)
	}
}

func TestRateLimitMiddleware_Returns429WhenExceeded(t *testing.T) {
	traffic.Reset()
	defer traffic.Reset()
	handler := NewHandler(&mockWeatherService{current: seoulCurrent()}, nil, zap.NewNop())
	router := NewRouter(handler, zap.NewNop(), rate.NewLimiter(1, 2), 5*time.Second)
	deniedBefore := counterValue(t, observability.RateLimitDeniedTotal)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/weather/current?lat=1&lon=2", nil))

		if i < 2 {
			if w.Code != http.StatusOK {
				t.Errorf("request %d: status = %d, want 200", i, w.Code)
			}
			continue
		}
		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("request %d: status = %d, want 429", i, w.Code)
		}
		if body := decodeError(t, w); body.Error.Code != "RATE_LIMITED" {
			t.Errorf("error.code = %q, want RATE_LIMITED", body.Error.Code)
		}
	}

	if got := counterValue(t, observability.RateLimitDeniedTotal) - deniedBefore; got != 1 {
		t.Errorf("rateLimitDeniedTotal delta = %v, want 1", got)
	}
	if stats := traffic.Window(time.Minute); stats.Denied != 1 {
		t.Errorf("traffic denied = %d, want 1", stats.Denied)
	}

	// Health is not behind the limiter.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("/health status = %d, want 200", w.Code)
	}
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	called := false
	h := RateLimitMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/weather/current", nil))

	if !called {
		t.Error("nil limiter should allow the request")
	}
}

func TestRouter_UnknownRouteAndMethod(t *testing.T) {
	router := newTestRouter(&mockWeatherService{}, nil, zap.NewNop())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/weather/unknown/path", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/weather/current?lat=1&lon=2", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("DELETE", "/geocode/reverse?lat=1&lon=2", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE status = %d, want 405", w.Code)
	}
}
