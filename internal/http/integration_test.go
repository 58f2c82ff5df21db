//go:build integration
// +build integration

package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	testhelpers "github.com/kjstillabower/weather-dashboard/internal/testhelpers"
)

var testLogger *zap.Logger

func init() {
	var err error
	testLogger, err = observability.NewLogger()
	if err != nil {
		panic(err)
	}
}

// setupIntegrationRouter wires the full stack against the live providers.
func setupIntegrationRouter(t *testing.T, limiter *rate.Limiter) (*mux.Router, func()) {
	cfg := testhelpers.GetIntegrationConfig(t)
	svc, _, cleanup := testhelpers.SetupIntegrationService(t, cfg)
	handler := NewHandler(svc, &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50}, testLogger)
	return NewRouter(handler, testLogger, limiter, 20*time.Second), cleanup
}

func makeIntegrationRequest(router *mux.Router, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

// TestIntegration_GetCurrent_CacheMissThenHit verifies a live fetch populates the
// cache so the second request returns the identical payload.
func TestIntegration_GetCurrent_CacheMissThenHit(t *testing.T) {
	router, cleanup := setupIntegrationRouter(t, nil)
	defer cleanup()

	path := "/weather/current?lat=37.5665&lon=126.978&name=%EC%84%9C%EC%9A%B8&country=KR"
	w := makeIntegrationRequest(router, path)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200. Body: %s", w.Code, w.Body.String())
	}
	var first models.CurrentWeather
	if err := json.NewDecoder(w.Body).Decode(&first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Name != "서울" || len(first.Weather) != 1 {
		t.Errorf("response = %+v", first)
	}

	w2 := makeIntegrationRequest(router, path)
	var second models.CurrentWeather
	if err := json.NewDecoder(w2.Body).Decode(&second); err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if second.DT != first.DT || second.Sys.Sunrise != first.Sys.Sunrise {
		t.Errorf("second response was not served from cache: %+v vs %+v", second, first)
	}
}

// TestIntegration_GetForecast verifies the weekly series is at most seven days.
func TestIntegration_GetForecast(t *testing.T) {
	router, cleanup := setupIntegrationRouter(t, nil)
	defer cleanup()

	w := makeIntegrationRequest(router, "/weather/forecast?lat=35.1796&lon=129.0756&name=Busan")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200. Body: %s", w.Code, w.Body.String())
	}
	var series models.ForecastSeries
	if err := json.NewDecoder(w.Body).Decode(&series); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n := len(series.List); n == 0 || n > 7 {
		t.Errorf("forecast days = %d, want 1..7", n)
	}
}

// TestIntegration_GetPlace verifies name resolution and the not-found path.
func TestIntegration_GetPlace(t *testing.T) {
	router, cleanup := setupIntegrationRouter(t, nil)
	defer cleanup()

	w := makeIntegrationRequest(router, "/weather/place/Paris")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200. Body: %s", w.Code, w.Body.String())
	}
	var cw models.CurrentWeather
	if err := json.NewDecoder(w.Body).Decode(&cw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cw.Sys.Country != "FR" {
		t.Errorf("country = %q, want FR", cw.Sys.Country)
	}

	w = makeIntegrationRequest(router, "/weather/place/Qwxzvbnmplkjh")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown place status = %d, want 404. Body: %s", w.Code, w.Body.String())
	}
}

// TestIntegration_GetMetrics_Format verifies the Prometheus exposition includes upstream metrics.
func TestIntegration_GetMetrics_Format(t *testing.T) {
	router, cleanup := setupIntegrationRouter(t, nil)
	defer cleanup()

	makeIntegrationRequest(router, "/weather/hourly?lat=37.5665&lon=126.978")
	w := makeIntegrationRequest(router, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{"upstreamCallsTotal", "cacheMissesTotal", "httpRequestsTotal"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics missing %s", name)
		}
	}
}

// TestIntegration_RateLimiting_Concurrent verifies the bucket caps concurrent bursts.
func TestIntegration_RateLimiting_Concurrent(t *testing.T) {
	router, cleanup := setupIntegrationRouter(t, rate.NewLimiter(rate.Limit(1), 3))
	defer cleanup()

	var mu sync.Mutex
	codes := map[int]int{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Invalid coordinates keep the providers out of the burst.
			w := makeIntegrationRequest(router, "/weather/current?lat=x&lon=1")
			mu.Lock()
			codes[w.Code]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if codes[http.StatusBadRequest] != 3 {
		t.Errorf("admitted = %d, want 3 (burst)", codes[http.StatusBadRequest])
	}
	if codes[http.StatusTooManyRequests] != 7 {
		t.Errorf("denied = %d, want 7", codes[http.StatusTooManyRequests])
	}
}
