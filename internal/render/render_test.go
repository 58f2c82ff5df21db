package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/locator"
	"github.com/kjstillabower/weather-dashboard/internal/models"
)

var kst = time.FixedZone("KST", 9*3600)

func TestFormatTemperature(t *testing.T) {
	tests := map[float64]string{
		15.5:  "16°C",
		15.49: "15°C",
		0:     "0°C",
		-2.5:  "-2°C",
		-2.6:  "-3°C",
	}
	for in, want := range tests {
		if got := FormatTemperature(in); got != want {
			t.Errorf("FormatTemperature(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatHour(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{0, "자정"},
		{1, "오전 1시"},
		{11, "오전 11시"},
		{12, "정오"},
		{13, "오후 1시"},
		{23, "오후 11시"},
	}
	for _, tt := range tests {
		at := time.Date(2024, 5, 1, tt.hour, 0, 0, 0, kst)
		if got := FormatHour(at); got != tt.want {
			t.Errorf("FormatHour(%d) = %q, want %q", tt.hour, got, tt.want)
		}
	}
}

func TestFormatDateAndTime(t *testing.T) {
	at := time.Date(2024, 5, 1, 14, 5, 0, 0, kst)
	if got := FormatDate(at); got != "5월 1일 (수)" {
		t.Errorf("FormatDate() = %q", got)
	}
	if got := FormatTime(at); got != "오후 02:05" {
		t.Errorf("FormatTime() = %q", got)
	}
	if got := FormatTime(at.Add(-14 * time.Hour)); got != "오전 12:05" {
		t.Errorf("FormatTime(midnight) = %q", got)
	}
}

func TestFormatLocationName(t *testing.T) {
	tests := []struct {
		name, country, want string
	}{
		{"서울", "KR", "서울"},
		{"Paris", "FR", "Paris, FR"},
		{"Somewhere", "", "Somewhere"},
		{"Lyon (현재위치)", "FR", "Lyon (현재위치)"},
	}
	for _, tt := range tests {
		if got := FormatLocationName(tt.name, tt.country); got != tt.want {
			t.Errorf("FormatLocationName(%q, %q) = %q, want %q", tt.name, tt.country, got, tt.want)
		}
	}
}

func TestRenderer_Dashboard(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 30, 0, 0, kst)
	snap := locator.Snapshot{
		Location: models.Location{Name: "Paris", Country: "FR"},
		Current: locator.Section[models.CurrentWeather]{HasData: true, Data: models.CurrentWeather{
			Name:    "Paris",
			Main:    models.CurrentMain{Temp: 18.4, FeelsLike: 18.4, TempMin: 12.3, TempMax: 22.1, Pressure: 1013, Humidity: 65},
			Weather: []models.Condition{{ID: 3, Main: "Clouds", Description: "흐림", Icon: "03d"}},
			Sys:     models.Sys{Country: "FR", Sunrise: now.Unix(), Sunset: now.Add(12 * time.Hour).Unix()},
		}},
		Hourly: locator.Section[models.HourlySeries]{HasData: true, Data: models.HourlySeries{List: []models.HourlyPoint{
			{DT: time.Date(2024, 5, 1, 9, 0, 0, 0, kst).Unix(), Temp: 17, Weather: models.Condition{Description: "맑음"}},
			{DT: time.Date(2024, 5, 1, 10, 0, 0, 0, kst).Unix(), Temp: 18, Weather: models.Condition{Description: "맑음"}},
		}}},
		Forecast: locator.Section[models.ForecastSeries]{Error: "일기예보 정보를 불러오는 중 오류가 발생했습니다."},
	}

	var buf bytes.Buffer
	r := &Renderer{Zone: kst, Now: func() time.Time { return now }, ShowIcons: true}
	r.Dashboard(&buf, snap)
	out := buf.String()

	for _, want := range []string{
		"== Paris, FR ==",
		"18°C  흐림 https://openweathermap.org/img/wn/03d@2x.png",
		"최고/최저: 22°C / 12°C",
		"기압: 1013 hPa",
		"일출/일몰: 오전 10:30 / 오후 10:30",
		"오전 9시",
		"지금",
		"[오류] 일기예보 정보를 불러오는 중 오류가 발생했습니다.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderer_LoadingAndForecast(t *testing.T) {
	var buf bytes.Buffer
	r := &Renderer{Zone: kst}
	r.Current(&buf, locator.Section[models.CurrentWeather]{Loading: true})
	r.Forecast(&buf, locator.Section[models.ForecastSeries]{HasData: true, Data: models.ForecastSeries{List: []models.ForecastDay{
		{DT: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).Unix(), Main: models.DayMain{TempMax: 22, TempMin: 12, Humidity: 65}, Weather: []models.Condition{{Description: "비"}}},
		{DT: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC).Unix(), Main: models.DayMain{TempMax: 20, TempMin: 10, Humidity: 65}, Weather: []models.Condition{{Description: "눈"}}},
	}}})
	out := buf.String()

	for _, want := range []string{loadingCurrent, "오늘", "5월 2일 (목)", "습도 65%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
