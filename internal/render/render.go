// Package render prints the dashboard as plain text.
package render

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/locator"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/weathercode"
)

const (
	loadingCurrent  = "날씨 정보를 불러오는 중..."
	loadingHourly   = "시간대별 예보를 불러오는 중..."
	loadingForecast = "주간 예보를 불러오는 중..."
)

var weekdays = [...]string{"일", "월", "화", "수", "목", "금", "토"}

// Renderer writes dashboard snapshots. Times are shown in Zone.
type Renderer struct {
	Zone *time.Location
	// Now marks the current hour in the hourly section. Defaults to time.Now.
	Now func() time.Time
	// ShowIcons appends icon URLs to condition lines.
	ShowIcons bool
}

// FormatTemperature rounds half up, so 21.5 is "22°C" and -2.5 is "-2°C".
func FormatTemperature(temp float64) string {
	return fmt.Sprintf("%d°C", int(math.Floor(temp+0.5)))
}

// FormatHour names the hour of t: 자정, 정오, 오전 N시 or 오후 N시.
func FormatHour(t time.Time) string {
	h := t.Hour()
	switch {
	case h == 0:
		return "자정"
	case h == 12:
		return "정오"
	case h < 12:
		return fmt.Sprintf("오전 %d시", h)
	default:
		return fmt.Sprintf("오후 %d시", h-12)
	}
}

// FormatDate renders t as "5월 1일 (수)".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d월 %d일 (%s)", int(t.Month()), t.Day(), weekdays[t.Weekday()])
}

// FormatTime renders t as "오전 06:05".
func FormatTime(t time.Time) string {
	period := "오전"
	h := t.Hour()
	if h >= 12 {
		period = "오후"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%s %02d:%02d", period, h, t.Minute())
}

// FormatLocationName appends the country unless it is KR or the name is
// already marked as the user's own location.
func FormatLocationName(name, country string) string {
	if strings.Contains(name, strings.TrimSpace(locator.UserLocationSuffix)) {
		return name
	}
	if country != "" && country != "KR" {
		return name + ", " + country
	}
	return name
}

func (r *Renderer) zone() *time.Location {
	if r.Zone == nil {
		return time.Local
	}
	return r.Zone
}

func (r *Renderer) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// Dashboard writes the location header and all three sections.
func (r *Renderer) Dashboard(w io.Writer, snap locator.Snapshot) {
	fmt.Fprintf(w, "== %s ==\n\n", FormatLocationName(snap.Location.Name, snap.Location.Country))
	r.Current(w, snap.Current)
	fmt.Fprintln(w)
	r.Hourly(w, snap.Hourly)
	fmt.Fprintln(w)
	r.Forecast(w, snap.Forecast)
}

// Current writes the current-conditions section.
func (r *Renderer) Current(w io.Writer, s locator.Section[models.CurrentWeather]) {
	if s.Loading {
		fmt.Fprintln(w, loadingCurrent)
		return
	}
	if s.Error != "" {
		fmt.Fprintf(w, "[오류] %s\n", s.Error)
		return
	}
	if !s.HasData {
		return
	}
	d := s.Data
	fmt.Fprintf(w, "%s, %s\n", d.Name, d.Sys.Country)
	if len(d.Weather) > 0 {
		fmt.Fprintf(w, "%s  %s%s\n", FormatTemperature(d.Main.Temp), d.Weather[0].Description, r.icon(d.Weather[0]))
	}
	fmt.Fprintf(w, "체감 온도: %s\n", FormatTemperature(d.Main.FeelsLike))
	fmt.Fprintf(w, "최고/최저: %s / %s\n", FormatTemperature(d.Main.TempMax), FormatTemperature(d.Main.TempMin))
	fmt.Fprintf(w, "습도: %d%%\n", d.Main.Humidity)
	fmt.Fprintf(w, "기압: %d hPa\n", d.Main.Pressure)
	fmt.Fprintf(w, "풍속: %v m/s\n", d.Wind.Speed)
	fmt.Fprintf(w, "일출/일몰: %s / %s\n",
		FormatTime(models.Time(d.Sys.Sunrise).In(r.zone())),
		FormatTime(models.Time(d.Sys.Sunset).In(r.zone())))
}

// Hourly writes today's hourly section. The current hour is labelled 지금.
func (r *Renderer) Hourly(w io.Writer, s locator.Section[models.HourlySeries]) {
	if s.Loading {
		fmt.Fprintln(w, loadingHourly)
		return
	}
	if s.Error != "" {
		fmt.Fprintf(w, "[오류] %s\n", s.Error)
		return
	}
	if !s.HasData || len(s.Data.List) == 0 {
		return
	}
	fmt.Fprintln(w, "오늘 시간대별 날씨")
	nowHour := r.now().In(r.zone()).Hour()
	for _, p := range s.Data.List {
		t := models.Time(p.DT).In(r.zone())
		label := FormatHour(t)
		if t.Hour() == nowHour {
			label = "지금"
		}
		fmt.Fprintf(w, "  %-8s %5s  %s%s\n", label, FormatTemperature(p.Temp), p.Weather.Description, r.icon(p.Weather))
	}
}

// Forecast writes the weekly section. The first day is labelled 오늘.
func (r *Renderer) Forecast(w io.Writer, s locator.Section[models.ForecastSeries]) {
	if s.Loading {
		fmt.Fprintln(w, loadingForecast)
		return
	}
	if s.Error != "" {
		fmt.Fprintf(w, "[오류] %s\n", s.Error)
		return
	}
	if !s.HasData {
		return
	}
	fmt.Fprintln(w, "주간 일기예보")
	for i, day := range s.Data.List {
		if i == 7 {
			break
		}
		label := "오늘"
		if i > 0 {
			// Daily timestamps are UTC midnight of the provider's local date.
			label = FormatDate(models.Time(day.DT).UTC())
		}
		desc := ""
		if len(day.Weather) > 0 {
			desc = day.Weather[0].Description + r.icon(day.Weather[0])
		}
		fmt.Fprintf(w, "  %-12s %s / %s  %s  습도 %d%%\n",
			label, FormatTemperature(day.Main.TempMax), FormatTemperature(day.Main.TempMin), desc, day.Main.Humidity)
	}
}

func (r *Renderer) icon(c models.Condition) string {
	if !r.ShowIcons {
		return ""
	}
	return " " + weathercode.IconURL(c.Icon)
}
