// Package weathercode translates Open-Meteo WMO condition codes into the
// category, description and icon shown to users.
package weathercode

import (
	"fmt"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

const iconURLTemplate = "https://openweathermap.org/img/wn/%s@2x.png"

type entry struct {
	main        string
	description string
	icon        string
}

var table = map[int]entry{
	0:  {"Clear", "맑음", "01d"},
	1:  {"Clear", "대체로 맑음", "01d"},
	2:  {"Clouds", "일부 흐림", "02d"},
	3:  {"Clouds", "흐림", "03d"},
	45: {"Fog", "안개", "50d"},
	48: {"Fog", "서리 안개", "50d"},
	51: {"Drizzle", "약한 이슬비", "09d"},
	53: {"Drizzle", "이슬비", "09d"},
	55: {"Drizzle", "강한 이슬비", "09d"},
	61: {"Rain", "약한 비", "10d"},
	63: {"Rain", "비", "10d"},
	65: {"Rain", "강한 비", "10d"},
	71: {"Snow", "약한 눈", "13d"},
	73: {"Snow", "눈", "13d"},
	75: {"Snow", "강한 눈", "13d"},
	77: {"Snow", "진눈깨비", "13d"},
	80: {"Rain", "약한 소나기", "09d"},
	81: {"Rain", "소나기", "09d"},
	82: {"Rain", "강한 소나기", "09d"},
	85: {"Snow", "약한 눈 소나기", "13d"},
	86: {"Snow", "눈 소나기", "13d"},
	95: {"Thunderstorm", "뇌우", "11d"},
	96: {"Thunderstorm", "약한 우박을 동반한 뇌우", "11d"},
	99: {"Thunderstorm", "강한 우박을 동반한 뇌우", "11d"},
}

var unknown = entry{"Unknown", "알 수 없음", "01d"}

// Translate returns the condition for code. Codes outside the table map to
// the Unknown condition; the returned ID is always the input code.
func Translate(code int) models.Condition {
	e, ok := table[code]
	if !ok {
		e = unknown
	}
	return models.Condition{
		ID:          code,
		Main:        e.main,
		Description: e.description,
		Icon:        e.icon,
	}
}

// Known reports whether code has its own table entry.
func Known(code int) bool {
	_, ok := table[code]
	return ok
}

// IconURL builds the image URL for an icon code such as "01d".
func IconURL(icon string) string {
	return fmt.Sprintf(iconURLTemplate, icon)
}
