package models

import "time"

// Location is a resolved point the fetchers query. Country is an upper-case
// ISO code and may be empty.
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Name      string  `json:"name"`
	Country   string  `json:"country,omitempty"`
}

// Coordinates is a bare latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Condition is a translated weather code.
type Condition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type CurrentMain struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
	Pressure  int     `json:"pressure"`
	Humidity  int     `json:"humidity"`
}

type Wind struct {
	Speed float64 `json:"speed"`
	Deg   float64 `json:"deg"`
}

type Sys struct {
	Country string `json:"country"`
	Sunrise int64  `json:"sunrise"`
	Sunset  int64  `json:"sunset"`
}

// CurrentWeather is the current-conditions record for one location.
type CurrentWeather struct {
	Name    string      `json:"name"`
	Coord   Coordinates `json:"coord"`
	Main    CurrentMain `json:"main"`
	Weather []Condition `json:"weather"`
	Wind    Wind        `json:"wind"`
	Sys     Sys         `json:"sys"`
	DT      int64       `json:"dt"`
}

type DayMain struct {
	Temp     float64 `json:"temp"`
	TempMin  float64 `json:"temp_min"`
	TempMax  float64 `json:"temp_max"`
	Humidity int     `json:"humidity"`
}

// ForecastDay is one day of the weekly forecast. Main.Temp is the unrounded
// mean of TempMax and TempMin.
type ForecastDay struct {
	DT      int64       `json:"dt"`
	Main    DayMain     `json:"main"`
	Weather []Condition `json:"weather"`
	DTText  string      `json:"dt_txt"`
}

type City struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

// ForecastSeries holds at most seven days.
type ForecastSeries struct {
	List []ForecastDay `json:"list"`
	City City          `json:"city"`
}

// HourlyPoint is one hour of today's forecast.
type HourlyPoint struct {
	DT      int64     `json:"dt"`
	Temp    float64   `json:"temp"`
	Weather Condition `json:"weather"`
	DTText  string    `json:"dt_txt"`
}

// HourlySeries holds at most 24 points, one per local hour of today. Hours the
// provider did not return are absent.
type HourlySeries struct {
	List []HourlyPoint `json:"list"`
}

// PlaceName is the outcome of a reverse geocode.
type PlaceName struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

// Time converts a unix-seconds field back to a time.Time.
func Time(unix int64) time.Time {
	return time.Unix(unix, 0)
}
