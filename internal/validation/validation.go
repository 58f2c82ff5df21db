// Package validation checks user input before it reaches the providers.
package validation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

var (
	// ErrPlaceEmpty is returned when a place name is empty or whitespace-only after trim.
	ErrPlaceEmpty = errors.New("place name is required")

	ErrPlaceTooShort = errors.New("place name too short")

	ErrPlaceTooLong = errors.New("place name too long")

	// ErrPlaceInvalidChars is returned when a place name contains non-printing characters.
	ErrPlaceInvalidChars = errors.New("place name contains invalid characters")

	ErrCoordinatesMissing = errors.New("lat and lon are required")

	// ErrCoordinatesInvalid covers unparsable, non-finite and out-of-range values.
	ErrCoordinatesInvalid = errors.New("invalid coordinates")
)

// ValidatePlaceName trims the input and enforces length bounds (minLen, maxLen in
// runes). Any printable text is accepted, so "Paris (France)" or "R&D Park" go to
// the geocoder as typed; control and other non-printing characters are rejected.
// A bound of 0 disables that check.
func ValidatePlaceName(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrPlaceEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrPlaceTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrPlaceTooLong
	}
	for _, c := range r {
		if !isAllowedPlaceRune(c) {
			return "", ErrPlaceInvalidChars
		}
	}
	return s, nil
}

func isAllowedPlaceRune(r rune) bool {
	return unicode.IsPrint(r)
}

// ParseCoordinates parses decimal latitude and longitude query values.
// Latitude must be within [-90, 90] and longitude within [-180, 180].
func ParseCoordinates(latStr, lonStr string) (models.Coordinates, error) {
	latStr, lonStr = strings.TrimSpace(latStr), strings.TrimSpace(lonStr)
	if latStr == "" || lonStr == "" {
		return models.Coordinates{}, ErrCoordinatesMissing
	}
	lat, err := parseFinite(latStr)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: lat %q", ErrCoordinatesInvalid, latStr)
	}
	lon, err := parseFinite(lonStr)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: lon %q", ErrCoordinatesInvalid, lonStr)
	}
	if lat < -90 || lat > 90 {
		return models.Coordinates{}, fmt.Errorf("%w: lat %v out of range", ErrCoordinatesInvalid, lat)
	}
	if lon < -180 || lon > 180 {
		return models.Coordinates{}, fmt.Errorf("%w: lon %v out of range", ErrCoordinatesInvalid, lon)
	}
	return models.Coordinates{Latitude: lat, Longitude: lon}, nil
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}
