package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePlaceName_EmptyAndWhitespace(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"spaces", "   "},
		{"tab", "\t"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidatePlaceName(tc.input, 1, 100)
			if !errors.Is(err, ErrPlaceEmpty) {
				t.Errorf("error = %v, want ErrPlaceEmpty", err)
			}
		})
	}
}

func TestValidatePlaceName_Length(t *testing.T) {
	if _, err := ValidatePlaceName("x", 2, 100); !errors.Is(err, ErrPlaceTooShort) {
		t.Errorf("short: error = %v, want ErrPlaceTooShort", err)
	}
	s100 := strings.Repeat("가", 100)
	got, err := ValidatePlaceName(s100, 1, 100)
	if err != nil {
		t.Fatalf("max boundary: err = %v", err)
	}
	if len([]rune(got)) != 100 {
		t.Errorf("max boundary: rune count = %d, want 100", len([]rune(got)))
	}
	if _, err := ValidatePlaceName(s100+"a", 1, 100); !errors.Is(err, ErrPlaceTooLong) {
		t.Errorf("over max: error = %v, want ErrPlaceTooLong", err)
	}
}

func TestValidatePlaceName_InvalidChars(t *testing.T) {
	for _, input := range []string{"sea\x00ttle", "sea\tttle", "sea\nttle", "sea\x7fttle", "sea\u200bttle", "sea\u00a0ttle"} {
		t.Run(input, func(t *testing.T) {
			_, err := ValidatePlaceName(input, 1, 100)
			if !errors.Is(err, ErrPlaceInvalidChars) {
				t.Errorf("error = %v, want ErrPlaceInvalidChars", err)
			}
		})
	}
}

func TestValidatePlaceName_Valid(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantNorm string
	}{
		{"simple", "Paris", "Paris"},
		{"hangul", "서울", "서울"},
		{"with space", "New York", "New York"},
		{"comma", "London,uk", "London,uk"},
		{"hyphen", "Aix-en-Provence", "Aix-en-Provence"},
		{"period", "St. Louis", "St. Louis"},
		{"apostrophe", "L'Aquila", "L'Aquila"},
		{"trimmed", "  Busan  ", "Busan"},
		{"unicode", "Zürich", "Zürich"},
		{"parentheses", "Paris (France)", "Paris (France)"},
		{"slash and ampersand", "R&D Park / Daejeon", "R&D Park / Daejeon"},
		{"combining mark", "Zu\u0308rich", "Zu\u0308rich"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidatePlaceName(tc.input, 1, 100)
			if err != nil {
				t.Fatalf("ValidatePlaceName() err = %v", err)
			}
			if got != tc.wantNorm {
				t.Errorf("normalized = %q, want %q", got, tc.wantNorm)
			}
		})
	}
}

func TestParseCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		lat     string
		lon     string
		wantLat float64
		wantLon float64
		wantErr error
	}{
		{"seoul", "37.5665", "126.978", 37.5665, 126.978, nil},
		{"negative", "-33.87", "-151.21", -33.87, -151.21, nil},
		{"bounds", "90", "-180", 90, -180, nil},
		{"trimmed", " 1.5 ", " 2 ", 1.5, 2, nil},
		{"missing lat", "", "126.9", 0, 0, ErrCoordinatesMissing},
		{"missing lon", "37.5", " ", 0, 0, ErrCoordinatesMissing},
		{"not a number", "abc", "126.9", 0, 0, ErrCoordinatesInvalid},
		{"nan", "NaN", "0", 0, 0, ErrCoordinatesInvalid},
		{"inf", "0", "Inf", 0, 0, ErrCoordinatesInvalid},
		{"lat out of range", "90.1", "0", 0, 0, ErrCoordinatesInvalid},
		{"lon out of range", "0", "180.5", 0, 0, ErrCoordinatesInvalid},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCoordinates(tc.lat, tc.lon)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCoordinates() err = %v", err)
			}
			if got.Latitude != tc.wantLat || got.Longitude != tc.wantLon {
				t.Errorf("got %+v, want %v,%v", got, tc.wantLat, tc.wantLon)
			}
		})
	}
}
