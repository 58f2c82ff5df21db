package locator

import (
	"context"
	"errors"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// Geolocation failure classes. Any other error from a Geolocator is unknown.
var (
	ErrUnsupported         = errors.New("geolocation not supported")
	ErrPermissionDenied    = errors.New("geolocation permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimeout             = errors.New("geolocation timed out")
)

// User-facing messages.
const (
	MsgConsent                = "현재 위치의 날씨 정보를 보시겠습니까? 거부하시면 서울의 날씨를 계속 보여드립니다."
	MsgStartGeolocationFailed = "위치 정보에 접근할 수 없습니다. 서울 날씨를 계속 표시합니다."
	MsgStartLoadFailed        = "현재 위치의 날씨 정보를 가져올 수 없습니다. 서울 날씨를 계속 표시합니다."
	MsgPermissionDenied       = "위치 접근이 거부되었습니다. 브라우저 설정에서 위치 권한을 허용해주세요."
	MsgPositionUnavailable    = "현재 위치를 찾을 수 없습니다. GPS가 활성화되어 있는지 확인해주세요."
	MsgGeolocationTimeout     = "위치 검색 시간이 초과되었습니다. 다시 시도해주세요."
	MsgLocationLoadFailed     = "현재 위치의 날씨 정보를 가져올 수 없습니다."
)

// Geolocator reports the device position. Implementations return one of the
// Err* classes above when they can.
type Geolocator interface {
	CurrentPosition(ctx context.Context) (models.Coordinates, error)
}

// GeolocationMessage picks the message for a failed geolocation.
func GeolocationMessage(err error) string {
	return geolocationMessage(err, MsgLocationLoadFailed)
}

// geolocationMessage maps the classified failures to their own message and
// everything else, ErrUnsupported included, to unknown.
func geolocationMessage(err error, unknown string) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return MsgPermissionDenied
	case errors.Is(err, ErrPositionUnavailable):
		return MsgPositionUnavailable
	case errors.Is(err, ErrTimeout):
		return MsgGeolocationTimeout
	default:
		return unknown
	}
}

// StaticGeolocator reports a fixed position, typically from configuration.
// A nil Position means the host has no location source.
type StaticGeolocator struct {
	Position *models.Coordinates
}

func (g StaticGeolocator) CurrentPosition(ctx context.Context) (models.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return models.Coordinates{}, err
	}
	if g.Position == nil {
		return models.Coordinates{}, ErrUnsupported
	}
	return *g.Position, nil
}
