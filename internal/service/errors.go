package service

import "errors"

// User-facing failures, one per operation. A FetchError pairs one of these
// with the underlying cause.
var (
	ErrCurrentUnavailable      = errors.New("날씨 정보를 불러오는 중 오류가 발생했습니다.")
	ErrForecastUnavailable     = errors.New("일기예보 정보를 불러오는 중 오류가 발생했습니다.")
	ErrHourlyUnavailable       = errors.New("시간대별 예보 정보를 불러오는 중 오류가 발생했습니다.")
	ErrPlaceWeatherUnavailable = errors.New("해당 지역의 날씨 정보를 찾을 수 없습니다.")
)

// FetchError is returned by every WeatherService fetch. errors.Is matches
// both Op and anything in the Cause chain.
type FetchError struct {
	Op    error
	Cause error
}

func (e *FetchError) Error() string {
	if e.Cause == nil {
		return e.Op.Error()
	}
	return e.Op.Error() + ": " + e.Cause.Error()
}

func (e *FetchError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Op}
	}
	return []error{e.Op, e.Cause}
}

// UserMessage returns the localized message for err, without the cause.
func UserMessage(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Op.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func fetchFailure(op, cause error) error {
	return &FetchError{Op: op, Cause: cause}
}
