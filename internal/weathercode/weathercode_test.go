package weathercode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

func TestTranslate_Table(t *testing.T) {
	tests := []struct {
		code int
		want models.Condition
	}{
		{0, models.Condition{ID: 0, Main: "Clear", Description: "맑음", Icon: "01d"}},
		{1, models.Condition{ID: 1, Main: "Clear", Description: "대체로 맑음", Icon: "01d"}},
		{2, models.Condition{ID: 2, Main: "Clouds", Description: "일부 흐림", Icon: "02d"}},
		{3, models.Condition{ID: 3, Main: "Clouds", Description: "흐림", Icon: "03d"}},
		{45, models.Condition{ID: 45, Main: "Fog", Description: "안개", Icon: "50d"}},
		{48, models.Condition{ID: 48, Main: "Fog", Description: "서리 안개", Icon: "50d"}},
		{51, models.Condition{ID: 51, Main: "Drizzle", Description: "약한 이슬비", Icon: "09d"}},
		{53, models.Condition{ID: 53, Main: "Drizzle", Description: "이슬비", Icon: "09d"}},
		{55, models.Condition{ID: 55, Main: "Drizzle", Description: "강한 이슬비", Icon: "09d"}},
		{61, models.Condition{ID: 61, Main: "Rain", Description: "약한 비", Icon: "10d"}},
		{63, models.Condition{ID: 63, Main: "Rain", Description: "비", Icon: "10d"}},
		{65, models.Condition{ID: 65, Main: "Rain", Description: "강한 비", Icon: "10d"}},
		{71, models.Condition{ID: 71, Main: "Snow", Description: "약한 눈", Icon: "13d"}},
		{73, models.Condition{ID: 73, Main: "Snow", Description: "눈", Icon: "13d"}},
		{75, models.Condition{ID: 75, Main: "Snow", Description: "강한 눈", Icon: "13d"}},
		{77, models.Condition{ID: 77, Main: "Snow", Description: "진눈깨비", Icon: "13d"}},
		{80, models.Condition{ID: 80, Main: "Rain", Description: "약한 소나기", Icon: "09d"}},
		{81, models.Condition{ID: 81, Main: "Rain", Description: "소나기", Icon: "09d"}},
		{82, models.Condition{ID: 82, Main: "Rain", Description: "강한 소나기", Icon: "09d"}},
		{85, models.Condition{ID: 85, Main: "Snow", Description: "약한 눈 소나기", Icon: "13d"}},
		{86, models.Condition{ID: 86, Main: "Snow", Description: "눈 소나기", Icon: "13d"}},
		{95, models.Condition{ID: 95, Main: "Thunderstorm", Description: "뇌우", Icon: "11d"}},
		{96, models.Condition{ID: 96, Main: "Thunderstorm", Description: "약한 우박을 동반한 뇌우", Icon: "11d"}},
		{99, models.Condition{ID: 99, Main: "Thunderstorm", Description: "강한 우박을 동반한 뇌우", Icon: "11d"}},
	}
	require.Len(t, tests, len(table))
	for _, tt := range tests {
		require.Equal(t, tt.want, Translate(tt.code), "code %d", tt.code)
		require.True(t, Known(tt.code))
	}
}

func TestTranslate_UnknownCodes(t *testing.T) {
	for _, code := range []int{-1, 4, 44, 50, 100, 1 << 20} {
		got := Translate(code)
		require.Equal(t, models.Condition{ID: code, Main: "Unknown", Description: "알 수 없음", Icon: "01d"}, got)
		require.False(t, Known(code))
	}
}

func TestIconURL(t *testing.T) {
	require.Equal(t, "https://openweathermap.org/img/wn/01d@2x.png", IconURL("01d"))
}
