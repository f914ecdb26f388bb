package reservation

import (
	"testing"
	"time"

	"spacebook/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpaceRates(hourly, daily string) *models.Space {
	return &models.Space{
		ID:          1,
		Name:        "Test Space",
		HourlyPrice: decimal.RequireFromString(hourly),
		DailyPrice:  decimal.RequireFromString(daily),
		Status:      models.SpaceAvailable,
	}
}

func TestQuote(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		hourly   string
		daily    string
		duration time.Duration
		want     string
	}{
		{
			name:     "TwentyFiveHoursMixesDailyAndHourly",
			hourly:   "10.00",
			daily:    "80.00",
			duration: 25 * time.Hour,
			want:     "90.00",
		},
		{
			name:     "FractionalHoursBilledHourly",
			hourly:   "10.00",
			daily:    "80.00",
			duration: 3*time.Hour + 30*time.Minute,
			want:     "35.00",
		},
		{
			name:     "ExactDayBilledDaily",
			hourly:   "10.00",
			daily:    "80.00",
			duration: 24 * time.Hour,
			want:     "80.00",
		},
		{
			name:     "MultipleWholeDays",
			hourly:   "10.00",
			daily:    "80.00",
			duration: 72 * time.Hour,
			want:     "240.00",
		},
		{
			name:     "DaysPlusHalfHourRemainder",
			hourly:   "12.00",
			daily:    "100.00",
			duration: 49*time.Hour + 30*time.Minute,
			want:     "218.00",
		},
		{
			name:     "RoundsOnlyAtFinalTotal",
			hourly:   "9.99",
			daily:    "80.00",
			duration: 90 * time.Minute,
			want:     "14.99",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			space := testSpaceRates(tt.hourly, tt.daily)
			got := Quote(space, base, base.Add(tt.duration))
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestQuoteEmptyInterval(t *testing.T) {
	space := testSpaceRates("10.00", "80.00")
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	assert.True(t, Quote(space, start, start).IsZero())
	assert.True(t, Quote(space, start, start.Add(-time.Hour)).IsZero())
}

func TestMinorUnits(t *testing.T) {
	require.Equal(t, int64(9000), MinorUnits(decimal.RequireFromString("90.00")))
	require.Equal(t, int64(1499), MinorUnits(decimal.RequireFromString("14.99")))
	require.Equal(t, int64(5), MinorUnits(decimal.RequireFromString("0.05")))
}
