package reservation

import (
	"time"

	"spacebook/internal/models"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// Quote computes the total price for booking a space over [start, end).
// Whole days are billed at the daily rate; the fractional remainder
// below a full day is billed at the hourly rate. Stays under 24h are
// billed hourly throughout. All arithmetic stays decimal and is rounded
// to 2 places only at the final total.
func Quote(space *models.Space, start, end time.Time) decimal.Decimal {
	duration := end.Sub(start)
	if duration <= 0 {
		return decimal.Zero
	}

	if duration < day {
		return space.HourlyPrice.Mul(hoursOf(duration)).Round(2)
	}

	days := int64(duration / day)
	remainder := duration % day

	total := space.DailyPrice.Mul(decimal.NewFromInt(days))
	if remainder > 0 {
		total = total.Add(space.HourlyPrice.Mul(hoursOf(remainder)))
	}
	return total.Round(2)
}

// MinorUnits converts a 2-dp price into integer minor currency units
// (cents) for the gateway.
func MinorUnits(total decimal.Decimal) int64 {
	return total.Shift(2).Round(0).IntPart()
}

func hoursOf(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d)).Div(decimal.NewFromInt(int64(time.Hour)))
}
