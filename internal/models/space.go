package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Space is a bookable location. The reservation manager only ever
// mutates Status; the rest of the record belongs to the directory.
type Space struct {
	ID          int64           `json:"id"`
	OwnerID     int64           `json:"owner_id"`
	Name        string          `json:"name"`
	Address     string          `json:"address"`
	Capacity    int64           `json:"capacity"`
	Description string          `json:"description,omitempty"`
	HourlyPrice decimal.Decimal `json:"hourly_price"`
	DailyPrice  decimal.Decimal `json:"daily_price"`
	Status      SpaceStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
