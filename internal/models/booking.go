package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking reserves one space for one client over the half-open
// interval [StartTime, EndTime). TotalPrice is a snapshot computed at
// creation time and never recomputed from the space rates.
type Booking struct {
	ID            int64           `json:"id"`
	ReferenceCode string          `json:"reference_code"`
	ClientID      int64           `json:"client_id"`
	SpaceID       int64           `json:"space_id"`
	StartTime     time.Time       `json:"start_time"`
	EndTime       time.Time       `json:"end_time"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Status        BookingStatus   `json:"status"`

	// Gateway references. IntentID is set when the booking is created,
	// ChargeID and PaymentStatus arrive later via webhook.
	IntentID      string `json:"payment_intent_id,omitempty"`
	ChargeID      string `json:"charge_id,omitempty"`
	PaymentStatus string `json:"payment_status,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// Overlaps applies the three-way interval test against another booking's
// window. Half-open semantics: a booking ending exactly when another
// starts does not overlap.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && b.EndTime.After(start)
}
