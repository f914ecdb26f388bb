package domain

import (
	"context"
	"time"

	"spacebook/internal/models"
	"spacebook/internal/payment"
)

// BookingStore is the persistence contract the reservation manager and
// workers depend on.
type BookingStore interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByIntent(ctx context.Context, intentID string) (*models.Booking, error)
	CreateBookingTx(ctx context.Context, booking *models.Booking) error
	OverlappingBookings(ctx context.Context, spaceID int64, start, end time.Time) ([]*models.Booking, error)
	GetBookingsByRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status models.BookingStatus) error
	UpdateBookingPaymentWithVersion(ctx context.Context, id, fromVersion int64, status models.BookingStatus, chargeID, paymentStatus string) error
	CompleteElapsed(ctx context.Context, now time.Time) ([]int64, error)

	GetSpace(ctx context.Context, id int64) (*models.Space, error)
	UpdateSpaceStatusIf(ctx context.Context, id int64, from, to models.SpaceStatus) (bool, error)

	CreatePaymentTask(ctx context.Context, task *models.PaymentTask) error
	GetPendingPaymentTasks(ctx context.Context, limit int) ([]models.PaymentTask, error)
	UpdatePaymentTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// Gateway is the payment provider contract.
type Gateway interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*payment.Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
	Refund(ctx context.Context, chargeID string) error
}

// EventStore deduplicates processed webhook event ids so replayed
// deliveries short-circuit before touching booking state.
type EventStore interface {
	SeenEvent(ctx context.Context, eventID string) (bool, error)
	MarkSeen(ctx context.Context, eventID string) error
}

// EventPublisher fans booking lifecycle events out in-process.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
