package reservation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"spacebook/internal/database"
	"spacebook/internal/domain"
	"spacebook/internal/events"
	"spacebook/internal/metrics"
	"spacebook/internal/models"
	"spacebook/internal/payment"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Manager owns the booking lifecycle: conflict detection, pricing,
// payment-intent creation, cancellation policy and webhook-driven
// status transitions.
type Manager struct {
	store      domain.BookingStore
	gateway    domain.Gateway
	eventStore domain.EventStore
	bus        *events.Bus
	logger     zerolog.Logger

	currency     string
	cancelNotice time.Duration
	locks        *spaceLocks
	now          func() time.Time
}

func NewManager(store domain.BookingStore, gateway domain.Gateway, eventStore domain.EventStore, bus *events.Bus, currency string, cancelNotice time.Duration, logger *zerolog.Logger) *Manager {
	if currency == "" {
		currency = models.DefaultCurrency
	}
	if cancelNotice <= 0 {
		cancelNotice = models.CancelNoticeHours * time.Hour
	}

	var managerLogger zerolog.Logger
	if logger != nil {
		managerLogger = logger.With().Str("component", "reservation").Logger()
	}

	return &Manager{
		store:        store,
		gateway:      gateway,
		eventStore:   eventStore,
		bus:          bus,
		logger:       managerLogger,
		currency:     currency,
		cancelNotice: cancelNotice,
		locks:        newSpaceLocks(),
		now:          time.Now,
	}
}

// CreateRequest carries a client's booking request. Times are treated
// as a half-open interval [StartTime, EndTime).
type CreateRequest struct {
	ClientID  int64
	SpaceID   int64
	StartTime time.Time
	EndTime   time.Time
}

func (r CreateRequest) validate(now time.Time) error {
	if r.ClientID <= 0 {
		return fmt.Errorf("%w: client_id is required", ErrValidation)
	}
	if r.SpaceID <= 0 {
		return fmt.Errorf("%w: space_id is required", ErrValidation)
	}
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return fmt.Errorf("%w: start_time and end_time are required", ErrValidation)
	}
	if !r.StartTime.Before(r.EndTime) {
		return fmt.Errorf("%w: end_time must be after start_time", ErrValidation)
	}
	if r.StartTime.Before(now) {
		return fmt.Errorf("%w: start_time must not be in the past", ErrValidation)
	}
	return nil
}

// CreateBooking checks availability, prices the interval, opens a
// payment intent and persists the booking as pending. The returned
// string is the gateway client secret the caller needs to complete
// payment out-of-band.
//
// The space lock is held for the precheck and again for the commit, but
// released around the gateway call so a slow provider never blocks
// other spaces' traffic behind one reservation. The insert transaction
// re-validates the overlap, so the window between precheck and commit
// cannot admit a double booking; it can only waste an intent, which is
// then queued for reconciliation.
func (m *Manager) CreateBooking(ctx context.Context, req CreateRequest) (*models.Booking, string, error) {
	now := m.now()
	if err := req.validate(now); err != nil {
		return nil, "", err
	}

	_, total, err := m.precheck(ctx, req)
	if err != nil {
		return nil, "", err
	}

	reference := "bk_" + uuid.NewString()
	metadata := map[string]string{
		"booking_ref": reference,
		"space_id":    strconv.FormatInt(req.SpaceID, 10),
		"client_id":   strconv.FormatInt(req.ClientID, 10),
		"start_time":  req.StartTime.UTC().Format(time.RFC3339),
		"end_time":    req.EndTime.UTC().Format(time.RFC3339),
	}

	intent, err := m.gateway.CreateIntent(ctx, MinorUnits(total), m.currency, metadata)
	if err != nil {
		metrics.IncGatewayError("create_intent")
		m.logger.Error().Err(err).Int64("space_id", req.SpaceID).Msg("payment intent creation failed")
		return nil, "", fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	booking := &models.Booking{
		ReferenceCode: reference,
		ClientID:      req.ClientID,
		SpaceID:       req.SpaceID,
		StartTime:     req.StartTime.UTC(),
		EndTime:       req.EndTime.UTC(),
		TotalPrice:    total,
		Status:        models.BookingPending,
		IntentID:      intent.ID,
	}

	unlock := m.locks.Lock(req.SpaceID)
	err = m.store.CreateBookingTx(ctx, booking)
	unlock()

	if err != nil {
		// The intent is already open on the gateway side. Queue it for
		// reconciliation instead of retrying or leaking it.
		m.enqueueTask(ctx, models.TaskReconcileIntent, 0, intent.ID, "")

		switch {
		case errors.Is(err, database.ErrConflict):
			metrics.IncBookingConflict()
			return nil, "", fmt.Errorf("%w: interval is no longer free", ErrConflict)
		case errors.Is(err, database.ErrSpaceUnavailable):
			return nil, "", fmt.Errorf("%w: space is no longer available", ErrConflict)
		case errors.Is(err, database.ErrNotFound):
			return nil, "", ErrNotFound
		default:
			m.logger.Error().Err(err).Str("intent_id", intent.ID).Msg("booking persistence failed after intent was opened")
			return nil, "", fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}

	metrics.IncBookingCreated()
	m.publish(events.EventBookingCreated, booking)
	m.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("space_id", booking.SpaceID).
		Str("total", total.StringFixed(2)).
		Str("intent_id", intent.ID).
		Msg("booking created")

	return booking, intent.ClientSecret, nil
}

// precheck validates the space and interval under the space lock, before
// any gateway traffic. Price is computed here so the quoted total and
// the charged total come from the same space snapshot.
func (m *Manager) precheck(ctx context.Context, req CreateRequest) (*models.Space, decimal.Decimal, error) {
	unlock := m.locks.Lock(req.SpaceID)
	defer unlock()

	space, err := m.store.GetSpace(ctx, req.SpaceID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, decimal.Zero, fmt.Errorf("%w: space %d", ErrNotFound, req.SpaceID)
	}
	if err != nil {
		return nil, decimal.Zero, err
	}
	// Maintenance blocks new bookings outright. A space marked booked is
	// gated by the overlap check below, so back-to-back intervals on the
	// same space still go through.
	if space.Status == models.SpaceMaintenance {
		return nil, decimal.Zero, fmt.Errorf("%w: space is under maintenance", ErrConflict)
	}

	overlapping, err := m.store.OverlappingBookings(ctx, req.SpaceID, req.StartTime, req.EndTime)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if len(overlapping) > 0 {
		metrics.IncBookingConflict()
		return nil, decimal.Zero, fmt.Errorf("%w: %d overlapping booking(s)", ErrConflict, len(overlapping))
	}

	return space, Quote(space, req.StartTime, req.EndTime), nil
}

// CancelBooking cancels a booking with at least the configured notice
// before its start. The cancellation is authoritative: refund or
// intent-cancel failures are queued for retry, never surfaced.
func (m *Manager) CancelBooking(ctx context.Context, bookingID int64) (*models.Booking, error) {
	booking, err := m.cancelTransition(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	// Gateway traffic stays outside the space lock. The booking is
	// terminally cancelled at this point, so nothing here needs it.
	m.releaseFunds(ctx, booking)

	m.publish(events.EventBookingCancelled, booking)
	m.logger.Info().Int64("booking_id", booking.ID).Msg("booking cancelled")
	return booking, nil
}

// cancelTransition runs the policy check and the status flip under the
// space lock and returns the cancelled booking.
func (m *Manager) cancelTransition(ctx context.Context, bookingID int64) (*models.Booking, error) {
	booking, err := m.store.GetBooking(ctx, bookingID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: booking %d", ErrNotFound, bookingID)
	}
	if err != nil {
		return nil, err
	}

	unlock := m.locks.Lock(booking.SpaceID)
	defer unlock()

	// Re-read under the lock; a webhook may have just moved it.
	booking, err = m.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.Status.Terminal() {
		return nil, fmt.Errorf("%w: booking is already %s", ErrPolicyViolation, booking.Status)
	}
	if booking.StartTime.Sub(m.now()) < m.cancelNotice {
		return nil, fmt.Errorf("%w: cancellation requires %s notice", ErrPolicyViolation, m.cancelNotice)
	}

	if err := m.store.UpdateBookingStatusWithVersion(ctx, booking.ID, booking.Version, models.BookingCancelled); err != nil {
		return nil, err
	}
	booking.Status = models.BookingCancelled
	booking.Version++

	if flipped, err := m.store.UpdateSpaceStatusIf(ctx, booking.SpaceID, models.SpaceBooked, models.SpaceAvailable); err != nil {
		m.logger.Error().Err(err).Int64("space_id", booking.SpaceID).Msg("failed to release space after cancellation")
	} else if !flipped {
		m.logger.Debug().Int64("space_id", booking.SpaceID).Msg("space status left untouched on cancellation")
	}

	return booking, nil
}

// releaseFunds refunds the charge when one exists, otherwise voids the
// open intent. Failures are logged and queued; they never block the
// cancellation.
func (m *Manager) releaseFunds(ctx context.Context, booking *models.Booking) {
	switch {
	case booking.ChargeID != "":
		if err := m.gateway.Refund(ctx, booking.ChargeID); err != nil {
			metrics.IncGatewayError("refund")
			m.logger.Error().Err(err).Int64("booking_id", booking.ID).Str("charge_id", booking.ChargeID).Msg("refund failed, queueing retry")
			m.enqueueTask(ctx, models.TaskRefund, booking.ID, booking.IntentID, booking.ChargeID)
		}
	case booking.IntentID != "":
		if err := m.gateway.CancelIntent(ctx, booking.IntentID); err != nil {
			metrics.IncGatewayError("cancel_intent")
			m.logger.Error().Err(err).Int64("booking_id", booking.ID).Str("intent_id", booking.IntentID).Msg("intent cancel failed, queueing retry")
			m.enqueueTask(ctx, models.TaskCancelIntent, booking.ID, booking.IntentID, "")
		}
	}
}

// ReconcilePaymentEvent applies a verified gateway callback to the
// booking it references. Events for unknown intents and event kinds
// outside the state machine are dropped silently; duplicates are
// absorbed by both the dedupe store and the idempotent transitions.
func (m *Manager) ReconcilePaymentEvent(ctx context.Context, event *payment.Event) error {
	switch event.Type {
	case payment.EventIntentSucceeded, payment.EventIntentFailed:
	default:
		metrics.IncWebhookEvent("ignored")
		return nil
	}

	if m.eventStore != nil && event.ID != "" {
		if seen, err := m.eventStore.SeenEvent(ctx, event.ID); err == nil && seen {
			metrics.IncWebhookEvent("duplicate")
			return nil
		}
	}

	booking, err := m.store.GetBookingByIntent(ctx, event.IntentID)
	if errors.Is(err, database.ErrNotFound) {
		metrics.IncWebhookEvent("unmatched")
		m.logger.Debug().Str("intent_id", event.IntentID).Msg("webhook for unknown intent ignored")
		return nil
	}
	if err != nil {
		return err
	}

	unlock := m.locks.Lock(booking.SpaceID)
	defer unlock()

	// Re-read under the lock.
	booking, err = m.store.GetBooking(ctx, booking.ID)
	if err != nil {
		return err
	}

	switch event.Type {
	case payment.EventIntentSucceeded:
		err = m.applySuccess(ctx, booking, event)
	case payment.EventIntentFailed:
		err = m.applyFailure(ctx, booking, event)
	}
	if err != nil {
		return err
	}

	if m.eventStore != nil && event.ID != "" {
		if err := m.eventStore.MarkSeen(ctx, event.ID); err != nil {
			m.logger.Warn().Err(err).Str("event_id", event.ID).Msg("failed to record processed event")
		}
	}

	metrics.IncWebhookEvent("applied")
	return nil
}

func (m *Manager) applySuccess(ctx context.Context, booking *models.Booking, event *payment.Event) error {
	if booking.Status != models.BookingPending {
		// Re-applying a terminal or already-confirmed transition is a
		// no-op, not an error.
		m.logger.Debug().Int64("booking_id", booking.ID).Str("status", booking.Status.String()).Msg("payment success on non-pending booking ignored")
		return nil
	}

	if err := m.store.UpdateBookingPaymentWithVersion(ctx, booking.ID, booking.Version, models.BookingConfirmed, event.ChargeID, event.Status); err != nil {
		return err
	}
	booking.Status = models.BookingConfirmed
	booking.ChargeID = event.ChargeID

	if _, err := m.store.UpdateSpaceStatusIf(ctx, booking.SpaceID, models.SpaceAvailable, models.SpaceBooked); err != nil {
		m.logger.Error().Err(err).Int64("space_id", booking.SpaceID).Msg("failed to mark space booked on confirmation")
	}

	m.publish(events.EventBookingConfirmed, booking)
	m.logger.Info().Int64("booking_id", booking.ID).Str("charge_id", event.ChargeID).Msg("booking confirmed")
	return nil
}

func (m *Manager) applyFailure(ctx context.Context, booking *models.Booking, event *payment.Event) error {
	if booking.Status != models.BookingPending {
		m.logger.Debug().Int64("booking_id", booking.ID).Str("status", booking.Status.String()).Msg("payment failure on non-pending booking ignored")
		return nil
	}

	if err := m.store.UpdateBookingPaymentWithVersion(ctx, booking.ID, booking.Version, models.BookingCancelled, "", event.Status); err != nil {
		return err
	}
	booking.Status = models.BookingCancelled

	if _, err := m.store.UpdateSpaceStatusIf(ctx, booking.SpaceID, models.SpaceBooked, models.SpaceAvailable); err != nil {
		m.logger.Error().Err(err).Int64("space_id", booking.SpaceID).Msg("failed to release space after payment failure")
	}

	m.publish(events.EventPaymentFailed, booking)
	m.logger.Info().Int64("booking_id", booking.ID).Str("intent_id", booking.IntentID).Msg("booking cancelled after payment failure")
	return nil
}

// GetBooking exposes a read-through for the API layer.
func (m *Manager) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	booking, err := m.store.GetBooking(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: booking %d", ErrNotFound, id)
	}
	return booking, err
}

// SpaceBookings lists non-cancelled bookings overlapping a window.
func (m *Manager) SpaceBookings(ctx context.Context, spaceID int64, from, to time.Time) ([]*models.Booking, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: to must be after from", ErrValidation)
	}
	if _, err := m.store.GetSpace(ctx, spaceID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: space %d", ErrNotFound, spaceID)
		}
		return nil, err
	}
	return m.store.OverlappingBookings(ctx, spaceID, from, to)
}

func (m *Manager) enqueueTask(ctx context.Context, taskType string, bookingID int64, intentID, chargeID string) {
	task := &models.PaymentTask{
		TaskType:  taskType,
		BookingID: bookingID,
		IntentID:  intentID,
		ChargeID:  chargeID,
		Status:    models.TaskPending,
	}
	if err := m.store.CreatePaymentTask(ctx, task); err != nil {
		// Nothing left but the log line; the operator dashboard watches
		// gateway_errors_total for exactly this.
		m.logger.Error().Err(err).Str("task_type", taskType).Str("intent_id", intentID).Msg("failed to enqueue payment task")
	}
}

func (m *Manager) publish(eventType string, booking *models.Booking) {
	if m.bus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:     booking.ID,
		ReferenceCode: booking.ReferenceCode,
		ClientID:      booking.ClientID,
		SpaceID:       booking.SpaceID,
		Status:        booking.Status.String(),
		StartTime:     booking.StartTime,
		EndTime:       booking.EndTime,
		TotalPrice:    booking.TotalPrice,
		IntentID:      booking.IntentID,
	}

	if err := m.bus.PublishJSON(eventType, payload); err != nil {
		m.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}
