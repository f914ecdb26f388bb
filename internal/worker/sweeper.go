package worker

import (
	"context"
	"time"

	"spacebook/internal/domain"
	"spacebook/internal/events"

	"github.com/rs/zerolog"
)

// Sweeper moves confirmed bookings whose end time has passed to
// completed and announces each transition on the event bus.
type Sweeper struct {
	store    domain.BookingStore
	bus      *events.Bus
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

func NewSweeper(store domain.BookingStore, bus *events.Bus, interval time.Duration, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	var sweeperLogger zerolog.Logger
	if logger != nil {
		sweeperLogger = logger.With().Str("component", "completion_sweeper").Logger()
	}

	return &Sweeper{
		store:    store,
		bus:      bus,
		interval: interval,
		logger:   sweeperLogger,
		now:      time.Now,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("completion sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("completion sweeper stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("completion sweep failed")
			}
		}
	}
}

// Sweep runs one pass. Exposed for tests and manual triggering.
func (s *Sweeper) Sweep(ctx context.Context) error {
	ids, err := s.store.CompleteElapsed(ctx, s.now())
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	s.logger.Info().Int("count", len(ids)).Msg("bookings completed")

	for _, id := range ids {
		booking, err := s.store.GetBooking(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Int64("booking_id", id).Msg("completed booking vanished before publish")
			continue
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
		if err := s.bus.PublishJSON(events.EventBookingCompleted, payload); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", id).Msg("publish completion event error")
		}
	}
	return nil
}
