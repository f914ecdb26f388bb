package repository

import (
	"context"
	"sync/atomic"
	"time"

	"spacebook/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverEventStore prefers the primary (Redis) store and falls back
// to the in-memory store while the primary is down, probing for
// recovery once a minute.
type FailoverEventStore struct {
	primary   domain.EventStore
	fallback  domain.EventStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverEventStore(primary, fallback domain.EventStore, logger *zerolog.Logger) *FailoverEventStore {
	return &FailoverEventStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverEventStore) SeenEvent(ctx context.Context, eventID string) (bool, error) {
	if !r.isDown.Load() {
		seen, err := r.primary.SeenEvent(ctx, eventID)
		if err == nil {
			return seen, nil
		}
		r.markDown(err)
	}

	if r.shouldProbe() {
		seen, err := r.primary.SeenEvent(ctx, eventID)
		if err == nil {
			r.isDown.Store(false)
			return seen, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.SeenEvent(ctx, eventID)
}

func (r *FailoverEventStore) MarkSeen(ctx context.Context, eventID string) error {
	if !r.isDown.Load() {
		err := r.primary.MarkSeen(ctx, eventID)
		if err == nil {
			// Mirror into the fallback so a subsequent primary outage
			// still dedupes recent events.
			_ = r.fallback.MarkSeen(ctx, eventID)
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.MarkSeen(ctx, eventID)
}

func (r *FailoverEventStore) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary event store failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverEventStore) shouldProbe() bool {
	return r.isDown.Load() && time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute
}
