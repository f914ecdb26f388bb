package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryEventStore is the in-process fallback dedupe store. It only
// protects a single instance, which is still enough to absorb the
// gateway's immediate redeliveries when Redis is down.
type MemoryEventStore struct {
	events sync.Map
	ttl    time.Duration
}

type eventEntry struct {
	expiresAt time.Time
}

func NewMemoryEventStore(ttl time.Duration) *MemoryEventStore {
	return &MemoryEventStore{ttl: ttl}
}

func (r *MemoryEventStore) SeenEvent(ctx context.Context, eventID string) (bool, error) {
	val, ok := r.events.Load(eventID)
	if !ok {
		return false, nil
	}
	entry := val.(*eventEntry)
	if time.Now().After(entry.expiresAt) {
		r.events.Delete(eventID)
		return false, nil
	}
	return true, nil
}

func (r *MemoryEventStore) MarkSeen(ctx context.Context, eventID string) error {
	r.events.Store(eventID, &eventEntry{expiresAt: time.Now().Add(r.ttl)})
	return nil
}
