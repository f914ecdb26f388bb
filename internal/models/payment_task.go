package models

import "time"

// Payment task types. Refund and cancel-intent tasks are queued when the
// gateway call fails during cancellation; reconcile-intent tasks are
// queued for intents left dangling after a persistence failure.
const (
	TaskRefund          = "refund"
	TaskCancelIntent    = "cancel_intent"
	TaskReconcileIntent = "reconcile_intent"
)

const (
	TaskPending   = "pending"
	TaskRetry     = "retry"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// PaymentTask is a queued gateway compensation with retry bookkeeping.
type PaymentTask struct {
	ID          int64      `json:"id"`
	TaskType    string     `json:"task_type"`
	BookingID   int64      `json:"booking_id"`
	IntentID    string     `json:"intent_id"`
	ChargeID    string     `json:"charge_id,omitempty"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
}
