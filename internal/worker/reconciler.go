package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spacebook/internal/database"
	"spacebook/internal/domain"
	"spacebook/internal/metrics"
	"spacebook/internal/models"

	"github.com/rs/zerolog"
)

const defaultTaskBatch = 50

// Reconciler drains the payment task queue: refunds and intent cancels
// that failed inline, plus intents left dangling when a booking could
// not be persisted after the gateway call.
type Reconciler struct {
	store    domain.BookingStore
	gateway  domain.Gateway
	policy   RetryPolicy
	interval time.Duration
	logger   zerolog.Logger
}

func NewReconciler(store domain.BookingStore, gateway domain.Gateway, policy RetryPolicy, interval time.Duration, logger *zerolog.Logger) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}

	var reconcilerLogger zerolog.Logger
	if logger != nil {
		reconcilerLogger = logger.With().Str("component", "payment_reconciler").Logger()
	}

	return &Reconciler{
		store:    store,
		gateway:  gateway,
		policy:   policy,
		interval: interval,
		logger:   reconcilerLogger,
	}
}

// Start polls the queue until the context is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info().Dur("interval", r.interval).Msg("payment reconciler started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("payment reconciler stopped")
			return
		case <-ticker.C:
			if err := r.ProcessDue(ctx); err != nil {
				r.logger.Error().Err(err).Msg("payment task sweep failed")
			}
		}
	}
}

// ProcessDue executes one batch of due tasks. Exposed separately so
// tests and admin tooling can drive the queue without the ticker.
func (r *Reconciler) ProcessDue(ctx context.Context) error {
	tasks, err := r.store.GetPendingPaymentTasks(ctx, defaultTaskBatch)
	if err != nil {
		return fmt.Errorf("failed to fetch payment tasks: %w", err)
	}

	for i := range tasks {
		r.processTask(ctx, &tasks[i])
	}
	return nil
}

func (r *Reconciler) processTask(ctx context.Context, task *models.PaymentTask) {
	err := r.execute(ctx, task)
	if err == nil {
		if updateErr := r.store.UpdatePaymentTaskStatus(ctx, task.ID, models.TaskCompleted, "", nil); updateErr != nil {
			r.logger.Error().Err(updateErr).Int64("task_id", task.ID).Msg("failed to mark task completed")
		}
		r.logger.Info().Int64("task_id", task.ID).Str("task_type", task.TaskType).Msg("payment task completed")
		return
	}

	metrics.IncGatewayError(task.TaskType)

	if r.policy.Exhausted(task.RetryCount + 1) {
		r.logger.Error().Err(err).
			Int64("task_id", task.ID).
			Str("task_type", task.TaskType).
			Int("retries", task.RetryCount).
			Msg("payment task exhausted retries, giving up")
		if updateErr := r.store.UpdatePaymentTaskStatus(ctx, task.ID, models.TaskFailed, err.Error(), nil); updateErr != nil {
			r.logger.Error().Err(updateErr).Int64("task_id", task.ID).Msg("failed to mark task failed")
		}
		return
	}

	nextRetry := time.Now().UTC().Add(r.policy.NextDelay(task.RetryCount))
	r.logger.Warn().Err(err).
		Int64("task_id", task.ID).
		Str("task_type", task.TaskType).
		Time("next_retry_at", nextRetry).
		Msg("payment task failed, scheduling retry")
	if updateErr := r.store.UpdatePaymentTaskStatus(ctx, task.ID, models.TaskRetry, err.Error(), &nextRetry); updateErr != nil {
		r.logger.Error().Err(updateErr).Int64("task_id", task.ID).Msg("failed to schedule task retry")
	}
}

func (r *Reconciler) execute(ctx context.Context, task *models.PaymentTask) error {
	switch task.TaskType {
	case models.TaskRefund:
		return r.gateway.Refund(ctx, task.ChargeID)

	case models.TaskCancelIntent:
		return r.gateway.CancelIntent(ctx, task.IntentID)

	case models.TaskReconcileIntent:
		// A booking may have landed for this intent after the task was
		// queued (the insert raced a retry). If one exists the intent is
		// owned and the task is moot; otherwise the intent is orphaned
		// and gets voided.
		_, err := r.store.GetBookingByIntent(ctx, task.IntentID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return err
		}
		return r.gateway.CancelIntent(ctx, task.IntentID)

	default:
		return fmt.Errorf("unknown task type %q", task.TaskType)
	}
}
