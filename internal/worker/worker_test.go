package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"spacebook/internal/database"
	"spacebook/internal/events"
	"spacebook/internal/models"
	"spacebook/internal/payment"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	cancelled []string
	refunded  []string
	cancelErr error
	refundErr error
}

func (g *stubGateway) CreateIntent(context.Context, int64, string, map[string]string) (*payment.Intent, error) {
	return nil, errors.New("not used")
}

func (g *stubGateway) CancelIntent(_ context.Context, intentID string) error {
	if g.cancelErr != nil {
		return g.cancelErr
	}
	g.cancelled = append(g.cancelled, intentID)
	return nil
}

func (g *stubGateway) Refund(_ context.Context, chargeID string) error {
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunded = append(g.refunded, chargeID)
	return nil
}

func newTestStore(t *testing.T) *database.Store {
	t.Helper()

	logger := zerolog.Nop()
	store, err := database.NewStore(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.CreateSpace(context.Background(), &models.Space{
		OwnerID:     1,
		Name:        "Workshop 2",
		Address:     "8 Mill Ln",
		Capacity:    6,
		HourlyPrice: decimal.RequireFromString("10.00"),
		DailyPrice:  decimal.RequireFromString("80.00"),
		Status:      models.SpaceAvailable,
	}))
	return store
}

func TestRetryPolicy(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 5, BaseDelay: 30 * time.Second, MaxDelay: 10 * time.Minute}

	assert.Equal(t, 30*time.Second, policy.NextDelay(0))
	assert.Equal(t, time.Minute, policy.NextDelay(1))
	assert.Equal(t, 2*time.Minute, policy.NextDelay(2))
	assert.Equal(t, 8*time.Minute, policy.NextDelay(4))
	assert.Equal(t, 10*time.Minute, policy.NextDelay(5))
	assert.Equal(t, 10*time.Minute, policy.NextDelay(20))

	assert.False(t, policy.Exhausted(4))
	assert.True(t, policy.Exhausted(5))
}

func TestReconcilerProcessDue(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	t.Run("RefundTaskCompletes", func(t *testing.T) {
		store := newTestStore(t)
		gateway := &stubGateway{}
		reconciler := NewReconciler(store, gateway, DefaultRetryPolicy(), time.Minute, &logger)

		require.NoError(t, store.CreatePaymentTask(ctx, &models.PaymentTask{
			TaskType: models.TaskRefund,
			ChargeID: "ch_1",
			Status:   models.TaskPending,
		}))

		require.NoError(t, reconciler.ProcessDue(ctx))
		assert.Equal(t, []string{"ch_1"}, gateway.refunded)

		remaining, err := store.GetPendingPaymentTasks(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, remaining)
	})

	t.Run("CancelIntentTaskCompletes", func(t *testing.T) {
		store := newTestStore(t)
		gateway := &stubGateway{}
		reconciler := NewReconciler(store, gateway, DefaultRetryPolicy(), time.Minute, &logger)

		require.NoError(t, store.CreatePaymentTask(ctx, &models.PaymentTask{
			TaskType: models.TaskCancelIntent,
			IntentID: "pi_1",
			Status:   models.TaskPending,
		}))

		require.NoError(t, reconciler.ProcessDue(ctx))
		assert.Equal(t, []string{"pi_1"}, gateway.cancelled)
	})

	t.Run("DanglingIntentIsVoided", func(t *testing.T) {
		store := newTestStore(t)
		gateway := &stubGateway{}
		reconciler := NewReconciler(store, gateway, DefaultRetryPolicy(), time.Minute, &logger)

		require.NoError(t, store.CreatePaymentTask(ctx, &models.PaymentTask{
			TaskType: models.TaskReconcileIntent,
			IntentID: "pi_orphan",
			Status:   models.TaskPending,
		}))

		require.NoError(t, reconciler.ProcessDue(ctx))
		assert.Equal(t, []string{"pi_orphan"}, gateway.cancelled)
	})

	t.Run("OwnedIntentIsLeftAlone", func(t *testing.T) {
		store := newTestStore(t)
		gateway := &stubGateway{}
		reconciler := NewReconciler(store, gateway, DefaultRetryPolicy(), time.Minute, &logger)

		start := time.Now().Add(48 * time.Hour).UTC()
		require.NoError(t, store.CreateBooking(ctx, &models.Booking{
			ReferenceCode: "bk_owned",
			ClientID:      1,
			SpaceID:       1,
			StartTime:     start,
			EndTime:       start.Add(time.Hour),
			TotalPrice:    decimal.RequireFromString("10.00"),
			Status:        models.BookingPending,
			IntentID:      "pi_owned",
		}))
		require.NoError(t, store.CreatePaymentTask(ctx, &models.PaymentTask{
			TaskType: models.TaskReconcileIntent,
			IntentID: "pi_owned",
			Status:   models.TaskPending,
		}))

		require.NoError(t, reconciler.ProcessDue(ctx))
		assert.Empty(t, gateway.cancelled)

		remaining, err := store.GetPendingPaymentTasks(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, remaining)
	})

	t.Run("FailedTaskIsRescheduled", func(t *testing.T) {
		store := newTestStore(t)
		gateway := &stubGateway{refundErr: errors.New("gateway unreachable")}
		reconciler := NewReconciler(store, gateway, DefaultRetryPolicy(), time.Minute, &logger)

		require.NoError(t, store.CreatePaymentTask(ctx, &models.PaymentTask{
			TaskType: models.TaskRefund,
			ChargeID: "ch_1",
			Status:   models.TaskPending,
		}))

		require.NoError(t, reconciler.ProcessDue(ctx))

		// Backoff pushes next_retry_at into the future, so the task is no
		// longer due, and it has not been dead-lettered either.
		due, err := store.GetPendingPaymentTasks(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, due)

		failed, err := store.GetFailedPaymentTasks(ctx)
		require.NoError(t, err)
		assert.Empty(t, failed)
	})

	t.Run("ExhaustedTaskIsDeadLettered", func(t *testing.T) {
		store := newTestStore(t)
		gateway := &stubGateway{refundErr: errors.New("gateway unreachable")}
		policy := RetryPolicy{MaxRetries: 1, BaseDelay: time.Second, MaxDelay: time.Minute}
		reconciler := NewReconciler(store, gateway, policy, time.Minute, &logger)

		require.NoError(t, store.CreatePaymentTask(ctx, &models.PaymentTask{
			TaskType: models.TaskRefund,
			ChargeID: "ch_1",
			Status:   models.TaskPending,
		}))

		require.NoError(t, reconciler.ProcessDue(ctx))

		failed, err := store.GetFailedPaymentTasks(ctx)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, models.TaskFailed, failed[0].Status)
		require.NotNil(t, failed[0].LastError)
		assert.Contains(t, *failed[0].LastError, "gateway unreachable")
	})
}

func TestSweeper(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	store := newTestStore(t)
	bus := events.NewBus()

	var completed []int64
	bus.Subscribe(events.EventBookingCompleted, func(event *events.Event) error {
		completed = append(completed, 1)
		return nil
	})

	sweeper := NewSweeper(store, bus, time.Minute, &logger)

	past := time.Now().Add(-48 * time.Hour).UTC()
	require.NoError(t, store.CreateBooking(ctx, &models.Booking{
		ReferenceCode: "bk_elapsed",
		ClientID:      1,
		SpaceID:       1,
		StartTime:     past,
		EndTime:       past.Add(2 * time.Hour),
		TotalPrice:    decimal.RequireFromString("20.00"),
		Status:        models.BookingConfirmed,
		IntentID:      "pi_done",
	}))

	future := time.Now().Add(48 * time.Hour).UTC()
	upcoming := &models.Booking{
		ReferenceCode: "bk_upcoming",
		ClientID:      1,
		SpaceID:       1,
		StartTime:     future,
		EndTime:       future.Add(2 * time.Hour),
		TotalPrice:    decimal.RequireFromString("20.00"),
		Status:        models.BookingConfirmed,
		IntentID:      "pi_later",
	}
	require.NoError(t, store.CreateBooking(ctx, upcoming))

	require.NoError(t, sweeper.Sweep(ctx))

	assert.Len(t, completed, 1)

	elapsed, err := store.GetBookingByIntent(ctx, "pi_done")
	require.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, elapsed.Status)

	untouched, err := store.GetBooking(ctx, upcoming.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, untouched.Status)

	// Second sweep finds nothing new.
	require.NoError(t, sweeper.Sweep(ctx))
	assert.Len(t, completed, 1)
}
