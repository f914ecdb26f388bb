package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"spacebook/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	logger := zerolog.Nop()
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedTestSpace(t *testing.T, store *Store, status models.SpaceStatus) *models.Space {
	t.Helper()

	space := &models.Space{
		OwnerID:     3,
		Name:        "Garage 12",
		Address:     "1 Pier Ave",
		Capacity:    10,
		Description: "ground floor",
		HourlyPrice: decimal.RequireFromString("12.50"),
		DailyPrice:  decimal.RequireFromString("95.00"),
		Status:      status,
	}
	require.NoError(t, store.CreateSpace(context.Background(), space))
	return space
}

func TestNewStoreCreatesDirectories(t *testing.T) {
	logger := zerolog.Nop()
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	store, err := NewStore(dbPath, &logger)
	require.NoError(t, err)
	defer store.Close()

	assert.FileExists(t, dbPath)
}

func TestSpaceRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	space := seedTestSpace(t, store, models.SpaceAvailable)

	got, err := store.GetSpace(ctx, space.ID)
	require.NoError(t, err)
	assert.Equal(t, space.Name, got.Name)
	assert.Equal(t, space.Address, got.Address)
	assert.True(t, got.HourlyPrice.Equal(decimal.RequireFromString("12.50")))
	assert.True(t, got.DailyPrice.Equal(decimal.RequireFromString("95.00")))
	assert.Equal(t, models.SpaceAvailable, got.Status)

	_, err = store.GetSpace(ctx, space.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateSpaceStatusIf(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	t.Run("FlipsWhenFromMatches", func(t *testing.T) {
		space := seedTestSpace(t, store, models.SpaceBooked)

		flipped, err := store.UpdateSpaceStatusIf(ctx, space.ID, models.SpaceBooked, models.SpaceAvailable)
		require.NoError(t, err)
		assert.True(t, flipped)

		got, err := store.GetSpace(ctx, space.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SpaceAvailable, got.Status)
	})

	t.Run("NeverClobbersMaintenance", func(t *testing.T) {
		space := seedTestSpace(t, store, models.SpaceMaintenance)

		flipped, err := store.UpdateSpaceStatusIf(ctx, space.ID, models.SpaceBooked, models.SpaceAvailable)
		require.NoError(t, err)
		assert.False(t, flipped)

		got, err := store.GetSpace(ctx, space.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SpaceMaintenance, got.Status)
	})
}

func TestPaymentTaskQueue(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	task := &models.PaymentTask{
		TaskType: models.TaskRefund,
		IntentID: "pi_1",
		ChargeID: "ch_1",
		Status:   models.TaskPending,
	}
	require.NoError(t, store.CreatePaymentTask(ctx, task))
	require.NotZero(t, task.ID)

	due, err := store.GetPendingPaymentTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, models.TaskRefund, due[0].TaskType)

	t.Run("RetryScheduledInFutureIsNotDue", func(t *testing.T) {
		nextRetry := time.Now().UTC().Add(time.Hour)
		require.NoError(t, store.UpdatePaymentTaskStatus(ctx, task.ID, models.TaskRetry, "gateway unreachable", &nextRetry))

		due, err := store.GetPendingPaymentTasks(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, due)
	})

	t.Run("RetryWhoseTimeCameIsDue", func(t *testing.T) {
		nextRetry := time.Now().UTC().Add(-time.Minute)
		require.NoError(t, store.UpdatePaymentTaskStatus(ctx, task.ID, models.TaskRetry, "gateway unreachable", &nextRetry))

		due, err := store.GetPendingPaymentTasks(ctx, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, models.TaskRetry, due[0].Status)
		require.NotNil(t, due[0].LastError)
		assert.Equal(t, "gateway unreachable", *due[0].LastError)
	})

	t.Run("FailedTaskIsDeadLettered", func(t *testing.T) {
		require.NoError(t, store.UpdatePaymentTaskStatus(ctx, task.ID, models.TaskFailed, "gave up", nil))

		due, err := store.GetPendingPaymentTasks(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, due)

		failed, err := store.GetFailedPaymentTasks(ctx)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, models.TaskFailed, failed[0].Status)
	})
}
