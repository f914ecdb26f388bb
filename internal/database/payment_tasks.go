package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"spacebook/internal/models"
)

func (s *Store) CreatePaymentTask(ctx context.Context, task *models.PaymentTask) error {
	query := `INSERT INTO payment_tasks (task_type, booking_id, intent_id, charge_id, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query,
		task.TaskType,
		task.BookingID,
		task.IntentID,
		nullable(task.ChargeID),
		task.Status,
		task.RetryCount,
		task.LastError,
		now,
		task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	return nil
}

func (s *Store) GetPendingPaymentTasks(ctx context.Context, limit int) ([]models.PaymentTask, error) {
	query := `SELECT id, task_type, booking_id, intent_id, charge_id, status, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM payment_tasks
              WHERE status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, time.Now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending payment tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.PaymentTask
	for rows.Next() {
		var t models.PaymentTask
		var chargeID sql.NullString
		err := rows.Scan(
			&t.ID, &t.TaskType, &t.BookingID, &t.IntentID, &chargeID, &t.Status,
			&t.RetryCount, &t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment task: %w", err)
		}
		t.ChargeID = chargeID.String
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) UpdatePaymentTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []any
	now := time.Now().UTC()

	switch status {
	case models.TaskRetry:
		query = `UPDATE payment_tasks SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []any{status, errMsg, nextRetryAt, id}
	case models.TaskCompleted, models.TaskFailed:
		query = `UPDATE payment_tasks SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []any{status, errMsg, nextRetryAt, &now, id}
	default:
		query = `UPDATE payment_tasks SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []any{status, errMsg, nextRetryAt, id}
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update payment task status: %w", err)
	}
	return nil
}

func (s *Store) GetFailedPaymentTasks(ctx context.Context) ([]models.PaymentTask, error) {
	query := `SELECT id, task_type, booking_id, intent_id, charge_id, status, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM payment_tasks WHERE status = 'failed' ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed payment tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.PaymentTask
	for rows.Next() {
		var t models.PaymentTask
		var chargeID sql.NullString
		err := rows.Scan(
			&t.ID, &t.TaskType, &t.BookingID, &t.IntentID, &chargeID, &t.Status,
			&t.RetryCount, &t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment task: %w", err)
		}
		t.ChargeID = chargeID.String
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
