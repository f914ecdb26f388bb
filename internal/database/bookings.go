package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"spacebook/internal/models"

	"github.com/shopspring/decimal"
)

const bookingColumns = `id, reference_code, client_id, space_id, start_time, end_time,
                 total_price, status, intent_id, charge_id, payment_status,
                 created_at, updated_at, version`

// CreateBooking inserts a booking without any conflict validation.
// Production writes go through CreateBookingTx; this is kept for seeding
// and tests.
func (s *Store) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (
				reference_code, client_id, space_id, start_time, end_time,
				total_price, status, intent_id, charge_id, payment_status,
				created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query,
		booking.ReferenceCode,
		booking.ClientID,
		booking.SpaceID,
		booking.StartTime.UTC().Unix(),
		booking.EndTime.UTC().Unix(),
		booking.TotalPrice.StringFixed(2),
		string(booking.Status),
		nullable(booking.IntentID),
		nullable(booking.ChargeID),
		nullable(booking.PaymentStatus),
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

// CreateBookingTx inserts a booking after re-validating, inside one
// transaction, that the space is not under maintenance and no
// non-cancelled booking overlaps [StartTime, EndTime). Overlap is the
// real gate: a space already marked booked can still take adjacent
// intervals. On success the space status is flipped
// available -> booked as part of the same transaction.
func (s *Store) CreateBookingTx(ctx context.Context, booking *models.Booking) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var spaceStatus string
	err = tx.QueryRowContext(ctx, `SELECT status FROM spaces WHERE id = ?`, booking.SpaceID).Scan(&spaceStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check space in tx: %w", err)
	}
	if spaceStatus == string(models.SpaceMaintenance) {
		return ErrSpaceUnavailable
	}

	// Three-way overlap test with half-open boundaries: existing.start <
	// new.end AND existing.end > new.start.
	var overlapping int
	queryCount := `SELECT COUNT(*) FROM bookings
                   WHERE space_id = ? AND status != ? AND start_time < ? AND end_time > ?`
	err = tx.QueryRowContext(ctx, queryCount,
		booking.SpaceID,
		string(models.BookingCancelled),
		booking.EndTime.UTC().Unix(),
		booking.StartTime.UTC().Unix(),
	).Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("failed to check conflicts in tx: %w", err)
	}
	if overlapping > 0 {
		return ErrConflict
	}

	now := time.Now().UTC()
	queryInsert := `INSERT INTO bookings (
				reference_code, client_id, space_id, start_time, end_time,
				total_price, status, intent_id, charge_id, payment_status,
				created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, queryInsert,
		booking.ReferenceCode,
		booking.ClientID,
		booking.SpaceID,
		booking.StartTime.UTC().Unix(),
		booking.EndTime.UTC().Unix(),
		booking.TotalPrice.StringFixed(2),
		string(booking.Status),
		nullable(booking.IntentID),
		nullable(booking.ChargeID),
		nullable(booking.PaymentStatus),
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE spaces SET status = ?, updated_at = ? WHERE id = ?`,
		string(models.SpaceBooked), now, booking.SpaceID,
	); err != nil {
		return fmt.Errorf("failed to flip space status in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	return tx.Commit()
}

func (s *Store) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// GetBookingByIntent finds the booking holding a payment intent
// reference. Used by webhook reconciliation.
func (s *Store) GetBookingByIntent(ctx context.Context, intentID string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE intent_id = ?`
	booking, err := scanBooking(s.db.QueryRowContext(ctx, query, intentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by intent: %w", err)
	}
	return booking, nil
}

// OverlappingBookings returns non-cancelled bookings for a space that
// intersect the half-open window [start, end).
func (s *Store) OverlappingBookings(ctx context.Context, spaceID int64, start, end time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE space_id = ? AND status != ? AND start_time < ? AND end_time > ?
              ORDER BY start_time ASC`
	rows, err := s.db.QueryContext(ctx, query,
		spaceID, string(models.BookingCancelled), end.UTC().Unix(), start.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping bookings: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

// GetBookingsByRange returns all bookings starting inside [start, end),
// newest period first left to callers; used for reporting.
func (s *Store) GetBookingsByRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE start_time >= ? AND start_time < ?
              ORDER BY start_time ASC, created_at ASC`
	rows, err := s.db.QueryContext(ctx, query, start.UTC().Unix(), end.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings by range: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

// UpdateBookingStatusWithVersion transitions a booking's status guarded
// by its version. Racing cancellations and webhook reconciliations lose
// with ErrConcurrentModification instead of silently overwriting.
func (s *Store) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status models.BookingStatus) error {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := s.db.ExecContext(ctx, query, string(status), time.Now().UTC(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// UpdateBookingPaymentWithVersion records the gateway outcome (status
// transition plus charge reference and raw gateway status) guarded by
// the booking version.
func (s *Store) UpdateBookingPaymentWithVersion(ctx context.Context, id, fromVersion int64, status models.BookingStatus, chargeID, paymentStatus string) error {
	query := `UPDATE bookings
              SET status = ?, charge_id = COALESCE(?, charge_id), payment_status = ?, version = version + 1, updated_at = ?
              WHERE id = ? AND version = ?`
	result, err := s.db.ExecContext(ctx, query,
		string(status), nullable(chargeID), paymentStatus, time.Now().UTC(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking payment: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// CompleteElapsed transitions confirmed bookings whose end_time has
// passed to completed and returns the affected ids.
func (s *Store) CompleteElapsed(ctx context.Context, now time.Time) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM bookings WHERE status = ? AND end_time <= ?`,
		string(models.BookingConfirmed), now.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query elapsed bookings: %w", err)
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan booking id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE status = ? AND end_time <= ?`,
		string(models.BookingCompleted), now.UTC(), string(models.BookingConfirmed), now.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to complete elapsed bookings: %w", err)
	}

	return ids, tx.Commit()
}

func collectBookings(rows *sql.Rows) ([]*models.Booking, error) {
	var bookings []*models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var booking models.Booking
	var startUnix, endUnix int64
	var price, status string
	var intentID, chargeID, paymentStatus sql.NullString

	err := row.Scan(
		&booking.ID,
		&booking.ReferenceCode,
		&booking.ClientID,
		&booking.SpaceID,
		&startUnix,
		&endUnix,
		&price,
		&status,
		&intentID,
		&chargeID,
		&paymentStatus,
		&booking.CreatedAt,
		&booking.UpdatedAt,
		&booking.Version,
	)
	if err != nil {
		return nil, err
	}

	booking.StartTime = time.Unix(startUnix, 0).UTC()
	booking.EndTime = time.Unix(endUnix, 0).UTC()
	booking.IntentID = intentID.String
	booking.ChargeID = chargeID.String
	booking.PaymentStatus = paymentStatus.String

	if booking.TotalPrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse total_price %q: %w", price, err)
	}
	if booking.Status, err = models.ParseBookingStatus(status); err != nil {
		return nil, err
	}
	return &booking, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
