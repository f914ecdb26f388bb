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

func (s *Store) CreateSpace(ctx context.Context, space *models.Space) error {
	query := `INSERT INTO spaces (owner_id, name, address, capacity, description, hourly_price, daily_price, status, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	status := space.Status
	if status == "" {
		status = models.SpaceAvailable
	}

	result, err := s.db.ExecContext(ctx, query,
		space.OwnerID,
		space.Name,
		space.Address,
		space.Capacity,
		space.Description,
		space.HourlyPrice.String(),
		space.DailyPrice.String(),
		string(status),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create space: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	space.ID = id
	space.Status = status
	space.CreatedAt = now
	space.UpdatedAt = now
	return nil
}

func (s *Store) GetSpace(ctx context.Context, id int64) (*models.Space, error) {
	query := `SELECT id, owner_id, name, address, capacity, description, hourly_price, daily_price, status, created_at, updated_at
              FROM spaces WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)
	space, err := scanSpace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get space: %w", err)
	}
	return space, nil
}

// UpdateSpaceStatusIf flips a space status only when its current status
// matches. Returns false when the guard did not match, so a maintenance
// flag set independently is never clobbered.
func (s *Store) UpdateSpaceStatusIf(ctx context.Context, id int64, from, to models.SpaceStatus) (bool, error) {
	query := `UPDATE spaces SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	result, err := s.db.ExecContext(ctx, query, string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return false, fmt.Errorf("failed to update space status: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSpace(row rowScanner) (*models.Space, error) {
	var space models.Space
	var hourly, daily, status string
	var description sql.NullString

	err := row.Scan(
		&space.ID,
		&space.OwnerID,
		&space.Name,
		&space.Address,
		&space.Capacity,
		&description,
		&hourly,
		&daily,
		&status,
		&space.CreatedAt,
		&space.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	space.Description = description.String

	if space.HourlyPrice, err = decimal.NewFromString(hourly); err != nil {
		return nil, fmt.Errorf("parse hourly_price %q: %w", hourly, err)
	}
	if space.DailyPrice, err = decimal.NewFromString(daily); err != nil {
		return nil, fmt.Errorf("parse daily_price %q: %w", daily, err)
	}
	if space.Status, err = models.ParseSpaceStatus(status); err != nil {
		return nil, err
	}
	return &space, nil
}
