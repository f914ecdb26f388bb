package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrConflict means a non-cancelled booking already overlaps the
	// requested interval.
	ErrConflict = errors.New("booking interval conflicts with an existing booking")

	// ErrSpaceUnavailable means the space status is not available.
	ErrSpaceUnavailable = errors.New("space is not available")

	// ErrConcurrentModification means a versioned update lost a race.
	ErrConcurrentModification = errors.New("booking was modified concurrently")

	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("record not found")
)

type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewStore(path string, logger *zerolog.Logger) (*Store, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}

	var storeLogger zerolog.Logger
	if logger != nil {
		storeLogger = logger.With().Str("component", "database").Logger()
	}

	storeLogger.Info().Str("path", path).Msg("database initialized")
	return &Store{db: db, logger: storeLogger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS spaces (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            owner_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            address TEXT NOT NULL,
            capacity INTEGER NOT NULL DEFAULT 1,
            description TEXT,
            hourly_price TEXT NOT NULL,
            daily_price TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'available',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		// start_time/end_time are stored as unix seconds so interval
		// comparisons never depend on string date formats.
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            reference_code TEXT NOT NULL UNIQUE,
            client_id INTEGER NOT NULL,
            space_id INTEGER NOT NULL REFERENCES spaces(id),
            start_time INTEGER NOT NULL,
            end_time INTEGER NOT NULL,
            total_price TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            intent_id TEXT,
            charge_id TEXT,
            payment_status TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            version INTEGER NOT NULL DEFAULT 1,
            CHECK (end_time > start_time)
        )`,

		`CREATE TABLE IF NOT EXISTS payment_tasks (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            booking_id INTEGER NOT NULL,
            intent_id TEXT NOT NULL,
            charge_id TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_spaces_status ON spaces(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_space_id ON bookings(space_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_interval ON bookings(space_id, start_time, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_intent ON bookings(intent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_tasks_status ON payment_tasks(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
