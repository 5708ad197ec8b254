package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps the sqlite connection holding every engine store.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

// NewDB opens the database at path and creates tables if they don't exist.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	instance := &DB{DB: db, path: path, logger: logger}
	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS weekly_schedule (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			business_id INTEGER NOT NULL,
			weekday INTEGER NOT NULL,
			is_available BOOLEAN NOT NULL DEFAULT 0,
			start_time TEXT NOT NULL DEFAULT '',
			end_time TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(business_id, weekday)
		)`,

		`CREATE TABLE IF NOT EXISTS slot_overrides (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			business_id INTEGER NOT NULL,
			weekday INTEGER NOT NULL,
			slot_time TEXT NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT 1,
			UNIQUE(business_id, weekday, slot_time)
		)`,

		`CREATE TABLE IF NOT EXISTS availability_blocks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			business_id INTEGER NOT NULL,
			block_date TEXT NOT NULL,
			is_all_day BOOLEAN NOT NULL DEFAULT 0,
			start_time TEXT NOT NULL DEFAULT '',
			end_time TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_blocks_business_date
			ON availability_blocks(business_id, block_date)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			business_id INTEGER NOT NULL,
			order_ref TEXT NOT NULL,
			booking_date TEXT NOT NULL,
			booking_time TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(business_id, booking_date, booking_time)
		)`,

		`CREATE TABLE IF NOT EXISTS reservation_locks (
			id TEXT PRIMARY KEY,
			business_id INTEGER NOT NULL,
			slot_date TEXT NOT NULL,
			slot_time TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL DEFAULT 60,
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL
		)`,

		// The whole exclusivity guarantee lives here: at most one active row
		// may exist per cell, enforced by sqlite rather than by any
		// application-level mutex.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_locks_live
			ON reservation_locks(business_id, slot_date, slot_time)
			WHERE status = 'active'`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}
