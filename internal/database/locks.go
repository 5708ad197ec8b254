package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"bookgrid/internal/models"
)

// AcquireLock atomically claims a cell for the given lock. Exclusivity rests
// on the partial unique index over active rows: concurrent callers for the
// same (business, date, time) race on the INSERT and sqlite picks exactly one
// winner. Losers get models.ErrSlotUnavailable immediately; nobody waits.
//
// Expired active rows on the key are reaped inside the same transaction so a
// dead hold never blocks a new checkout.
//
// Timestamps are stored in UTC: the driver serializes time.Time with its
// offset, and the expiry comparisons below are textual, so mixed offsets
// would misorder.
func (db *DB) AcquireLock(ctx context.Context, lock *models.ReservationLock) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM reservation_locks
		WHERE business_id = ? AND slot_date = ? AND slot_time = ?
		AND status = ? AND expires_at <= ?`,
		lock.BusinessID, lock.Date, lock.Time, models.LockActive, lock.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("reap expired locks: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reservation_locks (id, business_id, slot_date, slot_time, duration_minutes, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		lock.ID, lock.BusinessID, lock.Date, lock.Time, lock.DurationMinutes,
		models.LockActive, lock.CreatedAt.UTC(), lock.ExpiresAt.UTC(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("cell %d %s %s: %w",
				lock.BusinessID, lock.Date, lock.Time, models.ErrSlotUnavailable)
		}
		return fmt.Errorf("insert lock: %w", err)
	}

	lock.Status = models.LockActive
	return tx.Commit()
}

// GetLock fetches a lock by ID.
func (db *DB) GetLock(ctx context.Context, id string) (*models.ReservationLock, error) {
	var l models.ReservationLock
	err := db.QueryRowContext(ctx, `
		SELECT id, business_id, slot_date, slot_time, duration_minutes, status, created_at, expires_at
		FROM reservation_locks
		WHERE id = ?`,
		id,
	).Scan(&l.ID, &l.BusinessID, &l.Date, &l.Time, &l.DurationMinutes, &l.Status, &l.CreatedAt, &l.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lock %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query lock: %w", err)
	}
	return &l, nil
}

// ReleaseLock frees a lock. Idempotent: releasing an already-released,
// promoted, expired, or unknown lock is a no-op.
func (db *DB) ReleaseLock(ctx context.Context, id string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE reservation_locks SET status = ?
		WHERE id = ? AND status = ?`,
		models.LockReleased, id, models.LockActive,
	)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// PromoteLock converts a still-live lock into a booking in one transaction.
// Returns models.ErrLockExpired when the TTL has elapsed or the lock was
// released; the caller must re-validate the slot because payment already
// succeeded.
func (db *DB) PromoteLock(ctx context.Context, id, orderRef string, now time.Time) (*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var l models.ReservationLock
	err = tx.QueryRowContext(ctx, `
		SELECT id, business_id, slot_date, slot_time, duration_minutes, status, created_at, expires_at
		FROM reservation_locks
		WHERE id = ?`,
		id,
	).Scan(&l.ID, &l.BusinessID, &l.Date, &l.Time, &l.DurationMinutes, &l.Status, &l.CreatedAt, &l.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lock %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query lock: %w", err)
	}

	if !l.Live(now) {
		return nil, fmt.Errorf("lock %s: %w", id, models.ErrLockExpired)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (business_id, order_ref, booking_date, booking_time, duration_minutes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		l.BusinessID, orderRef, l.Date, l.Time, l.DurationMinutes, now.UTC(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return nil, fmt.Errorf("cell %d %s %s already booked: %w",
				l.BusinessID, l.Date, l.Time, models.ErrSlotUnavailable)
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	bookingID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("booking id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE reservation_locks SET status = ? WHERE id = ?",
		models.LockPromoted, id,
	); err != nil {
		return nil, fmt.Errorf("mark promoted: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &models.Booking{
		ID:              bookingID,
		BusinessID:      l.BusinessID,
		OrderRef:        orderRef,
		Date:            l.Date,
		Time:            l.Time,
		DurationMinutes: l.DurationMinutes,
		CreatedAt:       now.UTC(),
	}, nil
}

// ListLiveLocks returns active, unexpired locks for dates within [start, end]
// inclusive, keyed for the grid compiler.
func (db *DB) ListLiveLocks(ctx context.Context, businessID int64, start, end string, now time.Time) ([]models.ReservationLock, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, business_id, slot_date, slot_time, duration_minutes, status, created_at, expires_at
		FROM reservation_locks
		WHERE business_id = ? AND slot_date >= ? AND slot_date <= ?
		AND status = ? AND expires_at > ?`,
		businessID, start, end, models.LockActive, now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query locks: %w", err)
	}
	defer rows.Close()

	var locks []models.ReservationLock
	for rows.Next() {
		var l models.ReservationLock
		if err := rows.Scan(&l.ID, &l.BusinessID, &l.Date, &l.Time, &l.DurationMinutes, &l.Status, &l.CreatedAt, &l.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan lock: %w", err)
		}
		locks = append(locks, l)
	}
	return locks, rows.Err()
}

// DeleteExpiredLocks removes active rows whose TTL has elapsed. Purely
// housekeeping: every read already treats expired rows as absent, so
// correctness never depends on this running.
func (db *DB) DeleteExpiredLocks(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM reservation_locks
		WHERE status = ? AND expires_at <= ?`,
		models.LockActive, now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired locks: %w", err)
	}
	return res.RowsAffected()
}
