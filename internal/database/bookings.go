package database

import (
	"context"
	"fmt"

	"bookgrid/internal/models"
)

// ListBookingsInRange returns confirmed bookings for dates within
// [start, end] inclusive.
func (db *DB) ListBookingsInRange(ctx context.Context, businessID int64, start, end string) ([]models.Booking, error) {
	return db.queryBookings(ctx, `
		SELECT id, business_id, order_ref, booking_date, booking_time, duration_minutes, created_at
		FROM bookings
		WHERE business_id = ? AND booking_date >= ? AND booking_date <= ?
		ORDER BY booking_date, booking_time`,
		businessID, start, end,
	)
}

// ListBookings returns every confirmed booking for a business, newest date
// last. Used by the report export.
func (db *DB) ListBookings(ctx context.Context, businessID int64) ([]models.Booking, error) {
	return db.queryBookings(ctx, `
		SELECT id, business_id, order_ref, booking_date, booking_time, duration_minutes, created_at
		FROM bookings
		WHERE business_id = ?
		ORDER BY booking_date, booking_time`,
		businessID,
	)
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(
			&b.ID, &b.BusinessID, &b.OrderRef, &b.Date, &b.Time,
			&b.DurationMinutes, &b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
