package database

import (
	"context"
	"fmt"
	"time"

	"bookgrid/internal/models"
)

// GetWeeklySchedule returns exactly 7 entries for the business, one per
// weekday (0=Sunday..6=Saturday). Weekdays with no stored row come back as
// closed defaults, so a business that never configured anything is fully
// closed rather than an error.
func (db *DB) GetWeeklySchedule(ctx context.Context, businessID int64) ([]models.WeeklyScheduleDay, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, business_id, weekday, is_available, start_time, end_time, created_at, updated_at
		FROM weekly_schedule
		WHERE business_id = ?
		ORDER BY weekday`,
		businessID,
	)
	if err != nil {
		return nil, fmt.Errorf("query weekly schedule: %w", err)
	}
	defer rows.Close()

	byWeekday := make(map[int]models.WeeklyScheduleDay, 7)
	for rows.Next() {
		var d models.WeeklyScheduleDay
		if err := rows.Scan(
			&d.ID, &d.BusinessID, &d.Weekday, &d.IsAvailable,
			&d.StartTime, &d.EndTime, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan weekly schedule: %w", err)
		}
		byWeekday[d.Weekday] = d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	days := make([]models.WeeklyScheduleDay, 0, 7)
	for weekday := 0; weekday < 7; weekday++ {
		d, ok := byWeekday[weekday]
		if !ok {
			d = models.WeeklyScheduleDay{BusinessID: businessID, Weekday: weekday}
		}
		days = append(days, d)
	}
	return days, nil
}

// PutWeeklySchedule upserts the 7 weekday rows for a business in one
// transaction.
func (db *DB) PutWeeklySchedule(ctx context.Context, businessID int64, days []models.WeeklyScheduleDay) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, d := range days {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO weekly_schedule (business_id, weekday, is_available, start_time, end_time, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(business_id, weekday) DO UPDATE SET
				is_available = excluded.is_available,
				start_time = excluded.start_time,
				end_time = excluded.end_time,
				updated_at = excluded.updated_at`,
			businessID, d.Weekday, d.IsAvailable, d.StartTime, d.EndTime, now, now,
		); err != nil {
			return fmt.Errorf("upsert weekday %d: %w", d.Weekday, err)
		}
	}
	return tx.Commit()
}
