package database

import (
	"context"
	"fmt"

	"bookgrid/internal/models"
)

// GetOverrides returns every slot override for a business, ordered by
// weekday and time. Times absent from the result are enabled.
func (db *DB) GetOverrides(ctx context.Context, businessID int64) ([]models.SlotOverride, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, business_id, weekday, slot_time, enabled
		FROM slot_overrides
		WHERE business_id = ?
		ORDER BY weekday, slot_time`,
		businessID,
	)
	if err != nil {
		return nil, fmt.Errorf("query overrides: %w", err)
	}
	defer rows.Close()

	var overrides []models.SlotOverride
	for rows.Next() {
		var o models.SlotOverride
		if err := rows.Scan(&o.ID, &o.BusinessID, &o.Weekday, &o.Time, &o.Enabled); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

// PutOverrides replaces the full override set for a business. Callers send
// the complete picture each time; a delete-then-insert transaction keeps the
// store in step with it.
func (db *DB) PutOverrides(ctx context.Context, businessID int64, overrides []models.SlotOverride) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM slot_overrides WHERE business_id = ?", businessID,
	); err != nil {
		return fmt.Errorf("clear overrides: %w", err)
	}

	for _, o := range overrides {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO slot_overrides (business_id, weekday, slot_time, enabled)
			VALUES (?, ?, ?, ?)`,
			businessID, o.Weekday, o.Time, o.Enabled,
		); err != nil {
			return fmt.Errorf("insert override %d %s: %w", o.Weekday, o.Time, err)
		}
	}
	return tx.Commit()
}
