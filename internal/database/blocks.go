package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bookgrid/internal/models"
)

// CreateBlock inserts an ad-hoc closure and fills in its assigned ID.
func (db *DB) CreateBlock(ctx context.Context, b *models.AvailabilityBlock) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO availability_blocks (business_id, block_date, is_all_day, start_time, end_time, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.BusinessID, b.Date, b.IsAllDay, b.StartTime, b.EndTime, b.Reason, now,
	)
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("block id: %w", err)
	}
	b.ID = id
	b.CreatedAt = now
	return nil
}

// GetBlock fetches a block by ID.
func (db *DB) GetBlock(ctx context.Context, blockID int64) (*models.AvailabilityBlock, error) {
	var b models.AvailabilityBlock
	err := db.QueryRowContext(ctx, `
		SELECT id, business_id, block_date, is_all_day, start_time, end_time, reason, created_at
		FROM availability_blocks
		WHERE id = ?`,
		blockID,
	).Scan(&b.ID, &b.BusinessID, &b.Date, &b.IsAllDay, &b.StartTime, &b.EndTime, &b.Reason, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("block %d: %w", blockID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query block: %w", err)
	}
	return &b, nil
}

// DeleteBlock removes a block by ID. Deletion is the only mutation a block
// supports.
func (db *DB) DeleteBlock(ctx context.Context, blockID int64) error {
	res, err := db.ExecContext(ctx,
		"DELETE FROM availability_blocks WHERE id = ?", blockID,
	)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("block %d: %w", blockID, models.ErrNotFound)
	}
	return nil
}

// ListBlocks returns all blocks for a business ordered by date.
func (db *DB) ListBlocks(ctx context.Context, businessID int64) ([]models.AvailabilityBlock, error) {
	return db.queryBlocks(ctx, `
		SELECT id, business_id, block_date, is_all_day, start_time, end_time, reason, created_at
		FROM availability_blocks
		WHERE business_id = ?
		ORDER BY block_date, start_time`,
		businessID,
	)
}

// ListBlocksInRange returns blocks for dates within [start, end] inclusive.
func (db *DB) ListBlocksInRange(ctx context.Context, businessID int64, start, end string) ([]models.AvailabilityBlock, error) {
	return db.queryBlocks(ctx, `
		SELECT id, business_id, block_date, is_all_day, start_time, end_time, reason, created_at
		FROM availability_blocks
		WHERE business_id = ? AND block_date >= ? AND block_date <= ?
		ORDER BY block_date, start_time`,
		businessID, start, end,
	)
}

func (db *DB) queryBlocks(ctx context.Context, query string, args ...any) ([]models.AvailabilityBlock, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()

	var blocks []models.AvailabilityBlock
	for rows.Next() {
		var b models.AvailabilityBlock
		if err := rows.Scan(
			&b.ID, &b.BusinessID, &b.Date, &b.IsAllDay,
			&b.StartTime, &b.EndTime, &b.Reason, &b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}
