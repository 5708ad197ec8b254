package service

import (
	"context"
	"time"

	"bookgrid/internal/models"
)

// Store is the persistence surface the engine depends on. *database.DB
// satisfies it.
type Store interface {
	GetWeeklySchedule(ctx context.Context, businessID int64) ([]models.WeeklyScheduleDay, error)
	PutWeeklySchedule(ctx context.Context, businessID int64, days []models.WeeklyScheduleDay) error

	GetOverrides(ctx context.Context, businessID int64) ([]models.SlotOverride, error)
	PutOverrides(ctx context.Context, businessID int64, overrides []models.SlotOverride) error

	CreateBlock(ctx context.Context, b *models.AvailabilityBlock) error
	GetBlock(ctx context.Context, blockID int64) (*models.AvailabilityBlock, error)
	DeleteBlock(ctx context.Context, blockID int64) error
	ListBlocks(ctx context.Context, businessID int64) ([]models.AvailabilityBlock, error)
	ListBlocksInRange(ctx context.Context, businessID int64, start, end string) ([]models.AvailabilityBlock, error)

	ListBookings(ctx context.Context, businessID int64) ([]models.Booking, error)
	ListBookingsInRange(ctx context.Context, businessID int64, start, end string) ([]models.Booking, error)

	AcquireLock(ctx context.Context, lock *models.ReservationLock) error
	GetLock(ctx context.Context, id string) (*models.ReservationLock, error)
	ReleaseLock(ctx context.Context, id string) error
	PromoteLock(ctx context.Context, id, orderRef string, now time.Time) (*models.Booking, error)
	ListLiveLocks(ctx context.Context, businessID int64, start, end string, now time.Time) ([]models.ReservationLock, error)
	DeleteExpiredLocks(ctx context.Context, now time.Time) (int64, error)
}

// EventPublisher decouples the services from the event bus.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// GridCache is an optional read cache for compiled grids. Staleness within
// the cache TTL is accepted; the lock acquire path never reads it.
type GridCache interface {
	Get(ctx context.Context, key string) ([]models.SlotGridEntry, bool)
	Set(ctx context.Context, key string, entries []models.SlotGridEntry)
	Invalidate(ctx context.Context, businessID int64)
}
