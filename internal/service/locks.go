package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bookgrid/internal/events"
	"bookgrid/internal/grid"
	"bookgrid/internal/metrics"
	"bookgrid/internal/models"
)

// DefaultLockTTL matches the order flow's payment-abandonment window.
const DefaultLockTTL = 15 * time.Minute

// LockService grants, releases, and promotes reservation locks. It holds no
// in-process lock across store I/O: exclusivity is delegated entirely to the
// storage layer's uniqueness constraint, so multiple service instances stay
// correct without coordination.
type LockService struct {
	store  Store
	bus    EventPublisher
	ttl    time.Duration
	logger *zerolog.Logger
	cache  GridCache

	now func() time.Time
}

// NewLockService creates the lock manager. A non-positive ttl falls back to
// DefaultLockTTL.
func NewLockService(store Store, bus EventPublisher, ttl time.Duration, logger *zerolog.Logger) *LockService {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &LockService{
		store:  store,
		bus:    bus,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// UseGridCache lets lock transitions invalidate cached grids.
func (s *LockService) UseGridCache(cache GridCache) {
	s.cache = cache
}

// Acquire claims an exclusive hold on one cell. The cell's status is
// re-derived from schedule, overrides, blocks, and bookings first: a lock is
// never granted over a blocked or booked cell. intervalMinutes must match the
// step the grid was compiled with (zero means the default) or the requested
// time is not a candidate at all. Contention with another live lock surfaces
// as models.ErrSlotUnavailable from the store's atomic insert; the loser
// fails immediately rather than waiting.
func (s *LockService) Acquire(ctx context.Context, businessID int64, date, timeOfDay string, intervalMinutes, durationMinutes int) (*models.ReservationLock, error) {
	if durationMinutes <= 0 {
		durationMinutes = grid.DefaultIntervalMinutes
	}
	if !validClock(timeOfDay) {
		metrics.IncLockAcquire(metrics.OutcomeRejected)
		return nil, fmt.Errorf("%w: time %q", models.ErrInvalidRange, timeOfDay)
	}

	now := s.now()
	in, err := loadInputs(ctx, s.store, businessID, date, date, now, false)
	if err != nil {
		return nil, err
	}

	p := grid.Params{
		StartDate:       date,
		EndDate:         date,
		IntervalMinutes: intervalMinutes,
		DurationMinutes: durationMinutes,
	}
	status, found, err := grid.CellStatus(in, date, timeOfDay, p, now)
	if err != nil {
		metrics.IncLockAcquire(metrics.OutcomeRejected)
		return nil, err
	}
	if !found || status != models.StatusAvailable {
		metrics.IncLockAcquire(metrics.OutcomeRejected)
		return nil, fmt.Errorf("cell %d %s %s is %s: %w",
			businessID, date, timeOfDay, cellState(status, found), models.ErrSlotUnavailable)
	}

	lock := &models.ReservationLock{
		ID:              uuid.NewString(),
		BusinessID:      businessID,
		Date:            date,
		Time:            timeOfDay,
		DurationMinutes: durationMinutes,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.ttl),
	}
	if err := s.store.AcquireLock(ctx, lock); err != nil {
		if errors.Is(err, models.ErrSlotUnavailable) {
			metrics.IncLockAcquire(metrics.OutcomeContended)
		}
		return nil, err
	}
	metrics.IncLockAcquire(metrics.OutcomeGranted)
	s.invalidate(ctx, businessID)

	s.logger.Debug().
		Str("lock_id", lock.ID).
		Int64("business_id", businessID).
		Str("date", date).
		Str("time", timeOfDay).
		Time("expires_at", lock.ExpiresAt).
		Msg("lock acquired")

	_ = s.bus.PublishJSON(events.TypeLockAcquired, events.LockEvent{
		LockID:     lock.ID,
		BusinessID: businessID,
		Date:       date,
		Time:       timeOfDay,
	})
	return lock, nil
}

// Release frees a lock so the slot opens up before the TTL would. Idempotent
// and safe on expired, promoted, or unknown locks.
func (s *LockService) Release(ctx context.Context, lockID string) error {
	lock, err := s.store.GetLock(ctx, lockID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.store.ReleaseLock(ctx, lockID); err != nil {
		return err
	}
	metrics.IncLockReleased()
	s.invalidate(ctx, lock.BusinessID)

	_ = s.bus.PublishJSON(events.TypeLockReleased, events.LockEvent{
		LockID:     lockID,
		BusinessID: lock.BusinessID,
		Date:       lock.Date,
		Time:       lock.Time,
	})
	return nil
}

// Promote converts a still-live lock into a permanent booking at payment
// confirmation. models.ErrLockExpired means payment outran the hold; the
// checkout flow must re-validate the slot rather than swallow it.
func (s *LockService) Promote(ctx context.Context, lockID, orderRef string) (*models.Booking, error) {
	booking, err := s.store.PromoteLock(ctx, lockID, orderRef, s.now())
	if err != nil {
		return nil, err
	}
	metrics.IncLockPromoted()
	s.invalidate(ctx, booking.BusinessID)

	s.logger.Info().
		Str("lock_id", lockID).
		Str("order_ref", orderRef).
		Int64("booking_id", booking.ID).
		Msg("lock promoted to booking")

	_ = s.bus.PublishJSON(events.TypeLockPromoted, events.LockEvent{
		LockID:     lockID,
		BusinessID: booking.BusinessID,
		Date:       booking.Date,
		Time:       booking.Time,
		OrderRef:   orderRef,
	})
	return booking, nil
}

// SweepExpired deletes expired lock rows on the given interval until ctx is
// done. Housekeeping only; lazy expiry on every read already guarantees
// correctness when this never runs.
func (s *LockService) SweepExpired(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.DeleteExpiredLocks(ctx, s.now())
			if err != nil {
				s.logger.Error().Err(err).Msg("sweep expired locks")
				continue
			}
			if n > 0 {
				metrics.AddLocksReaped(n)
				s.logger.Debug().Int64("reaped", n).Msg("expired locks removed")
			}
		}
	}
}

func (s *LockService) invalidate(ctx context.Context, businessID int64) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, businessID)
	}
}

func cellState(status models.SlotStatus, found bool) string {
	if !found {
		return "not bookable"
	}
	return string(status)
}
