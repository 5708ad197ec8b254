package service

import (
	"context"
	"errors"
	"fmt"

	"bookgrid/internal/models"
)

// CheckoutItem is one business's slot selection inside a cart.
type CheckoutItem struct {
	BusinessID      int64  `json:"business_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	IntervalMinutes int    `json:"interval_minutes,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

// SlotLostError names the business whose slot could not be held, so the
// checkout UI can keep the customer's other selections and ask for one
// re-pick only.
type SlotLostError struct {
	BusinessID int64
	Date       string
	Time       string
}

func (e *SlotLostError) Error() string {
	return fmt.Sprintf("slot %s %s at business %d is no longer available", e.Date, e.Time, e.BusinessID)
}

func (e *SlotLostError) Unwrap() error { return models.ErrSlotUnavailable }

// AcquireAll holds one slot per cart item, locking each business
// independently. All locks must succeed before payment proceeds: on the
// first failure every previously acquired lock is released and the attempt
// fails with a SlotLostError for the losing business.
func (s *LockService) AcquireAll(ctx context.Context, items []CheckoutItem) ([]*models.ReservationLock, error) {
	acquired := make([]*models.ReservationLock, 0, len(items))
	for _, it := range items {
		lock, err := s.Acquire(ctx, it.BusinessID, it.Date, it.Time, it.IntervalMinutes, it.DurationMinutes)
		if err != nil {
			s.releaseAll(ctx, acquired)
			if errors.Is(err, models.ErrSlotUnavailable) {
				return nil, &SlotLostError{BusinessID: it.BusinessID, Date: it.Date, Time: it.Time}
			}
			return nil, err
		}
		acquired = append(acquired, lock)
	}
	return acquired, nil
}

func (s *LockService) releaseAll(ctx context.Context, locks []*models.ReservationLock) {
	for _, l := range locks {
		if err := s.Release(ctx, l.ID); err != nil {
			s.logger.Error().Err(err).Str("lock_id", l.ID).Msg("rollback release failed")
		}
	}
}
