package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"bookgrid/internal/events"
	"bookgrid/internal/models"
)

// RegisterPaymentHandlers wires the lock manager to the order/payment
// collaborator's notifications: a settled payment promotes each held lock,
// a cancelled or abandoned order releases them.
func RegisterPaymentHandlers(bus *events.Bus, locks *LockService, logger *zerolog.Logger) {
	bus.Subscribe(events.TypePaymentSucceeded, func(e events.Event) error {
		var p events.PaymentEvent
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			logger.Error().Err(err).Msg("bad payment.succeeded payload")
			return err
		}
		for _, lockID := range p.LockIDs {
			if _, err := locks.Promote(context.Background(), lockID, p.OrderRef); err != nil {
				if errors.Is(err, models.ErrLockExpired) {
					// Payment outran the hold. Surface it loudly: the order
					// flow must re-validate the slot with the customer.
					logger.Warn().
						Str("lock_id", lockID).
						Str("order_ref", p.OrderRef).
						Msg("payment succeeded but lock expired; slot needs re-validation")
					continue
				}
				logger.Error().Err(err).Str("lock_id", lockID).Msg("promote failed")
				return err
			}
		}
		return nil
	})

	bus.Subscribe(events.TypeOrderCancelled, func(e events.Event) error {
		var p events.PaymentEvent
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			logger.Error().Err(err).Msg("bad order.cancelled payload")
			return err
		}
		for _, lockID := range p.LockIDs {
			if err := locks.Release(context.Background(), lockID); err != nil {
				logger.Error().Err(err).Str("lock_id", lockID).Msg("release failed")
				return err
			}
		}
		return nil
	})
}
