package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bookgrid/internal/metrics"
	"bookgrid/internal/service"
)

// AcquireLockRequest is the request body for POST /businesses/{id}/locks.
// IntervalMinutes must match the step the grid was viewed with, or the
// requested time won't be a bookable candidate.
type AcquireLockRequest struct {
	Date            string `json:"date"`                       // YYYY-MM-DD
	Time            string `json:"time"`                       // HH:MM
	IntervalMinutes int    `json:"interval_minutes,omitempty"` // default 60
	DurationMinutes int    `json:"duration_minutes,omitempty"` // default 60
}

// PromoteLockRequest is the request body for POST /locks/{id}/promote.
type PromoteLockRequest struct {
	OrderRef string `json:"order_ref"`
}

// CheckoutLocksRequest is the request body for POST /checkout/locks.
type CheckoutLocksRequest struct {
	Items []service.CheckoutItem `json:"items"`
}

// handleAcquireLock claims an exclusive hold on one cell. Contention comes
// back as 409; the customer should pick another time, not retry.
// POST /api/v1/businesses/{businessID}/locks
func (s *Server) handleAcquireLock(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("acquire_lock")
	businessID, ok := s.businessID(w, r)
	if !ok {
		return
	}

	var req AcquireLockRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Date == "" || req.Time == "" {
		writeError(w, http.StatusBadRequest, "date and time are required")
		return
	}

	lock, err := s.locks.Acquire(r.Context(), businessID, req.Date, req.Time, req.IntervalMinutes, req.DurationMinutes)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lock)
}

// handleReleaseLock frees a hold. Always 204: release is idempotent and safe
// on expired, promoted, or unknown locks.
// DELETE /api/v1/locks/{lockID}
func (s *Server) handleReleaseLock(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("release_lock")
	lockID := chi.URLParam(r, "lockID")

	if err := s.locks.Release(r.Context(), lockID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePromoteLock converts a live hold into a booking once payment is
// confirmed. 410 signals the hold expired and the slot needs re-validation.
// POST /api/v1/locks/{lockID}/promote
func (s *Server) handlePromoteLock(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("promote_lock")
	lockID := chi.URLParam(r, "lockID")

	var req PromoteLockRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.OrderRef == "" {
		writeError(w, http.StatusBadRequest, "order_ref is required")
		return
	}

	booking, err := s.locks.Promote(r.Context(), lockID, req.OrderRef)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// handleCheckoutLocks holds one slot per cart item across businesses. On any
// failure the response names the business whose slot was lost so the rest of
// the cart survives.
// POST /api/v1/checkout/locks
func (s *Server) handleCheckoutLocks(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("checkout_locks")

	var req CheckoutLocksRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items are required")
		return
	}

	locks, err := s.locks.AcquireAll(r.Context(), req.Items)
	if err != nil {
		var lost *service.SlotLostError
		if errors.As(err, &lost) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":       lost.Error(),
				"business_id": lost.BusinessID,
				"date":        lost.Date,
				"time":        lost.Time,
			})
			return
		}
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"locks": locks})
}
