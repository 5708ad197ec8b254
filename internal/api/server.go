// Package api exposes the engine's operation surface over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"bookgrid/internal/models"
	"bookgrid/internal/service"
)

// Server holds the HTTP handlers for the engine.
type Server struct {
	availability *service.AvailabilityService
	locks        *service.LockService
	logger       *zerolog.Logger
	apiKey       string
	acquireLimit *rate.Limiter
}

// Options configures the server.
type Options struct {
	// APIKey guards every endpoint when non-empty (x-api-key header).
	APIKey string
	// AcquirePerSecond / AcquireBurst bound the lock-acquire endpoints.
	AcquirePerSecond float64
	AcquireBurst     int
}

// NewServer creates the HTTP server.
func NewServer(availability *service.AvailabilityService, locks *service.LockService, logger *zerolog.Logger, opts Options) *Server {
	perSecond := opts.AcquirePerSecond
	if perSecond <= 0 {
		perSecond = 50
	}
	burst := opts.AcquireBurst
	if burst <= 0 {
		burst = 100
	}
	return &Server{
		availability: availability,
		locks:        locks,
		logger:       logger,
		apiKey:       opts.APIKey,
		acquireLimit: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequests)
	r.Use(s.checkAPIKey)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/businesses/{businessID}", func(r chi.Router) {
			r.Get("/schedule", s.handleGetSchedule)
			r.Put("/schedule", s.handlePutSchedule)
			r.Get("/overrides", s.handleGetOverrides)
			r.Put("/overrides", s.handlePutOverrides)
			r.Get("/blocks", s.handleListBlocks)
			r.Post("/blocks", s.handleCreateBlock)
			r.Get("/grid", s.handleGrid)
			r.Get("/bookings/export", s.handleExportBookings)
			r.With(s.limitAcquire).Post("/locks", s.handleAcquireLock)
		})
		r.Delete("/blocks/{blockID}", s.handleDeleteBlock)
		r.Delete("/locks/{lockID}", s.handleReleaseLock)
		r.Post("/locks/{lockID}/promote", s.handlePromoteLock)
		r.With(s.limitAcquire).Post("/checkout/locks", s.handleCheckoutLocks)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps the engine's error taxonomy to HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrLockExpired):
		writeError(w, http.StatusGone, err.Error())
	default:
		s.logger.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
