package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"bookgrid/internal/export"
	"bookgrid/internal/grid"
	"bookgrid/internal/metrics"
	"bookgrid/internal/models"
)

const (
	// MaxGridDaysRange is the maximum number of days allowed in a grid request.
	MaxGridDaysRange = 90
)

// OverrideEntry is one override inside the per-weekday map shape.
type OverrideEntry struct {
	Time    string `json:"time"`
	Enabled bool   `json:"enabled"`
}

// handleGetSchedule returns the 7 weekday entries for a business.
// GET /api/v1/businesses/{businessID}/schedule
func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_schedule")
	businessID, ok := s.businessID(w, r)
	if !ok {
		return
	}

	days, err := s.availability.GetWeeklySchedule(r.Context(), businessID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedule": days})
}

// handlePutSchedule replaces the weekly schedule.
// PUT /api/v1/businesses/{businessID}/schedule
func (s *Server) handlePutSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("put_schedule")
	businessID, ok := s.businessID(w, r)
	if !ok {
		return
	}

	var req struct {
		Schedule []models.WeeklyScheduleDay `json:"schedule"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.availability.PutWeeklySchedule(r.Context(), businessID, req.Schedule); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetOverrides returns overrides grouped by weekday.
// GET /api/v1/businesses/{businessID}/overrides
func (s *Server) handleGetOverrides(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_overrides")
	businessID, ok := s.businessID(w, r)
	if !ok {
		return
	}

	overrides, err := s.availability.GetOverrides(r.Context(), businessID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	grouped := make(map[string][]OverrideEntry)
	for _, o := range overrides {
		key := strconv.Itoa(o.Weekday)
		grouped[key] = append(grouped[key], OverrideEntry{Time: o.Time, Enabled: o.Enabled})
	}
	writeJSON(w, http.StatusOK, map[string]any{"overrides": grouped})
}

// handlePutOverrides replaces the full override set from the same grouped
// shape GET returns.
// PUT /api/v1/businesses/{businessID}/overrides
func (s *Server) handlePutOverrides(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("put_overrides")
	businessID, ok := s.businessID(w, r)
	if !ok {
		return
	}

	var req struct {
		Overrides map[string][]OverrideEntry `json:"overrides"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	var overrides []models.SlotOverride
	for weekdayStr, entries := range req.Overrides {
		weekday, err := strconv.Atoi(weekdayStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid weekday key %q", weekdayStr))
			return
		}
		for _, e := range entries {
			overrides = append(overrides, models.SlotOverride{
				BusinessID: businessID,
				Weekday:    weekday,
				Time:       e.Time,
				Enabled:    e.Enabled,
			})
		}
	}

	if err := s.availability.PutOverrides(r.Context(), businessID, overrides); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListBlocks returns all ad-hoc closures for a business.
// GET /api/v1/businesses/{businessID}/blocks
func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_blocks")
	businessID, ok := s.businessID(w, r)
	if !ok {
		return
	}

	blocks, err := s.availability.ListBlocks(r.Context(), businessID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": blocks})
}

// handleCreateBlock creates an ad-hoc closure.
// POST /api/v1/businesses/{businessID}/blocks
func (s *Server) handleCreateBlock(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_block")
	businessID, ok := s.businessID(w, r)
	if !ok {
		return
	}

	var req struct {
		Date      string `json:"date"`
		IsAllDay  bool   `json:"is_all_day"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
		Reason    string `json:"reason"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	block := &models.AvailabilityBlock{
		BusinessID: businessID,
		Date:       req.Date,
		IsAllDay:   req.IsAllDay,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Reason:     req.Reason,
	}
	if err := s.availability.CreateBlock(r.Context(), block); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, block)
}

// handleDeleteBlock removes a closure.
// DELETE /api/v1/blocks/{blockID}
func (s *Server) handleDeleteBlock(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_block")
	blockID, err := strconv.ParseInt(chi.URLParam(r, "blockID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid block id")
		return
	}

	if err := s.availability.DeleteBlock(r.Context(), blockID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGrid compiles the availability grid for a date range.
// GET /api/v1/businesses/{businessID}/grid?start&end&interval&duration
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("grid")
	businessID, ok := s.businessID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	p := grid.Params{
		StartDate: q.Get("start"),
		EndDate:   q.Get("end"),
	}
	if p.StartDate == "" || p.EndDate == "" {
		writeError(w, http.StatusBadRequest, "start and end are required")
		return
	}

	var err error
	if p.IntervalMinutes, err = intQuery(q.Get("interval")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid interval")
		return
	}
	if p.DurationMinutes, err = intQuery(q.Get("duration")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid duration")
		return
	}
	if p.DurationMinutes == 0 {
		p.DurationMinutes = grid.DefaultIntervalMinutes
	}

	days, err := rangeDays(p.StartDate, p.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date range")
		return
	}
	if days > MaxGridDaysRange {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("date range exceeds maximum of %d days", MaxGridDaysRange))
		return
	}

	entries, err := s.availability.CompileGrid(r.Context(), businessID, p)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleExportBookings streams the booking ledger as an xlsx workbook.
// GET /api/v1/businesses/{businessID}/bookings/export
func (s *Server) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_bookings")
	businessID, ok := s.businessID(w, r)
	if !ok {
		return
	}

	bookings, err := s.availability.ListBookings(r.Context(), businessID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=bookings-%d.xlsx", businessID))
	if err := export.WriteBookingsReport(w, businessID, bookings); err != nil {
		s.logger.Error().Err(err).Msg("bookings export failed")
	}
}

func (s *Server) businessID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "businessID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid business id")
		return 0, false
	}
	return id, true
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func intQuery(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func rangeDays(start, end string) (int, error) {
	st, err := time.Parse(models.DateLayout, start)
	if err != nil {
		return 0, err
	}
	en, err := time.Parse(models.DateLayout, end)
	if err != nil {
		return 0, err
	}
	return int(en.Sub(st).Hours() / 24), nil
}
