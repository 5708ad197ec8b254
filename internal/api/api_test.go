package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookgrid/internal/database"
	"bookgrid/internal/events"
	"bookgrid/internal/models"
	"bookgrid/internal/service"
)

const testMonday = "2025-06-02" // a Monday

type testServer struct {
	router http.Handler
	locks  *service.LockService
	db     *database.DB
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	availability := service.NewAvailabilityService(db, &logger)
	locks := service.NewLockService(db, events.NewBus(), 15*time.Minute, &logger)
	server := NewServer(availability, locks, &logger, opts)
	return &testServer{router: server.Router(), locks: locks, db: db}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) seedSchedule(t *testing.T, businessID int64) {
	t.Helper()
	days := make([]map[string]any, 0, 7)
	for weekday := 0; weekday < 7; weekday++ {
		day := map[string]any{"weekday": weekday, "is_available": false, "start_time": "", "end_time": ""}
		if weekday >= 1 && weekday <= 5 {
			day["is_available"] = true
			day["start_time"] = "09:00"
			day["end_time"] = "17:00"
		}
		days = append(days, day)
	}
	rec := ts.do(t, http.MethodPut,
		fmt.Sprintf("/api/v1/businesses/%d/schedule", businessID),
		map[string]any{"schedule": days},
	)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestAPIKeyGuard(t *testing.T) {
	ts := newTestServer(t, Options{APIKey: "secret"})

	rec := ts.do(t, http.MethodGet, "/api/v1/businesses/1/schedule", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/businesses/1/schedule", nil)
	req.Header.Set("X-Api-Key", "secret")
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestScheduleRoundtrip(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.seedSchedule(t, 1)

	rec := ts.do(t, http.MethodGet, "/api/v1/businesses/1/schedule", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Schedule []models.WeeklyScheduleDay `json:"schedule"`
	}
	decodeResponse(t, rec, &resp)
	require.Len(t, resp.Schedule, 7)
	assert.False(t, resp.Schedule[0].IsAvailable)
	assert.True(t, resp.Schedule[1].IsAvailable)
	assert.Equal(t, "09:00", resp.Schedule[1].StartTime)
}

func TestScheduleValidation(t *testing.T) {
	ts := newTestServer(t, Options{})

	// Too few entries.
	rec := ts.do(t, http.MethodPut, "/api/v1/businesses/1/schedule", map[string]any{
		"schedule": []map[string]any{{"weekday": 1, "is_available": true, "start_time": "09:00", "end_time": "17:00"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown fields are rejected.
	rec = ts.do(t, http.MethodPut, "/api/v1/businesses/1/schedule", map[string]any{"bogus": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Non-numeric business ID.
	rec = ts.do(t, http.MethodGet, "/api/v1/businesses/abc/schedule", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOverridesRoundtrip(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(t, http.MethodPut, "/api/v1/businesses/1/overrides", map[string]any{
		"overrides": map[string][]OverrideEntry{
			"1": {{Time: "12:00", Enabled: false}},
		},
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/v1/businesses/1/overrides", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Overrides map[string][]OverrideEntry `json:"overrides"`
	}
	decodeResponse(t, rec, &resp)
	require.Len(t, resp.Overrides["1"], 1)
	assert.Equal(t, "12:00", resp.Overrides["1"][0].Time)
	assert.False(t, resp.Overrides["1"][0].Enabled)

	// Bad weekday key.
	rec = ts.do(t, http.MethodPut, "/api/v1/businesses/1/overrides", map[string]any{
		"overrides": map[string][]OverrideEntry{"monday": {{Time: "12:00"}}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBlocksLifecycle(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(t, http.MethodPost, "/api/v1/businesses/1/blocks", map[string]any{
		"date": testMonday, "start_time": "12:00", "end_time": "13:00", "reason": "maintenance",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var block models.AvailabilityBlock
	decodeResponse(t, rec, &block)
	assert.NotZero(t, block.ID)
	assert.Equal(t, "maintenance", block.Reason)

	rec = ts.do(t, http.MethodGet, "/api/v1/businesses/1/blocks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Blocks []models.AvailabilityBlock `json:"blocks"`
	}
	decodeResponse(t, rec, &list)
	require.Len(t, list.Blocks, 1)

	rec = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/blocks/%d", block.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/blocks/%d", block.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/v1/blocks/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Invalid block payloads.
	rec = ts.do(t, http.MethodPost, "/api/v1/businesses/1/blocks", map[string]any{"date": "junk"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGridEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.seedSchedule(t, 1)

	rec := ts.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/businesses/1/grid?start=%s&end=%s", testMonday, testMonday), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Entries []models.SlotGridEntry `json:"entries"`
	}
	decodeResponse(t, rec, &resp)
	require.Len(t, resp.Entries, 8)
	assert.Equal(t, models.StatusAvailable, resp.Entries[0].Status)

	// Missing params.
	rec = ts.do(t, http.MethodGet, "/api/v1/businesses/1/grid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Malformed date surfaces as 400.
	rec = ts.do(t, http.MethodGet, "/api/v1/businesses/1/grid?start=junk&end="+testMonday, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Range wider than the cap.
	rec = ts.do(t, http.MethodGet, "/api/v1/businesses/1/grid?start=2025-01-01&end=2025-12-31", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Empty range compiles to an empty grid, not an error.
	rec = ts.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/businesses/1/grid?start=2025-06-03&end=%s", testMonday), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeResponse(t, rec, &resp)
	assert.Empty(t, resp.Entries)
}

func TestAcquireLockEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.seedSchedule(t, 1)

	rec := ts.do(t, http.MethodPost, "/api/v1/businesses/1/locks",
		AcquireLockRequest{Date: testMonday, Time: "10:00"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var lock models.ReservationLock
	decodeResponse(t, rec, &lock)
	assert.NotEmpty(t, lock.ID)
	assert.Equal(t, models.LockActive, lock.Status)

	// Same cell again: contention is a 409.
	rec = ts.do(t, http.MethodPost, "/api/v1/businesses/1/locks",
		AcquireLockRequest{Date: testMonday, Time: "10:00"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Closed weekday is a 409 too.
	rec = ts.do(t, http.MethodPost, "/api/v1/businesses/1/locks",
		AcquireLockRequest{Date: "2025-06-01", Time: "10:00"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Missing fields.
	rec = ts.do(t, http.MethodPost, "/api/v1/businesses/1/locks", AcquireLockRequest{Date: testMonday})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAcquireLockNonDefaultInterval(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.seedSchedule(t, 1)

	// Any cell the grid advertises at interval=30 must be acquirable with
	// the same step.
	rec := ts.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/businesses/1/grid?start=%s&end=%s&interval=30&duration=30", testMonday, testMonday), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Entries []models.SlotGridEntry `json:"entries"`
	}
	decodeResponse(t, rec, &resp)
	found := false
	for _, entry := range resp.Entries {
		if entry.Time == "09:30" {
			found = true
			assert.Equal(t, models.StatusAvailable, entry.Status)
		}
	}
	require.True(t, found)

	rec = ts.do(t, http.MethodPost, "/api/v1/businesses/1/locks",
		AcquireLockRequest{Date: testMonday, Time: "09:30", IntervalMinutes: 30, DurationMinutes: 30})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestReleaseLockEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.seedSchedule(t, 1)

	rec := ts.do(t, http.MethodPost, "/api/v1/businesses/1/locks",
		AcquireLockRequest{Date: testMonday, Time: "10:00"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var lock models.ReservationLock
	decodeResponse(t, rec, &lock)

	rec = ts.do(t, http.MethodDelete, "/api/v1/locks/"+lock.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Idempotent, including on unknown IDs.
	rec = ts.do(t, http.MethodDelete, "/api/v1/locks/"+lock.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/api/v1/locks/no-such-lock", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPromoteLockEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.seedSchedule(t, 1)

	rec := ts.do(t, http.MethodPost, "/api/v1/businesses/1/locks",
		AcquireLockRequest{Date: testMonday, Time: "10:00"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var lock models.ReservationLock
	decodeResponse(t, rec, &lock)

	// Missing order_ref.
	rec = ts.do(t, http.MethodPost, "/api/v1/locks/"+lock.ID+"/promote", PromoteLockRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/locks/"+lock.ID+"/promote",
		PromoteLockRequest{OrderRef: "order-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var booking models.Booking
	decodeResponse(t, rec, &booking)
	assert.Equal(t, "order-1", booking.OrderRef)
	assert.Equal(t, testMonday, booking.Date)

	// A promoted lock no longer occupies its key: 410.
	rec = ts.do(t, http.MethodPost, "/api/v1/locks/"+lock.ID+"/promote",
		PromoteLockRequest{OrderRef: "order-1"})
	assert.Equal(t, http.StatusGone, rec.Code)

	// Unknown lock: 404.
	rec = ts.do(t, http.MethodPost, "/api/v1/locks/no-such-lock/promote",
		PromoteLockRequest{OrderRef: "order-1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutLocksEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.seedSchedule(t, 1)
	ts.seedSchedule(t, 2)

	rec := ts.do(t, http.MethodPost, "/api/v1/checkout/locks", CheckoutLocksRequest{
		Items: []service.CheckoutItem{
			{BusinessID: 1, Date: testMonday, Time: "10:00"},
			{BusinessID: 2, Date: testMonday, Time: "14:00"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Locks []models.ReservationLock `json:"locks"`
	}
	decodeResponse(t, rec, &resp)
	require.Len(t, resp.Locks, 2)

	// Business 2's slot is now held; the retry names it and rolls back
	// business 1's new lock.
	rec = ts.do(t, http.MethodPost, "/api/v1/checkout/locks", CheckoutLocksRequest{
		Items: []service.CheckoutItem{
			{BusinessID: 1, Date: testMonday, Time: "11:00"},
			{BusinessID: 2, Date: testMonday, Time: "14:00"},
		},
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	var conflict struct {
		BusinessID int64  `json:"business_id"`
		Date       string `json:"date"`
		Time       string `json:"time"`
	}
	decodeResponse(t, rec, &conflict)
	assert.Equal(t, int64(2), conflict.BusinessID)
	assert.Equal(t, "14:00", conflict.Time)

	// Business 1's 11:00 slot was released by the rollback.
	rec = ts.do(t, http.MethodPost, "/api/v1/businesses/1/locks",
		AcquireLockRequest{Date: testMonday, Time: "11:00"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Empty cart.
	rec = ts.do(t, http.MethodPost, "/api/v1/checkout/locks", CheckoutLocksRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAcquireRateLimit(t *testing.T) {
	ts := newTestServer(t, Options{AcquirePerSecond: 0.001, AcquireBurst: 1})
	ts.seedSchedule(t, 1)

	rec := ts.do(t, http.MethodPost, "/api/v1/businesses/1/locks",
		AcquireLockRequest{Date: testMonday, Time: "10:00"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/businesses/1/locks",
		AcquireLockRequest{Date: testMonday, Time: "11:00"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestExportBookingsEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.seedSchedule(t, 1)

	// Book one slot through the full flow, then export.
	rec := ts.do(t, http.MethodPost, "/api/v1/businesses/1/locks",
		AcquireLockRequest{Date: testMonday, Time: "10:00"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var lock models.ReservationLock
	decodeResponse(t, rec, &lock)

	_, err := ts.locks.Promote(context.Background(), lock.ID, "order-1")
	require.NoError(t, err)

	rec = ts.do(t, http.MethodGet, "/api/v1/businesses/1/bookings/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "bookings-1.xlsx")
	assert.NotZero(t, rec.Body.Len())
}
