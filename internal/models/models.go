package models

import (
	"errors"
	"time"
)

var (
	// ErrSlotUnavailable is returned when the requested cell is booked,
	// blocked, or already locked by another checkout.
	ErrSlotUnavailable = errors.New("slot unavailable")
	// ErrLockExpired is returned when a promote arrives after the lock TTL
	// elapsed; the caller must re-validate the slot.
	ErrLockExpired = errors.New("reservation lock expired")
	// ErrInvalidRange is returned for malformed date ranges or non-positive
	// interval/duration values.
	ErrInvalidRange = errors.New("invalid range")
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
)

// SlotStatus is the resolved status of a single grid cell.
type SlotStatus string

const (
	StatusAvailable SlotStatus = "available"
	StatusBooked    SlotStatus = "booked"
	StatusBlocked   SlotStatus = "blocked"
	StatusLocked    SlotStatus = "locked"
)

// Dates are "2006-01-02" strings and times of day are "15:04" strings
// throughout; both are produced and consumed in the business's local sense,
// the engine never converts between zones.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// WeeklyScheduleDay is one weekday row of a business's default opening hours.
// Weekday follows time.Weekday numbering (0=Sunday..6=Saturday). A business
// always resolves to exactly 7 entries; weekdays without a stored row default
// to closed.
type WeeklyScheduleDay struct {
	ID          int64     `json:"id,omitempty"`
	BusinessID  int64     `json:"business_id"`
	Weekday     int       `json:"weekday"`
	IsAvailable bool      `json:"is_available"`
	StartTime   string    `json:"start_time"` // "09:00"
	EndTime     string    `json:"end_time"`   // "17:00"
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// SlotOverride disables (or re-enables) one generated time on one weekday
// inside the open hours. A time with no override record is enabled.
type SlotOverride struct {
	ID         int64  `json:"id,omitempty"`
	BusinessID int64  `json:"business_id"`
	Weekday    int    `json:"weekday"`
	Time       string `json:"time"` // "12:00"
	Enabled    bool   `json:"enabled"`
}

// AvailabilityBlock is an ad-hoc date-specific closure independent of the
// weekly pattern. All-day blocks carry no time range. Blocks are created and
// deleted, never edited.
type AvailabilityBlock struct {
	ID         int64     `json:"id"`
	BusinessID int64     `json:"business_id"`
	Date       string    `json:"date"` // "2025-06-02"
	IsAllDay   bool      `json:"is_all_day"`
	StartTime  string    `json:"start_time,omitempty"`
	EndTime    string    `json:"end_time,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Booking is a confirmed, paid reservation. Rows are written only by lock
// promotion and are immutable ground truth for "booked" status.
type Booking struct {
	ID              int64     `json:"id"`
	BusinessID      int64     `json:"business_id"`
	OrderRef        string    `json:"order_ref"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"`
}

// Lock lifecycle states. Only an active, unexpired lock occupies its key.
const (
	LockActive   = "active"
	LockReleased = "released"
	LockPromoted = "promoted"
)

// ReservationLock is a transient exclusive hold on one (business, date, time)
// cell taken at the start of checkout. At most one live lock exists per key.
type ReservationLock struct {
	ID              string    `json:"id"`
	BusinessID      int64     `json:"business_id"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// Live reports whether the lock still occupies its key at the given instant.
// Expiry is evaluated lazily; an expired row counts as absent everywhere.
func (l *ReservationLock) Live(now time.Time) bool {
	return l.Status == LockActive && now.Before(l.ExpiresAt)
}

// SlotGridEntry is the compiled read-model for one (date, time) cell.
// BlockID is set when Status is StatusBlocked so callers can offer an
// unblock action.
type SlotGridEntry struct {
	Date    string     `json:"date"`
	Time    string     `json:"time"`
	Status  SlotStatus `json:"status"`
	BlockID int64      `json:"block_id,omitempty"`
}
