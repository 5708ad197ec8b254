// Package grid compiles the per-cell slot status for a business timeline.
// The compiler is a pure function over point-in-time reads of every
// availability source; it performs no I/O and holds no state.
package grid

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"bookgrid/internal/models"
)

// DefaultIntervalMinutes is the slot step used when the caller passes zero.
const DefaultIntervalMinutes = 60

// CellKey identifies one (date, time) cell on a business timeline.
type CellKey struct {
	Date string // "2006-01-02"
	Time string // "15:04"
}

// OverrideKey identifies a per-weekday slot override.
type OverrideKey struct {
	Weekday int
	Time    string
}

// Inputs carries point-in-time reads of the availability sources. Missing
// schedule entries mean the weekday is closed; missing override entries mean
// the generated time is enabled.
type Inputs struct {
	Schedule  map[int]models.WeeklyScheduleDay
	Overrides map[OverrideKey]bool
	Blocks    map[string][]models.AvailabilityBlock
	Bookings  map[CellKey]bool
	Locks     map[CellKey]models.ReservationLock
}

// Params bounds one compilation. Dates are inclusive on both ends.
type Params struct {
	StartDate       string
	EndDate         string
	IntervalMinutes int
	DurationMinutes int
}

// Validate normalizes the params (zero interval becomes the default) and
// reports ErrInvalidRange for malformed dates or non-positive interval or
// duration. A range whose end precedes its start is valid and compiles to an
// empty grid.
func (p *Params) Validate() error {
	if p.IntervalMinutes == 0 {
		p.IntervalMinutes = DefaultIntervalMinutes
	}
	if p.IntervalMinutes < 0 || p.IntervalMinutes > 24*60 {
		return fmt.Errorf("%w: interval %d minutes", models.ErrInvalidRange, p.IntervalMinutes)
	}
	if p.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration %d minutes", models.ErrInvalidRange, p.DurationMinutes)
	}
	if _, err := time.Parse(models.DateLayout, p.StartDate); err != nil {
		return fmt.Errorf("%w: start date %q", models.ErrInvalidRange, p.StartDate)
	}
	if _, err := time.Parse(models.DateLayout, p.EndDate); err != nil {
		return fmt.Errorf("%w: end date %q", models.ErrInvalidRange, p.EndDate)
	}
	return nil
}

// Compile merges the four availability sources and live locks into one
// ordered entry per generated cell. Precedence is booked > blocked > locked >
// available: a paid booking is never hidden by a block, and a temporary lock
// is never confused with a firm appointment.
func Compile(in Inputs, p Params, now time.Time) ([]models.SlotGridEntry, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	start, _ := time.Parse(models.DateLayout, p.StartDate)
	end, _ := time.Parse(models.DateLayout, p.EndDate)

	entries := make([]models.SlotGridEntry, 0)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dayEntries, err := compileDate(in, d, p, now)
		if err != nil {
			return nil, err
		}
		entries = append(entries, dayEntries...)
	}
	return entries, nil
}

// CellStatus resolves the status of a single cell, re-deriving candidate
// generation, overrides, blocks and bookings for its date. found is false
// when the cell is not a generated candidate at all (closed weekday,
// out-of-hours time, or an override that disables it).
//
// The lock acquire path calls this with Inputs.Locks left empty: exclusivity
// against other live locks is the storage constraint's job, not a
// read-then-check here.
func CellStatus(in Inputs, date, timeOfDay string, p Params, now time.Time) (models.SlotStatus, bool, error) {
	p.StartDate = date
	p.EndDate = date
	entries, err := Compile(in, p, now)
	if err != nil {
		return "", false, err
	}
	for _, e := range entries {
		if e.Time == timeOfDay {
			return e.Status, true, nil
		}
	}
	return "", false, nil
}

func compileDate(in Inputs, date time.Time, p Params, now time.Time) ([]models.SlotGridEntry, error) {
	weekday := int(date.Weekday())
	day, ok := in.Schedule[weekday]
	if !ok || !day.IsAvailable {
		return nil, nil
	}

	openMin, err := clockMinutes(day.StartTime)
	if err != nil {
		return nil, fmt.Errorf("schedule weekday %d start: %w", weekday, err)
	}
	closeMin, err := clockMinutes(day.EndTime)
	if err != nil {
		return nil, fmt.Errorf("schedule weekday %d end: %w", weekday, err)
	}

	dateStr := date.Format(models.DateLayout)
	blocks := in.Blocks[dateStr]
	var allDay *models.AvailabilityBlock
	for i := range blocks {
		if blocks[i].IsAllDay {
			allDay = &blocks[i]
			break
		}
	}

	var entries []models.SlotGridEntry
	for m := openMin; m+p.DurationMinutes <= closeMin; m += p.IntervalMinutes {
		timeStr := minutesClock(m)
		if enabled, ok := in.Overrides[OverrideKey{Weekday: weekday, Time: timeStr}]; ok && !enabled {
			continue
		}

		entry := models.SlotGridEntry{Date: dateStr, Time: timeStr, Status: models.StatusAvailable}
		if allDay != nil {
			entry.Status = models.StatusBlocked
			entry.BlockID = allDay.ID
		} else {
			for i := range blocks {
				overlaps, err := blockOverlaps(&blocks[i], m, m+p.DurationMinutes)
				if err != nil {
					return nil, err
				}
				if overlaps {
					entry.Status = models.StatusBlocked
					entry.BlockID = blocks[i].ID
					break
				}
			}
		}

		key := CellKey{Date: dateStr, Time: timeStr}
		if in.Bookings[key] {
			entry.Status = models.StatusBooked
			entry.BlockID = 0
		} else if entry.Status == models.StatusAvailable {
			if lock, ok := in.Locks[key]; ok && lock.Live(now) {
				entry.Status = models.StatusLocked
			}
		}

		entries = append(entries, entry)
	}
	return entries, nil
}

func blockOverlaps(b *models.AvailabilityBlock, candStart, candEnd int) (bool, error) {
	blockStart, err := clockMinutes(b.StartTime)
	if err != nil {
		return false, fmt.Errorf("block %d start: %w", b.ID, err)
	}
	blockEnd, err := clockMinutes(b.EndTime)
	if err != nil {
		return false, fmt.Errorf("block %d end: %w", b.ID, err)
	}
	return candStart < blockEnd && blockStart < candEnd, nil
}

func clockMinutes(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time out of range: %q", s)
	}
	return hour*60 + minute, nil
}

func minutesClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
