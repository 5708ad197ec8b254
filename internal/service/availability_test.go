package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookgrid/internal/grid"
	"bookgrid/internal/models"
)

func TestPutWeeklyScheduleValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name string
		days []models.WeeklyScheduleDay
	}{
		{"too few entries", fullWeek()[:6]},
		{
			"duplicate weekday",
			append(fullWeek()[:6], models.WeeklyScheduleDay{Weekday: 5}),
		},
		{
			"weekday out of range",
			append(fullWeek()[:6], models.WeeklyScheduleDay{Weekday: 7}),
		},
		{
			"open day with end before start",
			func() []models.WeeklyScheduleDay {
				days := fullWeek()
				days[1].StartTime = "17:00"
				days[1].EndTime = "09:00"
				return days
			}(),
		},
		{
			"open day with malformed time",
			func() []models.WeeklyScheduleDay {
				days := fullWeek()
				days[1].StartTime = "9am"
				return days
			}(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.availability.PutWeeklySchedule(ctx, 42, tt.days)
			assert.ErrorIs(t, err, models.ErrInvalidRange)
		})
	}

	// Closed days don't need times at all.
	days := fullWeek()
	days[1].IsAvailable = false
	days[1].StartTime = ""
	days[1].EndTime = ""
	require.NoError(t, e.availability.PutWeeklySchedule(ctx, 42, days))
}

func TestPutOverridesValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	err := e.availability.PutOverrides(ctx, 42, []models.SlotOverride{{Weekday: 9, Time: "12:00"}})
	assert.ErrorIs(t, err, models.ErrInvalidRange)

	err = e.availability.PutOverrides(ctx, 42, []models.SlotOverride{{Weekday: 1, Time: "noon"}})
	assert.ErrorIs(t, err, models.ErrInvalidRange)

	require.NoError(t, e.availability.PutOverrides(ctx, 42, []models.SlotOverride{
		{Weekday: 1, Time: "12:00", Enabled: false},
	}))
}

func TestCreateBlockValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	err := e.availability.CreateBlock(ctx, &models.AvailabilityBlock{BusinessID: 42, Date: "junk"})
	assert.ErrorIs(t, err, models.ErrInvalidRange)

	err = e.availability.CreateBlock(ctx, &models.AvailabilityBlock{
		BusinessID: 42, Date: testMonday, StartTime: "13:00", EndTime: "12:00",
	})
	assert.ErrorIs(t, err, models.ErrInvalidRange)

	// All-day blocks drop any stray time range.
	block := &models.AvailabilityBlock{
		BusinessID: 42, Date: testMonday, IsAllDay: true, StartTime: "12:00", EndTime: "13:00",
	}
	require.NoError(t, e.availability.CreateBlock(ctx, block))
	assert.Empty(t, block.StartTime)
	assert.Empty(t, block.EndTime)
	assert.NotZero(t, block.ID)
}

func TestDeleteBlockNotFound(t *testing.T) {
	e := newTestEngine(t)
	err := e.availability.DeleteBlock(context.Background(), 999)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCompileGridPrecedence(t *testing.T) {
	e := newTestEngine(t)
	e.seedSchedule(t)
	ctx := context.Background()

	// Block noon, lock 10:00, and book 11:00 through a promoted lock.
	require.NoError(t, e.availability.CreateBlock(ctx, &models.AvailabilityBlock{
		BusinessID: 42, Date: testMonday, StartTime: "12:00", EndTime: "13:00",
	}))
	_, err := e.locks.Acquire(ctx, 42, testMonday, "10:00", 0, 60)
	require.NoError(t, err)
	held, err := e.locks.Acquire(ctx, 42, testMonday, "11:00", 0, 60)
	require.NoError(t, err)
	_, err = e.locks.Promote(ctx, held.ID, "order-1")
	require.NoError(t, err)

	entries, err := e.availability.CompileGrid(ctx, 42, grid.Params{
		StartDate: testMonday, EndDate: testMonday, DurationMinutes: 60,
	})
	require.NoError(t, err)
	require.Len(t, entries, 8)

	byTime := make(map[string]models.SlotGridEntry, len(entries))
	for _, entry := range entries {
		byTime[entry.Time] = entry
	}
	assert.Equal(t, models.StatusAvailable, byTime["09:00"].Status)
	assert.Equal(t, models.StatusLocked, byTime["10:00"].Status)
	assert.Equal(t, models.StatusBooked, byTime["11:00"].Status)
	assert.Equal(t, models.StatusBlocked, byTime["12:00"].Status)
	assert.NotZero(t, byTime["12:00"].BlockID)
}

func TestCompileGridUnconfiguredBusiness(t *testing.T) {
	e := newTestEngine(t)
	entries, err := e.availability.CompileGrid(context.Background(), 99, grid.Params{
		StartDate: testMonday, EndDate: testMonday, DurationMinutes: 60,
	})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCompileGridInvalidParams(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.availability.CompileGrid(context.Background(), 42, grid.Params{
		StartDate: "junk", EndDate: testMonday, DurationMinutes: 60,
	})
	assert.ErrorIs(t, err, models.ErrInvalidRange)
}

func TestCompileGridUsesCache(t *testing.T) {
	e := newTestEngine(t)
	e.seedSchedule(t)
	ctx := context.Background()

	cache := &memoryGridCache{entries: make(map[string][]models.SlotGridEntry)}
	e.availability.UseGridCache(cache)
	e.locks.UseGridCache(cache)

	p := grid.Params{StartDate: testMonday, EndDate: testMonday, DurationMinutes: 60}
	first, err := e.availability.CompileGrid(ctx, 42, p)
	require.NoError(t, err)

	second, err := e.availability.CompileGrid(ctx, 42, p)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.misses, "second read must come from the cache")

	// Any lock transition drops the cached grids for the business.
	_, err = e.locks.Acquire(ctx, 42, testMonday, "10:00", 0, 60)
	require.NoError(t, err)
	assert.Empty(t, cache.entries)
}

type memoryGridCache struct {
	entries map[string][]models.SlotGridEntry
	misses  int
}

func (c *memoryGridCache) Get(_ context.Context, key string) ([]models.SlotGridEntry, bool) {
	entries, ok := c.entries[key]
	if !ok {
		c.misses++
	}
	return entries, ok
}

func (c *memoryGridCache) Set(_ context.Context, key string, entries []models.SlotGridEntry) {
	c.entries[key] = entries
}

func (c *memoryGridCache) Invalidate(_ context.Context, _ int64) {
	c.entries = make(map[string][]models.SlotGridEntry)
}

var _ GridCache = (*memoryGridCache)(nil)

// Guard against clock-dependent flakiness: the grid for a date fully in the
// past must still compile deterministically.
func TestCompileGridPastDates(t *testing.T) {
	e := newTestEngine(t)
	e.seedSchedule(t)

	entries, err := e.availability.CompileGrid(context.Background(), 42, grid.Params{
		StartDate: "2020-06-01", EndDate: "2020-06-01", DurationMinutes: 60,
	})
	require.NoError(t, err)
	assert.Len(t, entries, 8, "2020-06-01 was a Monday")
}
