package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"bookgrid/internal/grid"
	"bookgrid/internal/metrics"
	"bookgrid/internal/models"
)

// AvailabilityService owns schedule, override and block configuration and
// compiles availability grids from them.
type AvailabilityService struct {
	store  Store
	cache  GridCache
	logger *zerolog.Logger
}

// NewAvailabilityService creates the availability service.
func NewAvailabilityService(store Store, logger *zerolog.Logger) *AvailabilityService {
	return &AvailabilityService{store: store, logger: logger}
}

// UseGridCache configures an optional grid read cache.
func (s *AvailabilityService) UseGridCache(cache GridCache) {
	s.cache = cache
}

// GetWeeklySchedule returns the 7 weekday entries for a business.
func (s *AvailabilityService) GetWeeklySchedule(ctx context.Context, businessID int64) ([]models.WeeklyScheduleDay, error) {
	return s.store.GetWeeklySchedule(ctx, businessID)
}

// PutWeeklySchedule validates and stores a full weekly schedule. Exactly one
// entry per weekday 0..6 is required; open days must carry a valid
// start < end range.
func (s *AvailabilityService) PutWeeklySchedule(ctx context.Context, businessID int64, days []models.WeeklyScheduleDay) error {
	if len(days) != 7 {
		return fmt.Errorf("%w: expected 7 weekday entries, got %d", models.ErrInvalidRange, len(days))
	}
	seen := make(map[int]bool, 7)
	for _, d := range days {
		if d.Weekday < 0 || d.Weekday > 6 {
			return fmt.Errorf("%w: weekday %d", models.ErrInvalidRange, d.Weekday)
		}
		if seen[d.Weekday] {
			return fmt.Errorf("%w: duplicate weekday %d", models.ErrInvalidRange, d.Weekday)
		}
		seen[d.Weekday] = true
		if !d.IsAvailable {
			continue
		}
		if err := validateClockRange(d.StartTime, d.EndTime); err != nil {
			return fmt.Errorf("weekday %d: %w", d.Weekday, err)
		}
	}

	if err := s.store.PutWeeklySchedule(ctx, businessID, days); err != nil {
		return err
	}
	s.invalidate(ctx, businessID)
	return nil
}

// GetOverrides returns all slot overrides for a business.
func (s *AvailabilityService) GetOverrides(ctx context.Context, businessID int64) ([]models.SlotOverride, error) {
	return s.store.GetOverrides(ctx, businessID)
}

// PutOverrides validates and replaces the full override set for a business.
func (s *AvailabilityService) PutOverrides(ctx context.Context, businessID int64, overrides []models.SlotOverride) error {
	for _, o := range overrides {
		if o.Weekday < 0 || o.Weekday > 6 {
			return fmt.Errorf("%w: weekday %d", models.ErrInvalidRange, o.Weekday)
		}
		if !validClock(o.Time) {
			return fmt.Errorf("%w: time %q", models.ErrInvalidRange, o.Time)
		}
	}

	if err := s.store.PutOverrides(ctx, businessID, overrides); err != nil {
		return err
	}
	s.invalidate(ctx, businessID)
	return nil
}

// ListBlocks returns all ad-hoc closures for a business.
func (s *AvailabilityService) ListBlocks(ctx context.Context, businessID int64) ([]models.AvailabilityBlock, error) {
	return s.store.ListBlocks(ctx, businessID)
}

// CreateBlock validates and stores an ad-hoc closure. All-day blocks carry no
// time range; timed blocks require a valid start < end range.
func (s *AvailabilityService) CreateBlock(ctx context.Context, b *models.AvailabilityBlock) error {
	if _, err := time.Parse(models.DateLayout, b.Date); err != nil {
		return fmt.Errorf("%w: date %q", models.ErrInvalidRange, b.Date)
	}
	if b.IsAllDay {
		b.StartTime = ""
		b.EndTime = ""
	} else if err := validateClockRange(b.StartTime, b.EndTime); err != nil {
		return err
	}

	if err := s.store.CreateBlock(ctx, b); err != nil {
		return err
	}
	s.invalidate(ctx, b.BusinessID)

	s.logger.Info().
		Int64("business_id", b.BusinessID).
		Str("date", b.Date).
		Bool("all_day", b.IsAllDay).
		Msg("block created")
	return nil
}

// DeleteBlock removes a closure by ID.
func (s *AvailabilityService) DeleteBlock(ctx context.Context, blockID int64) error {
	block, err := s.store.GetBlock(ctx, blockID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBlock(ctx, blockID); err != nil {
		return err
	}
	s.invalidate(ctx, block.BusinessID)
	return nil
}

// ListBookings returns the confirmed booking ledger for a business.
func (s *AvailabilityService) ListBookings(ctx context.Context, businessID int64) ([]models.Booking, error) {
	return s.store.ListBookings(ctx, businessID)
}

// CompileGrid resolves one status per generated cell over the date range.
// Absence of open cells is a normal result, never an error; a business with
// no stored schedule compiles to an empty grid.
func (s *AvailabilityService) CompileGrid(ctx context.Context, businessID int64, p grid.Params) ([]models.SlotGridEntry, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	key := gridCacheKey(businessID, p)
	if s.cache != nil {
		if entries, ok := s.cache.Get(ctx, key); ok {
			return entries, nil
		}
	}

	now := time.Now()
	in, err := loadInputs(ctx, s.store, businessID, p.StartDate, p.EndDate, now, true)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	entries, err := grid.Compile(in, p, now)
	if err != nil {
		return nil, err
	}
	metrics.ObserveGridCompile(time.Since(started).Seconds())

	if s.cache != nil {
		s.cache.Set(ctx, key, entries)
	}
	return entries, nil
}

func (s *AvailabilityService) invalidate(ctx context.Context, businessID int64) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, businessID)
	}
}

func gridCacheKey(businessID int64, p grid.Params) string {
	return fmt.Sprintf("grid:%d:%s:%s:%d:%d",
		businessID, p.StartDate, p.EndDate, p.IntervalMinutes, p.DurationMinutes)
}

// loadInputs performs the point-in-time reads the compiler consumes. Reads
// are not transactional with respect to concurrent business edits; slight
// staleness in a mid-compile grid is accepted.
func loadInputs(ctx context.Context, store Store, businessID int64, start, end string, now time.Time, withLocks bool) (grid.Inputs, error) {
	in := grid.Inputs{
		Schedule:  make(map[int]models.WeeklyScheduleDay, 7),
		Overrides: make(map[grid.OverrideKey]bool),
		Blocks:    make(map[string][]models.AvailabilityBlock),
		Bookings:  make(map[grid.CellKey]bool),
		Locks:     make(map[grid.CellKey]models.ReservationLock),
	}

	days, err := store.GetWeeklySchedule(ctx, businessID)
	if err != nil {
		return in, fmt.Errorf("load schedule: %w", err)
	}
	for _, d := range days {
		in.Schedule[d.Weekday] = d
	}

	overrides, err := store.GetOverrides(ctx, businessID)
	if err != nil {
		return in, fmt.Errorf("load overrides: %w", err)
	}
	for _, o := range overrides {
		in.Overrides[grid.OverrideKey{Weekday: o.Weekday, Time: o.Time}] = o.Enabled
	}

	blocks, err := store.ListBlocksInRange(ctx, businessID, start, end)
	if err != nil {
		return in, fmt.Errorf("load blocks: %w", err)
	}
	for _, b := range blocks {
		in.Blocks[b.Date] = append(in.Blocks[b.Date], b)
	}

	bookings, err := store.ListBookingsInRange(ctx, businessID, start, end)
	if err != nil {
		return in, fmt.Errorf("load bookings: %w", err)
	}
	for _, b := range bookings {
		in.Bookings[grid.CellKey{Date: b.Date, Time: b.Time}] = true
	}

	if withLocks {
		locks, err := store.ListLiveLocks(ctx, businessID, start, end, now)
		if err != nil {
			return in, fmt.Errorf("load locks: %w", err)
		}
		for _, l := range locks {
			in.Locks[grid.CellKey{Date: l.Date, Time: l.Time}] = l
		}
	}

	return in, nil
}

func validClock(s string) bool {
	_, err := time.Parse(models.TimeLayout, s)
	return err == nil
}

func validateClockRange(start, end string) error {
	st, err := time.Parse(models.TimeLayout, start)
	if err != nil {
		return fmt.Errorf("%w: start time %q", models.ErrInvalidRange, start)
	}
	en, err := time.Parse(models.TimeLayout, end)
	if err != nil {
		return fmt.Errorf("%w: end time %q", models.ErrInvalidRange, end)
	}
	if !st.Before(en) {
		return fmt.Errorf("%w: start %s not before end %s", models.ErrInvalidRange, start, end)
	}
	return nil
}
