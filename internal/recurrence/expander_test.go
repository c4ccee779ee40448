package recurrence

import (
	"context"
	"testing"
	"time"

	"roomly/internal/availability"
	"roomly/internal/calendar"
	"roomly/internal/conflicts"
	"roomly/internal/domain"
	"roomly/internal/shared/apperrors"
	"roomly/internal/store"
	"roomly/internal/venues"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(n int) *int { return &n }

func timep(t time.Time) *time.Time { return &t }

func jan(d, h int) time.Time {
	return time.Date(2024, 1, d, h, 0, 0, 0, time.UTC)
}

func TestValidatePattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern domain.Pattern
		valid   bool
	}{
		{"weekly count", domain.Pattern{Frequency: domain.FrequencyWeekly, Interval: 1, Count: intp(3)}, true},
		{"daily until", domain.Pattern{Frequency: domain.FrequencyDaily, Interval: 2, Until: timep(jan(10, 0))}, true},
		{"monthly", domain.Pattern{Frequency: "monthly", Interval: 1, Count: intp(3)}, false},
		{"zero interval", domain.Pattern{Frequency: domain.FrequencyDaily, Interval: 0, Count: intp(3)}, false},
		{"no end", domain.Pattern{Frequency: domain.FrequencyDaily, Interval: 1}, false},
		{"both ends", domain.Pattern{Frequency: domain.FrequencyDaily, Interval: 1, Count: intp(3), Until: timep(jan(10, 0))}, false},
		{"zero count", domain.Pattern{Frequency: domain.FrequencyDaily, Interval: 1, Count: intp(0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePattern(tt.pattern)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperrors.IsInvalidArgument(err), "got %v", err)
			}
		})
	}
}

func TestOccurrences_WeeklyCount(t *testing.T) {
	got, err := Occurrences(jan(1, 10), time.Hour, domain.Pattern{Frequency: domain.FrequencyWeekly, Interval: 1, Count: intp(3)}, time.UTC, 0)
	require.NoError(t, err)
	assert.Equal(t, []calendar.Interval{
		calendar.MustNew(jan(1, 10), jan(1, 11)),
		calendar.MustNew(jan(8, 10), jan(8, 11)),
		calendar.MustNew(jan(15, 10), jan(15, 11)),
	}, got)
}

func TestOccurrences_UntilIsInclusive(t *testing.T) {
	got, err := Occurrences(jan(1, 10), time.Hour, domain.Pattern{Frequency: domain.FrequencyDaily, Interval: 2, Until: timep(jan(7, 10))}, time.UTC, 0)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, jan(7, 10), got[3].Start)

	got, err = Occurrences(jan(1, 10), time.Hour, domain.Pattern{Frequency: domain.FrequencyDaily, Interval: 2, Until: timep(jan(7, 9))}, time.UTC, 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestOccurrences_KeepsWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// clocks go forward on 31 March 2024
	first := time.Date(2024, 3, 28, 10, 0, 0, 0, loc)
	got, err := Occurrences(first, time.Hour, domain.Pattern{Frequency: domain.FrequencyWeekly, Interval: 1, Count: intp(2)}, loc, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 10, got[1].Start.In(loc).Hour())
	assert.Equal(t, 6*24*time.Hour+23*time.Hour, got[1].Start.Sub(got[0].Start))
}

func TestOccurrences_Limits(t *testing.T) {
	_, err := Occurrences(jan(1, 10), time.Hour, domain.Pattern{Frequency: domain.FrequencyDaily, Interval: 1, Count: intp(11)}, time.UTC, 10)
	assert.True(t, apperrors.IsInvalidArgument(err))

	_, err = Occurrences(jan(1, 10), time.Hour, domain.Pattern{Frequency: domain.FrequencyDaily, Interval: 1, Until: timep(jan(31, 10))}, time.UTC, 10)
	assert.True(t, apperrors.IsInvalidArgument(err))

	_, err = Occurrences(jan(5, 10), time.Hour, domain.Pattern{Frequency: domain.FrequencyDaily, Interval: 1, Until: timep(jan(1, 10))}, time.UTC, 0)
	assert.True(t, apperrors.IsInvalidArgument(err))

	_, err = Occurrences(jan(1, 10), 0, domain.Pattern{Frequency: domain.FrequencyDaily, Interval: 1, Count: intp(1)}, time.UTC, 0)
	assert.True(t, apperrors.IsInvalidArgument(err))
}

type fixture struct {
	store    *store.Memory
	dir      *venues.StaticDirectory
	room     *domain.Room
	calc     *availability.Calculator
	expander *Expander
}

func newFixture(t *testing.T, hours ...calendar.DailyWindow) *fixture {
	t.Helper()
	f := &fixture{store: store.NewMemory(), dir: venues.NewStaticDirectory()}
	f.room = f.dir.AddRoom(domain.Room{Name: "Lab", Capacity: 1, Timezone: "UTC"}, hours...)
	clock := domain.NewFixedClock(jan(1, 0))
	f.calc = availability.NewCalculator(f.dir, f.store, 0)
	detector := conflicts.NewService(f.calc, clock, conflicts.DefaultConfig(), nil)
	f.expander = NewExpander(detector, 0)
	return f
}

func (f *fixture) expand(t *testing.T, req Request, onCreated func(*domain.Reservation)) (*Result, error) {
	t.Helper()
	ctx := context.Background()
	plan, err := f.expander.Plan(f.room, req)
	if err != nil {
		return nil, err
	}
	view, err := f.calc.LoadView(ctx, f.room.ID, plan.Span())
	require.NoError(t, err)

	var result *Result
	err = f.store.WithinRoom(ctx, f.room.ID, func(tx store.Tx) error {
		var err error
		result, err = f.expander.Expand(ctx, tx, view, plan, jan(1, 0), onCreated)
		return err
	})
	return result, err
}

func TestExpand_PartialSuccess(t *testing.T) {
	// open Mondays 09-17; the 8th is blocked and the 15th already taken
	f := newFixture(t, calendar.DailyWindow{Weekday: time.Monday, OpenMinute: 9 * 60, CloseMinute: 17 * 60})
	taken := domain.NewReservation(f.room, uuid.New(), calendar.MustNew(jan(15, 10), jan(15, 11)), jan(1, 0))
	require.NoError(t, f.store.WithinRoom(context.Background(), f.room.ID, func(tx store.Tx) error {
		return tx.CreateReservation(context.Background(), taken)
	}))
	f.dir.Block(f.room.ID, calendar.MustNew(jan(8, 9), jan(8, 12)))

	var created int
	user := uuid.New()
	result, err := f.expand(t, Request{
		RoomID:     f.room.ID,
		UserID:     user,
		FirstStart: jan(1, 10),
		Duration:   time.Hour,
		Pattern:    domain.Pattern{Frequency: domain.FrequencyDaily, Interval: 7, Count: intp(4)},
	}, func(*domain.Reservation) { created++ })
	require.NoError(t, err)

	require.Len(t, result.Created, 2)
	assert.Equal(t, jan(1, 10), result.Created[0].StartTime)
	assert.Equal(t, jan(22, 10), result.Created[1].StartTime)
	assert.Equal(t, 2, created)

	require.Len(t, result.Skipped, 2)
	assert.Equal(t, SkipBlocked, result.Skipped[0].Reason)
	assert.Equal(t, jan(8, 10), result.Skipped[0].Interval.Start)
	assert.Equal(t, SkipConflict, result.Skipped[1].Reason)
	assert.Equal(t, []uuid.UUID{taken.ID}, result.Skipped[1].Conflict.ConflictingReservationIDs)

	for _, r := range result.Created {
		require.NotNil(t, r.RecurringGroupID)
		assert.Equal(t, result.Group.ID, *r.RecurringGroupID)
		assert.Equal(t, user, r.UserID)
	}

	group, err := f.store.GetRecurringGroup(context.Background(), result.Group.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UUIDList{result.Created[0].ID, result.Created[1].ID}, group.MemberReservationIDs)
}

func TestExpand_OutsideOperatingHoursIsSkipped(t *testing.T) {
	f := newFixture(t, calendar.DailyWindow{Weekday: time.Monday, OpenMinute: 9 * 60, CloseMinute: 17 * 60})

	result, err := f.expand(t, Request{
		RoomID:     f.room.ID,
		UserID:     uuid.New(),
		FirstStart: jan(1, 10),
		Duration:   time.Hour,
		Pattern:    domain.Pattern{Frequency: domain.FrequencyDaily, Interval: 1, Count: intp(2)},
	}, nil)
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, SkipOutsideOfHours, result.Skipped[0].Reason)
}

func TestExpand_InvalidPatternWritesNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.expand(t, Request{
		RoomID:     f.room.ID,
		UserID:     uuid.New(),
		FirstStart: jan(1, 10),
		Duration:   time.Hour,
		Pattern:    domain.Pattern{Frequency: domain.FrequencyWeekly, Interval: 1},
	}, nil)
	assert.True(t, apperrors.IsInvalidArgument(err))

	list, err := f.store.ListReservationsByRoom(context.Background(), f.room.ID, calendar.MustNew(jan(1, 0), jan(31, 0)))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPlan_Span(t *testing.T) {
	f := newFixture(t)

	plan, err := f.expander.Plan(f.room, Request{
		RoomID:     f.room.ID,
		UserID:     uuid.New(),
		FirstStart: jan(1, 10),
		Duration:   90 * time.Minute,
		Pattern:    domain.Pattern{Frequency: domain.FrequencyWeekly, Interval: 1, Count: intp(3)},
	})
	require.NoError(t, err)
	require.Len(t, plan.Occurrences, 3)
	assert.Equal(t, calendar.MustNew(jan(1, 10), jan(15, 11).Add(30*time.Minute)), plan.Span())
}
