package conflicts

import (
	"context"
	"testing"
	"time"

	"roomly/internal/availability"
	"roomly/internal/calendar"
	"roomly/internal/domain"
	"roomly/internal/shared/apperrors"
	"roomly/internal/store"
	"roomly/internal/venues"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func span(h1, m1, h2, m2 int) calendar.Interval {
	return calendar.MustNew(
		day.Add(time.Duration(h1)*time.Hour+time.Duration(m1)*time.Minute),
		day.Add(time.Duration(h2)*time.Hour+time.Duration(m2)*time.Minute),
	)
}

type fixture struct {
	store *store.Memory
	dir   *venues.StaticDirectory
	room  *domain.Room
	clock *domain.FixedClock
	svc   Service
}

func newFixture(t *testing.T, config Config, hours ...calendar.DailyWindow) *fixture {
	t.Helper()
	f := &fixture{
		store: store.NewMemory(),
		dir:   venues.NewStaticDirectory(),
		clock: domain.NewFixedClock(day.Add(8 * time.Hour)),
	}
	f.room = f.dir.AddRoom(domain.Room{Name: "Hall", Capacity: 1, Timezone: "UTC"}, hours...)
	f.svc = NewService(availability.NewCalculator(f.dir, f.store, 0), f.clock, config, nil)
	return f
}

func (f *fixture) reserve(t *testing.T, iv calendar.Interval, status domain.ReservationStatus) *domain.Reservation {
	t.Helper()
	r := domain.NewReservation(f.room, uuid.New(), iv, f.clock.Now())
	r.Status = status
	require.NoError(t, f.store.WithinRoom(context.Background(), f.room.ID, func(tx store.Tx) error {
		return tx.CreateReservation(context.Background(), r)
	}))
	return r
}

func (f *fixture) view(t *testing.T, window calendar.Interval) *availability.RoomView {
	t.Helper()
	view, err := availability.NewCalculator(f.dir, f.store, 0).LoadView(context.Background(), f.room.ID, window)
	require.NoError(t, err)
	return view
}

func (f *fixture) admit(iv calendar.Interval, view *availability.RoomView) error {
	return f.svc.Admit(context.Background(), f.store, view, iv, nil)
}

func (f *fixture) resolve(t *testing.T, conflict *domain.Conflict, strategy domain.Strategy) (*domain.Resolution, error) {
	t.Helper()
	view := f.view(t, f.svc.SearchWindow(conflict.RequestedInterval))
	var resolution *domain.Resolution
	err := f.store.WithinRoom(context.Background(), f.room.ID, func(tx store.Tx) error {
		var err error
		resolution, err = f.svc.Resolve(context.Background(), tx, view, conflict, strategy, uuid.New())
		return err
	})
	return resolution, err
}

func TestDetect(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	a := f.reserve(t, span(10, 0, 11, 0), domain.StatusConfirmed)
	b := f.reserve(t, span(11, 0, 12, 0), domain.StatusCheckedIn)
	f.reserve(t, span(12, 0, 13, 0), domain.StatusCancelled)

	tests := []struct {
		name      string
		candidate calendar.Interval
		want      []uuid.UUID
	}{
		{"before", span(9, 0, 10, 0), nil},
		{"touching end", span(12, 0, 12, 30), nil},
		{"inside one", span(10, 15, 10, 45), []uuid.UUID{a.ID}},
		{"spanning two", span(10, 30, 11, 30), []uuid.UUID{a.ID, b.ID}},
		{"cancelled does not count", span(12, 0, 13, 0), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := f.svc.Detect(ctx, f.store, f.room.ID, tt.candidate, nil)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, c)
				return
			}
			require.NotNil(t, c)
			assert.ElementsMatch(t, tt.want, c.ConflictingReservationIDs)
			assert.Equal(t, tt.candidate, c.RequestedInterval)
		})
	}

	c, err := f.svc.Detect(ctx, f.store, f.room.ID, span(10, 0, 11, 0), &a.ID)
	require.NoError(t, err)
	assert.Nil(t, c, "excluded reservation must not conflict with itself")

	_, err = f.svc.Detect(ctx, f.store, f.room.ID, calendar.Interval{Start: day, End: day}, nil)
	assert.True(t, apperrors.IsInvalidArgument(err))
}

func TestAdmit(t *testing.T) {
	f := newFixture(t, DefaultConfig(), calendar.DailyWindow{Weekday: time.Monday, OpenMinute: 9 * 60, CloseMinute: 17 * 60})
	f.reserve(t, span(10, 0, 11, 0), domain.StatusPending)
	f.dir.Block(f.room.ID, span(13, 0, 14, 0))
	view := f.view(t, span(0, 0, 23, 0))

	assert.NoError(t, f.admit(span(11, 0, 12, 0), view))

	err := f.admit(span(8, 0, 9, 30), view)
	assert.True(t, apperrors.IsInvalidArgument(err))

	err = f.admit(span(10, 30, 11, 30), view)
	c, ok := apperrors.AsConflict(err)
	require.True(t, ok)
	assert.Nil(t, c.Resolution)
	assert.Len(t, c.Conflict.ConflictingReservationIDs, 1)

	err = f.admit(span(13, 30, 14, 30), view)
	c, ok = apperrors.AsConflict(err)
	require.True(t, ok)
	assert.Equal(t, []calendar.Interval{span(13, 0, 14, 0)}, c.Conflict.BlockedIntervals)

	err = f.admit(span(22, 0, 23, 30), view)
	assert.ErrorIs(t, err, availability.ErrOutsideView)
}

func TestSearchWindow(t *testing.T) {
	f := newFixture(t, Config{AlternativeHorizon: 2 * time.Hour})
	assert.Equal(t, span(8, 0, 13, 0), f.svc.SearchWindow(span(10, 0, 11, 0)))
	// never narrower than the request itself on either side
	assert.Equal(t, span(6, 0, 15, 0), f.svc.SearchWindow(span(9, 0, 12, 0)))
}

func TestResolve_Reject(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	r := f.reserve(t, span(10, 0, 11, 0), domain.StatusConfirmed)
	conflict := &domain.Conflict{RoomID: f.room.ID, RequestedInterval: span(10, 0, 11, 0), ConflictingReservationIDs: []uuid.UUID{r.ID}}

	resolution, err := f.resolve(t, conflict, domain.StrategyReject)
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyReject, resolution.Strategy)
	assert.Empty(t, resolution.Alternatives)
	assert.Nil(t, resolution.EscalationID)
	assert.Empty(t, f.store.Escalations(f.room.ID))

	_, err = f.resolve(t, conflict, "ignore")
	assert.True(t, apperrors.IsInvalidArgument(err))
}

func TestResolve_SuggestAlternatives(t *testing.T) {
	f := newFixture(t, Config{SlotStep: 30 * time.Minute, AlternativeHorizon: 4 * time.Hour, MaxAlternatives: 3})
	f.reserve(t, span(9, 0, 10, 0), domain.StatusConfirmed)
	r := f.reserve(t, span(10, 0, 12, 0), domain.StatusConfirmed)
	f.reserve(t, span(13, 0, 14, 0), domain.StatusConfirmed)

	requested := span(11, 0, 12, 0)
	resolution, err := f.resolve(t, &domain.Conflict{RoomID: f.room.ID, RequestedInterval: requested, ConflictingReservationIDs: []uuid.UUID{r.ID}}, domain.StrategySuggestAlternatives)
	require.NoError(t, err)

	// 12:00 is one hour away; 08:00 and 14:00 are three hours away and tie, earlier first
	assert.Equal(t, []calendar.Interval{
		span(12, 0, 13, 0),
		span(8, 0, 9, 0),
		span(14, 0, 15, 0),
	}, resolution.Alternatives)
	assert.Empty(t, f.store.Escalations(f.room.ID))
}

func TestResolve_SuggestAlternativesNeverInThePast(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.clock.Set(day.Add(10*time.Hour + 5*time.Minute))
	r := f.reserve(t, span(10, 0, 11, 0), domain.StatusCheckedIn)

	resolution, err := f.resolve(t, &domain.Conflict{RoomID: f.room.ID, RequestedInterval: span(10, 0, 11, 0), ConflictingReservationIDs: []uuid.UUID{r.ID}}, domain.StrategySuggestAlternatives)
	require.NoError(t, err)
	require.NotEmpty(t, resolution.Alternatives)
	for _, alt := range resolution.Alternatives {
		assert.False(t, alt.Start.Before(f.clock.Now()), "%s starts in the past", alt)
		assert.Equal(t, time.Hour, alt.Duration())
	}
	assert.Equal(t, span(11, 0, 12, 0), resolution.Alternatives[0])
}

func TestResolve_NotifyAdmin(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	r := f.reserve(t, span(10, 0, 11, 0), domain.StatusConfirmed)

	resolution, err := f.resolve(t, &domain.Conflict{RoomID: f.room.ID, RequestedInterval: span(10, 0, 11, 0), ConflictingReservationIDs: []uuid.UUID{r.ID}}, domain.StrategyNotifyAdmin)
	require.NoError(t, err)
	require.NotNil(t, resolution.EscalationID)

	escalations := f.store.Escalations(f.room.ID)
	require.Len(t, escalations, 1)
	assert.Equal(t, *resolution.EscalationID, escalations[0].ID)
	assert.Equal(t, domain.EscalationPending, escalations[0].Status)
	assert.Equal(t, span(10, 0, 11, 0).Start, escalations[0].RequestedStart)
}
