package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"roomly/internal/calendar"
	"roomly/internal/domain"
	"roomly/internal/shared/apperrors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// harness builds a fresh Store plus a way to register rooms in it
type harness func(t *testing.T) (Store, func(room *domain.Room))

var base = time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

func hours(from, to int) calendar.Interval {
	return calendar.MustNew(base.Add(time.Duration(from)*time.Hour), base.Add(time.Duration(to)*time.Hour))
}

func newRoom() *domain.Room {
	return &domain.Room{ID: uuid.New(), VenueID: uuid.New(), Name: "Studio A", Capacity: 1, Timezone: "UTC"}
}

func runStoreContract(t *testing.T, newHarness harness) {
	ctx := context.Background()

	t.Run("commit makes writes visible", func(t *testing.T) {
		st, addRoom := newHarness(t)
		room := newRoom()
		addRoom(room)

		res := domain.NewReservation(room, uuid.New(), hours(10, 11), base)
		err := st.WithinRoom(ctx, room.ID, func(tx Tx) error {
			return tx.CreateReservation(ctx, res)
		})
		require.NoError(t, err)

		got, err := st.GetReservation(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, got.Status)
		assert.True(t, got.StartTime.Equal(res.StartTime))
	})

	t.Run("error discards writes", func(t *testing.T) {
		st, addRoom := newHarness(t)
		room := newRoom()
		addRoom(room)

		res := domain.NewReservation(room, uuid.New(), hours(10, 11), base)
		boom := errors.New("boom")
		err := st.WithinRoom(ctx, room.ID, func(tx Tx) error {
			require.NoError(t, tx.CreateReservation(ctx, res))
			_, err := tx.GetReservation(ctx, res.ID)
			require.NoError(t, err, "staged write visible inside scope")
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = st.GetReservation(ctx, res.ID)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("list occupying filters status, overlap and exclusion", func(t *testing.T) {
		st, addRoom := newHarness(t)
		room := newRoom()
		addRoom(room)
		other := newRoom()
		addRoom(other)

		a := domain.NewReservation(room, uuid.New(), hours(9, 10), base)
		b := domain.NewReservation(room, uuid.New(), hours(10, 11), base)
		c := domain.NewReservation(room, uuid.New(), hours(11, 12), base)
		c.Status = domain.StatusCancelled
		d := domain.NewReservation(other, uuid.New(), hours(10, 11), base)

		require.NoError(t, st.WithinRoom(ctx, room.ID, func(tx Tx) error {
			for _, r := range []*domain.Reservation{a, b, c} {
				if err := tx.CreateReservation(ctx, r); err != nil {
					return err
				}
			}
			return nil
		}))
		require.NoError(t, st.WithinRoom(ctx, other.ID, func(tx Tx) error {
			return tx.CreateReservation(ctx, d)
		}))

		got, err := st.ListOccupying(ctx, room.ID, hours(9, 12), nil)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, a.ID, got[0].ID)
		assert.Equal(t, b.ID, got[1].ID)

		got, err = st.ListOccupying(ctx, room.ID, hours(10, 12), &b.ID)
		require.NoError(t, err)
		assert.Empty(t, got, "touching reservation a and excluded b are not returned")
	})

	t.Run("saves keep the caller's timestamps", func(t *testing.T) {
		st, addRoom := newHarness(t)
		room := newRoom()
		addRoom(room)

		res := domain.NewReservation(room, uuid.New(), hours(10, 11), base)
		entry := &domain.WaitlistEntry{
			UserID:       uuid.New(),
			RoomID:       room.ID,
			DesiredStart: base.Add(14 * time.Hour),
			DesiredEnd:   base.Add(15 * time.Hour),
			EnqueuedAt:   base,
			Status:       domain.WaitlistWaiting,
			CreatedAt:    base,
			UpdatedAt:    base,
		}
		saved := base.Add(90 * time.Minute)
		require.NoError(t, st.WithinRoom(ctx, room.ID, func(tx Tx) error {
			if err := tx.CreateReservation(ctx, res); err != nil {
				return err
			}
			if err := tx.CreateWaitlistEntry(ctx, entry); err != nil {
				return err
			}
			res.Status = domain.StatusConfirmed
			res.UpdatedAt = saved
			if err := tx.SaveReservation(ctx, res); err != nil {
				return err
			}
			entry.Status = domain.WaitlistExpired
			entry.UpdatedAt = saved
			return tx.SaveWaitlistEntry(ctx, entry)
		}))

		gotRes, err := st.GetReservation(ctx, res.ID)
		require.NoError(t, err)
		assert.True(t, gotRes.UpdatedAt.Equal(saved), "reservation updated_at %s", gotRes.UpdatedAt)

		gotEntry, err := st.GetWaitlistEntry(ctx, entry.ID)
		require.NoError(t, err)
		assert.True(t, gotEntry.UpdatedAt.Equal(saved), "entry updated_at %s", gotEntry.UpdatedAt)
	})

	t.Run("waitlist sequence and order", func(t *testing.T) {
		st, addRoom := newHarness(t)
		room := newRoom()
		addRoom(room)

		same := base.Add(time.Hour)
		var ids []uuid.UUID
		for i := 0; i < 3; i++ {
			e := &domain.WaitlistEntry{
				UserID:       uuid.New(),
				RoomID:       room.ID,
				DesiredStart: base.Add(14 * time.Hour),
				DesiredEnd:   base.Add(15 * time.Hour),
				EnqueuedAt:   same,
				Status:       domain.WaitlistWaiting,
			}
			require.NoError(t, st.WithinRoom(ctx, room.ID, func(tx Tx) error {
				return tx.CreateWaitlistEntry(ctx, e)
			}))
			assert.Equal(t, int64(i+1), e.Sequence)
			ids = append(ids, e.ID)
		}

		waiting, err := st.ListWaiting(ctx, room.ID)
		require.NoError(t, err)
		require.Len(t, waiting, 3)
		for i, e := range waiting {
			assert.Equal(t, ids[i], e.ID)
		}

		stale, err := st.ListStaleWaiting(ctx, base.Add(14*time.Hour), 2)
		require.NoError(t, err)
		assert.Len(t, stale, 2)

		stale, err = st.ListStaleWaiting(ctx, base.Add(13*time.Hour), 0)
		require.NoError(t, err)
		assert.Empty(t, stale)
	})

	t.Run("recurring group members round trip", func(t *testing.T) {
		st, addRoom := newHarness(t)
		room := newRoom()
		addRoom(room)

		count := 2
		group := &domain.RecurringGroup{
			UserID:     uuid.New(),
			RoomID:     room.ID,
			Pattern:    domain.Pattern{Frequency: domain.FrequencyWeekly, Interval: 1, Count: &count},
			FirstStart: base,
			Duration:   3600,
		}
		members := domain.UUIDList{uuid.New(), uuid.New()}
		require.NoError(t, st.WithinRoom(ctx, room.ID, func(tx Tx) error {
			if err := tx.CreateRecurringGroup(ctx, group); err != nil {
				return err
			}
			group.MemberReservationIDs = members
			return tx.SaveRecurringGroup(ctx, group)
		}))

		got, err := st.GetRecurringGroup(ctx, group.ID)
		require.NoError(t, err)
		assert.Equal(t, members, got.MemberReservationIDs)
		require.NotNil(t, got.Pattern.Count)
		assert.Equal(t, 2, *got.Pattern.Count)
	})

	t.Run("list by user paginates", func(t *testing.T) {
		st, addRoom := newHarness(t)
		room := newRoom()
		addRoom(room)
		user := uuid.New()

		require.NoError(t, st.WithinRoom(ctx, room.ID, func(tx Tx) error {
			for h := 8; h < 13; h++ {
				if err := tx.CreateReservation(ctx, domain.NewReservation(room, user, hours(h, h+1), base)); err != nil {
					return err
				}
			}
			return nil
		}))

		page, total, err := st.ListReservationsByUser(ctx, user, ListQuery{Page: 2, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		require.Len(t, page, 2)
		assert.True(t, page[0].StartTime.Equal(base.Add(10*time.Hour)))
	})
}
