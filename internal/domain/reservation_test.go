package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationStatus_CanTransitionTo(t *testing.T) {
	legal := map[ReservationStatus][]ReservationStatus{
		StatusPending:    {StatusConfirmed, StatusCancelled},
		StatusConfirmed:  {StatusCheckedIn, StatusCancelled, StatusNoShow},
		StatusCheckedIn:  {StatusCheckedOut},
		StatusCheckedOut: {StatusCompleted},
	}
	all := []ReservationStatus{StatusPending, StatusConfirmed, StatusCheckedIn, StatusCheckedOut,
		StatusCompleted, StatusCancelled, StatusNoShow}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, l := range legal[from] {
				if l == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestReservationStatus_IsOccupying(t *testing.T) {
	assert.True(t, StatusPending.IsOccupying())
	assert.True(t, StatusConfirmed.IsOccupying())
	assert.True(t, StatusCheckedIn.IsOccupying())
	assert.False(t, StatusCheckedOut.IsOccupying())
	assert.False(t, StatusCompleted.IsOccupying())
	assert.False(t, StatusCancelled.IsOccupying())
	assert.False(t, StatusNoShow.IsOccupying())
}

func TestReservationStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusNoShow.IsTerminal())
	assert.False(t, StatusCheckedOut.IsTerminal())
}

func TestUUIDList_RoundTrip(t *testing.T) {
	ids := UUIDList{uuid.New(), uuid.New()}
	v, err := ids.Value()
	require.NoError(t, err)

	var back UUIDList
	require.NoError(t, back.Scan(v))
	assert.Equal(t, ids, back)

	require.NoError(t, back.Scan([]byte("[]")))
	assert.Empty(t, back)
	assert.Error(t, back.Scan(42))
}

func TestWaitlistEntry_Before(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	a := &WaitlistEntry{EnqueuedAt: now, Sequence: 1}
	b := &WaitlistEntry{EnqueuedAt: now, Sequence: 2}
	c := &WaitlistEntry{EnqueuedAt: now.Add(time.Second), Sequence: 0}

	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))
	assert.True(t, b.Before(c))
}

func TestOperatingHours_Window(t *testing.T) {
	w, err := OperatingHours{Weekday: time.Tuesday, OpensAt: "08:30", ClosesAt: "17:00"}.Window()
	require.NoError(t, err)
	assert.Equal(t, 510, w.OpenMinute)
	assert.Equal(t, 1020, w.CloseMinute)

	_, err = DailyWindows([]OperatingHours{{OpensAt: "8", ClosesAt: "17:00"}})
	assert.Error(t, err)
}
