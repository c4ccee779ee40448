package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"roomly/internal/domain"
	"roomly/internal/shared/apperrors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) (Store, func(*domain.Room)) {
		return NewMemory(), func(*domain.Room) {}
	})
}

func TestMemory_WithinRoomSerializesSameRoom(t *testing.T) {
	st := NewMemory()
	roomID := uuid.New()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = st.WithinRoom(context.Background(), roomID, func(tx Tx) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestMemory_DifferentRoomsDoNotBlock(t *testing.T) {
	st := NewMemory()
	roomA, roomB := uuid.New(), uuid.New()

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = st.WithinRoom(context.Background(), roomA, func(tx Tx) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	done := make(chan error, 1)
	go func() {
		done <- st.WithinRoom(context.Background(), roomB, func(tx Tx) error { return nil })
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scope for another room was blocked")
	}
	close(release)
}

func TestMemory_WaitingForBusyRoomHonorsContext(t *testing.T) {
	st := NewMemory()
	roomID := uuid.New()

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = st.WithinRoom(context.Background(), roomID, func(tx Tx) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := st.WithinRoom(ctx, roomID, func(tx Tx) error {
		t.Fatal("scope must not run")
		return nil
	})
	assert.True(t, apperrors.IsTimeout(err))
}

func TestMemory_CancelledBeforeCommitRollsBack(t *testing.T) {
	st := NewMemory()
	room := newRoom()
	ctx, cancel := context.WithCancel(context.Background())

	res := domain.NewReservation(room, uuid.New(), hours(10, 11), base)
	err := st.WithinRoom(ctx, room.ID, func(tx Tx) error {
		if err := tx.CreateReservation(context.Background(), res); err != nil {
			return err
		}
		cancel()
		return nil
	})
	assert.True(t, apperrors.IsTimeout(err))

	_, err = st.GetReservation(context.Background(), res.ID)
	assert.True(t, apperrors.IsNotFound(err))
}
