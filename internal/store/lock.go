package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roomly/internal/shared/apperrors"
	"roomly/internal/shared/constants"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotAcquired is returned when the room lock stays taken until the context ends
var ErrLockNotAcquired = errors.New("could not acquire room lock")

// releaseScript deletes the lock only if it still holds our token
const releaseScript = `
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`

// RoomLocker is a Redis SET NX lock keyed by room. It keeps concurrent
// instances from queueing on the same room row inside the database.
type RoomLocker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

func NewRoomLocker(client *redis.Client, ttl time.Duration) *RoomLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RoomLocker{client: client, ttl: ttl, retry: 25 * time.Millisecond}
}

// Lock blocks until the room lock is held or ctx ends, and returns a release func
func (l *RoomLocker) Lock(ctx context.Context, roomID uuid.UUID) (func(), error) {
	key := constants.RoomLockKey(roomID)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, apperrors.FromContext("room lock", ctx.Err())
			}
			return nil, fmt.Errorf("failed to acquire lock for room %s: %w", roomID, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, apperrors.FromContext("room lock", fmt.Errorf("%w %s: %w", ErrLockNotAcquired, roomID, ctx.Err()))
		case <-time.After(l.retry):
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		l.client.Eval(releaseCtx, releaseScript, []string{key}, token)
	}, nil
}
