package constants

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Redis key layout for the reservation engine
// Pattern: roomly:{module}:{identifier}:{params?}

const (
	CACHE_PREFIX = "roomly"
)

// Directory data changes rarely; blocked slots change more often than hours.
const (
	TTL_ROOM_DETAIL     = 1 * time.Hour
	TTL_OPERATING_HOURS = 30 * time.Minute
	TTL_BLOCKED_SLOTS   = 1 * time.Minute
)

const (
	CACHE_KEY_ROOM_DETAIL     = CACHE_PREFIX + ":rooms:detail:"  // + room-id
	CACHE_KEY_OPERATING_HOURS = CACHE_PREFIX + ":rooms:hours:"   // + room-id
	CACHE_KEY_BLOCKED_SLOTS   = CACHE_PREFIX + ":rooms:blocked:" // + room-id:start:end

	LOCK_KEY_ROOM       = CACHE_PREFIX + ":lock:room:"     // + room-id
	RATE_LIMIT_KEY_BASE = CACHE_PREFIX + ":ratelimit:"     // + ip:type
)

func BuildRoomDetailKey(roomID uuid.UUID) string {
	return CACHE_KEY_ROOM_DETAIL + roomID.String()
}

func BuildOperatingHoursKey(roomID uuid.UUID) string {
	return CACHE_KEY_OPERATING_HOURS + roomID.String()
}

func BuildBlockedSlotsKey(roomID uuid.UUID, start, end time.Time) string {
	return fmt.Sprintf("%s%s:%d:%d", CACHE_KEY_BLOCKED_SLOTS, roomID, start.Unix(), end.Unix())
}

func RoomLockKey(roomID uuid.UUID) string {
	return LOCK_KEY_ROOM + roomID.String()
}

func BuildRateLimitKey(clientIP, limitType string) string {
	return RATE_LIMIT_KEY_BASE + clientIP + ":" + limitType
}
