package venues

import (
	"context"
	"fmt"
	"time"

	"roomly/internal/calendar"
	"roomly/internal/domain"
	"roomly/internal/shared/apperrors"
	"roomly/internal/shared/constants"
	"roomly/pkg/cache"
	"roomly/pkg/logger"

	"github.com/google/uuid"
)

// Directory is the read-only room lookup the reservation engine depends on
type Directory interface {
	GetRoom(ctx context.Context, roomID uuid.UUID) (*domain.Room, error)
	GetRoomOperatingHours(ctx context.Context, roomID uuid.UUID) ([]calendar.DailyWindow, error)
	GetBlockedIntervals(ctx context.Context, roomID uuid.UUID, window calendar.Interval) ([]calendar.Interval, error)
}

// Service is the directory plus cache maintenance for the seeder and admin tooling
type Service interface {
	Directory
	InvalidateRoom(ctx context.Context, roomID uuid.UUID) error
}

type service struct {
	repo    Repository
	cache   cache.Service
	timeout time.Duration
	log     *logger.Logger
}

// NewService wraps repo with a read-through cache. A zero timeout disables the
// per-call deadline; cacheService may be nil.
func NewService(repo Repository, cacheService cache.Service, timeout time.Duration, log *logger.Logger) Service {
	if log == nil {
		log = logger.GetDefault()
	}
	return &service{
		repo:    repo,
		cache:   cacheService,
		timeout: timeout,
		log:     log,
	}
}

func (s *service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *service) GetRoom(ctx context.Context, roomID uuid.UUID) (*domain.Room, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	fetch := func() (interface{}, error) {
		return s.repo.GetRoom(ctx, roomID)
	}

	if s.cache == nil {
		room, err := s.repo.GetRoom(ctx, roomID)
		return room, apperrors.FromContext("room directory", err)
	}

	var room domain.Room
	err := s.cache.GetOrSet(ctx, constants.BuildRoomDetailKey(roomID), constants.TTL_ROOM_DETAIL, fetch, &room)
	if err != nil {
		return nil, apperrors.FromContext("room directory", err)
	}
	return &room, nil
}

func (s *service) GetRoomOperatingHours(ctx context.Context, roomID uuid.UUID) ([]calendar.DailyWindow, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var hours []domain.OperatingHours
	var err error
	if s.cache == nil {
		hours, err = s.repo.GetOperatingHours(ctx, roomID)
	} else {
		err = s.cache.GetOrSet(ctx, constants.BuildOperatingHoursKey(roomID), constants.TTL_OPERATING_HOURS,
			func() (interface{}, error) { return s.repo.GetOperatingHours(ctx, roomID) }, &hours)
	}
	if err != nil {
		return nil, apperrors.FromContext("room directory", err)
	}

	windows, err := domain.DailyWindows(hours)
	if err != nil {
		return nil, fmt.Errorf("invalid operating hours: %w", err)
	}
	return windows, nil
}

func (s *service) GetBlockedIntervals(ctx context.Context, roomID uuid.UUID, window calendar.Interval) ([]calendar.Interval, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var slots []domain.BlockedSlot
	var err error
	if s.cache == nil {
		slots, err = s.repo.GetBlockedSlots(ctx, roomID, window)
	} else {
		key := constants.BuildBlockedSlotsKey(roomID, window.Start, window.End)
		err = s.cache.GetOrSet(ctx, key, constants.TTL_BLOCKED_SLOTS,
			func() (interface{}, error) { return s.repo.GetBlockedSlots(ctx, roomID, window) }, &slots)
	}
	if err != nil {
		return nil, apperrors.FromContext("room directory", err)
	}

	out := make([]calendar.Interval, 0, len(slots))
	for _, slot := range slots {
		iv := calendar.Interval{Start: slot.StartTime.UTC(), End: slot.EndTime.UTC()}
		if iv.Valid() {
			out = append(out, iv)
		}
	}
	return calendar.Merge(out), nil
}

// InvalidateRoom drops the cached room and opening hours. Blocked-slot entries
// are keyed by window and left to expire on their short TTL.
func (s *service) InvalidateRoom(ctx context.Context, roomID uuid.UUID) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Delete(ctx, constants.BuildRoomDetailKey(roomID), constants.BuildOperatingHoursKey(roomID)); err != nil {
		s.log.WithError(err).WarnContext(ctx, "Failed to invalidate room cache", "room_id", roomID.String())
		return err
	}
	return nil
}
