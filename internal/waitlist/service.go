package waitlist

import (
	"context"
	"fmt"
	"time"

	"roomly/internal/availability"
	"roomly/internal/calendar"
	"roomly/internal/conflicts"
	"roomly/internal/domain"
	"roomly/internal/notifications"
	"roomly/internal/shared/apperrors"
	"roomly/internal/store"
	"roomly/internal/venues"
	"roomly/pkg/logger"

	"github.com/google/uuid"
)

// Promotion pairs a promoted entry with the reservation made for it
type Promotion struct {
	Entry       domain.WaitlistEntry
	Reservation domain.Reservation
}

// Service manages per-room waitlists. Entries are promoted strictly in
// enqueue order; the engine never expires an entry on its own.
type Service interface {
	Enqueue(ctx context.Context, userID, roomID uuid.UUID, desired calendar.Interval) (*domain.WaitlistEntry, error)

	// OnCapacityFreed promotes waiting entries whose desired interval lies
	// within freed and is still bookable. It runs inside the caller's write
	// scope against a view loaded before the scope, which must cover freed,
	// and queues one waitlist_available notification per promotion.
	OnCapacityFreed(ctx context.Context, tx store.Tx, view *availability.RoomView, freed calendar.Interval, outbox *notifications.Outbox) ([]Promotion, error)

	Remove(ctx context.Context, userID, entryID uuid.UUID) error
	Expire(ctx context.Context, entryID uuid.UUID) (*domain.WaitlistEntry, error)
	// ExpireStale expires up to limit waiting entries whose desired start has passed
	ExpireStale(ctx context.Context, limit int) (int, error)

	Get(ctx context.Context, entryID uuid.UUID) (*EntryResponse, error)
	ListForRoom(ctx context.Context, roomID uuid.UUID) ([]EntryResponse, error)
}

type service struct {
	store     store.Store
	directory venues.Directory
	detector  conflicts.Service
	clock     domain.Clock
	log       *logger.Logger

	persistenceTimeout time.Duration
}

// NewService builds the manager. persistenceTimeout bounds each store call
// made outside a caller's scope; zero disables it.
func NewService(st store.Store, directory venues.Directory, detector conflicts.Service, clock domain.Clock, persistenceTimeout time.Duration, log *logger.Logger) Service {
	if clock == nil {
		clock = domain.SystemClock()
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &service{
		store:              st,
		directory:          directory,
		detector:           detector,
		clock:              clock,
		log:                log,
		persistenceTimeout: persistenceTimeout,
	}
}

func (s *service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.persistenceTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.persistenceTimeout)
}

func (s *service) Enqueue(ctx context.Context, userID, roomID uuid.UUID, desired calendar.Interval) (*domain.WaitlistEntry, error) {
	desired, err := calendar.New(desired.Start, desired.End)
	if err != nil {
		return nil, apperrors.InvalidArgument("desired_interval", "end must be after start")
	}
	if _, err := s.directory.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.clock.Now()
	entry := &domain.WaitlistEntry{
		ID:           uuid.New(),
		UserID:       userID,
		RoomID:       roomID,
		DesiredStart: desired.Start,
		DesiredEnd:   desired.End,
		EnqueuedAt:   now,
		Status:       domain.WaitlistWaiting,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.store.WithinRoom(ctx, roomID, func(tx store.Tx) error {
		return tx.CreateWaitlistEntry(ctx, entry)
	})
	if err != nil {
		return nil, apperrors.FromContext("persistence", err)
	}

	s.log.InfoContext(ctx, "Waitlist entry created",
		"entry_id", entry.ID.String(),
		"room_id", roomID.String(),
		"user_id", userID.String(),
		"sequence", entry.Sequence,
	)
	return entry, nil
}

func (s *service) OnCapacityFreed(ctx context.Context, tx store.Tx, view *availability.RoomView, freed calendar.Interval, outbox *notifications.Outbox) ([]Promotion, error) {
	if !freed.Valid() {
		return nil, nil
	}
	if !view.Covers(freed) {
		return nil, fmt.Errorf("%w: freed %s not in %s", availability.ErrOutsideView, freed, view.Window)
	}
	roomID := view.Room.ID

	var promotions []Promotion
	for {
		promotion, err := s.promoteNext(ctx, tx, view, freed)
		if err != nil {
			return nil, err
		}
		if promotion == nil {
			return promotions, nil
		}

		promotions = append(promotions, *promotion)
		outbox.Add(notifications.EventWaitlistAvailable, promotion.Reservation.ID, s.clock.Now())
		s.log.LogWaitlistPromoted(ctx, promotion.Entry.ID.String(), promotion.Reservation.ID.String(), roomID.String())
	}
}

// promoteNext promotes the first waiting entry that fits, or returns nil
func (s *service) promoteNext(ctx context.Context, tx store.Tx, view *availability.RoomView, freed calendar.Interval) (*Promotion, error) {
	entries, err := tx.ListWaiting(ctx, view.Room.ID)
	if err != nil {
		return nil, apperrors.FromContext("persistence", fmt.Errorf("failed to list waitlist: %w", err))
	}

	for i := range entries {
		entry := entries[i]
		desired := entry.Desired()
		if !freed.Contains(desired) {
			continue
		}

		err := s.detector.Admit(ctx, tx, view, desired, nil)
		if apperrors.IsInvalidArgument(err) {
			continue
		}
		if _, taken := apperrors.AsConflict(err); taken {
			continue
		}
		if err != nil {
			return nil, err
		}

		now := s.clock.Now()
		reservation := domain.NewReservation(view.Room, entry.UserID, desired, now)
		reservation.WaitlistEntryID = &entry.ID
		if err := tx.CreateReservation(ctx, reservation); err != nil {
			return nil, apperrors.FromContext("persistence", fmt.Errorf("failed to create promoted reservation: %w", err))
		}

		entry.Status = domain.WaitlistPromoted
		entry.ReservationID = &reservation.ID
		entry.UpdatedAt = now
		if err := tx.SaveWaitlistEntry(ctx, &entry); err != nil {
			return nil, apperrors.FromContext("persistence", fmt.Errorf("failed to update waitlist entry: %w", err))
		}
		return &Promotion{Entry: entry, Reservation: *reservation}, nil
	}
	return nil, nil
}

func (s *service) Remove(ctx context.Context, userID, entryID uuid.UUID) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	entry, err := s.store.GetWaitlistEntry(ctx, entryID)
	if err != nil {
		return apperrors.FromContext("persistence", err)
	}
	if entry.UserID != userID {
		return apperrors.NotFound("waitlist entry", entryID)
	}

	err = s.store.WithinRoom(ctx, entry.RoomID, func(tx store.Tx) error {
		current, err := tx.GetWaitlistEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if current.Status != domain.WaitlistWaiting {
			return apperrors.InvalidTransition(current.Status, "remove waitlist entry", "only waiting entries can be removed")
		}
		current.Status = domain.WaitlistRemoved
		current.UpdatedAt = s.clock.Now()
		return tx.SaveWaitlistEntry(ctx, current)
	})
	return apperrors.FromContext("persistence", err)
}

func (s *service) Expire(ctx context.Context, entryID uuid.UUID) (*domain.WaitlistEntry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	entry, err := s.store.GetWaitlistEntry(ctx, entryID)
	if err != nil {
		return nil, apperrors.FromContext("persistence", err)
	}

	var expired *domain.WaitlistEntry
	err = s.store.WithinRoom(ctx, entry.RoomID, func(tx store.Tx) error {
		current, err := tx.GetWaitlistEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if current.Status != domain.WaitlistWaiting {
			return apperrors.InvalidTransition(current.Status, "expire waitlist entry", "only waiting entries can expire")
		}
		current.Status = domain.WaitlistExpired
		current.UpdatedAt = s.clock.Now()
		if err := tx.SaveWaitlistEntry(ctx, current); err != nil {
			return err
		}
		expired = current
		return nil
	})
	if err != nil {
		return nil, apperrors.FromContext("persistence", err)
	}
	return expired, nil
}

func (s *service) ExpireStale(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	now := s.clock.Now()

	listCtx, cancel := s.withTimeout(ctx)
	stale, err := s.store.ListStaleWaiting(listCtx, now, limit)
	cancel()
	if err != nil {
		return 0, apperrors.FromContext("persistence", fmt.Errorf("failed to list stale waitlist entries: %w", err))
	}

	expired := 0
	for _, entry := range stale {
		if _, err := s.Expire(ctx, entry.ID); err != nil {
			// promoted or removed since the listing
			if apperrors.IsInvalidTransition(err) {
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (s *service) Get(ctx context.Context, entryID uuid.UUID) (*EntryResponse, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	entry, err := s.store.GetWaitlistEntry(ctx, entryID)
	if err != nil {
		return nil, apperrors.FromContext("persistence", err)
	}

	resp := toEntryResponse(*entry, 0)
	if entry.Status == domain.WaitlistWaiting {
		waiting, err := s.store.ListWaiting(ctx, entry.RoomID)
		if err != nil {
			return nil, apperrors.FromContext("persistence", err)
		}
		for i := range waiting {
			if waiting[i].ID == entry.ID {
				resp.Position = i + 1
				break
			}
		}
	}
	return &resp, nil
}

func (s *service) ListForRoom(ctx context.Context, roomID uuid.UUID) ([]EntryResponse, error) {
	if _, err := s.directory.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	waiting, err := s.store.ListWaiting(ctx, roomID)
	if err != nil {
		return nil, apperrors.FromContext("persistence", err)
	}
	out := make([]EntryResponse, 0, len(waiting))
	for i, entry := range waiting {
		out = append(out, toEntryResponse(entry, i+1))
	}
	return out, nil
}
