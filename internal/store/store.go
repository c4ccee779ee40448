package store

import (
	"context"
	"time"

	"roomly/internal/calendar"
	"roomly/internal/domain"

	"github.com/google/uuid"
)

// Reader is the read side of persistence (interface to avoid import cycles
// between the engine packages and the concrete stores)
type Reader interface {
	GetReservation(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	// ListOccupying returns capacity-occupying reservations of a room that overlap window,
	// ordered by start time. exclude, when set, is left out of the result.
	ListOccupying(ctx context.Context, roomID uuid.UUID, window calendar.Interval, exclude *uuid.UUID) ([]domain.Reservation, error)
	ListReservationsByUser(ctx context.Context, userID uuid.UUID, query ListQuery) ([]domain.Reservation, int64, error)
	ListReservationsByRoom(ctx context.Context, roomID uuid.UUID, window calendar.Interval) ([]domain.Reservation, error)

	GetRecurringGroup(ctx context.Context, id uuid.UUID) (*domain.RecurringGroup, error)

	GetWaitlistEntry(ctx context.Context, id uuid.UUID) (*domain.WaitlistEntry, error)
	// ListWaiting returns waiting entries of a room in promotion order
	ListWaiting(ctx context.Context, roomID uuid.UUID) ([]domain.WaitlistEntry, error)
	// ListStaleWaiting returns waiting entries, across rooms, whose desired start is at or before cutoff
	ListStaleWaiting(ctx context.Context, cutoff time.Time, limit int) ([]domain.WaitlistEntry, error)
}

// Tx is a serialized write scope for one room
type Tx interface {
	Reader

	CreateReservation(ctx context.Context, reservation *domain.Reservation) error
	SaveReservation(ctx context.Context, reservation *domain.Reservation) error

	CreateRecurringGroup(ctx context.Context, group *domain.RecurringGroup) error
	SaveRecurringGroup(ctx context.Context, group *domain.RecurringGroup) error

	// CreateWaitlistEntry assigns the next per-room Sequence before inserting
	CreateWaitlistEntry(ctx context.Context, entry *domain.WaitlistEntry) error
	SaveWaitlistEntry(ctx context.Context, entry *domain.WaitlistEntry) error

	CreateEscalation(ctx context.Context, escalation *domain.ConflictEscalation) error
}

// Store provides reads plus per-room serialized write scopes.
//
// WithinRoom runs fn with exclusive access to roomID's reservations and waitlist:
// no other WithinRoom call for the same room observes or writes state until fn
// returns. Writes made through tx become visible only if fn returns nil; any
// error, including a cancelled context, discards them.
type Store interface {
	Reader
	WithinRoom(ctx context.Context, roomID uuid.UUID, fn func(tx Tx) error) error
}

// ListQuery filters and paginates reservation listings
type ListQuery struct {
	Status *domain.ReservationStatus
	From   *time.Time
	To     *time.Time
	Page   int
	Limit  int
}

func (q ListQuery) normalized() ListQuery {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return q
}

func (q ListQuery) offset() int {
	return (q.Page - 1) * q.Limit
}
