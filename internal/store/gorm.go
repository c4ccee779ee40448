package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roomly/internal/calendar"
	"roomly/internal/domain"
	"roomly/internal/shared/apperrors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// exclusionViolation is the PostgreSQL SQLSTATE raised by the
// no-overlap constraint on reservations
const exclusionViolation = "23P01"

// GormStore persists the engine's state in a relational database. Room
// serialization comes from locking the room row for the lifetime of the
// transaction, optionally preceded by a Redis room lock.
type GormStore struct {
	gormReader
	db     *gorm.DB
	locker *RoomLocker
}

// NewGormStore creates a store on db. locker may be nil.
func NewGormStore(db *gorm.DB, locker *RoomLocker) *GormStore {
	return &GormStore{gormReader: gormReader{db: db}, db: db, locker: locker}
}

// Models lists the tables owned by the engine, for migrations
func Models() []interface{} {
	return []interface{}{
		&domain.Reservation{},
		&domain.RecurringGroup{},
		&domain.WaitlistEntry{},
		&domain.ConflictEscalation{},
	}
}

func (s *GormStore) WithinRoom(ctx context.Context, roomID uuid.UUID, fn func(tx Tx) error) error {
	if s.locker != nil {
		release, err := s.locker.Lock(ctx, roomID)
		if err != nil {
			return err
		}
		defer release()
	}

	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		// Lock the room row so concurrent scopes for this room queue here
		var room domain.Room
		err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", roomID).
			Take(&room).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("room", roomID)
			}
			return fmt.Errorf("failed to lock room: %w", err)
		}
		return fn(&gormTx{gormReader: gormReader{db: db}})
	})
	return apperrors.FromContext("persistence", err)
}

type gormReader struct {
	db *gorm.DB
}

func (r gormReader) GetReservation(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	var reservation domain.Reservation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("reservation", id)
		}
		return nil, mapError("failed to get reservation", err)
	}
	utcReservation(&reservation)
	return &reservation, nil
}

func (r gormReader) ListOccupying(ctx context.Context, roomID uuid.UUID, window calendar.Interval, exclude *uuid.UUID) ([]domain.Reservation, error) {
	var reservations []domain.Reservation
	q := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Where("status IN ?", domain.OccupyingStatuses).
		Where("start_time < ? AND end_time > ?", window.End.UTC(), window.Start.UTC())
	if exclude != nil {
		q = q.Where("id <> ?", *exclude)
	}
	if err := q.Order("start_time ASC").Find(&reservations).Error; err != nil {
		return nil, mapError("failed to list occupying reservations", err)
	}
	for i := range reservations {
		utcReservation(&reservations[i])
	}
	return reservations, nil
}

func (r gormReader) ListReservationsByUser(ctx context.Context, userID uuid.UUID, query ListQuery) ([]domain.Reservation, int64, error) {
	query = query.normalized()

	var reservations []domain.Reservation
	var totalCount int64

	baseQuery := r.db.WithContext(ctx).
		Model(&domain.Reservation{}).
		Where("user_id = ?", userID)
	if query.Status != nil {
		baseQuery = baseQuery.Where("status = ?", *query.Status)
	}
	if query.From != nil {
		baseQuery = baseQuery.Where("end_time >= ?", query.From.UTC())
	}
	if query.To != nil {
		baseQuery = baseQuery.Where("start_time <= ?", query.To.UTC())
	}

	if err := baseQuery.Count(&totalCount).Error; err != nil {
		return nil, 0, mapError("failed to count reservations", err)
	}

	err := baseQuery.
		Order("start_time ASC").
		Offset(query.offset()).
		Limit(query.Limit).
		Find(&reservations).Error
	if err != nil {
		return nil, 0, mapError("failed to list reservations", err)
	}
	for i := range reservations {
		utcReservation(&reservations[i])
	}
	return reservations, totalCount, nil
}

func (r gormReader) ListReservationsByRoom(ctx context.Context, roomID uuid.UUID, window calendar.Interval) ([]domain.Reservation, error) {
	var reservations []domain.Reservation
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Where("start_time < ? AND end_time > ?", window.End.UTC(), window.Start.UTC()).
		Order("start_time ASC").
		Find(&reservations).Error
	if err != nil {
		return nil, mapError("failed to list room reservations", err)
	}
	for i := range reservations {
		utcReservation(&reservations[i])
	}
	return reservations, nil
}

func (r gormReader) GetRecurringGroup(ctx context.Context, id uuid.UUID) (*domain.RecurringGroup, error) {
	var group domain.RecurringGroup
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("recurring group", id)
		}
		return nil, mapError("failed to get recurring group", err)
	}
	group.FirstStart = group.FirstStart.UTC()
	return &group, nil
}

func (r gormReader) GetWaitlistEntry(ctx context.Context, id uuid.UUID) (*domain.WaitlistEntry, error) {
	var entry domain.WaitlistEntry
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("waitlist entry", id)
		}
		return nil, mapError("failed to get waitlist entry", err)
	}
	utcEntry(&entry)
	return &entry, nil
}

func (r gormReader) ListWaiting(ctx context.Context, roomID uuid.UUID) ([]domain.WaitlistEntry, error) {
	var entries []domain.WaitlistEntry
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND status = ?", roomID, domain.WaitlistWaiting).
		Order("enqueued_at ASC").
		Order("sequence ASC").
		Find(&entries).Error
	if err != nil {
		return nil, mapError("failed to list waitlist", err)
	}
	for i := range entries {
		utcEntry(&entries[i])
	}
	return entries, nil
}

func (r gormReader) ListStaleWaiting(ctx context.Context, cutoff time.Time, limit int) ([]domain.WaitlistEntry, error) {
	var entries []domain.WaitlistEntry
	q := r.db.WithContext(ctx).
		Where("status = ? AND desired_start <= ?", domain.WaitlistWaiting, cutoff.UTC()).
		Order("enqueued_at ASC").
		Order("sequence ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, mapError("failed to list stale waitlist entries", err)
	}
	for i := range entries {
		utcEntry(&entries[i])
	}
	return entries, nil
}

type gormTx struct {
	gormReader
}

// CreateReservation inserts under a savepoint: an exclusion violation rolls
// back to it and leaves the scope's transaction usable for the next insert
func (tx *gormTx) CreateReservation(ctx context.Context, reservation *domain.Reservation) error {
	reservation.Normalize()
	err := tx.db.WithContext(ctx).Transaction(func(sp *gorm.DB) error {
		return sp.Create(reservation).Error
	})
	if err != nil {
		if isExclusionViolation(err) {
			return apperrors.Conflict(&domain.Conflict{
				RoomID:            reservation.RoomID,
				RequestedInterval: reservation.Interval(),
			}, nil)
		}
		return mapError("failed to create reservation", err)
	}
	return nil
}

func (tx *gormTx) SaveReservation(ctx context.Context, reservation *domain.Reservation) error {
	reservation.Normalize()
	if err := tx.db.WithContext(ctx).Save(reservation).Error; err != nil {
		if isExclusionViolation(err) {
			return apperrors.Conflict(&domain.Conflict{
				RoomID:            reservation.RoomID,
				RequestedInterval: reservation.Interval(),
			}, nil)
		}
		return mapError("failed to update reservation", err)
	}
	return nil
}

func (tx *gormTx) CreateRecurringGroup(ctx context.Context, group *domain.RecurringGroup) error {
	if err := tx.db.WithContext(ctx).Create(group).Error; err != nil {
		return mapError("failed to create recurring group", err)
	}
	return nil
}

func (tx *gormTx) SaveRecurringGroup(ctx context.Context, group *domain.RecurringGroup) error {
	if err := tx.db.WithContext(ctx).Save(group).Error; err != nil {
		return mapError("failed to update recurring group", err)
	}
	return nil
}

func (tx *gormTx) CreateWaitlistEntry(ctx context.Context, entry *domain.WaitlistEntry) error {
	var last int64
	err := tx.db.WithContext(ctx).
		Model(&domain.WaitlistEntry{}).
		Where("room_id = ?", entry.RoomID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&last).Error
	if err != nil {
		return mapError("failed to read waitlist sequence", err)
	}
	entry.Sequence = last + 1

	if err := tx.db.WithContext(ctx).Create(entry).Error; err != nil {
		return mapError("failed to create waitlist entry", err)
	}
	return nil
}

func (tx *gormTx) SaveWaitlistEntry(ctx context.Context, entry *domain.WaitlistEntry) error {
	if err := tx.db.WithContext(ctx).Save(entry).Error; err != nil {
		return mapError("failed to update waitlist entry", err)
	}
	return nil
}

func (tx *gormTx) CreateEscalation(ctx context.Context, escalation *domain.ConflictEscalation) error {
	if err := tx.db.WithContext(ctx).Create(escalation).Error; err != nil {
		return mapError("failed to create conflict escalation", err)
	}
	return nil
}

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == exclusionViolation
}

func mapError(msg string, err error) error {
	return apperrors.FromContext("persistence", fmt.Errorf("%s: %w", msg, err))
}

func utcReservation(r *domain.Reservation) {
	r.Normalize()
}

func utcEntry(e *domain.WaitlistEntry) {
	e.DesiredStart = e.DesiredStart.UTC()
	e.DesiredEnd = e.DesiredEnd.UTC()
	e.EnqueuedAt = e.EnqueuedAt.UTC()
}
