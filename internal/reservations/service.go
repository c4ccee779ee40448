package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roomly/internal/availability"
	"roomly/internal/calendar"
	"roomly/internal/conflicts"
	"roomly/internal/domain"
	"roomly/internal/notifications"
	"roomly/internal/recurrence"
	"roomly/internal/shared/apperrors"
	"roomly/internal/store"
	"roomly/internal/venues"
	"roomly/internal/waitlist"
	"roomly/pkg/logger"

	"github.com/google/uuid"
)

// Config holds lifecycle policy and collaborator timeouts
type Config struct {
	CheckInGrace    time.Duration
	NoShowGrace     time.Duration
	ReminderLead    time.Duration
	DefaultStrategy domain.Strategy
	MaxOccurrences  int

	PersistenceTimeout  time.Duration
	NotificationTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		CheckInGrace:        15 * time.Minute,
		ReminderLead:        time.Hour,
		DefaultStrategy:     domain.StrategySuggestAlternatives,
		MaxOccurrences:      recurrence.DefaultMaxOccurrences,
		PersistenceTimeout:  5 * time.Second,
		NotificationTimeout: 2 * time.Second,
	}
}

// CreateInput is a one-off booking request. Strategy picks the conflict
// resolution; empty means the configured default.
type CreateInput struct {
	RoomID   uuid.UUID
	UserID   uuid.UUID
	Interval calendar.Interval
	Strategy domain.Strategy
}

// Service is the reservation lifecycle
type Service interface {
	Create(ctx context.Context, in CreateInput) (*domain.Reservation, error)
	CreateRecurring(ctx context.Context, req recurrence.Request) (*recurrence.Result, error)

	Confirm(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*domain.Reservation, error)
	CheckIn(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	CheckOut(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	Complete(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	MarkNoShow(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	Extend(ctx context.Context, id uuid.UUID, additional time.Duration) (*domain.Reservation, error)

	Get(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	ListByUser(ctx context.Context, userID uuid.UUID, query store.ListQuery) ([]domain.Reservation, int64, error)
	ListByRoom(ctx context.Context, roomID uuid.UUID, window calendar.Interval) ([]domain.Reservation, error)
}

type service struct {
	store     store.Store
	directory venues.Directory
	detector  conflicts.Service
	expander  *recurrence.Expander
	waitlist  waitlist.Service
	scheduler notifications.Scheduler
	clock     domain.Clock
	config    Config
	log       *logger.Logger
}

func NewService(
	st store.Store,
	directory venues.Directory,
	detector conflicts.Service,
	waitlistService waitlist.Service,
	scheduler notifications.Scheduler,
	clock domain.Clock,
	config Config,
	log *logger.Logger,
) Service {
	if clock == nil {
		clock = domain.SystemClock()
	}
	if log == nil {
		log = logger.GetDefault()
	}
	if !config.DefaultStrategy.IsValid() {
		config.DefaultStrategy = domain.StrategySuggestAlternatives
	}
	return &service{
		store:     st,
		directory: directory,
		detector:  detector,
		expander:  recurrence.NewExpander(detector, config.MaxOccurrences),
		waitlist:  waitlistService,
		scheduler: scheduler,
		clock:     clock,
		config:    config,
		log:       log,
	}
}

func (s *service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.PersistenceTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.PersistenceTimeout)
}

// reminderAt is ReminderLead before start, or now if that has already passed
func (s *service) reminderAt(r *domain.Reservation, now time.Time) time.Time {
	at := r.StartTime.Add(-s.config.ReminderLead)
	if at.Before(now) {
		return now
	}
	return at
}

// notify flushes outbox once its scope has committed. A failure is returned
// as a DependencyTimeoutError; the write it describes stays committed.
func (s *service) notify(ctx context.Context, outbox *notifications.Outbox) error {
	if outbox.Len() == 0 {
		return nil
	}
	err := outbox.Flush(ctx, s.scheduler, s.config.NotificationTimeout)
	if err == nil {
		return nil
	}
	s.log.WithError(err).WarnContext(ctx, "Notification scheduling failed after commit", "pending", outbox.Len())
	if apperrors.IsTimeout(err) {
		return err
	}
	return &apperrors.DependencyTimeoutError{Dependency: "notification scheduler", Err: err}
}

// Create books in.Interval. When the scheduler fails after the reservation
// has committed, the reservation is returned together with the error.
func (s *service) Create(ctx context.Context, in CreateInput) (*domain.Reservation, error) {
	interval, err := calendar.New(in.Interval.Start, in.Interval.End)
	if err != nil {
		return nil, apperrors.InvalidArgument("interval", "end must be after start")
	}
	strategy := in.Strategy
	if strategy == "" {
		strategy = s.config.DefaultStrategy
	}
	if !strategy.IsValid() {
		return nil, apperrors.InvalidArgument("strategy", "unknown strategy %q", strategy)
	}

	view, err := s.detector.LoadView(ctx, in.RoomID, s.detector.SearchWindow(interval))
	if err != nil {
		return nil, err
	}
	room := view.Room

	writeCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	var created *domain.Reservation
	var escalated error
	outbox := &notifications.Outbox{}
	err = s.store.WithinRoom(writeCtx, room.ID, func(tx store.Tx) error {
		now := s.clock.Now()

		if err := s.detector.Admit(writeCtx, tx, view, interval, nil); err != nil {
			c, ok := apperrors.AsConflict(err)
			if !ok {
				return err
			}
			resolution, err := s.detector.Resolve(writeCtx, tx, view, c.Conflict, strategy, in.UserID)
			if err != nil {
				return err
			}
			if resolution.EscalationID == nil {
				return apperrors.Conflict(c.Conflict, resolution)
			}
			// the escalation record commits; the caller still gets the conflict
			outbox.Add(notifications.EventConflictEscalated, *resolution.EscalationID, now)
			escalated = apperrors.Conflict(c.Conflict, resolution)
			return nil
		}

		reservation := domain.NewReservation(room, in.UserID, interval, now)
		if err := tx.CreateReservation(writeCtx, reservation); err != nil {
			return fmt.Errorf("failed to create reservation: %w", err)
		}
		outbox.Add(notifications.EventReminder, reservation.ID, s.reminderAt(reservation, now))
		created = reservation
		return nil
	})
	if err != nil {
		return nil, apperrors.FromContext("persistence", err)
	}
	if escalated != nil {
		if err := s.notify(ctx, outbox); err != nil {
			return nil, errors.Join(escalated, err)
		}
		return nil, escalated
	}

	s.log.LogReservationCreated(ctx, created.ID.String(), created.RoomID.String(), created.UserID.String())
	if err := s.notify(ctx, outbox); err != nil {
		return created, err
	}
	return created, nil
}

func (s *service) CreateRecurring(ctx context.Context, req recurrence.Request) (*recurrence.Result, error) {
	if err := recurrence.ValidatePattern(req.Pattern); err != nil {
		return nil, err
	}
	if req.Duration <= 0 {
		return nil, apperrors.InvalidArgument("duration", "must be positive")
	}

	room, err := s.directory.GetRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	plan, err := s.expander.Plan(room, req)
	if err != nil {
		return nil, err
	}
	view, err := s.detector.LoadView(ctx, room.ID, plan.Span())
	if err != nil {
		return nil, err
	}

	writeCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	var result *recurrence.Result
	outbox := &notifications.Outbox{}
	err = s.store.WithinRoom(writeCtx, room.ID, func(tx store.Tx) error {
		now := s.clock.Now()
		res, err := s.expander.Expand(writeCtx, tx, view, plan, now, func(r *domain.Reservation) {
			outbox.Add(notifications.EventReminder, r.ID, s.reminderAt(r, now))
		})
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, apperrors.FromContext("persistence", err)
	}

	s.log.InfoContext(ctx, "Recurring reservation expanded",
		"group_id", result.Group.ID.String(),
		"room_id", room.ID.String(),
		"created", len(result.Created),
		"skipped", len(result.Skipped),
	)
	if err := s.notify(ctx, outbox); err != nil {
		return result, err
	}
	return result, nil
}

// errStaleView means the reservation changed between loading its room view
// and locking the room
var errStaleView = errors.New("reservation no longer inside its loaded view")

// maxViewAttempts bounds transition retries on errStaleView
const maxViewAttempts = 3

// step mutates r for one lifecycle operation and queues its notification.
// view is nil when the reservation does not occupy the room.
type step func(ctx context.Context, tx store.Tx, view *availability.RoomView, r *domain.Reservation, now time.Time, outbox *notifications.Outbox) error

// transition applies op to reservation id inside its room's write scope.
// extra is how far op may push the end time. When the reservation stops
// occupying the room, the waitlist is offered the remaining part of its
// interval in the same scope. Notifications go out after commit.
func (s *service) transition(ctx context.Context, id uuid.UUID, op string, extra time.Duration, apply step) (*domain.Reservation, error) {
	writeCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	for attempt := 1; ; attempt++ {
		updated, from, outbox, err := s.transitionOnce(writeCtx, id, extra, apply)
		if errors.Is(err, errStaleView) && attempt < maxViewAttempts {
			continue
		}
		if err != nil {
			return nil, apperrors.FromContext("persistence", err)
		}

		if from != updated.Status {
			s.log.LogReservationTransition(ctx, id.String(), string(from), string(updated.Status))
		} else {
			s.log.InfoContext(ctx, "Reservation updated", "reservation_id", id.String(), "operation", op)
		}
		if err := s.notify(ctx, outbox); err != nil {
			return updated, err
		}
		return updated, nil
	}
}

func (s *service) transitionOnce(ctx context.Context, id uuid.UUID, extra time.Duration, apply step) (*domain.Reservation, domain.ReservationStatus, *notifications.Outbox, error) {
	existing, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, "", nil, err
	}

	var view *availability.RoomView
	if existing.Status.IsOccupying() {
		view, err = s.detector.LoadView(ctx, existing.RoomID, existing.Interval().Extend(extra))
		if err != nil {
			return nil, "", nil, err
		}
	}

	var updated *domain.Reservation
	var from domain.ReservationStatus
	outbox := &notifications.Outbox{}
	err = s.store.WithinRoom(ctx, existing.RoomID, func(tx store.Tx) error {
		r, err := tx.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		if r.Status.IsOccupying() && (view == nil || !view.Covers(r.Interval().Extend(extra))) {
			return errStaleView
		}
		if !r.Status.IsOccupying() {
			view = nil
		}
		from = r.Status
		now := s.clock.Now()

		if err := apply(ctx, tx, view, r, now, outbox); err != nil {
			return err
		}
		r.UpdatedAt = now
		if err := tx.SaveReservation(ctx, r); err != nil {
			return fmt.Errorf("failed to save reservation: %w", err)
		}

		if from.IsOccupying() && !r.Status.IsOccupying() {
			freed := r.Interval()
			if freed.Start.Before(now) {
				freed.Start = now
			}
			if freed.Valid() && s.waitlist != nil {
				if _, err := s.waitlist.OnCapacityFreed(ctx, tx, view, freed, outbox); err != nil {
					return err
				}
			}
		}

		updated = r
		return nil
	})
	if err != nil {
		return nil, "", nil, err
	}
	return updated, from, outbox, nil
}

// moveTo checks the lifecycle table before setting next
func moveTo(r *domain.Reservation, next domain.ReservationStatus, op string) error {
	if !r.Status.CanTransitionTo(next) {
		return apperrors.InvalidTransition(r.Status, op, "")
	}
	r.Status = next
	return nil
}

func (s *service) Confirm(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	return s.transition(ctx, id, "confirm", 0, func(ctx context.Context, tx store.Tx, view *availability.RoomView, r *domain.Reservation, now time.Time, outbox *notifications.Outbox) error {
		if err := moveTo(r, domain.StatusConfirmed, "confirm"); err != nil {
			return err
		}
		outbox.Add(notifications.EventConfirmation, r.ID, now)
		return nil
	})
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*domain.Reservation, error) {
	return s.transition(ctx, id, "cancel", 0, func(ctx context.Context, tx store.Tx, view *availability.RoomView, r *domain.Reservation, now time.Time, outbox *notifications.Outbox) error {
		if err := moveTo(r, domain.StatusCancelled, "cancel"); err != nil {
			return err
		}
		if reason != "" {
			r.CancellationReason = &reason
		}
		r.CancelledAt = &now
		outbox.Add(notifications.EventCancellation, r.ID, now)
		return nil
	})
}

func (s *service) CheckIn(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	return s.transition(ctx, id, "check in", 0, func(ctx context.Context, tx store.Tx, view *availability.RoomView, r *domain.Reservation, now time.Time, outbox *notifications.Outbox) error {
		if !r.Status.CanTransitionTo(domain.StatusCheckedIn) {
			return apperrors.InvalidTransition(r.Status, "check in", "")
		}
		opens := r.StartTime.Add(-s.config.CheckInGrace)
		if now.Before(opens) || !now.Before(r.EndTime) {
			return apperrors.InvalidTransition(r.Status, "check in",
				fmt.Sprintf("check-in is open from %s until %s", opens.Format(time.RFC3339), r.EndTime.Format(time.RFC3339)))
		}
		r.Status = domain.StatusCheckedIn
		r.CheckedInAt = &now
		outbox.Add(notifications.EventCheckedIn, r.ID, now)
		return nil
	})
}

func (s *service) CheckOut(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	return s.transition(ctx, id, "check out", 0, func(ctx context.Context, tx store.Tx, view *availability.RoomView, r *domain.Reservation, now time.Time, outbox *notifications.Outbox) error {
		if err := moveTo(r, domain.StatusCheckedOut, "check out"); err != nil {
			return err
		}
		r.CheckedOutAt = &now
		outbox.Add(notifications.EventCheckedOut, r.ID, now)
		return nil
	})
}

func (s *service) Complete(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	return s.transition(ctx, id, "complete", 0, func(ctx context.Context, tx store.Tx, view *availability.RoomView, r *domain.Reservation, now time.Time, outbox *notifications.Outbox) error {
		if err := moveTo(r, domain.StatusCompleted, "complete"); err != nil {
			return err
		}
		outbox.Add(notifications.EventCompleted, r.ID, now)
		return nil
	})
}

func (s *service) MarkNoShow(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	return s.transition(ctx, id, "mark no-show", 0, func(ctx context.Context, tx store.Tx, view *availability.RoomView, r *domain.Reservation, now time.Time, outbox *notifications.Outbox) error {
		if !r.Status.CanTransitionTo(domain.StatusNoShow) {
			return apperrors.InvalidTransition(r.Status, "mark no-show", "")
		}
		if now.Before(r.StartTime.Add(s.config.NoShowGrace)) {
			return apperrors.InvalidTransition(r.Status, "mark no-show", "the reservation has not started yet")
		}
		r.Status = domain.StatusNoShow
		outbox.Add(notifications.EventCancellation, r.ID, now)
		return nil
	})
}

func (s *service) Extend(ctx context.Context, id uuid.UUID, additional time.Duration) (*domain.Reservation, error) {
	if additional <= 0 {
		return nil, apperrors.InvalidArgument("additional_duration", "must be positive")
	}

	return s.transition(ctx, id, "extend", additional, func(ctx context.Context, tx store.Tx, view *availability.RoomView, r *domain.Reservation, now time.Time, outbox *notifications.Outbox) error {
		if !r.Status.IsOccupying() {
			return apperrors.InvalidTransition(r.Status, "extend", "only active reservations can be extended")
		}

		extended := r.Interval().Extend(additional)
		if err := s.detector.Admit(ctx, tx, view, extended, &r.ID); err != nil {
			if c, ok := apperrors.AsConflict(err); ok {
				return apperrors.Conflict(c.Conflict, &domain.Resolution{Strategy: domain.StrategyReject})
			}
			return err
		}

		r.EndTime = extended.End.UTC()
		outbox.Add(notifications.EventConfirmation, r.ID, now)
		return nil
	})
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, apperrors.FromContext("persistence", err)
	}
	return r, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, query store.ListQuery) ([]domain.Reservation, int64, error) {
	if query.Status != nil && !query.Status.IsValid() {
		return nil, 0, apperrors.InvalidArgument("status", "unknown status %q", *query.Status)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	list, total, err := s.store.ListReservationsByUser(ctx, userID, query)
	if err != nil {
		return nil, 0, apperrors.FromContext("persistence", err)
	}
	return list, total, nil
}

func (s *service) ListByRoom(ctx context.Context, roomID uuid.UUID, window calendar.Interval) ([]domain.Reservation, error) {
	if !window.Valid() {
		return nil, apperrors.InvalidArgument("window", "end must be after start")
	}
	if _, err := s.directory.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	list, err := s.store.ListReservationsByRoom(ctx, roomID, window)
	if err != nil {
		return nil, apperrors.FromContext("persistence", err)
	}
	return list, nil
}
