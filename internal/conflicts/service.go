package conflicts

import (
	"context"
	"fmt"
	"sort"
	"time"

	"roomly/internal/availability"
	"roomly/internal/calendar"
	"roomly/internal/domain"
	"roomly/internal/shared/apperrors"
	"roomly/internal/store"
	"roomly/pkg/logger"

	"github.com/google/uuid"
)

// Config holds the resolver's tuning knobs
type Config struct {
	SlotStep           time.Duration
	AlternativeHorizon time.Duration
	MaxAlternatives    int
}

func DefaultConfig() Config {
	return Config{
		SlotStep:           15 * time.Minute,
		AlternativeHorizon: 24 * time.Hour,
		MaxAlternatives:    5,
	}
}

// Service decides whether a candidate interval may be written and what to do when it may not
type Service interface {
	// Detect reports overlapping occupying reservations, or nil
	Detect(ctx context.Context, reader store.Reader, roomID uuid.UUID, candidate calendar.Interval, exclude *uuid.UUID) (*domain.Conflict, error)

	// Admit runs every write-time check against candidate: operating hours
	// and blocked slots from view, occupying reservations from reader. It
	// returns an InvalidArgumentError when the room is closed, a ConflictError
	// without a resolution when the interval is taken, and nil when it may be
	// written.
	Admit(ctx context.Context, reader store.Reader, view *availability.RoomView, candidate calendar.Interval, exclude *uuid.UUID) error

	// SearchWindow is the span Resolve may look at for candidate. Load the
	// RoomView over it before opening the write scope.
	SearchWindow(candidate calendar.Interval) calendar.Interval

	// LoadView reads the directory side of roomID over window
	LoadView(ctx context.Context, roomID uuid.UUID, window calendar.Interval) (*availability.RoomView, error)

	// Resolve applies strategy to conflict. notify_admin persists an escalation
	// through tx; the other strategies never write.
	Resolve(ctx context.Context, tx store.Tx, view *availability.RoomView, conflict *domain.Conflict, strategy domain.Strategy, userID uuid.UUID) (*domain.Resolution, error)
}

type service struct {
	calculator *availability.Calculator
	clock      domain.Clock
	config     Config
	log        *logger.Logger
}

func NewService(calculator *availability.Calculator, clock domain.Clock, config Config, log *logger.Logger) Service {
	if clock == nil {
		clock = domain.SystemClock()
	}
	if log == nil {
		log = logger.GetDefault()
	}
	if config.SlotStep <= 0 {
		config.SlotStep = DefaultConfig().SlotStep
	}
	if config.MaxAlternatives <= 0 {
		config.MaxAlternatives = DefaultConfig().MaxAlternatives
	}
	return &service{
		calculator: calculator,
		clock:      clock,
		config:     config,
		log:        log,
	}
}

func (s *service) Detect(ctx context.Context, reader store.Reader, roomID uuid.UUID, candidate calendar.Interval, exclude *uuid.UUID) (*domain.Conflict, error) {
	if !candidate.Valid() {
		return nil, apperrors.InvalidArgument("interval", "end must be after start")
	}

	existing, err := reader.ListOccupying(ctx, roomID, candidate, exclude)
	if err != nil {
		return nil, apperrors.FromContext("persistence", fmt.Errorf("failed to list reservations: %w", err))
	}
	return overlapping(roomID, candidate, existing, nil), nil
}

func (s *service) Admit(ctx context.Context, reader store.Reader, view *availability.RoomView, candidate calendar.Interval, exclude *uuid.UUID) error {
	if !candidate.Valid() {
		return apperrors.InvalidArgument("interval", "end must be after start")
	}

	snap, err := s.calculator.Snapshot(ctx, reader, view, candidate, exclude)
	if err != nil {
		return err
	}
	if !snap.IsOpen(candidate) {
		return apperrors.InvalidArgument("interval", "%s is outside the room's operating hours", candidate)
	}

	if conflict := overlapping(view.Room.ID, candidate, snap.Reservations, snap.Blocked); conflict != nil {
		return apperrors.Conflict(conflict, nil)
	}
	return nil
}

func (s *service) SearchWindow(candidate calendar.Interval) calendar.Interval {
	horizon := s.config.AlternativeHorizon
	if d := candidate.Duration(); horizon < d {
		horizon = d
	}
	return calendar.Interval{Start: candidate.Start.Add(-horizon), End: candidate.End.Add(horizon)}
}

func (s *service) LoadView(ctx context.Context, roomID uuid.UUID, window calendar.Interval) (*availability.RoomView, error) {
	return s.calculator.LoadView(ctx, roomID, window)
}

func (s *service) Resolve(ctx context.Context, tx store.Tx, view *availability.RoomView, conflict *domain.Conflict, strategy domain.Strategy, userID uuid.UUID) (*domain.Resolution, error) {
	if conflict == nil {
		return nil, apperrors.InvalidArgument("conflict", "nothing to resolve")
	}
	if !strategy.IsValid() {
		return nil, apperrors.InvalidArgument("strategy", "unknown strategy %q", strategy)
	}

	resolution := &domain.Resolution{Strategy: strategy}
	switch strategy {
	case domain.StrategySuggestAlternatives:
		alternatives, err := s.alternatives(ctx, tx, view, conflict)
		if err != nil {
			return nil, err
		}
		resolution.Alternatives = alternatives

	case domain.StrategyNotifyAdmin:
		escalation := &domain.ConflictEscalation{
			ID:                        uuid.New(),
			RoomID:                    conflict.RoomID,
			UserID:                    userID,
			RequestedStart:            conflict.RequestedInterval.Start.UTC(),
			RequestedEnd:              conflict.RequestedInterval.End.UTC(),
			ConflictingReservationIDs: domain.UUIDList(conflict.ConflictingReservationIDs),
			Status:                    domain.EscalationPending,
		}
		if err := tx.CreateEscalation(ctx, escalation); err != nil {
			return nil, apperrors.FromContext("persistence", fmt.Errorf("failed to create escalation: %w", err))
		}
		resolution.EscalationID = &escalation.ID
	}

	s.log.LogConflictDetected(ctx, conflict.RoomID.String(), conflict.RequestedInterval.String(),
		len(conflict.ConflictingReservationIDs), string(strategy))
	return resolution, nil
}

// alternatives lists free intervals of the requested length around the
// requested start, nearest first with earlier winning ties. The search is
// limited to what view holds.
func (s *service) alternatives(ctx context.Context, reader store.Reader, view *availability.RoomView, conflict *domain.Conflict) ([]calendar.Interval, error) {
	requested := conflict.RequestedInterval
	duration := requested.Duration()

	search, ok := calendar.Intersect(s.SearchWindow(requested), view.Window)
	if !ok {
		return nil, nil
	}
	now := s.clock.Now()
	if search.Start.Before(now) {
		search.Start = now
	}
	if !search.Valid() || search.Duration() < duration {
		return nil, nil
	}

	snap, err := s.calculator.Snapshot(ctx, reader, view, search, nil)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool)
	var starts []time.Time
	add := func(t time.Time) {
		if t.Before(now) || seen[t.UnixNano()] {
			return
		}
		seen[t.UnixNano()] = true
		starts = append(starts, t)
	}

	for _, free := range snap.Free() {
		if free.Duration() < duration {
			continue
		}
		for _, t := range calendar.EnumerateSlots(free, duration, s.config.SlotStep) {
			add(t)
		}
		// the closest fit is often off the step grid: right at a gap edge
		// or at the requested start shifted into the gap
		add(free.Start)
		add(free.End.Add(-duration))
		if clamped := clamp(requested.Start, free.Start, free.End.Add(-duration)); !clamped.Equal(requested.Start) {
			add(clamped)
		}
	}

	sort.Slice(starts, func(i, j int) bool {
		di, dj := distance(starts[i], requested.Start), distance(starts[j], requested.Start)
		if di == dj {
			return starts[i].Before(starts[j])
		}
		return di < dj
	})

	if len(starts) > s.config.MaxAlternatives {
		starts = starts[:s.config.MaxAlternatives]
	}
	out := make([]calendar.Interval, 0, len(starts))
	for _, t := range starts {
		out = append(out, calendar.Interval{Start: t, End: t.Add(duration)})
	}
	return out, nil
}

// overlapping builds a Conflict from whatever in reservations or blocked
// overlaps candidate, or returns nil
func overlapping(roomID uuid.UUID, candidate calendar.Interval, reservations []domain.Reservation, blocked []calendar.Interval) *domain.Conflict {
	var ids []uuid.UUID
	for _, r := range reservations {
		if r.Status.IsOccupying() && calendar.Overlaps(candidate, r.Interval()) {
			ids = append(ids, r.ID)
		}
	}
	var blocks []calendar.Interval
	for _, b := range blocked {
		if calendar.Overlaps(candidate, b) {
			blocks = append(blocks, b)
		}
	}
	if len(ids) == 0 && len(blocks) == 0 {
		return nil
	}
	return &domain.Conflict{
		RoomID:                    roomID,
		RequestedInterval:         candidate,
		ConflictingReservationIDs: ids,
		BlockedIntervals:          blocks,
	}
}

func clamp(t, lo, hi time.Time) time.Time {
	if t.Before(lo) {
		return lo
	}
	if t.After(hi) {
		return hi
	}
	return t
}

func distance(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
