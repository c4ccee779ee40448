package recurrence

import (
	"context"
	"fmt"
	"time"

	"roomly/internal/availability"
	"roomly/internal/calendar"
	"roomly/internal/conflicts"
	"roomly/internal/domain"
	"roomly/internal/shared/apperrors"
	"roomly/internal/store"

	"github.com/google/uuid"
)

// DefaultMaxOccurrences caps a single expansion
const DefaultMaxOccurrences = 366

type SkipReason string

const (
	SkipConflict       SkipReason = "conflict"
	SkipBlocked        SkipReason = "blocked"
	SkipOutsideOfHours SkipReason = "outside_operating_hours"
)

// Request is one recurring booking attempt
type Request struct {
	RoomID     uuid.UUID
	UserID     uuid.UUID
	FirstStart time.Time
	Duration   time.Duration
	Pattern    domain.Pattern
}

// Skipped is an occurrence that could not be booked
type Skipped struct {
	Interval calendar.Interval `json:"interval"`
	Reason   SkipReason        `json:"reason"`
	Conflict *domain.Conflict  `json:"conflict,omitempty"`
}

// Result of an expansion: created and skipped keep occurrence order
type Result struct {
	Group   *domain.RecurringGroup `json:"group"`
	Created []domain.Reservation   `json:"created"`
	Skipped []Skipped              `json:"skipped"`
}

// ValidatePattern fails on a pattern that cannot produce occurrences
func ValidatePattern(p domain.Pattern) error {
	if !p.Frequency.IsValid() {
		return apperrors.InvalidArgument("pattern.frequency", "must be daily or weekly")
	}
	if p.Interval <= 0 {
		return apperrors.InvalidArgument("pattern.interval", "must be positive")
	}
	if (p.Count == nil) == (p.Until == nil) {
		return apperrors.InvalidArgument("pattern", "exactly one of count or until is required")
	}
	if p.Count != nil && *p.Count <= 0 {
		return apperrors.InvalidArgument("pattern.count", "must be positive")
	}
	return nil
}

// Occurrences lists the occurrence intervals of a series. Steps are taken in
// calendar days in loc so a 10:00 series stays at 10:00 across DST changes.
// Until is inclusive of an occurrence starting exactly at it.
func Occurrences(first time.Time, duration time.Duration, p domain.Pattern, loc *time.Location, max int) ([]calendar.Interval, error) {
	if err := ValidatePattern(p); err != nil {
		return nil, err
	}
	if duration <= 0 {
		return nil, apperrors.InvalidArgument("duration", "must be positive")
	}
	if loc == nil {
		loc = time.UTC
	}
	if max <= 0 {
		max = DefaultMaxOccurrences
	}
	if p.Count != nil && *p.Count > max {
		return nil, apperrors.InvalidArgument("pattern.count", "at most %d occurrences per series", max)
	}

	local := first.In(loc)
	step := p.Frequency.Days() * p.Interval

	var out []calendar.Interval
	for k := 0; ; k++ {
		if p.Count != nil && k >= *p.Count {
			break
		}
		start := local.AddDate(0, 0, k*step).UTC()
		if p.Until != nil && start.After(p.Until.UTC()) {
			break
		}
		if len(out) == max {
			return nil, apperrors.InvalidArgument("pattern.until", "series exceeds %d occurrences", max)
		}
		out = append(out, calendar.Interval{Start: start, End: start.Add(duration)})
	}

	if len(out) == 0 {
		return nil, apperrors.InvalidArgument("pattern.until", "series produces no occurrences")
	}
	return out, nil
}

// Expander books every occurrence of a series independently
type Expander struct {
	detector       conflicts.Service
	maxOccurrences int
}

func NewExpander(detector conflicts.Service, maxOccurrences int) *Expander {
	if maxOccurrences <= 0 {
		maxOccurrences = DefaultMaxOccurrences
	}
	return &Expander{detector: detector, maxOccurrences: maxOccurrences}
}

// Plan is a validated series with its occurrence intervals, computed before
// any write scope opens
type Plan struct {
	Request     Request
	Occurrences []calendar.Interval
}

// Span covers every occurrence of the plan
func (p *Plan) Span() calendar.Interval {
	return calendar.Interval{Start: p.Occurrences[0].Start, End: p.Occurrences[len(p.Occurrences)-1].End}
}

// Plan validates req and lists its occurrences in room's time zone
func (e *Expander) Plan(room *domain.Room, req Request) (*Plan, error) {
	occurrences, err := Occurrences(req.FirstStart, req.Duration, req.Pattern, room.Location(), e.maxOccurrences)
	if err != nil {
		return nil, err
	}
	return &Plan{Request: req, Occurrences: occurrences}, nil
}

// Expand books plan inside tx, checking each occurrence against view. The
// group is created even when every occurrence is skipped. onCreated runs for
// each booked reservation.
func (e *Expander) Expand(ctx context.Context, tx store.Tx, view *availability.RoomView, plan *Plan, now time.Time, onCreated func(*domain.Reservation)) (*Result, error) {
	room, req := view.Room, plan.Request

	pattern := req.Pattern
	if pattern.Until != nil {
		until := pattern.Until.UTC()
		pattern.Until = &until
	}
	group := &domain.RecurringGroup{
		ID:         uuid.New(),
		UserID:     req.UserID,
		RoomID:     room.ID,
		Pattern:    pattern,
		FirstStart: req.FirstStart.UTC(),
		Duration:   int64(req.Duration / time.Second),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tx.CreateRecurringGroup(ctx, group); err != nil {
		return nil, apperrors.FromContext("persistence", fmt.Errorf("failed to create recurring group: %w", err))
	}

	result := &Result{Group: group, Created: []domain.Reservation{}, Skipped: []Skipped{}}
	for _, occ := range plan.Occurrences {
		err := e.detector.Admit(ctx, tx, view, occ, nil)
		if err != nil {
			if skip, ok := skipFor(occ, err); ok {
				result.Skipped = append(result.Skipped, skip)
				continue
			}
			return nil, err
		}

		reservation := domain.NewReservation(room, req.UserID, occ, now)
		reservation.RecurringGroupID = &group.ID
		if err := tx.CreateReservation(ctx, reservation); err != nil {
			// exclusion constraint backstop; the insert ran under its own savepoint
			if c, ok := apperrors.AsConflict(err); ok {
				result.Skipped = append(result.Skipped, Skipped{Interval: occ, Reason: SkipConflict, Conflict: c.Conflict})
				continue
			}
			return nil, apperrors.FromContext("persistence", fmt.Errorf("failed to create occurrence: %w", err))
		}

		group.MemberReservationIDs = append(group.MemberReservationIDs, reservation.ID)
		result.Created = append(result.Created, *reservation)
		if onCreated != nil {
			onCreated(reservation)
		}
	}

	group.UpdatedAt = now
	if err := tx.SaveRecurringGroup(ctx, group); err != nil {
		return nil, apperrors.FromContext("persistence", fmt.Errorf("failed to save recurring group: %w", err))
	}
	return result, nil
}

func skipFor(occ calendar.Interval, err error) (Skipped, bool) {
	if apperrors.IsInvalidArgument(err) {
		return Skipped{Interval: occ, Reason: SkipOutsideOfHours}, true
	}
	c, ok := apperrors.AsConflict(err)
	if !ok {
		return Skipped{}, false
	}
	reason := SkipConflict
	if len(c.Conflict.ConflictingReservationIDs) == 0 {
		reason = SkipBlocked
	}
	return Skipped{Interval: occ, Reason: reason, Conflict: c.Conflict}, true
}
