package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"roomly/internal/calendar"
	"roomly/internal/domain"
	"roomly/internal/shared/apperrors"

	"github.com/google/uuid"
)

// Memory is an in-process Store. Each room has a one-slot semaphore so that
// WithinRoom calls for the same room run one at a time while different rooms
// proceed in parallel. Writes are staged in the scope and applied on success.
type Memory struct {
	memReader

	mu           sync.RWMutex
	reservations map[uuid.UUID]domain.Reservation
	groups       map[uuid.UUID]domain.RecurringGroup
	entries      map[uuid.UUID]domain.WaitlistEntry
	escalations  map[uuid.UUID]domain.ConflictEscalation
	sequences    map[uuid.UUID]int64

	roomsMu sync.Mutex
	rooms   map[uuid.UUID]chan struct{}
}

func NewMemory() *Memory {
	m := &Memory{
		reservations: make(map[uuid.UUID]domain.Reservation),
		groups:       make(map[uuid.UUID]domain.RecurringGroup),
		entries:      make(map[uuid.UUID]domain.WaitlistEntry),
		escalations:  make(map[uuid.UUID]domain.ConflictEscalation),
		sequences:    make(map[uuid.UUID]int64),
		rooms:        make(map[uuid.UUID]chan struct{}),
	}
	m.memReader = memReader{view: m}
	return m
}

func (m *Memory) roomSlot(roomID uuid.UUID) chan struct{} {
	m.roomsMu.Lock()
	defer m.roomsMu.Unlock()
	slot, ok := m.rooms[roomID]
	if !ok {
		slot = make(chan struct{}, 1)
		m.rooms[roomID] = slot
	}
	return slot
}

func (m *Memory) WithinRoom(ctx context.Context, roomID uuid.UUID, fn func(tx Tx) error) error {
	slot := m.roomSlot(roomID)
	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return apperrors.FromContext("persistence", ctx.Err())
	}
	defer func() { <-slot }()

	tx := newMemTx(m)
	if err := fn(tx); err != nil {
		return apperrors.FromContext("persistence", err)
	}
	if err := ctx.Err(); err != nil {
		return apperrors.FromContext("persistence", err)
	}
	tx.commit()
	return nil
}

// Escalations returns recorded conflict escalations for a room
func (m *Memory) Escalations(roomID uuid.UUID) []domain.ConflictEscalation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.ConflictEscalation
	for _, e := range m.escalations {
		if e.RoomID == roomID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *Memory) eachReservation(fn func(domain.Reservation)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.reservations {
		fn(r)
	}
}

func (m *Memory) reservation(id uuid.UUID) (domain.Reservation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reservations[id]
	return r, ok
}

func (m *Memory) eachEntry(fn func(domain.WaitlistEntry)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		fn(e)
	}
}

func (m *Memory) entry(id uuid.UUID) (domain.WaitlistEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return e, ok
}

func (m *Memory) group(id uuid.UUID) (domain.RecurringGroup, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	return g, ok
}

// memTx stages writes on top of the committed maps
type memTx struct {
	memReader

	parent       *Memory
	reservations map[uuid.UUID]domain.Reservation
	groups       map[uuid.UUID]domain.RecurringGroup
	entries      map[uuid.UUID]domain.WaitlistEntry
	escalations  map[uuid.UUID]domain.ConflictEscalation
	sequences    map[uuid.UUID]int64
}

func newMemTx(parent *Memory) *memTx {
	tx := &memTx{
		parent:       parent,
		reservations: make(map[uuid.UUID]domain.Reservation),
		groups:       make(map[uuid.UUID]domain.RecurringGroup),
		entries:      make(map[uuid.UUID]domain.WaitlistEntry),
		escalations:  make(map[uuid.UUID]domain.ConflictEscalation),
		sequences:    make(map[uuid.UUID]int64),
	}
	tx.memReader = memReader{view: tx}
	return tx
}

func (tx *memTx) commit() {
	m := tx.parent
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range tx.reservations {
		m.reservations[id] = r
	}
	for id, g := range tx.groups {
		m.groups[id] = g
	}
	for id, e := range tx.entries {
		m.entries[id] = e
	}
	for id, e := range tx.escalations {
		m.escalations[id] = e
	}
	for room, seq := range tx.sequences {
		m.sequences[room] = seq
	}
}

func (tx *memTx) eachReservation(fn func(domain.Reservation)) {
	tx.parent.eachReservation(func(r domain.Reservation) {
		if _, staged := tx.reservations[r.ID]; !staged {
			fn(r)
		}
	})
	for _, r := range tx.reservations {
		fn(r)
	}
}

func (tx *memTx) reservation(id uuid.UUID) (domain.Reservation, bool) {
	if r, ok := tx.reservations[id]; ok {
		return r, true
	}
	return tx.parent.reservation(id)
}

func (tx *memTx) eachEntry(fn func(domain.WaitlistEntry)) {
	tx.parent.eachEntry(func(e domain.WaitlistEntry) {
		if _, staged := tx.entries[e.ID]; !staged {
			fn(e)
		}
	})
	for _, e := range tx.entries {
		fn(e)
	}
}

func (tx *memTx) entry(id uuid.UUID) (domain.WaitlistEntry, bool) {
	if e, ok := tx.entries[id]; ok {
		return e, true
	}
	return tx.parent.entry(id)
}

func (tx *memTx) group(id uuid.UUID) (domain.RecurringGroup, bool) {
	if g, ok := tx.groups[id]; ok {
		return g, true
	}
	return tx.parent.group(id)
}

func (tx *memTx) CreateReservation(ctx context.Context, r *domain.Reservation) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.Normalize()
	tx.reservations[r.ID] = *r
	return ctx.Err()
}

func (tx *memTx) SaveReservation(ctx context.Context, r *domain.Reservation) error {
	if _, ok := tx.reservation(r.ID); !ok {
		return apperrors.NotFound("reservation", r.ID)
	}
	r.Normalize()
	tx.reservations[r.ID] = *r
	return ctx.Err()
}

func (tx *memTx) CreateRecurringGroup(ctx context.Context, g *domain.RecurringGroup) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	tx.groups[g.ID] = cloneGroup(*g)
	return ctx.Err()
}

func (tx *memTx) SaveRecurringGroup(ctx context.Context, g *domain.RecurringGroup) error {
	if _, ok := tx.group(g.ID); !ok {
		return apperrors.NotFound("recurring group", g.ID)
	}
	tx.groups[g.ID] = cloneGroup(*g)
	return ctx.Err()
}

func (tx *memTx) CreateWaitlistEntry(ctx context.Context, e *domain.WaitlistEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	seq, ok := tx.sequences[e.RoomID]
	if !ok {
		tx.parent.mu.RLock()
		seq = tx.parent.sequences[e.RoomID]
		tx.parent.mu.RUnlock()
	}
	seq++
	tx.sequences[e.RoomID] = seq
	e.Sequence = seq
	tx.entries[e.ID] = *e
	return ctx.Err()
}

func (tx *memTx) SaveWaitlistEntry(ctx context.Context, e *domain.WaitlistEntry) error {
	if _, ok := tx.entry(e.ID); !ok {
		return apperrors.NotFound("waitlist entry", e.ID)
	}
	tx.entries[e.ID] = *e
	return ctx.Err()
}

func (tx *memTx) CreateEscalation(ctx context.Context, e *domain.ConflictEscalation) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	tx.escalations[e.ID] = *e
	return ctx.Err()
}

func cloneGroup(g domain.RecurringGroup) domain.RecurringGroup {
	g.MemberReservationIDs = append(domain.UUIDList(nil), g.MemberReservationIDs...)
	return g
}

// memView abstracts committed and staged state so memReader serves both
type memView interface {
	eachReservation(fn func(domain.Reservation))
	reservation(id uuid.UUID) (domain.Reservation, bool)
	eachEntry(fn func(domain.WaitlistEntry))
	entry(id uuid.UUID) (domain.WaitlistEntry, bool)
	group(id uuid.UUID) (domain.RecurringGroup, bool)
}

type memReader struct {
	view memView
}

func (r memReader) GetReservation(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext("persistence", err)
	}
	res, ok := r.view.reservation(id)
	if !ok {
		return nil, apperrors.NotFound("reservation", id)
	}
	return &res, nil
}

func (r memReader) ListOccupying(ctx context.Context, roomID uuid.UUID, window calendar.Interval, exclude *uuid.UUID) ([]domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext("persistence", err)
	}
	var out []domain.Reservation
	r.view.eachReservation(func(res domain.Reservation) {
		if res.RoomID != roomID || !res.Status.IsOccupying() {
			return
		}
		if exclude != nil && res.ID == *exclude {
			return
		}
		if calendar.Overlaps(res.Interval(), window) {
			out = append(out, res)
		}
	})
	sortReservations(out)
	return out, nil
}

func (r memReader) ListReservationsByUser(ctx context.Context, userID uuid.UUID, query ListQuery) ([]domain.Reservation, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, apperrors.FromContext("persistence", err)
	}
	query = query.normalized()
	var all []domain.Reservation
	r.view.eachReservation(func(res domain.Reservation) {
		if res.UserID != userID {
			return
		}
		if query.Status != nil && res.Status != *query.Status {
			return
		}
		if query.From != nil && res.EndTime.Before(*query.From) {
			return
		}
		if query.To != nil && res.StartTime.After(*query.To) {
			return
		}
		all = append(all, res)
	})
	sortReservations(all)

	total := int64(len(all))
	start := query.offset()
	if start >= len(all) {
		return []domain.Reservation{}, total, nil
	}
	end := start + query.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r memReader) ListReservationsByRoom(ctx context.Context, roomID uuid.UUID, window calendar.Interval) ([]domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext("persistence", err)
	}
	var out []domain.Reservation
	r.view.eachReservation(func(res domain.Reservation) {
		if res.RoomID == roomID && calendar.Overlaps(res.Interval(), window) {
			out = append(out, res)
		}
	})
	sortReservations(out)
	return out, nil
}

func (r memReader) GetRecurringGroup(ctx context.Context, id uuid.UUID) (*domain.RecurringGroup, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext("persistence", err)
	}
	g, ok := r.view.group(id)
	if !ok {
		return nil, apperrors.NotFound("recurring group", id)
	}
	g = cloneGroup(g)
	return &g, nil
}

func (r memReader) GetWaitlistEntry(ctx context.Context, id uuid.UUID) (*domain.WaitlistEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext("persistence", err)
	}
	e, ok := r.view.entry(id)
	if !ok {
		return nil, apperrors.NotFound("waitlist entry", id)
	}
	return &e, nil
}

func (r memReader) ListWaiting(ctx context.Context, roomID uuid.UUID) ([]domain.WaitlistEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext("persistence", err)
	}
	var out []domain.WaitlistEntry
	r.view.eachEntry(func(e domain.WaitlistEntry) {
		if e.RoomID == roomID && e.Status == domain.WaitlistWaiting {
			out = append(out, e)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Before(&out[j]) })
	return out, nil
}

func (r memReader) ListStaleWaiting(ctx context.Context, cutoff time.Time, limit int) ([]domain.WaitlistEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext("persistence", err)
	}
	var out []domain.WaitlistEntry
	r.view.eachEntry(func(e domain.WaitlistEntry) {
		if e.Status == domain.WaitlistWaiting && !e.DesiredStart.After(cutoff) {
			out = append(out, e)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Before(&out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortReservations(rs []domain.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].StartTime.Equal(rs[j].StartTime) {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].StartTime.Before(rs[j].StartTime)
	})
}
