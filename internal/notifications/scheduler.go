package notifications

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"roomly/internal/shared/apperrors"
	"roomly/pkg/logger"

	"github.com/google/uuid"
)

// Event names the notification a reservation change triggers
type Event string

const (
	EventConfirmation      Event = "confirmation"
	EventCancellation      Event = "cancellation"
	EventReminder          Event = "reminder"
	EventWaitlistAvailable Event = "waitlist_available"
	EventCheckedIn         Event = "checked_in"
	EventCheckedOut        Event = "checked_out"
	EventCompleted         Event = "completed"
	EventConflictEscalated Event = "conflict_escalated"
)

// Scheduler hands a notification to the delivery subsystem. It only records
// intent: firesAt may be in the future and delivery is someone else's job.
// For EventConflictEscalated the id is the escalation id.
type Scheduler interface {
	ScheduleNotification(ctx context.Context, event Event, reservationID uuid.UUID, firesAt time.Time) error
}

// Message is the payload written to the notification topics
type Message struct {
	ID            uuid.UUID `json:"id"`
	Event         Event     `json:"event"`
	ReservationID uuid.UUID `json:"reservation_id"`
	FiresAt       time.Time `json:"fires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewMessage(event Event, reservationID uuid.UUID, firesAt, now time.Time) Message {
	return Message{
		ID:            uuid.New(),
		Event:         event,
		ReservationID: reservationID,
		FiresAt:       firesAt.UTC(),
		CreatedAt:     now.UTC(),
	}
}

func (m Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Outbox collects the notifications of one operation. It is flushed once the
// operation's write scope has committed, so a message never describes a
// change that was rolled back.
type Outbox struct {
	pending []Message
}

func (o *Outbox) Add(event Event, reservationID uuid.UUID, firesAt time.Time) {
	o.pending = append(o.pending, Message{Event: event, ReservationID: reservationID, FiresAt: firesAt.UTC()})
}

func (o *Outbox) Len() int {
	return len(o.pending)
}

// Flush schedules every pending message, each under its own timeout. Failed
// messages stay pending and the first failure is returned; a deadline
// surfaces as a DependencyTimeoutError.
func (o *Outbox) Flush(ctx context.Context, scheduler Scheduler, timeout time.Duration) error {
	var failed []Message
	var first error
	for _, m := range o.pending {
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		err := scheduler.ScheduleNotification(callCtx, m.Event, m.ReservationID, m.FiresAt)
		cancel()
		if err != nil {
			failed = append(failed, m)
			if first == nil {
				first = apperrors.FromContext("notification scheduler", err)
			}
		}
	}
	o.pending = failed
	return first
}

// LogScheduler writes notifications to the structured log. It is used when
// no broker is configured.
type LogScheduler struct {
	log *logger.Logger
}

func NewLogScheduler(log *logger.Logger) *LogScheduler {
	if log == nil {
		log = logger.GetDefault()
	}
	return &LogScheduler{log: log}
}

func (s *LogScheduler) ScheduleNotification(ctx context.Context, event Event, reservationID uuid.UUID, firesAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "Notification scheduled",
		"event", string(event),
		"reservation_id", reservationID.String(),
		"fires_at", firesAt.UTC().Format(time.RFC3339),
	)
	return nil
}

// Recorder keeps scheduled notifications in memory
type Recorder struct {
	mu       sync.Mutex
	messages []Message

	// Err, when set, is returned by every call
	Err error
	// Delay is waited out before recording, honoring ctx
	Delay time.Duration
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) ScheduleNotification(ctx context.Context, event Event, reservationID uuid.UUID, firesAt time.Time) error {
	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, Message{Event: event, ReservationID: reservationID, FiresAt: firesAt.UTC()})
	return nil
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// For returns the events recorded for one reservation, in order
func (r *Recorder) For(reservationID uuid.UUID) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.messages {
		if m.ReservationID == reservationID {
			out = append(out, m)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.messages = nil
	r.mu.Unlock()
}
