package domain

import (
	"time"

	"roomly/internal/calendar"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conflict describes why a candidate interval cannot be written. It is never persisted.
type Conflict struct {
	RoomID                    uuid.UUID           `json:"room_id"`
	RequestedInterval         calendar.Interval   `json:"requested_interval"`
	ConflictingReservationIDs []uuid.UUID         `json:"conflicting_reservation_ids"`
	BlockedIntervals          []calendar.Interval `json:"blocked_intervals,omitempty"`
}

// Strategy names how a detected conflict is handled
type Strategy string

const (
	StrategyReject              Strategy = "reject"
	StrategySuggestAlternatives Strategy = "suggest_alternatives"
	StrategyNotifyAdmin         Strategy = "notify_admin"
)

func (s Strategy) IsValid() bool {
	switch s {
	case StrategyReject, StrategySuggestAlternatives, StrategyNotifyAdmin:
		return true
	}
	return false
}

// Resolution is the outcome of applying a Strategy to a Conflict
type Resolution struct {
	Strategy     Strategy            `json:"strategy"`
	Alternatives []calendar.Interval `json:"alternatives,omitempty"`
	EscalationID *uuid.UUID          `json:"escalation_id,omitempty"`
}

type EscalationStatus string

const (
	EscalationPending  EscalationStatus = "pending"
	EscalationResolved EscalationStatus = "resolved"
)

// ConflictEscalation records a request handed to administrators for manual resolution.
// It holds no capacity.
type ConflictEscalation struct {
	ID                        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	RoomID                    uuid.UUID        `gorm:"type:uuid;not null;index" json:"room_id"`
	UserID                    uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	RequestedStart            time.Time        `gorm:"not null" json:"requested_start"`
	RequestedEnd              time.Time        `gorm:"not null" json:"requested_end"`
	ConflictingReservationIDs UUIDList         `json:"conflicting_reservation_ids"`
	Status                    EscalationStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CreatedAt                 time.Time        `json:"created_at"`
	UpdatedAt                 time.Time        `json:"updated_at"`
}

func (e *ConflictEscalation) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
