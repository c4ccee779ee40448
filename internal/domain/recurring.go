package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// UUIDList is an ordered list of ids stored as a JSON array column
type UUIDList []uuid.UUID

// Value implements the driver.Valuer interface for database storage
func (l UUIDList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database retrieval
func (l *UUIDList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(raw, l)
}

// GormDBDataType picks jsonb on PostgreSQL and plain text elsewhere
func (UUIDList) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "jsonb"
	}
	return "text"
}

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

func (f Frequency) IsValid() bool {
	return f == FrequencyDaily || f == FrequencyWeekly
}

// Days returns the calendar-day stride of one step at this frequency
func (f Frequency) Days() int {
	if f == FrequencyWeekly {
		return 7
	}
	return 1
}

// Pattern describes how a recurring booking repeats. Exactly one of Count or
// Until bounds the series; Until is inclusive of occurrences starting at it.
type Pattern struct {
	Frequency Frequency  `gorm:"type:varchar(10);not null" json:"frequency"`
	Interval  int        `gorm:"not null" json:"interval"`
	Count     *int       `json:"count,omitempty"`
	Until     *time.Time `json:"until,omitempty"`
}

type RecurringGroup struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID               uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	RoomID               uuid.UUID `gorm:"type:uuid;not null;index" json:"room_id"`
	Pattern              Pattern   `gorm:"embedded;embeddedPrefix:pattern_" json:"pattern"`
	FirstStart           time.Time `gorm:"not null" json:"first_start"`
	Duration             int64     `gorm:"not null" json:"duration_seconds"`
	MemberReservationIDs UUIDList  `json:"member_reservation_ids"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (g *RecurringGroup) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}
