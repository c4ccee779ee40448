package venues

import (
	"context"
	"errors"
	"fmt"

	"roomly/internal/calendar"
	"roomly/internal/domain"
	"roomly/internal/shared/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads room directory data. The write methods exist for seeding;
// venue and room management lives outside this service.
type Repository interface {
	GetRoom(ctx context.Context, roomID uuid.UUID) (*domain.Room, error)
	GetOperatingHours(ctx context.Context, roomID uuid.UUID) ([]domain.OperatingHours, error)
	GetBlockedSlots(ctx context.Context, roomID uuid.UUID, window calendar.Interval) ([]domain.BlockedSlot, error)

	CreateVenue(ctx context.Context, venue *domain.Venue) error
	CreateRoom(ctx context.Context, room *domain.Room) error
	ReplaceOperatingHours(ctx context.Context, roomID uuid.UUID, hours []domain.OperatingHours) error
	CreateBlockedSlot(ctx context.Context, slot *domain.BlockedSlot) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Models lists the directory tables, for migrations
func Models() []interface{} {
	return []interface{}{
		&domain.Venue{},
		&domain.Room{},
		&domain.OperatingHours{},
		&domain.BlockedSlot{},
	}
}

func (r *repository) GetRoom(ctx context.Context, roomID uuid.UUID) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).First(&room, "id = ?", roomID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("room", roomID)
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}

func (r *repository) GetOperatingHours(ctx context.Context, roomID uuid.UUID) ([]domain.OperatingHours, error) {
	var hours []domain.OperatingHours
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("weekday ASC").
		Order("opens_at ASC").
		Find(&hours).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get operating hours: %w", err)
	}
	return hours, nil
}

func (r *repository) GetBlockedSlots(ctx context.Context, roomID uuid.UUID, window calendar.Interval) ([]domain.BlockedSlot, error) {
	var slots []domain.BlockedSlot
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Where("start_time < ? AND end_time > ?", window.End.UTC(), window.Start.UTC()).
		Order("start_time ASC").
		Find(&slots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get blocked slots: %w", err)
	}
	for i := range slots {
		slots[i].StartTime = slots[i].StartTime.UTC()
		slots[i].EndTime = slots[i].EndTime.UTC()
	}
	return slots, nil
}

func (r *repository) CreateVenue(ctx context.Context, venue *domain.Venue) error {
	if venue.ID == uuid.Nil {
		venue.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(venue).Error
}

func (r *repository) CreateRoom(ctx context.Context, room *domain.Room) error {
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *repository) ReplaceOperatingHours(ctx context.Context, roomID uuid.UUID, hours []domain.OperatingHours) error {
	for _, h := range hours {
		if _, err := h.Window(); err != nil {
			return apperrors.InvalidArgument("operating_hours", "%v", err)
		}
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&domain.OperatingHours{}).Error; err != nil {
			return fmt.Errorf("failed to clear operating hours: %w", err)
		}
		if len(hours) == 0 {
			return nil
		}
		for i := range hours {
			hours[i].ID = 0
			hours[i].RoomID = roomID
		}
		if err := tx.Create(&hours).Error; err != nil {
			return fmt.Errorf("failed to create operating hours: %w", err)
		}
		return nil
	})
}

func (r *repository) CreateBlockedSlot(ctx context.Context, slot *domain.BlockedSlot) error {
	if !slot.Interval().Valid() {
		return apperrors.InvalidArgument("blocked_slot", "end must be after start")
	}
	slot.StartTime = slot.StartTime.UTC()
	slot.EndTime = slot.EndTime.UTC()
	return r.db.WithContext(ctx).Create(slot).Error
}
