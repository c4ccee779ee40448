package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"roomly/internal/availability"
	"roomly/internal/calendar"
	"roomly/internal/conflicts"
	"roomly/internal/domain"
	"roomly/internal/notifications"
	"roomly/internal/recurrence"
	"roomly/internal/reservations"
	"roomly/internal/shared/config"
	"roomly/internal/shared/database"
	"roomly/internal/store"
	"roomly/internal/venues"
	"roomly/internal/waitlist"
	"roomly/pkg/cache"
	"roomly/pkg/logger"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type Seeder struct {
	db   *database.DB
	repo venues.Repository
}

func main() {
	fmt.Println("🌱 Starting Roomly Database Seeder...")

	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db, repo: venues.NewRepository(db.PostgreSQL)}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(cfg); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates all tables, children first
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"conflict_escalations",
		"waitlist_entries",
		"reservations",
		"recurring_groups",
		"blocked_slots",
		"room_operating_hours",
		"rooms",
		"venues",
	}

	tx := s.db.PostgreSQL.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for _, table := range tables {
		fmt.Printf("  Truncating table: %s\n", table)
		if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit().Error
}

type roomSeed struct {
	name     string
	capacity int
	hours    []domain.OperatingHours
}

func weekdays(opens, closes string) []domain.OperatingHours {
	out := make([]domain.OperatingHours, 0, 5)
	for d := time.Monday; d <= time.Friday; d++ {
		out = append(out, domain.OperatingHours{Weekday: d, OpensAt: opens, ClosesAt: closes})
	}
	return out
}

// SeedAll creates two venues with rooms, a maintenance window and a few
// demo bookings made through the reservation engine
func (s *Seeder) SeedAll(cfg *config.Config) error {
	ctx := context.Background()

	venuesData := []struct {
		name     string
		timezone string
		rooms    []roomSeed
	}{
		{"Harbour Works", "Europe/London", []roomSeed{
			{"Boardroom", 12, weekdays("08:00", "19:00")},
			{"Focus Pod 1", 1, weekdays("07:00", "22:00")},
			{"Focus Pod 2", 1, weekdays("07:00", "22:00")},
		}},
		{"Mission Loft", "America/Los_Angeles", []roomSeed{
			{"Studio", 20, append(weekdays("09:00", "18:00"),
				domain.OperatingHours{Weekday: time.Saturday, OpensAt: "10:00", ClosesAt: "16:00"})},
			// no hours means always open
			{"Phone Booth", 1, nil},
		}},
	}

	var roomIDs []uuid.UUID
	for _, vd := range venuesData {
		venue := domain.Venue{ID: uuid.New(), Name: vd.name, Timezone: vd.timezone}
		if err := s.repo.CreateVenue(ctx, &venue); err != nil {
			return fmt.Errorf("failed to seed venues: %w", err)
		}
		fmt.Printf("  🏢 Created venue: %s (%s)\n", venue.Name, venue.Timezone)

		for _, rd := range vd.rooms {
			room := domain.Room{VenueID: venue.ID, Name: rd.name, Capacity: rd.capacity, Timezone: vd.timezone}
			if err := s.repo.CreateRoom(ctx, &room); err != nil {
				return fmt.Errorf("failed to seed room %s: %w", rd.name, err)
			}
			if len(rd.hours) > 0 {
				if err := s.repo.ReplaceOperatingHours(ctx, room.ID, rd.hours); err != nil {
					return fmt.Errorf("failed to seed hours for %s: %w", rd.name, err)
				}
			}
			roomIDs = append(roomIDs, room.ID)
			fmt.Printf("    ✅ Created room: %s (capacity %d, %d opening periods)\n", room.Name, room.Capacity, len(rd.hours))
		}
	}

	// Boardroom is closed for maintenance next Wednesday morning
	boardroom := roomIDs[0]
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		return fmt.Errorf("failed to load time zone: %w", err)
	}
	wednesday := nextWeekday(time.Now().In(london), time.Wednesday)
	maintenance := domain.BlockedSlot{
		RoomID:    boardroom,
		StartTime: wednesday.Add(8 * time.Hour).UTC(),
		EndTime:   wednesday.Add(12 * time.Hour).UTC(),
		Reason:    "AV maintenance",
	}
	if err := s.repo.CreateBlockedSlot(ctx, &maintenance); err != nil {
		return fmt.Errorf("failed to seed blocked slot: %w", err)
	}
	fmt.Println("  🔧 Blocked Boardroom for maintenance")

	if err := s.seedReservations(ctx, cfg, boardroom, wednesday); err != nil {
		return err
	}

	// drop any directory entries cached by a previous run
	if s.db.Redis != nil {
		directory := venues.NewService(s.repo, cache.NewService(s.db.Redis), 0, logger.GetDefault())
		for _, id := range roomIDs {
			if err := directory.InvalidateRoom(ctx, id); err != nil {
				log.Printf("Warning: Failed to clear cached room %s: %v", id, err)
			}
		}
	}

	return nil
}

// seedReservations books through the engine so the demo data obeys the same
// rules as live traffic
func (s *Seeder) seedReservations(ctx context.Context, cfg *config.Config, roomID uuid.UUID, wednesday time.Time) error {
	fmt.Println("  📅 Seeding reservations...")

	directory := venues.NewService(s.repo, nil, cfg.Engine.DirectoryTimeout, nil)
	st := store.NewGormStore(s.db.PostgreSQL, nil)
	detector := conflicts.NewService(availability.NewCalculator(directory, st, 0), nil, conflicts.DefaultConfig(), nil)
	wl := waitlist.NewService(st, directory, detector, nil, 0, nil)
	svc := reservations.NewService(st, directory, detector, wl, notifications.NewLogScheduler(nil), nil, reservations.DefaultConfig(), nil)

	organiser, guest := uuid.New(), uuid.New()

	afternoon, err := calendar.New(wednesday.Add(14*time.Hour), wednesday.Add(15*time.Hour))
	if err != nil {
		return err
	}
	r, err := svc.Create(ctx, reservations.CreateInput{RoomID: roomID, UserID: organiser, Interval: afternoon, Strategy: domain.StrategyReject})
	if err != nil {
		return fmt.Errorf("failed to seed reservation: %w", err)
	}
	if _, err := svc.Confirm(ctx, r.ID); err != nil {
		return fmt.Errorf("failed to confirm reservation: %w", err)
	}
	fmt.Printf("    ✅ Confirmed reservation %s\n", r.ID)

	count := 4
	result, err := svc.CreateRecurring(ctx, recurrence.Request{
		RoomID:     roomID,
		UserID:     organiser,
		FirstStart: wednesday.Add(16 * time.Hour),
		Duration:   30 * time.Minute,
		Pattern:    domain.Pattern{Frequency: domain.FrequencyWeekly, Interval: 1, Count: &count},
	})
	if err != nil {
		return fmt.Errorf("failed to seed recurring reservation: %w", err)
	}
	fmt.Printf("    ✅ Weekly stand-up: %d created, %d skipped\n", len(result.Created), len(result.Skipped))

	if _, err := wl.Enqueue(ctx, guest, roomID, afternoon); err != nil {
		return fmt.Errorf("failed to seed waitlist: %w", err)
	}
	fmt.Println("    ✅ Guest waiting for the confirmed slot")

	return nil
}

func nextWeekday(from time.Time, day time.Weekday) time.Time {
	midnight := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	offset := (int(day) - int(midnight.Weekday()) + 7) % 7
	if offset == 0 {
		offset = 7
	}
	return midnight.AddDate(0, 0, offset)
}
