package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds the PostgreSQL constraints that back the per-room
// write scope: two occupying reservations of one room can never overlap, even
// if a writer bypasses the engine.
func MigrateConstraints(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}

	err := db.Exec(`CREATE EXTENSION IF NOT EXISTS btree_gist;`).Error
	if err != nil {
		return err
	}

	// ADD CONSTRAINT has no IF NOT EXISTS form
	err = db.Exec(`
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM pg_constraint WHERE conname = 'reservations_no_overlap'
			) THEN
				ALTER TABLE reservations
				ADD CONSTRAINT reservations_no_overlap
				EXCLUDE USING gist (
					room_id WITH =,
					tstzrange(start_time, end_time, '[)') WITH &&
				)
				WHERE (status IN ('pending', 'confirmed', 'checked_in'));
			END IF;
		END
		$$;
	`).Error
	if err != nil {
		return err
	}

	// Stale-entry sweep scans waiting entries by desired start across rooms
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_waitlist_waiting_desired_start
		ON waitlist_entries (desired_start)
		WHERE status = 'waiting';
	`).Error
	if err != nil {
		return err
	}

	return nil
}
