package database

import (
	"roomly/internal/store"
	"roomly/internal/venues"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	models := append(venues.Models(), store.Models()...)
	return db.AutoMigrate(models...)
}
