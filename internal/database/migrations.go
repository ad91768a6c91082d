package database

import (
	"gorm.io/gorm"

	"github.com/seiyelan/raidhelper/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Activity{},
		&models.Signup{},
		&models.BlacklistEntry{},
		&models.ExemptMember{},
		&models.CacheEntry{},
	)
}
