package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/models"
)

// Models lists every persistent model in migration order.
func Models() []any {
	return []any{
		&models.SchoolApplication{},
		&models.VerificationToken{},
		&models.TimelineEvent{},
		&models.InternalNote{},
		&models.School{},
		&models.User{},
		&models.CacheEntry{},
	}
}

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}
	return db.AutoMigrate(Models()...)
}
