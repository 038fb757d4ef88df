package database

import (
	"gorm.io/gorm"

	"github.com/00anuyh/souvenir/models"
)

// Migrate creates or updates the service's tables. Run automatically in
// development; production schema changes are applied by hand.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.KVEntry{},
	)
}
