package db

import (
	"optionbot/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil {
		return nil
	}
	return db.Gorm.AutoMigrate(
		&models.User{},
		&models.VenueAccount{},
		&models.Strategy{},
		&models.TradeSignal{},
	)
}
