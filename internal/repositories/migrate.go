package repositories

import (
	"github.com/anonto42/letterbox/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Migrate creates or updates every table the core relies on and seeds the
// single highlight row.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Letter{},
		&models.LetterReply{},
		&models.Thread{},
		&models.ThreadComment{},
		&models.Like{},
		&models.Notification{},
		&models.NotificationActor{},
		&models.Highlight{},
	); err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Highlight{ID: models.HighlightRowID}).Error
}
