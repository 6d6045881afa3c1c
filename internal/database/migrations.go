package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/weddingdesk/internal/models"
)

// legacyReminderJobIndex made event_id unique on its own before jobs had a kind.
const legacyReminderJobIndex = "idx_reminder_jobs_event_id"

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Event{},
		&models.ReminderJob{},
		&models.EmailLog{},
		&models.StatusChange{},
		&models.SystemSetting{},
	); err != nil {
		return err
	}

	migrator := db.Migrator()
	if migrator.HasIndex(&models.ReminderJob{}, legacyReminderJobIndex) {
		if err := migrator.DropIndex(&models.ReminderJob{}, legacyReminderJobIndex); err != nil {
			return fmt.Errorf("drop %s: %w", legacyReminderJobIndex, err)
		}
	}
	return nil
}
