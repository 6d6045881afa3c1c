package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/weddingdesk/internal/models"
)

// Actor describes who triggered a lifecycle transition.
type Actor struct {
	Source    string
	ClientIP  string
	UserAgent string
}

// SchedulerActor is used for transitions driven by background jobs.
var SchedulerActor = Actor{Source: models.ChangeSourceScheduler}

type statusChangeEntry struct {
	EventID   string
	OldStatus models.EventStatus
	NewStatus models.EventStatus
	Actor     Actor
	Metadata  map[string]any
}

// recordStatusChange writes one audit row using db, which is normally the
// transaction that performed the transition.
func recordStatusChange(ctx context.Context, db *gorm.DB, entry statusChangeEntry) error {
	source := strings.TrimSpace(entry.Actor.Source)
	if source == "" {
		source = models.ChangeSourcePublic
	}

	var metadata datatypes.JSON
	if len(entry.Metadata) > 0 {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("status change: marshal metadata: %w", err)
		}
		metadata = datatypes.JSON(encoded)
	}

	change := models.StatusChange{
		EventID:   entry.EventID,
		OldStatus: entry.OldStatus,
		NewStatus: entry.NewStatus,
		Source:    source,
		ClientIP:  truncate(strings.TrimSpace(entry.Actor.ClientIP), 64),
		UserAgent: truncate(strings.TrimSpace(entry.Actor.UserAgent), 255),
		Metadata:  metadata,
	}
	if err := db.WithContext(ctx).Create(&change).Error; err != nil {
		return fmt.Errorf("status change: record: %w", err)
	}
	return nil
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
