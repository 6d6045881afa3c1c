package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/weddingdesk/internal/database"
	"github.com/charlesng35/weddingdesk/internal/models"
)

func TestRetentionPrune(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	old := now.AddDate(0, 0, -40)

	event := h.register(t)
	require.NoError(t, h.db.Model(&models.EmailLog{}).Where("event_id = ?", event.ID).Update("created_at", old).Error)
	require.NoError(t, h.db.Create(&models.EmailLog{
		EventID: event.ID, Kind: models.EmailKindReminder, Recipient: testTeam,
		Provider: "fake", Status: models.EmailStatusSent,
	}).Error)
	require.NoError(t, h.db.Model(&models.StatusChange{}).Where("event_id = ?", event.ID).Update("created_at", old).Error)

	completed := old
	orphan := models.ReminderJob{
		EventID: "0b7f3c9e-1d2a-4c5b-8e6f-9a0b1c2d3e4f", FireAt: old, NextAttemptAt: old,
		Status: models.ReminderJobDone, CompletedAt: &completed,
	}
	require.NoError(t, h.db.Create(&orphan).Error)

	_, live := acceptedEvent(t, h)
	require.NoError(t, h.db.Model(&models.ReminderJob{}).Where("id = ?", live.ID).
		Updates(map[string]any{"status": models.ReminderJobDone, "completed_at": old}).Error)

	svc, err := NewRetentionService(h.db, WithRetentionDays(30), WithRetentionClock(func() time.Time { return now }))
	require.NoError(t, err)

	stats, err := svc.Prune(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.EmailLogs)
	require.Equal(t, int64(1), stats.StatusChanges)
	require.Equal(t, int64(1), stats.ReminderJobs)

	require.Equal(t, int64(1), h.count(t, &models.EmailLog{}, "event_id = ?", event.ID))
	require.Equal(t, int64(1), h.count(t, &models.ReminderJob{}, "id = ?", live.ID))
	require.Zero(t, h.count(t, &models.ReminderJob{}, "id = ?", orphan.ID))

	_, err = h.events.Get(ctx, event.ID)
	require.NoError(t, err)

	last, err := database.GetTimestamp(ctx, h.db, models.SettingLastRetentionRun)
	require.NoError(t, err)
	require.True(t, now.Equal(last))
}
