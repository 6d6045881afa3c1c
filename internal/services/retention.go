package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/weddingdesk/internal/database"
	"github.com/charlesng35/weddingdesk/internal/models"
)

const defaultRetentionDays = 180

// RetentionStats counts rows removed by one pruning run.
type RetentionStats struct {
	EmailLogs     int64
	StatusChanges int64
	ReminderJobs  int64
}

// RetentionOption customises a RetentionService.
type RetentionOption func(*RetentionService)

// WithRetentionDays sets the age after which rows are pruned.
func WithRetentionDays(days int) RetentionOption {
	return func(s *RetentionService) {
		if days > 0 {
			s.days = days
		}
	}
}

// WithRetentionClock injects a custom clock primarily for testing.
func WithRetentionClock(clock func() time.Time) RetentionOption {
	return func(s *RetentionService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// RetentionService prunes delivery logs, audit rows and settled reminder jobs.
// Events themselves are never pruned.
type RetentionService struct {
	db   *gorm.DB
	days int
	now  func() time.Time
}

// NewRetentionService constructs a RetentionService.
func NewRetentionService(db *gorm.DB, opts ...RetentionOption) (*RetentionService, error) {
	if db == nil {
		return nil, errors.New("retention service: db is required")
	}
	s := &RetentionService{db: db, days: defaultRetentionDays, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Prune removes rows older than the retention window.
func (s *RetentionService) Prune(ctx context.Context) (RetentionStats, error) {
	ctx = ensureContext(ctx)
	now := s.now().UTC()
	cutoff := now.AddDate(0, 0, -s.days)
	stats := RetentionStats{}

	if result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.EmailLog{}); result.Error != nil {
		return stats, fmt.Errorf("retention: email logs: %w", result.Error)
	} else {
		stats.EmailLogs = result.RowsAffected
	}

	if result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.StatusChange{}); result.Error != nil {
		return stats, fmt.Errorf("retention: status changes: %w", result.Error)
	} else {
		stats.StatusChanges = result.RowsAffected
	}

	settled := []models.ReminderJobStatus{models.ReminderJobDone, models.ReminderJobCancelled, models.ReminderJobFailed}
	if result := s.db.WithContext(ctx).
		Where("status IN ? AND completed_at < ?", settled, cutoff).
		Where("NOT EXISTS (SELECT 1 FROM events WHERE events.id = reminder_jobs.event_id)").
		Delete(&models.ReminderJob{}); result.Error != nil {
		return stats, fmt.Errorf("retention: reminder jobs: %w", result.Error)
	} else {
		stats.ReminderJobs = result.RowsAffected
	}

	if err := database.RecordTimestamp(ctx, s.db, models.SettingLastRetentionRun, now); err != nil {
		return stats, fmt.Errorf("retention: record run: %w", err)
	}
	return stats, nil
}
