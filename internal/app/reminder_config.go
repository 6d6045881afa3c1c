package app

import (
	"strings"
	"time"

	"github.com/charlesng35/weddingdesk/internal/services"
)

// Location resolves the configured timezone. When the zone database does not
// know the name the second return value is false and UTC is returned.
func (c ReminderConfig) Location() (*time.Location, bool) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.UTC, true
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC, false
	}
	return loc, true
}

// ReminderSettings converts ReminderConfig to scheduler options bound to loc.
func (c ReminderConfig) ReminderSettings(loc *time.Location) []services.ReminderOption {
	return []services.ReminderOption{
		services.WithReminderLocation(loc),
		services.WithReminderLeadDays(c.LeadDays),
		services.WithReminderFollowUps(c.FollowUpFirstDays, c.FollowUpSecondDays),
		services.WithReminderBatchSize(c.BatchSize),
		services.WithReminderMaxAttempts(c.MaxAttempts),
		services.WithReminderLease(c.Lease),
		services.WithReminderRetry(c.RetryDelay, c.RetryMax),
	}
}
