package app

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"

	appValidator "github.com/charlesng35/weddingdesk/pkg/validator"
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}

	var errs error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	if u, err := url.Parse(c.Server.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = multierr.Append(errs, fmt.Errorf("server.base_url %q must be an absolute http(s) url", c.Server.BaseURL))
	}

	if _, err := c.Database.DatabaseSettings(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("database.url: %w", err))
	}

	for key, value := range map[string]string{
		"email.sender":        c.Email.Sender,
		"email.catering_team": c.Email.CateringTeam,
	} {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if err := appValidator.ValidateVar(strings.TrimSpace(value), "email"); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s %q is not a valid address", key, value))
		}
	}

	switch strings.ToLower(strings.TrimSpace(c.Email.Provider)) {
	case "", "smtp", "ses", "log":
	default:
		errs = multierr.Append(errs, fmt.Errorf("email.provider %q is not supported", c.Email.Provider))
	}

	if c.Reminders.LeadDays < 0 {
		errs = multierr.Append(errs, fmt.Errorf("reminders.lead_days must not be negative"))
	}
	if c.Reminders.FollowUpFirstDays < 0 {
		errs = multierr.Append(errs, fmt.Errorf("reminders.follow_up_first_days must not be negative"))
	}
	if c.Reminders.FollowUpSecondDays < 0 {
		errs = multierr.Append(errs, fmt.Errorf("reminders.follow_up_second_days must not be negative"))
	}
	if c.Reminders.MaxAttempts < 1 {
		errs = multierr.Append(errs, fmt.Errorf("reminders.max_attempts must be at least 1"))
	}
	if _, err := cron.ParseStandard(c.Reminders.Schedule); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("reminders.schedule: %w", err))
	}

	if c.Retention.Enabled {
		if c.Retention.Days <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("retention.days must be positive"))
		}
		if _, err := cron.ParseStandard(c.Retention.Schedule); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("retention.schedule: %w", err))
		}
	}

	return errs
}
