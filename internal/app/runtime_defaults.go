package app

import (
	"fmt"
	"strings"

	"github.com/charlesng35/weddingdesk/pkg/crypto"
)

// ApplyRuntimeDefaults fills values derived from other settings. It returns a
// map describing which keys were derived so callers can log the event without
// exposing values.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	derived := make(map[string]bool)

	cfg.Server.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Server.BaseURL), "/")

	if strings.TrimSpace(cfg.Email.CateringTeam) == "" && strings.TrimSpace(cfg.Email.Sender) != "" {
		cfg.Email.CateringTeam = strings.TrimSpace(cfg.Email.Sender)
		derived["email.catering_team"] = true
	}

	if strings.TrimSpace(cfg.Admin.PasswordHash) == "" && cfg.Admin.Password != "" {
		hash, err := crypto.HashPassword(cfg.Admin.Password)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		cfg.Admin.PasswordHash = hash
		derived["admin.password_hash"] = true
	}
	cfg.Admin.Password = ""

	return derived, nil
}

// AdminEnabled reports whether admin credentials are configured.
func (c AdminConfig) AdminEnabled() bool {
	return strings.TrimSpace(c.Username) != "" && strings.TrimSpace(c.PasswordHash) != ""
}
