package app

import "github.com/charlesng35/weddingdesk/internal/database"

// DatabaseSettings converts DatabaseConfig to the database package representation.
func (c DatabaseConfig) DatabaseSettings() (database.Config, error) {
	cfg, err := database.ConfigFromURL(c.URL, c.Path)
	if err != nil {
		return database.Config{}, err
	}
	cfg.MaxOpenConns = c.MaxOpenConns
	cfg.MaxIdleConns = c.MaxIdleConns
	cfg.ConnMaxLifetime = c.ConnMaxLifetime
	cfg.LogLevel = c.LogLevel
	return cfg, nil
}
