package database

import (
	"errors"
	"net/url"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openPostgres(cfg Config) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres configuration requires a connection url")
	}
	return gorm.Open(postgres.Open(cfg.DSN), gormConfig(cfg))
}

// postgresDSN normalises a postgres URL for pgx, defaulting sslmode to prefer.
func postgresDSN(u *url.URL) string {
	normalised := *u
	normalised.Scheme = "postgres"

	query := normalised.Query()
	if query.Get("sslmode") == "" {
		query.Set("sslmode", "prefer")
	}
	normalised.RawQuery = query.Encode()
	return normalised.String()
}
