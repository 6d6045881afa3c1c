package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const sqliteBusyTimeoutMS = 5000

func openSQLite(cfg Config) (*gorm.DB, error) {
	dsn := cfg.DSN
	inMemory := false

	if dsn == "" {
		path := strings.TrimSpace(cfg.Path)
		switch {
		case path == "", strings.EqualFold(path, ":memory:"):
			// Every in-memory handle gets its own named database so parallel
			// tests never share state.
			dsn = fmt.Sprintf("file:weddingdesk-%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
			inMemory = true
		default:
			if err := ensureDir(path); err != nil {
				return nil, err
			}
			dsn = fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=%d&_txlock=immediate",
				filepath.ToSlash(path), sqliteBusyTimeoutMS)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(cfg))
	if err != nil {
		return nil, err
	}

	if inMemory {
		// A shared-cache memory database reports table locks instead of
		// waiting, so all work is funnelled through one connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := enableForeignKeys(db); err != nil {
		return nil, err
	}

	return db, nil
}

// sqlitePathFromURL strips the scheme using SQLAlchemy conventions: three
// slashes for a relative path and four for an absolute one.
func sqlitePathFromURL(raw string) string {
	_, rest, _ := strings.Cut(raw, "://")
	if rest == "" || strings.EqualFold(rest, ":memory:") || strings.EqualFold(rest, "/:memory:") {
		return ":memory:"
	}
	if strings.HasPrefix(rest, "/") {
		rest = rest[1:]
	}
	if idx := strings.Index(rest, "?"); idx >= 0 {
		rest = rest[:idx]
	}
	return rest
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func enableForeignKeys(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil && err != sql.ErrConnDone {
		return err
	}
	return nil
}
