package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// NewSQLiteStore creates a Store backed by SQLite (for local/development and tests).
// ":memory:" opens a private in-memory database on a single connection.
func NewSQLiteStore(path string, logger logrus.FieldLogger) (*SQLStore, error) {
	inMemory := path == ":memory:" || strings.HasPrefix(path, "file::memory:")

	dsn := path
	if inMemory {
		dsn += "?_foreign_keys=on"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn += "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	// Every new connection to :memory: is a fresh, empty database
	if inMemory {
		db.SetMaxOpenConns(1)
	}

	return &SQLStore{
		db:      db,
		dialect: "sqlite",
		logger:  logger.WithField("component", "storage"),
	}, nil
}
