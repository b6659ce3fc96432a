package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type SQLiteDB struct {
	sqlArchive
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("error creating database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{sqlArchive{
		db:   db,
		bind: func(int) string { return "?" },
	}}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS archived_alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			seq INTEGER NOT NULL,
			receipt TEXT NOT NULL,
			severity TEXT NOT NULL,
			payload TEXT NOT NULL,
			received_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_archived_alerts_severity ON archived_alerts(severity);
		CREATE INDEX IF NOT EXISTS idx_archived_alerts_received_at ON archived_alerts(received_at);
	`

	_, err := s.db.Exec(schema)
	return err
}
