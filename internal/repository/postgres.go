package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresDB struct {
	sqlArchive
}

func NewPostgres(ctx context.Context, dsn string) (*PostgresDB, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/accident_alerts?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	p := &PostgresDB{sqlArchive{
		db:   db,
		bind: func(n int) string { return fmt.Sprintf("$%d", n) },
	}}
	if err := p.init(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}
	return p, nil
}

func (p *PostgresDB) init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS archived_alerts (
			id BIGSERIAL PRIMARY KEY,
			seq BIGINT NOT NULL,
			receipt TEXT NOT NULL,
			severity TEXT NOT NULL,
			payload TEXT NOT NULL,
			received_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_archived_alerts_severity ON archived_alerts(severity)`,
		`CREATE INDEX IF NOT EXISTS idx_archived_alerts_received_at ON archived_alerts(received_at)`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
