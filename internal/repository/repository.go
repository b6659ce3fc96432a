package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mr1hm/go-accident-alerts/internal/config"
	"github.com/mr1hm/go-accident-alerts/internal/ledger"
)

// Record is one archived ledger append.
type Record struct {
	Seq        uint64          `json:"seq"`
	Receipt    string          `json:"receipt"`
	Severity   string          `json:"severity"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Filter narrows List. Results are ordered newest first.
type Filter struct {
	Severity string
	Limit    int
	Since    *time.Time
}

// Archive is an append-only copy of everything the ledger accepted. It is
// never read back into the ledger.
type Archive interface {
	Append(ctx context.Context, r Record) error
	List(ctx context.Context, opts Filter) ([]Record, error)
	Close() error
}

func NewRecord(e ledger.Entry) (Record, error) {
	payload, err := json.Marshal(e.Alert)
	if err != nil {
		return Record{}, fmt.Errorf("error encoding alert %d: %w", e.Seq, err)
	}
	return Record{
		Seq:        e.Seq,
		Receipt:    e.Receipt,
		Severity:   e.Alert.Severity(),
		Payload:    payload,
		ReceivedAt: e.ReceivedAt,
	}, nil
}

// NewArchive opens the archive backend named by cfg.Driver.
func NewArchive(ctx context.Context, cfg config.ArchiveConfig) (Archive, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		return NewSQLiteDB(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported archive driver: %s", cfg.Driver)
	}
}

// sqlArchive holds the queries shared by both drivers. bind renders the
// driver's placeholder for the n-th argument.
type sqlArchive struct {
	db   *sql.DB
	bind func(n int) string
}

func (s *sqlArchive) Append(ctx context.Context, r Record) error {
	query := fmt.Sprintf(
		`INSERT INTO archived_alerts (seq, receipt, severity, payload, received_at) VALUES (%s, %s, %s, %s, %s)`,
		s.bind(1), s.bind(2), s.bind(3), s.bind(4), s.bind(5),
	)
	_, err := s.db.ExecContext(ctx, query,
		int64(r.Seq),
		r.Receipt,
		r.Severity,
		string(r.Payload),
		r.ReceivedAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("error archiving alert %d: %w", r.Seq, err)
	}
	return nil
}

func (s *sqlArchive) List(ctx context.Context, opts Filter) ([]Record, error) {
	query := `SELECT seq, receipt, severity, payload, received_at FROM archived_alerts WHERE 1=1`
	var args []any

	if opts.Severity != "" {
		args = append(args, opts.Severity)
		query += " AND severity = " + s.bind(len(args))
	}
	if opts.Since != nil {
		args = append(args, opts.Since.UTC().UnixNano())
		query += " AND received_at >= " + s.bind(len(args))
	}

	// Newest first, so a limit keeps the most recent records.
	query += " ORDER BY id DESC"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += " LIMIT " + s.bind(len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing archived alerts: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			r        Record
			seq      int64
			payload  string
			received int64
		)
		if err := rows.Scan(&seq, &r.Receipt, &r.Severity, &payload, &received); err != nil {
			return nil, fmt.Errorf("error scanning archived alert: %w", err)
		}
		r.Seq = uint64(seq)
		r.Payload = json.RawMessage(payload)
		r.ReceivedAt = time.Unix(0, received).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *sqlArchive) Close() error {
	return s.db.Close()
}
