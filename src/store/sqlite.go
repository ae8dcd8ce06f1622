package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS records (
    id           TEXT PRIMARY KEY,
    batch_id     TEXT NOT NULL,
    fingerprint  TEXT NOT NULL,
    message      TEXT NOT NULL,
    source       TEXT NOT NULL DEFAULT '',
    language     TEXT NOT NULL DEFAULT '',
    stack        TEXT NOT NULL DEFAULT '',
    context      TEXT NOT NULL DEFAULT '',
    reported_at  TEXT NOT NULL DEFAULT '',
    forwarded_at TEXT NOT NULL,
    outcome      TEXT NOT NULL,
    error        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS records_forwarded_at ON records (forwarded_at);
CREATE INDEX IF NOT EXISTS records_fingerprint ON records (fingerprint);
`

// sqliteTimeFormat is fixed-width so that text ordering matches time ordering.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore keeps the history in a local SQLite file. It is the default for single-machine use.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultSQLitePath returns ~/.devsonar/history.db.
func DefaultSQLitePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".devsonar", "history.db"), nil
}

// NewSQLiteStore opens (and creates if needed) the database at path.
// An empty path selects DefaultSQLitePath.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		p, err := DefaultSQLitePath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveRecords inserts or replaces records in one transaction.
func (s *SQLiteStore) SaveRecords(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO records (
			id, batch_id, fingerprint, message, source, language, stack, context,
			reported_at, forwarded_at, outcome, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		contextJSON, err := marshalContext(r.Context)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			r.ID, r.BatchID, r.Fingerprint, r.Message, r.Source, r.Language, r.Stack, contextJSON,
			r.ReportedAt, r.ForwardedAt.UTC().Format(sqliteTimeFormat), r.Outcome, r.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to save record %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, fingerprint, message, source, language, stack, context,
		       reported_at, forwarded_at, outcome, error
		FROM records
		ORDER BY forwarded_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

// Get returns a record by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, batch_id, fingerprint, message, source, language, stack, context,
		       reported_at, forwarded_at, outcome, error
		FROM records
		WHERE id = ?
	`, id)

	r, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return r, err
}

// Prune deletes records forwarded before the cutoff.
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM records WHERE forwarded_at < ?",
		before.UTC().Format(sqliteTimeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune records: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row rowScanner) (Record, error) {
	var r Record
	var contextJSON, forwardedAt string
	err := row.Scan(
		&r.ID, &r.BatchID, &r.Fingerprint, &r.Message, &r.Source, &r.Language, &r.Stack, &contextJSON,
		&r.ReportedAt, &forwardedAt, &r.Outcome, &r.Error,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("failed to scan record: %w", err)
	}

	r.ForwardedAt, err = time.Parse(sqliteTimeFormat, forwardedAt)
	if err != nil {
		return Record{}, fmt.Errorf("invalid forwarded_at %q: %w", forwardedAt, err)
	}
	if r.Context, err = unmarshalContext([]byte(contextJSON)); err != nil {
		return Record{}, err
	}
	return r, nil
}

func marshalContext(ctx map[string]any) (string, error) {
	if len(ctx) == 0 {
		return "", nil
	}
	data, err := json.Marshal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to marshal context: %w", err)
	}
	return string(data), nil
}

func unmarshalContext(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var ctx map[string]any
	if err := json.Unmarshal(data, &ctx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal context: %w", err)
	}
	return ctx, nil
}
