// Package store keeps a history of forwarded error reports.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get when no record has the requested id.
var ErrNotFound = errors.New("record not found")

// Forward outcomes recorded with each report.
const (
	OutcomeForwarded = "forwarded"
	OutcomeFailed    = "failed"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Record is one forwarded report.
type Record struct {
	ID          string         `json:"id"`
	BatchID     string         `json:"batch_id"`
	Fingerprint string         `json:"fingerprint"`
	Message     string         `json:"message"`
	Source      string         `json:"source,omitempty"`
	Language    string         `json:"language,omitempty"`
	Stack       string         `json:"stack,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
	ReportedAt  string         `json:"reported_at"`
	ForwardedAt time.Time      `json:"forwarded_at"`
	Outcome     string         `json:"outcome"`
	Error       string         `json:"error,omitempty"`
}

// Store persists records.
type Store interface {
	// SaveRecords stores a batch of records atomically where the backend allows it.
	SaveRecords(ctx context.Context, records []Record) error

	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)

	// Get returns the record with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)

	// Prune deletes records forwarded before the given time and returns how many were removed.
	Prune(ctx context.Context, before time.Time) (int, error)

	// Close releases the backend.
	Close() error
}

// Open creates the store for a driver name.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case DriverMemory, "":
		return NewMemoryStore(), nil
	case DriverSQLite:
		return NewSQLiteStore(ctx, dsn)
	case DriverPostgres:
		return NewPostgresStore(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
