// Package contracts defines the records exchanged between the classifier, the relay
// buffer, the forwarders and the broker topics.
package contracts

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidReport is returned when a report lacks its message or timestamp.
var ErrInvalidReport = errors.New("invalid error report")

// ErrorReport is the unit the relay buffer operates on.
// Message and Timestamp are always present; everything else may be empty.
type ErrorReport struct {
	// Human-readable description. Acts as the dedup key while a report is in flight.
	Message string `json:"message"`
	// Full stack or segment text.
	Stack string `json:"stack,omitempty"`
	// Free-form origin tag (e.g. "stderr-python", "go-http-middleware").
	Source string `json:"source,omitempty"`
	// Creation instant, RFC3339.
	Timestamp string `json:"timestamp"`
	// Optional open key/value map (language, detectedVia, ...).
	Context map[string]any `json:"context,omitempty"`
}

// Valid reports whether the required fields are present.
func (r ErrorReport) Valid() bool {
	return r.Message != "" && r.Timestamp != ""
}

// Validate returns an error wrapping ErrInvalidReport naming the first missing field.
func (r ErrorReport) Validate() error {
	switch {
	case r.Message == "":
		return fmt.Errorf("%w: missing message", ErrInvalidReport)
	case r.Timestamp == "":
		return fmt.Errorf("%w: missing timestamp", ErrInvalidReport)
	}
	return nil
}

// Language returns the "language" context entry, or "" when absent.
func (r ErrorReport) Language() string {
	if r.Context == nil {
		return ""
	}
	lang, _ := r.Context["language"].(string)
	return lang
}

// InFlightStatus is the only status an InFlightEntry ever has.
const InFlightStatus = "processing"

// InFlightEntry tracks one distinct message while its batch is being forwarded.
type InFlightEntry struct {
	Message      string    `json:"message"`
	Source       string    `json:"source,omitempty"`
	SentAt       time.Time `json:"sent_at"`
	SkippedCount int       `json:"skipped_count"`
	Status       string    `json:"status"`
}

// Batch is a flushed set of reports handed to a forwarder.
// Published to: devsonar.errors.batches
// Key: {id}
type Batch struct {
	ID        string        `json:"id"`
	Reports   []ErrorReport `json:"reports"`
	FlushedAt string        `json:"flushed_at"`
}

// HealthResponse is returned by the relay's health endpoint.
type HealthResponse struct {
	Status    string  `json:"status"`
	Buffered  int     `json:"buffered"`
	InFlight  int     `json:"in_flight"`
	SessionID *string `json:"session_id"`
	Target    string  `json:"target"`
}

// Topic names used when reports travel over a broker.
const (
	// TopicReports carries individual ErrorReports published by remote runners.
	TopicReports = "devsonar.errors.reports"

	// TopicBatches carries forwarded batches.
	TopicBatches = "devsonar.errors.batches"
)

// NowTimestamp formats t the way reports carry timestamps on the wire.
func NowTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
