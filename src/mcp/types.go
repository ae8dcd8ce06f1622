// Package mcp exposes the error history to LLM agents over the Model Context Protocol.
package mcp

import "time"

// ListResponse is returned by list_errors.
type ListResponse struct {
	// Records is the number of history records the groups were built from.
	Records int          `json:"records"`
	Groups  []ErrorGroup `json:"groups"`
}

// ErrorGroup collapses records sharing a fingerprint.
type ErrorGroup struct {
	Fingerprint string    `json:"fingerprint"`
	LatestID    string    `json:"latest_id"`
	Message     string    `json:"message"`
	Language    string    `json:"language,omitempty"`
	Source      string    `json:"source,omitempty"`
	Recurrence  int       `json:"recurrence"`
	Failed      int       `json:"failed_forwards,omitempty"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

// ErrorDetail is returned by get_error.
type ErrorDetail struct {
	ID          string         `json:"id"`
	BatchID     string         `json:"batch_id"`
	Fingerprint string         `json:"fingerprint"`
	Message     string         `json:"message"`
	Language    string         `json:"language,omitempty"`
	Source      string         `json:"source,omitempty"`
	Stack       string         `json:"stack"`
	Context     map[string]any `json:"context,omitempty"`
	ReportedAt  string         `json:"reported_at"`
	ForwardedAt time.Time      `json:"forwarded_at"`
	Outcome     string         `json:"outcome"`
	Error       string         `json:"error,omitempty"`
	// Recurrence counts records with the same fingerprint in the recent window.
	Recurrence int `json:"recurrence"`
}
