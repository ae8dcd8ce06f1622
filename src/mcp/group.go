package mcp

import (
	"sort"

	"devsonar/src/patterns"
	"devsonar/src/sanitize"
	"devsonar/src/store"
)

// Default limits for list_errors.
const (
	DefaultListLimit = 20
	MaxListLimit     = 200

	// historyWindow is how many recent records are scanned to build groups.
	historyWindow = 1000

	summaryLength = 160
)

// GroupRecords groups records by fingerprint, most recently seen first, keeping at most
// limit groups. Records without a fingerprint are fingerprinted from their message.
func GroupRecords(records []store.Record, limit int) []ErrorGroup {
	byFingerprint := make(map[string]*ErrorGroup)
	var order []*ErrorGroup

	for _, r := range records {
		fp := r.Fingerprint
		if fp == "" {
			fp = patterns.Fingerprint(r.Message)
		}

		g, ok := byFingerprint[fp]
		if !ok {
			g = &ErrorGroup{
				Fingerprint: fp,
				LatestID:    r.ID,
				Message:     patterns.Summarize(sanitize.Clean(r.Message), summaryLength),
				Language:    r.Language,
				Source:      r.Source,
				FirstSeen:   r.ForwardedAt,
				LastSeen:    r.ForwardedAt,
			}
			byFingerprint[fp] = g
			order = append(order, g)
		}

		g.Recurrence++
		if r.Outcome == store.OutcomeFailed {
			g.Failed++
		}
		if r.ForwardedAt.Before(g.FirstSeen) {
			g.FirstSeen = r.ForwardedAt
		}
		if r.ForwardedAt.After(g.LastSeen) {
			g.LastSeen = r.ForwardedAt
			g.LatestID = r.ID
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].LastSeen.After(order[j].LastSeen)
	})

	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}

	groups := make([]ErrorGroup, len(order))
	for i, g := range order {
		groups[i] = *g
	}
	return groups
}

// toDetail converts a record, compressing its stack.
func toDetail(r store.Record, recurrence int) ErrorDetail {
	return ErrorDetail{
		ID:          r.ID,
		BatchID:     r.BatchID,
		Fingerprint: r.Fingerprint,
		Message:     sanitize.Clean(r.Message),
		Language:    r.Language,
		Source:      r.Source,
		Stack:       CompressStack(sanitize.Clean(r.Stack)),
		Context:     r.Context,
		ReportedAt:  r.ReportedAt,
		ForwardedAt: r.ForwardedAt,
		Outcome:     r.Outcome,
		Error:       r.Error,
		Recurrence:  recurrence,
	}
}
