package tui

import (
	"sort"

	"devsonar/src/patterns"
	"devsonar/src/store"
)

// Item is one row of the viewer: the latest record of a fingerprint group.
// It implements bubbles/list.Item.
type Item struct {
	Record     store.Record
	Recurrence int
	Rank       int
}

// FilterValue is the value used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Record.Message }

// Title returns the primary text for the item (required by list.Item).
func (i Item) Title() string { return i.Record.Message }

// Description returns the secondary text for the item (required by list.Item).
func (i Item) Description() string { return i.Record.Source }

// BuildItems groups records by fingerprint and orders the groups by most recent occurrence.
func BuildItems(records []store.Record) []Item {
	index := make(map[string]int)
	var items []Item

	for _, r := range records {
		fp := r.Fingerprint
		if fp == "" {
			fp = patterns.Fingerprint(r.Message)
		}
		if i, ok := index[fp]; ok {
			items[i].Recurrence++
			if r.ForwardedAt.After(items[i].Record.ForwardedAt) {
				items[i].Record = r
			}
			continue
		}
		index[fp] = len(items)
		items = append(items, Item{Record: r, Recurrence: 1})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Record.ForwardedAt.After(items[j].Record.ForwardedAt)
	})
	for i := range items {
		items[i].Rank = i + 1
	}
	return items
}
