// Package selector decides which items of a feed are new relative to its
// watermark and in which order they are delivered.
package selector

import (
	"sort"
	"time"

	"feedwatch/relay/internal/models"
)

// DefaultFirstRunLimit caps the items announced for a feed that has never
// been delivered before.
const DefaultFirstRunLimit = 3

// Selection is the ordered delivery set for one feed in one cycle.
type Selection struct {
	Items  []models.DatedItem // Ascending by publish time
	Newest time.Time          // Maximum publish time among Items
}

// Empty reports whether there is nothing to deliver.
func (s Selection) Empty() bool {
	return len(s.Items) == 0
}

// Select computes the delivery set. When seen is false the feed has no
// watermark and only the newest firstRunLimit items are selected; otherwise
// every item strictly newer than last is selected. Items sharing a timestamp
// keep their source order.
func Select(items []models.DatedItem, last time.Time, seen bool, firstRunLimit int) Selection {
	var picked []models.DatedItem

	if !seen {
		if firstRunLimit <= 0 {
			firstRunLimit = DefaultFirstRunLimit
		}
		picked = append(picked, items...)
		sort.SliceStable(picked, func(i, j int) bool {
			return picked[i].PublishedAt.After(picked[j].PublishedAt)
		})
		if len(picked) > firstRunLimit {
			picked = picked[:firstRunLimit]
		}
	} else {
		for _, item := range items {
			if item.PublishedAt.After(last) {
				picked = append(picked, item)
			}
		}
	}

	sort.SliceStable(picked, func(i, j int) bool {
		a, b := picked[i], picked[j]
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.Before(b.PublishedAt)
		}
		return a.Seq < b.Seq
	})

	sel := Selection{Items: picked}
	for _, item := range picked {
		if item.PublishedAt.After(sel.Newest) {
			sel.Newest = item.PublishedAt
		}
	}
	return sel
}

// Batches splits items into consecutive slices of at most size elements.
func Batches(items []models.DatedItem, size int) [][]models.DatedItem {
	if size <= 0 {
		size = len(items)
	}
	var batches [][]models.DatedItem
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}
