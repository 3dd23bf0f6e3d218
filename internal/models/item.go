package models

import "time"

// RawItem is one entry of a parsed feed document. All fields are optional and
// Published is the feed-supplied date string, not yet parsed.
type RawItem struct {
	Title       string
	Link        string
	Description string
	Published   string
}

// DatedItem is a RawItem whose publish date parsed successfully.
type DatedItem struct {
	RawItem
	PublishedAt time.Time
	Seq         int // Position in the source document
}
