// Package timestamp parses feed publish dates and persisted watermark values
// into comparable time.Time values that keep their original offset.
package timestamp

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"feedwatch/relay/internal/models"
)

// ErrMissing is returned when an item carries no publish date at all.
var ErrMissing = errors.New("missing publish date")

// stateLayout is lossless: a stored watermark must compare equal to the item
// timestamp it was taken from.
const stateLayout = time.RFC3339Nano

// publishedLayouts covers RFC 2822 as found in the wild (optional weekday,
// one or two digit day, numeric offset or zone name) and RFC 3339.
var publishedLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04 -0700",
	time.RFC822Z,
	time.RFC822,
	time.RFC3339Nano,
	time.RFC3339,
}

// rfc2822Zones maps the zone names RFC 2822 defines to numeric offsets.
// time.Parse would give names unknown to the local zone an offset of +0000.
var rfc2822Zones = map[string]string{
	"UT": "+0000", "GMT": "+0000", "Z": "+0000",
	"EST": "-0500", "EDT": "-0400",
	"CST": "-0600", "CDT": "-0500",
	"MST": "-0700", "MDT": "-0600",
	"PST": "-0800", "PDT": "-0700",
}

// numericZone rewrites a trailing RFC 2822 zone name as its offset. Military
// single-letter zones other than Z carry no reliable offset and become +0000.
func numericZone(raw string) string {
	i := strings.LastIndexByte(raw, ' ')
	if i < 0 {
		return raw
	}
	name := strings.ToUpper(raw[i+1:])
	if offset, ok := rfc2822Zones[name]; ok {
		return raw[:i+1] + offset
	}
	if len(name) == 1 && name[0] >= 'A' && name[0] <= 'Z' && name != "J" {
		return raw[:i+1] + "+0000"
	}
	return raw
}

// ParsePublished parses a feed-native publish date.
func ParsePublished(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrMissing
	}
	raw = numericZone(raw)

	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}

	// Dates without an offset are read as UTC.
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable publish date %q: %w", raw, err)
	}
	return t, nil
}

// ParseState parses a persisted watermark value.
func ParseState(s string) (time.Time, error) {
	t, err := time.Parse(stateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid watermark %q: %w", s, err)
	}
	return t, nil
}

// FormatState serializes a watermark for persistence.
func FormatState(t time.Time) string {
	return t.Format(stateLayout)
}

// DateItems keeps the items whose publish date parses, in source order, and
// reports how many were dropped.
func DateItems(items []models.RawItem) ([]models.DatedItem, int) {
	dated := make([]models.DatedItem, 0, len(items))
	skipped := 0
	for i, item := range items {
		t, err := ParsePublished(item.Published)
		if err != nil {
			skipped++
			continue
		}
		dated = append(dated, models.DatedItem{RawItem: item, PublishedAt: t, Seq: i})
	}
	return dated, skipped
}
