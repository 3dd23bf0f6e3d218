// Package sanitize turns free-form feed text into plain text fit for a
// notification card.
package sanitize

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxDescriptionLength is the display length of a card description, in characters.
	MaxDescriptionLength = 200
	// MaxTitleLength matches the webhook's title limit.
	MaxTitleLength = 256
	// TruncationMarker is appended to text cut at its maximum length.
	TruncationMarker = "..."

	noTitle       = "No Title"
	noDescription = "No description"
)

// Text strips markup, turns &nbsp; into a space, trims surrounding whitespace
// and truncates to max characters. A max of zero or less disables truncation.
func Text(raw string, max int) string {
	s := strings.TrimSpace(strings.ReplaceAll(StripTags(raw), "&nbsp;", " "))
	return Truncate(s, max)
}

// StripTags drops everything between '<' and '>'. Nesting is not tracked.
func StripTags(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inside := false
	for _, r := range s {
		switch {
		case r == '<':
			inside = true
		case r == '>':
			inside = false
		case !inside:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Truncate cuts s to max runes, appending TruncationMarker when it cuts.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i] + TruncationMarker
		}
		n++
	}
	return s
}

// Title cleans an item title for display.
func Title(raw string) string {
	if s := Text(raw, MaxTitleLength); s != "" {
		return s
	}
	return noTitle
}

// Description cleans an item description for display.
func Description(raw string) string {
	if s := Text(raw, MaxDescriptionLength); s != "" {
		return s
	}
	return noDescription
}
