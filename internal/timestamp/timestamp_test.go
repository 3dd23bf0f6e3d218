package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedwatch/relay/internal/models"
)

func TestParsePublished(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   time.Time
		offset int
	}{
		{"rfc1123z", "Thu, 19 Feb 2026 08:00:00 +0800", time.Date(2026, 2, 19, 0, 0, 0, 0, time.UTC), 8 * 3600},
		{"single digit day", "Mon, 2 Feb 2026 10:30:00 -0500", time.Date(2026, 2, 2, 15, 30, 0, 0, time.UTC), -5 * 3600},
		{"no weekday", "2 Feb 2026 10:30:00 +0000", time.Date(2026, 2, 2, 10, 30, 0, 0, time.UTC), 0},
		{"gmt zone", "Tue, 03 Feb 2026 12:00:00 GMT", time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC), 0},
		{"est zone", "Tue, 10 Jun 2025 09:00:00 EST", time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC), -5 * 3600},
		{"pdt zone", "Tue, 10 Jun 2025 09:00:00 PDT", time.Date(2025, 6, 10, 16, 0, 0, 0, time.UTC), -7 * 3600},
		{"cdt zone no weekday", "10 Jun 2025 09:00:00 CDT", time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC), -5 * 3600},
		{"ut zone", "Tue, 10 Jun 2025 09:00:00 UT", time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC), 0},
		{"military zone", "Tue, 10 Jun 2025 09:00:00 Q", time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC), 0},
		{"rfc822 est", "10 Jun 25 09:00 EST", time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC), -5 * 3600},
		{"rfc3339", "2026-02-19T09:00:00+08:00", time.Date(2026, 2, 19, 1, 0, 0, 0, time.UTC), 8 * 3600},
		{"surrounding whitespace", "  Thu, 19 Feb 2026 08:00:00 +0000\n", time.Date(2026, 2, 19, 8, 0, 0, 0, time.UTC), 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParsePublished(tc.input)
			require.NoError(t, err)
			assert.True(t, got.Equal(tc.want), "got %s, want %s", got, tc.want)
			_, offset := got.Zone()
			assert.Equal(t, tc.offset, offset)
		})
	}
}

func TestNamedZoneMatchesNumericOffset(t *testing.T) {
	named, err := ParsePublished("Tue, 10 Jun 2025 09:00:00 EST")
	require.NoError(t, err)
	numeric, err := ParsePublished("Tue, 10 Jun 2025 09:00:00 -0500")
	require.NoError(t, err)
	assert.True(t, named.Equal(numeric))

	later, err := ParsePublished("Tue, 10 Jun 2025 13:30:00 +0000")
	require.NoError(t, err)
	assert.True(t, named.After(later), "EST item must sort after an earlier UTC item")
}

func TestParsePublishedRejects(t *testing.T) {
	_, err := ParsePublished("")
	assert.ErrorIs(t, err, ErrMissing)

	_, err = ParsePublished("   ")
	assert.ErrorIs(t, err, ErrMissing)

	_, err = ParsePublished("not a date at all")
	assert.Error(t, err)
}

func TestStateRoundTripKeepsNanosAndOffset(t *testing.T) {
	zone := time.FixedZone("", 2*3600)
	in := time.Date(2026, 3, 1, 10, 11, 12, 123456789, zone)

	s := FormatState(in)
	assert.Equal(t, "2026-03-01T10:11:12.123456789+02:00", s)

	out, err := ParseState(s)
	require.NoError(t, err)
	assert.True(t, out.Equal(in))
	_, offset := out.Zone()
	assert.Equal(t, 2*3600, offset)
}

func TestParseStateInvalid(t *testing.T) {
	_, err := ParseState("yesterday")
	assert.Error(t, err)
}

func TestDateItemsExcludesUndatable(t *testing.T) {
	items := []models.RawItem{
		{Title: "a", Published: "Thu, 19 Feb 2026 08:00:00 +0000"},
		{Title: "b"},
		{Title: "c", Published: "garbage"},
		{Title: "d", Published: "Thu, 19 Feb 2026 09:00:00 +0000"},
	}

	dated, skipped := DateItems(items)
	assert.Equal(t, 2, skipped)
	require.Len(t, dated, 2)
	assert.Equal(t, "a", dated[0].Title)
	assert.Equal(t, 0, dated[0].Seq)
	assert.Equal(t, "d", dated[1].Title)
	assert.Equal(t, 3, dated[1].Seq)
}
