package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	parsed, err := ParseTimestamp("June 27, 2025 at 10:26:56 PM")
	require.NoError(t, err)

	assert.Equal(t, 2025, parsed.Year())
	assert.Equal(t, time.June, parsed.Month())
	assert.Equal(t, 27, parsed.Day())
	assert.Equal(t, 22, parsed.Hour())
	assert.Equal(t, 26, parsed.Minute())
	assert.Equal(t, 56, parsed.Second())

	_, offset := parsed.Zone()
	assert.Equal(t, 5*3600+30*60, offset)
	assert.Equal(t, "2025-06-27T22:26:56+05:30", parsed.Format(time.RFC3339))
}

func TestParseTimestampMorning(t *testing.T) {
	parsed, err := ParseTimestamp("January 3, 2024 at 9:05:07 AM")
	require.NoError(t, err)
	assert.Equal(t, 9, parsed.Hour())
	assert.Equal(t, 3, parsed.Day())
}

func TestParseTimestampNoon(t *testing.T) {
	parsed, err := ParseTimestamp("March 15, 2023 at 12:00:00 PM")
	require.NoError(t, err)
	assert.Equal(t, 12, parsed.Hour())
}

func TestParseTimestampMidnight(t *testing.T) {
	parsed, err := ParseTimestamp("March 15, 2023 at 12:00:00 AM")
	require.NoError(t, err)
	assert.Equal(t, 0, parsed.Hour())
}

func TestParseTimestampTrimsWhitespace(t *testing.T) {
	parsed, err := ParseTimestamp("  June 27, 2025 at 10:26:56 PM \n")
	require.NoError(t, err)
	assert.Equal(t, 2025, parsed.Year())
}

func TestParseTimestampRejectsUnexpectedFormats(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"2025-06-27 22:26:56",
		"June 27, 2025",
		"Updated 3 years ago",
	}
	for _, raw := range cases {
		_, err := ParseTimestamp(raw)
		assert.Error(t, err, "input %q", raw)
	}
}
