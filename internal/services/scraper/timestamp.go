package scraper

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayout matches the revision log's display format,
// e.g. "June 27, 2025 at 10:26:56 PM".
const timestampLayout = "January 2, 2006 at 3:04:05 PM"

// istZone is the zone the source renders revision timestamps in. Fixed
// rather than loaded from the tz database so parsing does not depend on
// the host's zoneinfo files.
var istZone = time.FixedZone("IST", 5*3600+30*60)

// ParseTimestamp parses a revision log timestamp into an IST-anchored time.
// The raw string is always kept by the caller; a parse failure only means
// the structured form is unavailable.
func ParseTimestamp(raw string) (time.Time, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	t, err := time.ParseInLocation(timestampLayout, cleaned, istZone)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t, nil
}
