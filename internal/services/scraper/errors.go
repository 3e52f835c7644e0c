package scraper

import "errors"

var (
	// ErrNavigation indicates a page load or selector wait timed out or the
	// transport failed. Transient: worth retrying within the same run.
	ErrNavigation = errors.New("navigation failed")

	// ErrAuthLost indicates the browser session is no longer signed in.
	// The owning worker stops immediately; retrying without the operator
	// re-authenticating would only burn requests.
	ErrAuthLost = errors.New("session not authenticated")

	// ErrCriticalFieldMissing indicates the page loaded but the title or body
	// could not be extracted. Not retried within a run; the record stays
	// pending and a future run picks it up again.
	ErrCriticalFieldMissing = errors.New("critical field missing")
)

// IsTransient reports whether err is worth retrying within the same run
func IsTransient(err error) bool {
	return errors.Is(err, ErrNavigation)
}
