// Package service contains the library's business operations.
//
// LAYERS:
//
//	Handler (bridge)   → parses requests, writes {success, ...} envelopes
//	Service            → validates input, encodes passwords, moves files
//	Repository         → one critical section of the document store each
//
// Services never hold the document lock themselves. Anything slow that is
// not document state (copying a PDF, reading files for the listing,
// deleting a replaced file) happens before or after the repository call,
// so a large upload never blocks a page-turn from being recorded.
package service

import (
	"time"

	"github.com/rs/xid"
)

// Clock returns the current time. Tests inject a fixed one.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// newID returns a time-ordered unique id.
func newID() string {
	return xid.New().String()
}
