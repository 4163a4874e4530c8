package model

import (
	"encoding/json"
	"time"
)

// isoLayout is the timestamp form the desktop UI writes: UTC with exactly
// three fractional digits.
const isoLayout = "2006-01-02T15:04:05.000Z"

// isoTime marshals a time.Time in isoLayout. Decoding goes through
// time.Time, which accepts any RFC 3339 value.
type isoTime time.Time

func (t isoTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(isoLayout))
}

func isoPtr(t *time.Time) *isoTime {
	if t == nil {
		return nil
	}
	v := isoTime(*t)
	return &v
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// OptionalString returns nil for the empty string, the way the UI stores an
// unset optional field as null.
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string, or "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
