package db

import "time"

// nilIfZeroTime returns nil for the zero time so COALESCE defaults apply,
// and a pointer to t otherwise.
func nilIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
