package activity

import (
	"errors"
	"time"
)

// DefaultSearchBuffer is applied on both sides of a start time when looking
// for existing activities. RunKeeper exports carry no timezone, so the real
// start can be off by up to a full UTC offset in either direction.
const DefaultSearchBuffer = 12 * time.Hour

// ErrInvalidTimestamp is returned when no start time is available.
var ErrInvalidTimestamp = errors.New("time arg must be a non-zero timestamp")

// Window is a closed time interval.
type Window struct {
	From time.Time
	To   time.Time
}

// DateRange returns the window [t-buffer, t+buffer].
func DateRange(t time.Time, buffer time.Duration) (Window, error) {
	if t.IsZero() {
		return Window{}, ErrInvalidTimestamp
	}
	return Window{
		From: t.Add(-buffer),
		To:   t.Add(buffer),
	}, nil
}
