package models

import "time"

const (
	// MaxDailySearches is the default number of searches allowed per window.
	MaxDailySearches = 3

	// QuotaWindow is the length of the rolling quota window.
	QuotaWindow = 24 * time.Hour
)

// QuotaState is the persisted counter-and-window pair backing the daily quota.
// WindowStart is epoch milliseconds.
type QuotaState struct {
	Count       int   `json:"count" yaml:"count"`
	WindowStart int64 `json:"windowStart" yaml:"window_start"`
}

// NewQuotaState returns a fresh window starting at now.
func NewQuotaState(now time.Time) QuotaState {
	return QuotaState{Count: 0, WindowStart: now.UnixMilli()}
}

// WindowStartTime converts WindowStart to a time.Time.
func (q QuotaState) WindowStartTime() time.Time {
	return time.UnixMilli(q.WindowStart)
}

// Expired reports whether more than window has elapsed since WindowStart.
// A state exactly window old is still current.
func (q QuotaState) Expired(now time.Time, window time.Duration) bool {
	return now.UnixMilli()-q.WindowStart > window.Milliseconds()
}

// ResetAt is the earliest instant at which the window will be considered stale.
func (q QuotaState) ResetAt(window time.Duration) time.Time {
	return time.UnixMilli(q.WindowStart + window.Milliseconds() + 1)
}

// Decision is the outcome of a quota check.
type Decision int

const (
	Denied Decision = iota
	Allowed
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "denied"
}
