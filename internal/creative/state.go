package creative

import "time"

// State is the effective scheduling state of a creative at some instant.
// It is always derived from the stored fields and the clock, never stored
// itself, so it cannot drift from wall-clock time.
type State string

const (
	StateDraft     State = "draft"
	StateScheduled State = "scheduled"
	StateActive    State = "active"
	StatePaused    State = "paused"
	StateExpired   State = "expired"
)

// StateAt derives the effective state from (status, starts_at, ends_at, now).
// Expiry wins over everything: once the window has closed the creative stays
// expired until an administrator edits ends_at.
func (c Creative) StateAt(now time.Time) State {
	if c.EndsAt != nil && !now.Before(*c.EndsAt) {
		return StateExpired
	}

	switch c.Status {
	case StatusDraft:
		return StateDraft
	case StatusPaused:
		return StatePaused
	}

	if now.Before(c.StartsAt) {
		return StateScheduled
	}

	return StateActive
}

// LiveAt reports whether the creative may be served at the given instant.
func (c Creative) LiveAt(now time.Time) bool {
	return c.StateAt(now) == StateActive
}
