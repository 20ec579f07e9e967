package frequency

import (
	"context"
	"time"

	"github.com/solarmarket/creative-rotation/internal/creative"
)

// PolicyState is what the capper remembers about one (visitor, creative) pair.
type PolicyState struct {
	SessionShown bool   `json:"session_shown"`
	LastShownDay string `json:"last_shown_day"`
}

// Store is the key-value session-state contract. It can be backed by an
// in-memory map, Redis, or a client-local store interchangeably.
type Store interface {
	Get(ctx context.Context, key string, creativeID string) (PolicyState, error)
	Set(ctx context.Context, key string, creativeID string, state PolicyState) error
}

// Visitor identifies who is looking at the slot. SessionID lives for one
// browsing session; VisitorID survives across sessions and scopes the
// daily cap.
type Visitor struct {
	SessionID string
	VisitorID string
}

type Logger interface {
	Warn(msg string, keysAndValues ...interface{})
}

type Capper struct {
	store Store
	log   Logger
}

func New(store Store, log Logger) *Capper {
	return &Capper{store: store, log: log}
}

// Day is the calendar day used by the daily cap. Fixed at UTC.
func Day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (v Visitor) dailyKey() string {
	if v.VisitorID != "" {
		return v.VisitorID
	}

	// No durable visitor id: degrade to per-session daily capping.
	return v.SessionID
}

// Allowed reports whether the creative's display policy still permits
// showing it to this visitor. A failing store fails open: a missed cap is
// preferable to a broken page.
func (c *Capper) Allowed(ctx context.Context, v Visitor, cr creative.Creative, now time.Time) bool {
	switch cr.DisplayPolicy {
	case creative.PolicyOncePerSession:
		state, err := c.store.Get(ctx, v.SessionID, cr.ID)
		if err != nil {
			c.log.Warn("frequency store read failed, failing open", "creative_id", cr.ID, "error", err.Error())

			return true
		}

		return !state.SessionShown
	case creative.PolicyOncePerDay:
		state, err := c.store.Get(ctx, v.dailyKey(), cr.ID)
		if err != nil {
			c.log.Warn("frequency store read failed, failing open", "creative_id", cr.ID, "error", err.Error())

			return true
		}

		return state.LastShownDay != Day(now)
	}

	return true
}

// MarkShown records an actual display. It must be called only for creatives
// chosen for the slot, not for every eligible one, otherwise a creative that
// keeps losing to a higher-priority one would be starved by its own cap.
func (c *Capper) MarkShown(ctx context.Context, v Visitor, cr creative.Creative, now time.Time) {
	switch cr.DisplayPolicy {
	case creative.PolicyOncePerSession:
		state, _ := c.store.Get(ctx, v.SessionID, cr.ID)
		state.SessionShown = true

		if err := c.store.Set(ctx, v.SessionID, cr.ID, state); err != nil {
			c.log.Warn("cannot persist session cap", "creative_id", cr.ID, "error", err.Error())
		}
	case creative.PolicyOncePerDay:
		state, _ := c.store.Get(ctx, v.dailyKey(), cr.ID)
		state.LastShownDay = Day(now)

		if err := c.store.Set(ctx, v.dailyKey(), cr.ID, state); err != nil {
			c.log.Warn("cannot persist daily cap", "creative_id", cr.ID, "error", err.Error())
		}
	}
}
