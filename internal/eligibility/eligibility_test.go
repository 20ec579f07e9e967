package eligibility

import (
	"testing"
	"time"

	"github.com/solarmarket/creative-rotation/internal/creative"
	"github.com/stretchr/testify/require"
)

func tp(t time.Time) *time.Time { return &t }

func activeCreative(id string) creative.Creative {
	return creative.Creative{
		ID:            id,
		TargetURL:     "https://example.com",
		SlotPosition:  creative.PositionHeader,
		DeviceTarget:  creative.DeviceAll,
		Status:        creative.StatusActive,
		DisplayPolicy: creative.PolicyAlways,
		StartsAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestFilter(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	req := Request{Position: creative.PositionHeader, Device: creative.DeviceDesktop}

	t.Run("window correctness", func(t *testing.T) {
		c := activeCreative("a")
		c.StartsAt = now.Add(-time.Hour)
		c.EndsAt = tp(now.Add(time.Hour))

		for _, tc := range []struct {
			at       time.Time
			eligible bool
		}{
			{now.Add(-2 * time.Hour), false},
			{now.Add(-time.Hour), true},
			{now, true},
			{now.Add(time.Hour - time.Second), true},
			{now.Add(time.Hour), false},
			{now.Add(2 * time.Hour), false},
		} {
			got := Filter([]creative.Creative{c}, req, tc.at, Default()...)
			require.Equal(t, tc.eligible, len(got) == 1, "at %v", tc.at)
		}
	})

	t.Run("inactive statuses never match", func(t *testing.T) {
		draft := activeCreative("draft")
		draft.Status = creative.StatusDraft

		paused := activeCreative("paused")
		paused.Status = creative.StatusPaused

		got := Filter([]creative.Creative{draft, paused}, req, now, Default()...)
		require.Empty(t, got)
	})

	t.Run("position must match", func(t *testing.T) {
		c := activeCreative("a")
		c.SlotPosition = creative.PositionFooter

		got := Filter([]creative.Creative{c}, req, now, Default()...)
		require.Empty(t, got)
	})

	t.Run("device all matches any request device", func(t *testing.T) {
		all := activeCreative("all")
		mobileOnly := activeCreative("mobile")
		mobileOnly.DeviceTarget = creative.DeviceMobile

		mobileReq := req
		mobileReq.Device = creative.DeviceMobile

		got := Filter([]creative.Creative{all, mobileOnly}, req, now, Default()...)
		require.Len(t, got, 1)
		require.Equal(t, "all", got[0].ID)

		got = Filter([]creative.Creative{all, mobileOnly}, mobileReq, now, Default()...)
		require.Len(t, got, 2)
	})

	t.Run("empty category set matches any category", func(t *testing.T) {
		anyCat := activeCreative("any")
		solar := activeCreative("solar")
		solar.CategoryIDs = []string{"solar", "roofing"}
		wind := activeCreative("wind")
		wind.CategoryIDs = []string{"wind"}

		catReq := req
		catReq.CategoryID = "solar"

		got := Filter([]creative.Creative{anyCat, solar, wind}, catReq, now, Default()...)
		require.Len(t, got, 2)
		require.Equal(t, "any", got[0].ID)
		require.Equal(t, "solar", got[1].ID)
	})

	t.Run("provider filter", func(t *testing.T) {
		unbound := activeCreative("unbound")
		mine := activeCreative("mine")
		mine.ProviderID = "p1"
		other := activeCreative("other")
		other.ProviderID = "p2"

		provReq := req
		provReq.ProviderID = "p1"

		got := Filter([]creative.Creative{unbound, mine, other}, provReq, now, Default()...)
		require.Len(t, got, 2)
	})

	t.Run("no predicates passes everything through", func(t *testing.T) {
		items := []creative.Creative{activeCreative("a"), activeCreative("b")}

		got := Filter(items, req, now)
		require.Equal(t, items, got)
	})

	t.Run("insertion order is preserved", func(t *testing.T) {
		items := []creative.Creative{activeCreative("c"), activeCreative("a"), activeCreative("b")}

		got := Filter(items, req, now, Default()...)
		require.Len(t, got, 3)
		require.Equal(t, "c", got[0].ID)
		require.Equal(t, "a", got[1].ID)
		require.Equal(t, "b", got[2].ID)
	})
}
