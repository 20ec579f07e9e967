package eligibility

import (
	"time"

	"github.com/solarmarket/creative-rotation/internal/creative"
)

// Request describes one slot request from a visitor page.
type Request struct {
	Position   creative.Position
	Device     creative.Device
	CategoryID string
	ProviderID string
	Limit      int
}

// Predicate is one independent targeting rule. Predicates are AND-combined,
// so a new targeting dimension is a new predicate, not an edit to an
// existing one.
type Predicate func(c creative.Creative, req Request, now time.Time) bool

func Live(c creative.Creative, _ Request, now time.Time) bool {
	return c.LiveAt(now)
}

func ByPosition(c creative.Creative, req Request, _ time.Time) bool {
	return c.SlotPosition == req.Position
}

func ByDevice(c creative.Creative, req Request, _ time.Time) bool {
	return c.DeviceTarget == creative.DeviceAll || c.DeviceTarget == req.Device
}

// ByCategory passes creatives with no category restriction, or whose
// category set contains the requested category. A request without a
// category matches everything.
func ByCategory(c creative.Creative, req Request, _ time.Time) bool {
	if req.CategoryID == "" || len(c.CategoryIDs) == 0 {
		return true
	}

	for _, id := range c.CategoryIDs {
		if id == req.CategoryID {
			return true
		}
	}

	return false
}

func ByProvider(c creative.Creative, req Request, _ time.Time) bool {
	if req.ProviderID == "" || c.ProviderID == "" {
		return true
	}

	return c.ProviderID == req.ProviderID
}

// Default is the stock predicate chain: scheduling window, position,
// device, category, provider.
func Default() []Predicate {
	return []Predicate{Live, ByPosition, ByDevice, ByCategory, ByProvider}
}

// Filter returns the creatives satisfying every predicate, preserving the
// input order.
func Filter(items []creative.Creative, req Request, now time.Time, preds ...Predicate) []creative.Creative {
	matched := make([]creative.Creative, 0, len(items))

	for _, item := range items {
		ok := true

		for _, pred := range preds {
			if !pred(item, req, now) {
				ok = false

				break
			}
		}

		if ok {
			matched = append(matched, item)
		}
	}

	return matched
}
