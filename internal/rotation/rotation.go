package rotation

import (
	"sort"

	"github.com/solarmarket/creative-rotation/internal/creative"
)

// Order returns a copy sorted for display: lowest priority value first,
// ties broken by earliest creation.
func Order(items []creative.Creative) []creative.Creative {
	ordered := make([]creative.Creative, len(items))
	copy(ordered, items)

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}

		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	return ordered
}

// Pick takes the head n of an already ordered set. A single-creative slot
// asks for n=1; a carousel asks for the full list and cycles client-side.
func Pick(items []creative.Creative, n int) []creative.Creative {
	if n <= 0 {
		n = 1
	}

	if n > len(items) {
		n = len(items)
	}

	return items[:n]
}
