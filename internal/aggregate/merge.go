// Package aggregate reduces all source outputs into the canonical pickup
// timeline and owns the refresh session that recomputes and republishes it.
package aggregate

import (
	"sort"

	"wastebot/internal/waste"
)

// Merge buckets occurrences by day, unions the types contributed to each
// day, sorts ascending, drops days before today and caps the result.
//
// Properties relied on elsewhere:
//   - idempotent: merging the same input again yields the same sequence
//   - days are unique and strictly ascending
//   - each day's type set is non-empty and duplicate-free
func Merge(occs []waste.Occurrence, today waste.Date, maxEvents int) []waste.Event {
	byDay := make(map[waste.Date]*waste.Event)
	for _, occ := range occs {
		if occ.Type == "" || occ.Day.IsZero() {
			continue
		}
		ev, ok := byDay[occ.Day]
		if !ok {
			ev = &waste.Event{Day: occ.Day}
			byDay[occ.Day] = ev
		}
		if !ev.HasType(occ.Type) {
			ev.Types = append(ev.Types, occ.Type)
		}
	}

	out := make([]waste.Event, 0, len(byDay))
	for _, ev := range byDay {
		if ev.Day.Before(today) {
			continue
		}
		out = append(out, *ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })

	if maxEvents > 0 && len(out) > maxEvents {
		out = out[:maxEvents]
	}
	return out
}
