// Package intervals holds the pure interval arithmetic used by availability
// and reservation checks. Every function works on absolute instants; time
// zones only matter when a caller renders the result.
package intervals

import (
	"iter"
	"sort"
	"time"

	"slotwise/models"
)

// Merge sorts the intervals by start and coalesces overlapping or adjacent
// ones. Invalid (empty or inverted) intervals are dropped. Merge is idempotent.
func Merge(set []models.Interval) models.BusySet {
	if len(set) == 0 {
		return nil
	}
	sorted := make([]models.Interval, 0, len(set))
	for _, iv := range set {
		if iv.Start.Before(iv.End) {
			sorted = append(sorted, iv)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].End.Before(sorted[j].End)
		}
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := make(models.BusySet, 0, len(sorted))
	for _, iv := range sorted {
		n := len(merged)
		// touching counts as overlapping: [9,10) and [10,11) become [9,11)
		if n > 0 && !iv.Start.After(merged[n-1].End) {
			if iv.End.After(merged[n-1].End) {
				merged[n-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Union combines the busy time of several sources: an instant is busy when
// it is busy in any source.
func Union(sets ...models.BusySet) models.BusySet {
	total := 0
	for _, s := range sets {
		total += len(s)
	}
	all := make([]models.Interval, 0, total)
	for _, s := range sets {
		all = append(all, s...)
	}
	return Merge(all)
}

// IntersectAll is the historical name for combining calendars. Despite the
// name it is a union of busy time: every source contributes unavailability.
func IntersectAll(sets ...models.BusySet) models.BusySet {
	return Union(sets...)
}

// Subtract yields the sub-intervals of window not covered by busy, in order.
// busy must be a merged set.
func Subtract(window models.Interval, busy models.BusySet) iter.Seq[models.Interval] {
	return func(yield func(models.Interval) bool) {
		if !window.Start.Before(window.End) {
			return
		}
		cursor := window.Start
		// skip busy intervals that end before the window starts
		i := sort.Search(len(busy), func(i int) bool { return busy[i].End.After(window.Start) })
		for ; i < len(busy); i++ {
			b := busy[i]
			if !b.Start.Before(window.End) {
				break
			}
			if b.Start.After(cursor) {
				if !yield(models.Interval{Start: cursor, End: b.Start}) {
					return
				}
			}
			if b.End.After(cursor) {
				cursor = b.End
			}
			if !cursor.Before(window.End) {
				return
			}
		}
		if cursor.Before(window.End) {
			yield(models.Interval{Start: cursor, End: window.End})
		}
	}
}

// SubtractAll collects Subtract into a slice.
func SubtractAll(window models.Interval, busy models.BusySet) []models.Interval {
	var out []models.Interval
	for iv := range Subtract(window, busy) {
		out = append(out, iv)
	}
	return out
}

// Expand widens every interval by before on the left and after on the right
// and re-merges the result.
func Expand(busy models.BusySet, before, after time.Duration) models.BusySet {
	if before == 0 && after == 0 {
		return busy
	}
	out := make([]models.Interval, len(busy))
	for i, b := range busy {
		out[i] = models.Interval{Start: b.Start.Add(-before), End: b.End.Add(after)}
	}
	return Merge(out)
}

// Clip restricts a merged set to window.
func Clip(busy models.BusySet, window models.Interval) models.BusySet {
	var out models.BusySet
	for _, b := range busy {
		if !b.Overlaps(window) {
			continue
		}
		if b.Start.Before(window.Start) {
			b.Start = window.Start
		}
		if b.End.After(window.End) {
			b.End = window.End
		}
		out = append(out, b)
	}
	return out
}

// Overlapping reports whether iv overlaps any interval of a merged set.
func Overlapping(busy models.BusySet, iv models.Interval) bool {
	i := sort.Search(len(busy), func(i int) bool { return busy[i].End.After(iv.Start) })
	return i < len(busy) && busy[i].Start.Before(iv.End)
}

