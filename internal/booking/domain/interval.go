package domain

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End). All calendar arithmetic
// in the booking core uses closed-open semantics: two intervals that touch
// at a single instant do not overlap.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds an interval; End must be after Start for the interval
// to be non-empty.
func NewInterval(start, end time.Time) Interval {
	return Interval{Start: start, End: end}
}

// IsEmpty reports whether the interval contains no instants.
func (iv Interval) IsEmpty() bool {
	return !iv.End.After(iv.Start)
}

// Duration returns the interval length.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether two half-open intervals intersect. Intervals
// sharing only an endpoint do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && iv.End.After(other.Start)
}

// Contains reports whether inner lies entirely within iv.
func (iv Interval) Contains(inner Interval) bool {
	return !inner.Start.Before(iv.Start) && !inner.End.After(iv.End)
}

// Clip intersects the interval with bounds; an empty result is returned as
// a zero-duration interval.
func (iv Interval) Clip(bounds Interval) Interval {
	start, end := iv.Start, iv.End
	if start.Before(bounds.Start) {
		start = bounds.Start
	}
	if end.After(bounds.End) {
		end = bounds.End
	}
	if end.Before(start) {
		end = start
	}
	return Interval{Start: start, End: end}
}

// MergeIntervals sorts the input and coalesces overlapping or touching
// intervals into a disjoint ascending list. Empty intervals are dropped.
func MergeIntervals(intervals []Interval) []Interval {
	in := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if !iv.IsEmpty() {
			in = append(in, iv)
		}
	}
	if len(in) == 0 {
		return nil
	}

	sort.Slice(in, func(i, j int) bool { return in[i].Start.Before(in[j].Start) })

	out := []Interval{in[0]}
	for _, iv := range in[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// SubtractIntervals removes the cut list from the base list, returning a
// disjoint ascending list. Inputs need not be sorted.
func SubtractIntervals(base, cuts []Interval) []Interval {
	base = MergeIntervals(base)
	if len(base) == 0 {
		return nil
	}
	cuts = MergeIntervals(cuts)
	if len(cuts) == 0 {
		return base
	}

	var out []Interval
	for _, b := range base {
		cursor := b.Start
		for _, c := range cuts {
			if !c.End.After(cursor) {
				continue
			}
			if !c.Start.Before(b.End) {
				break
			}
			if c.Start.After(cursor) {
				end := c.Start
				if end.After(b.End) {
					end = b.End
				}
				out = append(out, Interval{Start: cursor, End: end})
			}
			if c.End.After(cursor) {
				cursor = c.End
			}
			if !cursor.Before(b.End) {
				break
			}
		}
		if cursor.Before(b.End) {
			out = append(out, Interval{Start: cursor, End: b.End})
		}
	}
	return out
}

// ContainedInAny reports whether iv fits entirely inside one interval of a
// disjoint list.
func ContainedInAny(list []Interval, iv Interval) bool {
	for _, candidate := range list {
		if candidate.Contains(iv) {
			return true
		}
	}
	return false
}

// OverlapsAny reports whether iv intersects any interval of the list.
func OverlapsAny(list []Interval, iv Interval) bool {
	for _, candidate := range list {
		if candidate.Overlaps(iv) {
			return true
		}
	}
	return false
}
