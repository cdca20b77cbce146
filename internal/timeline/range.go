package timeline

import "sort"

// Range is a half-open interval [StartSec, EndSec) on the media timeline.
type Range struct {
	StartSec float64 `json:"startSec"`
	EndSec   float64 `json:"endSec"`
}

// Normalize orders the endpoints so EndSec >= StartSec.
func (r Range) Normalize() Range {
	if r.EndSec < r.StartSec {
		return Range{StartSec: r.EndSec, EndSec: r.StartSec}
	}
	return r
}

// Length returns the duration of the range, never negative.
func (r Range) Length() float64 {
	if r.EndSec <= r.StartSec {
		return 0
	}
	return r.EndSec - r.StartSec
}

// IsZero reports whether the range has no extent.
func (r Range) IsZero() bool {
	return r.Length() == 0
}

// Overlaps reports whether two half-open ranges share any time.
func Overlaps(a, b Range) bool {
	return a.StartSec < b.EndSec && b.StartSec < a.EndSec
}

// IntersectionLength returns the length of the overlap between a and b.
func IntersectionLength(a, b Range) float64 {
	start := a.StartSec
	if b.StartSec > start {
		start = b.StartSec
	}
	end := a.EndSec
	if b.EndSec < end {
		end = b.EndSec
	}
	if end <= start {
		return 0
	}
	return end - start
}

// Pad expands the range by pad seconds on each side and clamps the result
// to [0, limitSec].
func Pad(r Range, pad, limitSec float64) Range {
	out := Range{StartSec: r.StartSec - pad, EndSec: r.EndSec + pad}
	if out.StartSec < 0 {
		out.StartSec = 0
	}
	if out.EndSec > limitSec {
		out.EndSec = limitSec
	}
	if out.EndSec < out.StartSec {
		out.EndSec = out.StartSec
	}
	return out
}

// Merge collapses a set of ranges into the minimal sorted set of
// non-overlapping ranges. Zero-length inputs are dropped.
func Merge(ranges []Range) []Range {
	filtered := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		r = r.Normalize()
		if r.IsZero() {
			continue
		}
		filtered = append(filtered, r)
	}
	if len(filtered) == 0 {
		return nil
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].StartSec != filtered[j].StartSec {
			return filtered[i].StartSec < filtered[j].StartSec
		}
		return filtered[i].EndSec < filtered[j].EndSec
	})

	merged := make([]Range, 0, len(filtered))
	current := filtered[0]
	for _, r := range filtered[1:] {
		if r.StartSec <= current.EndSec {
			if r.EndSec > current.EndSec {
				current.EndSec = r.EndSec
			}
			continue
		}
		merged = append(merged, current)
		current = r
	}
	return append(merged, current)
}

// TotalOverlap sums the intersection length of r against every range in set.
// The set does not need to be merged first; overlapping set members count
// their shared time twice, so callers wanting exact coverage should pass a
// merged set.
func TotalOverlap(r Range, set []Range) float64 {
	total := 0.0
	for _, member := range set {
		total += IntersectionLength(r, member)
	}
	return total
}
