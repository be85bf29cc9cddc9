package version

import (
	"sort"
	"strings"
)

// rangeSpan is one half-open range [low, high). An unbounded low is
// represented by hasLow=false, and likewise for high.
type rangeSpan struct {
	hasLow, hasHigh bool
	low, high       Version
}

func (r rangeSpan) contains(v Version) bool {
	if r.hasLow && v.Less(r.low) {
		return false
	}
	if r.hasHigh && !v.Less(r.high) {
		return false
	}
	return true
}

// Set is a VersionSetSpecifier: a disjunction of half-open ranges [lo, hi),
// closed under union, intersection and complement over the totally-ordered
// version line. The empty Set (no spans) matches no version; Full matches
// every version.
type Set struct {
	spans []rangeSpan
}

// Empty returns the version set containing no versions.
func Empty() Set { return Set{} }

// Full returns the version set containing every version.
func Full() Set { return Set{spans: []rangeSpan{{}}} }

// Range returns the half-open set [lo, hi).
func Range(lo, hi Version) Set {
	if !lo.Less(hi) {
		return Empty()
	}
	return Set{spans: []rangeSpan{{hasLow: true, low: lo, hasHigh: true, high: hi}}}
}

// AtLeast returns the set [lo, +inf).
func AtLeast(lo Version) Set {
	return Set{spans: []rangeSpan{{hasLow: true, low: lo}}}
}

// Before returns the set [0, hi).
func Before(hi Version) Set {
	return Set{spans: []rangeSpan{{hasHigh: true, high: hi}}}
}

// Exact returns the singleton set {v}, represented as the half-open span
// [v, exactUpper(v)), where exactUpper(v) is v's immediate successor in
// comparison order.
func Exact(v Version) Set {
	return Set{spans: []rangeSpan{{hasLow: true, low: v, hasHigh: true, high: exactUpper(v)}}}
}

// exactUpper produces a version strictly greater than v with nothing able
// to fall strictly between them under Compare: for a release, the next
// patch with the lowest possible prerelease ("0"); for a prerelease, v with
// a trailing "0" identifier appended.
func exactUpper(v Version) Version {
	if len(v.Prerelease) == 0 {
		return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1, Prerelease: []string{"0"}}
	}
	pre := append(append([]string{}, v.Prerelease...), "0")
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch, Prerelease: pre}
}

// SingleVersion reports whether s is the singleton set produced by Exact,
// returning that version.
func (s Set) SingleVersion() (Version, bool) {
	if len(s.spans) != 1 {
		return Version{}, false
	}
	r := s.spans[0]
	if !r.hasLow || !r.hasHigh {
		return Version{}, false
	}
	if r.high.Compare(exactUpper(r.low)) != 0 {
		return Version{}, false
	}
	return r.low, true
}

// IsEmpty reports whether the set matches no version.
func (s Set) IsEmpty() bool { return len(s.spans) == 0 }

// String renders the set as a disjunction of half-open ranges, for
// diagnostics (resolver incompatibility messages, CLI error output).
func (s Set) String() string {
	if len(s.spans) == 0 {
		return "∅"
	}
	parts := make([]string, 0, len(s.spans))
	for _, r := range s.spans {
		lo, hi := "0.0.0", "∞"
		if r.hasLow {
			lo = r.low.String()
		}
		if r.hasHigh {
			hi = r.high.String()
		}
		parts = append(parts, "["+lo+", "+hi+")")
	}
	return strings.Join(parts, " ∪ ")
}

// Contains reports whether v lies in the set.
func (s Set) Contains(v Version) bool {
	for _, r := range s.spans {
		if r.contains(v) {
			return true
		}
	}
	return false
}

// Union returns the set of versions in s or other.
func (s Set) Union(other Set) Set {
	merged := append(append([]rangeSpan{}, s.spans...), other.spans...)
	return Set{spans: normalize(merged)}
}

// Intersect returns the set of versions in both s and other.
func (s Set) Intersect(other Set) Set {
	var out []rangeSpan
	for _, a := range s.spans {
		for _, b := range other.spans {
			if iv, ok := intersectSpan(a, b); ok {
				out = append(out, iv)
			}
		}
	}
	return Set{spans: normalize(out)}
}

// Complement returns the set of versions not in s.
func (s Set) Complement() Set {
	spans := normalize(append([]rangeSpan{}, s.spans...))
	if len(spans) == 0 {
		return Full()
	}
	var out []rangeSpan
	prevHasHigh, prevHigh := false, Version{}
	for i, r := range spans {
		if i == 0 && r.hasLow {
			out = append(out, rangeSpan{hasHigh: true, high: r.low})
		} else if i == 0 {
			// first span unbounded below: nothing below it to complement
		}
		if prevHasHigh {
			out = append(out, rangeSpan{hasLow: true, low: prevHigh, hasHigh: r.hasLow, high: r.low})
		}
		prevHasHigh, prevHigh = r.hasHigh, r.high
		_ = i
	}
	if prevHasHigh {
		out = append(out, rangeSpan{hasLow: true, low: prevHigh})
	}
	return Set{spans: normalize(out)}
}

// Difference returns the versions in s but not in other.
func (s Set) Difference(other Set) Set {
	return s.Intersect(other.Complement())
}

// Relation describes how two version sets relate to each other.
type Relation int

const (
	// RelDisjoint: the sets share no version.
	RelDisjoint Relation = iota
	// RelSubset: a is a subset of b.
	RelSubset
	// RelOverlap: the sets share some but not all versions.
	RelOverlap
)

// Relation classifies how s relates to other.
func (s Set) Relation(other Set) Relation {
	inter := s.Intersect(other)
	if inter.IsEmpty() {
		return RelDisjoint
	}
	if equalSpans(inter.spans, normalize(append([]rangeSpan{}, s.spans...))) {
		return RelSubset
	}
	return RelOverlap
}

func intersectSpan(a, b rangeSpan) (rangeSpan, bool) {
	var r rangeSpan
	switch {
	case !a.hasLow && !b.hasLow:
		r.hasLow = false
	case a.hasLow && !b.hasLow:
		r.hasLow, r.low = true, a.low
	case !a.hasLow && b.hasLow:
		r.hasLow, r.low = true, b.low
	default:
		r.hasLow = true
		if a.low.Less(b.low) {
			r.low = b.low
		} else {
			r.low = a.low
		}
	}

	switch {
	case !a.hasHigh && !b.hasHigh:
		r.hasHigh = false
	case a.hasHigh && !b.hasHigh:
		r.hasHigh, r.high = true, a.high
	case !a.hasHigh && b.hasHigh:
		r.hasHigh, r.high = true, b.high
	default:
		r.hasHigh = true
		if a.high.Less(b.high) {
			r.high = a.high
		} else {
			r.high = b.high
		}
	}

	if r.hasLow && r.hasHigh && !r.low.Less(r.high) {
		return rangeSpan{}, false
	}
	return r, true
}

// normalize sorts spans and merges any that touch or overlap.
func normalize(spans []rangeSpan) []rangeSpan {
	if len(spans) == 0 {
		return nil
	}
	sort.Slice(spans, func(i, j int) bool {
		a, b := spans[i], spans[j]
		switch {
		case !a.hasLow && !b.hasLow:
			return false
		case !a.hasLow:
			return true
		case !b.hasLow:
			return false
		default:
			return a.low.Less(b.low)
		}
	})

	out := spans[:1]
	for _, r := range spans[1:] {
		last := &out[len(out)-1]
		if spansAdjacent(*last, r) {
			merged, ok := unionSpan(*last, r)
			if ok {
				*last = merged
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// spansAdjacent reports whether b (sorted after a) overlaps or directly
// continues a, i.e. a.high >= b.low.
func spansAdjacent(a, b rangeSpan) bool {
	if !a.hasHigh || !b.hasLow {
		return true
	}
	return !a.high.Less(b.low)
}

func unionSpan(a, b rangeSpan) (rangeSpan, bool) {
	var r rangeSpan
	if !a.hasLow || !b.hasLow {
		r.hasLow = false
	} else {
		r.hasLow = true
		if a.low.Less(b.low) {
			r.low = a.low
		} else {
			r.low = b.low
		}
	}
	if !a.hasHigh || !b.hasHigh {
		r.hasHigh = false
	} else {
		r.hasHigh = true
		if a.high.Less(b.high) {
			r.high = b.high
		} else {
			r.high = a.high
		}
	}
	return r, true
}

func equalSpans(a, b []rangeSpan) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].hasLow != b[i].hasLow || a[i].hasHigh != b[i].hasHigh {
			return false
		}
		if a[i].hasLow && a[i].low.Compare(b[i].low) != 0 {
			return false
		}
		if a[i].hasHigh && a[i].high.Compare(b[i].high) != 0 {
			return false
		}
	}
	return true
}
