// Package version implements strict SemVer 2.0.0 parsing/comparison and the
// version-set algebra the resolver needs: half-open range unions,
// intersection, complement.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a parsed SemVer 2.0.0 version. Comparison ignores build
// metadata; prerelease ordering is lexicographic over dot-separated
// identifiers, with numeric identifiers compared numerically.
type Version struct {
	Major, Minor, Patch uint64
	Prerelease          []string
	Build               string
}

// MustParse is Parse but panics on error; useful for literal versions known
// at compile time (tests, constants).
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Parse parses a canonical SemVer 2.0.0 string.
func Parse(s string) (Version, error) {
	orig := s
	var v Version

	build := ""
	if i := strings.IndexByte(s, '+'); i >= 0 {
		build = s[i+1:]
		s = s[:i]
	}
	v.Build = build

	core := s
	var prerelease string
	hasPrerelease := false
	if i := strings.IndexByte(s, '-'); i >= 0 {
		core = s[:i]
		prerelease = s[i+1:]
		hasPrerelease = true
	}

	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("version: %q is not major.minor.patch", orig)
	}
	nums := make([]uint64, 3)
	for i, p := range parts {
		if p == "" || (len(p) > 1 && p[0] == '0') {
			return Version{}, fmt.Errorf("version: %q has a malformed numeric identifier %q", orig, p)
		}
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return Version{}, fmt.Errorf("version: %q: %w", orig, err)
		}
		nums[i] = n
	}
	v.Major, v.Minor, v.Patch = nums[0], nums[1], nums[2]

	if hasPrerelease {
		if prerelease == "" {
			return Version{}, fmt.Errorf("version: %q has an empty prerelease", orig)
		}
		v.Prerelease = strings.Split(prerelease, ".")
		for _, id := range v.Prerelease {
			if id == "" {
				return Version{}, fmt.Errorf("version: %q has an empty prerelease identifier", orig)
			}
		}
	}
	return v, nil
}

// String formats the version back to canonical SemVer form.
func (v Version) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d.%d", v.Major, v.Minor, v.Patch)
	if len(v.Prerelease) > 0 {
		b.WriteByte('-')
		b.WriteString(strings.Join(v.Prerelease, "."))
	}
	if v.Build != "" {
		b.WriteByte('+')
		b.WriteString(v.Build)
	}
	return b.String()
}

// IsPrerelease reports whether v carries prerelease identifiers.
func (v Version) IsPrerelease() bool { return len(v.Prerelease) > 0 }

// Compare returns -1, 0 or 1 as v is less than, equal to, or greater than
// other. Build metadata is ignored.
func (v Version) Compare(other Version) int {
	if c := compareUint(v.Major, other.Major); c != 0 {
		return c
	}
	if c := compareUint(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := compareUint(v.Patch, other.Patch); c != 0 {
		return c
	}
	return comparePrerelease(v.Prerelease, other.Prerelease)
}

// Less reports whether v < other.
func (v Version) Less(other Version) bool { return v.Compare(other) < 0 }

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// comparePrerelease implements SemVer 2.0.0 §11: a version without a
// prerelease is greater than one with; otherwise identifiers compare
// pairwise, numeric-vs-numeric numerically, else lexicographically, with a
// shorter identical prefix sorting lower.
func comparePrerelease(a, b []string) int {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	if len(a) == 0 {
		return 1
	}
	if len(b) == 0 {
		return -1
	}
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareIdentifier(a[i], b[i]); c != 0 {
			return c
		}
	}
	return compareUint(uint64(len(a)), uint64(len(b)))
}

func compareIdentifier(a, b string) int {
	an, aIsNum := parseUintStrict(a)
	bn, bIsNum := parseUintStrict(b)
	switch {
	case aIsNum && bIsNum:
		return compareUint(an, bn)
	case aIsNum && !bIsNum:
		return -1
	case !aIsNum && bIsNum:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func parseUintStrict(s string) (uint64, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
