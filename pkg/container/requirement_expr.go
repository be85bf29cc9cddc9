package container

import (
	"fmt"
	"strings"

	"github.com/cordage-pm/cordage/pkg/version"
)

// ParseExpr parses a requirement expression as it appears in a manifest
// dependency declaration or a registry-served manifest response: a caret
// range (^X.Y.Z), a tilde range (~X.Y.Z), an explicit comparator chain
// (">=X.Y.Z <A.B.C"), a bare "branch:<name>", or "revision:<hex>".
func ParseExpr(expr string) (Requirement, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return UnversionedRequirement(), nil
	}

	if rest, ok := strings.CutPrefix(expr, "branch:"); ok {
		name := strings.TrimSpace(rest)
		if name == "" {
			return Requirement{}, fmt.Errorf("requirement %q: empty branch name", expr)
		}
		return BranchRequirement(name), nil
	}
	if rest, ok := strings.CutPrefix(expr, "revision:"); ok {
		hash := strings.TrimSpace(rest)
		if hash == "" {
			return Requirement{}, fmt.Errorf("requirement %q: empty revision", expr)
		}
		return RevisionRequirement(hash), nil
	}
	if rest, ok := strings.CutPrefix(expr, "=="); ok {
		v, err := version.Parse(strings.TrimSpace(rest))
		if err != nil {
			return Requirement{}, fmt.Errorf("requirement %q: %w", expr, err)
		}
		return ExactRequirement(v), nil
	}
	if rest, ok := strings.CutPrefix(expr, "^"); ok {
		v, err := version.Parse(strings.TrimSpace(rest))
		if err != nil {
			return Requirement{}, fmt.Errorf("requirement %q: %w", expr, err)
		}
		return RangeRequirement(caretRange(v)), nil
	}
	if rest, ok := strings.CutPrefix(expr, "~"); ok {
		v, err := version.Parse(strings.TrimSpace(rest))
		if err != nil {
			return Requirement{}, fmt.Errorf("requirement %q: %w", expr, err)
		}
		return RangeRequirement(tildeRange(v)), nil
	}

	// Comparator chain: one or two terms separated by whitespace, each
	// ">=X", "<X", ">X", "<=X".
	set, err := parseComparatorChain(expr)
	if err != nil {
		return Requirement{}, fmt.Errorf("requirement %q: %w", expr, err)
	}
	return RangeRequirement(set), nil
}

// caretRange implements ^X.Y.Z: compatible-with semantics — allow any
// change that does not modify the left-most non-zero component.
func caretRange(v version.Version) version.Set {
	var upper version.Version
	switch {
	case v.Major != 0:
		upper = version.Version{Major: v.Major + 1}
	case v.Minor != 0:
		upper = version.Version{Minor: v.Minor + 1}
	default:
		upper = version.Version{Patch: v.Patch + 1}
	}
	return version.Range(v, upper)
}

// tildeRange implements ~X.Y.Z: allow patch-level changes if a minor
// version is specified, or minor-level changes if only major is.
func tildeRange(v version.Version) version.Set {
	upper := version.Version{Major: v.Major, Minor: v.Minor + 1}
	return version.Range(v, upper)
}

func parseComparatorChain(expr string) (version.Set, error) {
	fields := strings.Fields(expr)
	if len(fields) == 0 {
		return version.Set{}, fmt.Errorf("empty comparator expression")
	}

	result := version.Full()
	for _, f := range fields {
		set, err := parseComparator(f)
		if err != nil {
			return version.Set{}, err
		}
		result = result.Intersect(set)
	}
	return result, nil
}

func parseComparator(f string) (version.Set, error) {
	for _, op := range []string{">=", "<=", ">", "<"} {
		if rest, ok := strings.CutPrefix(f, op); ok {
			v, err := version.Parse(strings.TrimSpace(rest))
			if err != nil {
				return version.Set{}, err
			}
			switch op {
			case ">=":
				return version.AtLeast(v), nil
			case "<":
				return version.Before(v), nil
			case "<=":
				return version.Before(bumpPatch(v)), nil
			case ">":
				return version.AtLeast(bumpPatch(v)), nil
			}
		}
	}
	return version.Set{}, fmt.Errorf("unrecognized comparator %q", f)
}

func bumpPatch(v version.Version) version.Version {
	return version.Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}
