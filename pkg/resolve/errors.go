package resolve

import (
	"fmt"
	"strings"

	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/cordage-pm/cordage/pkg/version"
)

// UnsatisfiableError reports that the resolver exhausted every backjump
// and proved the root requirements have no solution (spec.md §7
// "Unsatisfiable"). Chain is the derivation trail mapping the empty
// incompatibility back to user-visible requirements, root cause first.
type UnsatisfiableError struct {
	Chain []string
}

func (e *UnsatisfiableError) Error() string {
	if len(e.Chain) == 0 {
		return "no version of the requested packages satisfies every constraint"
	}
	return "no version of the requested packages satisfies every constraint:\n  " +
		strings.Join(e.Chain, "\n  ")
}

// NoAvailableVersionError reports that no container-reported version of
// Package intersects Range at the point the resolver tried to decide it.
type NoAvailableVersionError struct {
	Package identity.Identity
	Range   version.Set
}

func (e *NoAvailableVersionError) Error() string {
	return fmt.Sprintf("no available version of %q satisfies %s", e.Package, e.Range)
}

// ToolsVersionIncompatibleError reports that a manifest at a given version
// declared a tools version this build cannot parse (spec.md §7). The
// resolver does not return it: decideNext silently excludes such versions
// from candidates, and an UNSAT outcome they cause is reported as an
// UnsatisfiableError whose chain does not name the tools version.
type ToolsVersionIncompatibleError struct {
	Package  identity.Identity
	Version  version.Version
	Required version.Version
	Have     version.Version
}

func (e *ToolsVersionIncompatibleError) Error() string {
	return fmt.Sprintf("%s@%s requires tools version %s, have %s", e.Package, e.Version, e.Required, e.Have)
}

// ConflictingFixedRefError reports that a package was required at two
// different, incompatible branch/revision points — branches and revisions
// are opaque equality-only constraints (spec.md §3) so this can never be
// resolved by the version-range solver.
type ConflictingFixedRefError struct {
	Package identity.Identity
	First   string
	Second  string
}

func (e *ConflictingFixedRefError) Error() string {
	return fmt.Sprintf("%s is required at both revision %q and %q; branch/revision requirements cannot intersect", e.Package, e.First, e.Second)
}

// CancelledError reports a cooperative cancellation (spec.md §5).
type CancelledError struct{}

func (e *CancelledError) Error() string { return "resolution cancelled" }
