// Package container defines the PackageContainer provider ABI (spec.md
// §4.3): the resolver's sole view of "what versions exist for a package,
// and what does a given version depend on". Concrete providers (HTTP
// registry, local path, in-memory test double) implement Provider.
package container

import (
	"context"

	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/cordage-pm/cordage/pkg/version"
)

// RequirementKind discriminates the Requirement variants of spec.md §3.
type RequirementKind int

const (
	// RequirementRange constrains a package to a VersionSetSpecifier.
	RequirementRange RequirementKind = iota
	// RequirementRevision pins to an opaque source-control revision.
	RequirementRevision
	// RequirementBranch pins to a named branch (resolved to a revision by
	// the container at dependency-fetch time).
	RequirementBranch
	// RequirementExact pins to one specific version.
	RequirementExact
	// RequirementUnversioned accepts whatever the container currently
	// reports for a local, unversioned (path) dependency.
	RequirementUnversioned
)

// Requirement is one edge constraint: Range(VersionSet) | Revision(hash) |
// Branch(name) | Exact(Version) | Unversioned. Branches and revisions are
// opaque equality-only constraints — they do not intersect with ranges
// except the trivial disjoint case.
type Requirement struct {
	Kind     RequirementKind
	Range    version.Set
	Revision string
	Branch   string
	Exact    version.Version
}

// RangeRequirement builds a Range requirement.
func RangeRequirement(set version.Set) Requirement {
	return Requirement{Kind: RequirementRange, Range: set}
}

// RevisionRequirement builds a Revision requirement.
func RevisionRequirement(hash string) Requirement {
	return Requirement{Kind: RequirementRevision, Revision: hash}
}

// BranchRequirement builds a Branch requirement.
func BranchRequirement(name string) Requirement {
	return Requirement{Kind: RequirementBranch, Branch: name}
}

// ExactRequirement builds an Exact requirement.
func ExactRequirement(v version.Version) Requirement {
	return Requirement{Kind: RequirementExact, Exact: v}
}

// UnversionedRequirement builds an Unversioned requirement.
func UnversionedRequirement() Requirement {
	return Requirement{Kind: RequirementUnversioned}
}

// ToSet converts a Range, Exact or Unversioned requirement to a
// version.Set: Unversioned matches anything (version.Full), since a local
// path dependency accepts whatever the container currently reports. It
// panics for Revision/Branch requirements, which are opaque equality-only
// constraints with no version-set representation; callers must branch on
// Kind first and resolve those via Provider.Revisions instead.
func (r Requirement) ToSet() version.Set {
	switch r.Kind {
	case RequirementRange:
		return r.Range
	case RequirementExact:
		return version.Exact(r.Exact)
	case RequirementUnversioned:
		return version.Full()
	default:
		panic("container: Requirement.ToSet called on a branch/revision requirement")
	}
}

// Dependency is one outgoing edge of a pinned package at a specific point:
// a reference to the required package plus the constraint on it.
type Dependency struct {
	Ref         identity.Reference
	Requirement Requirement
}

// At identifies the point a container call is made against: either a
// released Version or an opaque source-control Revision/branch-resolved
// revision. Exactly one of Version/Revision is set.
type At struct {
	Version  version.Version
	HasVer   bool
	Revision string
}

// ForVersion builds an At for a released version.
func ForVersion(v version.Version) At { return At{Version: v, HasVer: true} }

// ForRevision builds an At for an opaque revision.
func ForRevision(rev string) At { return At{Revision: rev} }

// Provider is the PackageContainer capability set the resolver is
// polymorphic over (spec.md §4.3). Implementations are expected to cache;
// the resolver makes no assumptions about call cost beyond the total
// ordering on Versions' result.
type Provider interface {
	// Versions returns every known version of id, sorted descending
	// (highest first) — the order the resolver tries candidates in.
	Versions(ctx context.Context, id identity.Identity) ([]version.Version, error)

	// Revisions resolves a branch/revision Requirement to the set of
	// concrete Revision hashes it currently denotes (normally exactly one;
	// more than one only for an ambiguous/moving branch ref).
	Revisions(ctx context.Context, id identity.Identity, req Requirement) ([]string, error)

	// Dependencies returns the outgoing edges declared by id's manifest at
	// the given point.
	Dependencies(ctx context.Context, id identity.Identity, at At) ([]Dependency, error)

	// IsToolsVersionCompatible reports whether id's manifest at v declares
	// a tools version the running cordage binary can parse. Versions that
	// fail this check are filtered out of Versions()'s effective candidate
	// list by the resolver before it ever calls Dependencies on them.
	IsToolsVersionCompatible(ctx context.Context, id identity.Identity, v version.Version) (bool, error)
}
