// Package resolve implements the PubGrub-style conflict-driven version
// solver of spec.md §4.4: term/incompatibility algebra, a partial
// solution, unit propagation and conflict-driven backjumping over a
// container.Provider.
package resolve

import (
	"fmt"

	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/cordage-pm/cordage/pkg/version"
)

// Term is one atom of an Incompatibility: a constraint on a single
// package's eventual chosen version, with polarity. Positive means "the
// chosen version must lie in Set"; negative means "must not".
type Term struct {
	Package  identity.Identity
	Set      version.Set
	Positive bool
}

// Pos builds a positive term: id's version must lie in s.
func Pos(id identity.Identity, s version.Set) Term {
	return Term{Package: id, Set: s, Positive: true}
}

// Neg builds a negative term: id's version must not lie in s.
func Neg(id identity.Identity, s version.Set) Term {
	return Term{Package: id, Set: s, Positive: false}
}

// Negate returns the logical negation of t.
func (t Term) Negate() Term {
	return Term{Package: t.Package, Set: t.Set, Positive: !t.Positive}
}

// Required returns the version set that any completion of the partial
// solution must place the package's chosen version inside, for this term
// to hold: Set itself if positive, its complement if negative.
func (t Term) Required() version.Set {
	if t.Positive {
		return t.Set
	}
	return t.Set.Complement()
}

func (t Term) String() string {
	if t.Positive {
		return fmt.Sprintf("%s ∈ %s", t.Package, t.Set)
	}
	return fmt.Sprintf("%s ∉ %s", t.Package, t.Set)
}

// SatisfyState classifies how a Term relates to the knowledge accumulated
// so far about its package in a PartialSolution (spec.md §4.4 term
// algebra): satisfied, contradicted, almostSatisfied or undetermined.
type SatisfyState int

const (
	// Undetermined: no assignment yet constrains the term's package.
	Undetermined SatisfyState = iota
	// Satisfied: every completion consistent with current knowledge makes
	// the term true.
	Satisfied
	// Contradicted: no completion consistent with current knowledge can
	// make the term true.
	Contradicted
	// AlmostSatisfied: knowledge partially overlaps the term — neither
	// proven nor ruled out yet.
	AlmostSatisfied
)

func (s SatisfyState) String() string {
	switch s {
	case Satisfied:
		return "satisfied"
	case Contradicted:
		return "contradicted"
	case AlmostSatisfied:
		return "almostSatisfied"
	default:
		return "undetermined"
	}
}
