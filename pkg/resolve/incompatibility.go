package resolve

import (
	"strings"

	"github.com/cordage-pm/cordage/pkg/identity"
)

// CauseKind discriminates the provenance of an Incompatibility, per
// spec.md §3: Root | Dependency(from) | Conflict(a,b) | NoAvailableVersion.
type CauseKind int

const (
	// CauseRoot: derived directly from a root manifest's requirement.
	CauseRoot CauseKind = iota
	// CauseDependency: derived from a dependency edge declared by From's
	// manifest at its decided point.
	CauseDependency
	// CauseConflict: derived by resolving two prior incompatibilities
	// during backjumping.
	CauseConflict
	// CauseNoAvailableVersion: no container version satisfied the current
	// range for a package.
	CauseNoAvailableVersion
)

// Cause records why an Incompatibility is known unsatisfiable.
type Cause struct {
	Kind CauseKind
	From identity.Identity // CauseDependency
	A, B *Incompatibility  // CauseConflict
}

// Incompatibility is a set of Terms whose conjunction is known
// unsatisfiable (spec.md §3). id is assigned sequentially for stable
// diagnostic ordering; it plays no role in the algebra.
type Incompatibility struct {
	id    int
	Terms []Term
	Cause Cause
}

func (ic *Incompatibility) String() string {
	parts := make([]string, len(ic.Terms))
	for i, t := range ic.Terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ∧ ")
}

// termFor returns the term for pkg within ic, if present.
func (ic *Incompatibility) termFor(pkg identity.Identity) (Term, bool) {
	for _, t := range ic.Terms {
		if t.Package == pkg {
			return t, true
		}
	}
	return Term{}, false
}

// incompatRelation is the outcome of evaluating an Incompatibility against
// a PartialSolution's accumulated knowledge.
type incompatRelation int

const (
	// relInconclusive: more than one term undetermined, or some term
	// already contradicted (the clause this incompatibility represents is
	// already vacuously true and teaches nothing new right now).
	relInconclusive incompatRelation = iota
	// relAlmostSatisfied: exactly one term undetermined/partial, every
	// other term satisfied — unit propagation can derive the negation of
	// that one remaining term.
	relAlmostSatisfied
	// relSatisfied: every term is satisfied simultaneously — the
	// incompatibility's conjunction holds, which is a conflict.
	relSatisfied
)

// relation implements the per-term scan spec.md §4.4 step 5 describes:
// "If all but one term is already satisfied ... the remaining term is
// negated and added as a derivation. If all terms are satisfied, jump to
// conflict resolution."
func (ic *Incompatibility) relation(ps *PartialSolution) (incompatRelation, Term) {
	unsatisfiedCount := 0
	var unsatisfiedTerm Term
	for _, t := range ic.Terms {
		switch ps.satisfies(t) {
		case Satisfied:
			continue
		case Contradicted:
			// This term can never hold, so the clause it belongs to
			// (the negation of the conjunction) is already true: this
			// incompatibility currently teaches nothing.
			return relInconclusive, Term{}
		default:
			unsatisfiedCount++
			unsatisfiedTerm = t
			if unsatisfiedCount > 1 {
				return relInconclusive, Term{}
			}
		}
	}
	if unsatisfiedCount == 0 {
		return relSatisfied, Term{}
	}
	return relAlmostSatisfied, unsatisfiedTerm
}

// mergeIncompatibilities implements the backjump "resolve" step of
// spec.md §4.4: eliminate the shared term on pkg from a by merging in b's
// other terms. A package present in both term sets (other than pkg)
// combines its constraint: matching-polarity terms union their version
// sets (either being true keeps the conjunction impossible), disagreeing
// polarities narrow to the positive side minus the negative one.
func mergeIncompatibilities(a, b *Incompatibility, pkg identity.Identity) *Incompatibility {
	terms := make(map[identity.Identity]Term)
	order := make([]identity.Identity, 0, len(a.Terms)+len(b.Terms))
	add := func(t Term) {
		if t.Package == pkg {
			return
		}
		if existing, ok := terms[t.Package]; ok {
			terms[t.Package] = combineTerms(existing, t)
			return
		}
		terms[t.Package] = t
		order = append(order, t.Package)
	}
	for _, t := range a.Terms {
		add(t)
	}
	for _, t := range b.Terms {
		add(t)
	}

	out := make([]Term, 0, len(order))
	for _, id := range order {
		out = append(out, terms[id])
	}
	return &Incompatibility{
		Terms: out,
		Cause: Cause{Kind: CauseConflict, A: a, B: b},
	}
}

func combineTerms(a, b Term) Term {
	if a.Positive == b.Positive {
		return Term{Package: a.Package, Positive: a.Positive, Set: a.Set.Union(b.Set)}
	}
	pos, neg := a, b
	if !a.Positive {
		pos, neg = b, a
	}
	return Term{Package: pos.Package, Positive: true, Set: pos.Set.Difference(neg.Set)}
}
