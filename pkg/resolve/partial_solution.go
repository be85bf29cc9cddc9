package resolve

import (
	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/cordage-pm/cordage/pkg/version"
)

type assignmentKind int

const (
	kindDecision assignmentKind = iota
	kindDerivation
)

// logEntry is one event in the PartialSolution's assignment log — a
// decision (a concrete version choice) or a derivation (a term forced by
// unit propagation against an antecedent Incompatibility).
type logEntry struct {
	kind  assignmentKind
	term  Term
	cause *Incompatibility // derivations only
	level int

	version    version.Version
	hasVersion bool
}

// PartialSolution is the resolver's mutable assignment log plus the
// derived per-package accumulated knowledge (spec.md §3). It is mutated
// only by the Resolver and discarded on completion.
type PartialSolution struct {
	log         []logEntry
	level       int
	accumulated map[identity.Identity]version.Set
	decided     map[identity.Identity]version.Version
	order       []identity.Identity
	seen        map[identity.Identity]bool
}

func newPartialSolution() *PartialSolution {
	return &PartialSolution{
		accumulated: make(map[identity.Identity]version.Set),
		decided:     make(map[identity.Identity]version.Version),
		seen:        make(map[identity.Identity]bool),
	}
}

func (ps *PartialSolution) accumulatedFor(id identity.Identity) version.Set {
	if s, ok := ps.accumulated[id]; ok {
		return s
	}
	return version.Full()
}

func (ps *PartialSolution) touch(id identity.Identity) {
	if !ps.seen[id] {
		ps.seen[id] = true
		ps.order = append(ps.order, id)
	}
}

// satisfies classifies t against the accumulated knowledge on its package,
// per spec.md §4.4's four-state term algebra.
func (ps *PartialSolution) satisfies(t Term) SatisfyState {
	acc, ok := ps.accumulated[t.Package]
	if !ok {
		return Undetermined
	}
	req := t.Required()
	if acc.Intersect(req).IsEmpty() {
		return Contradicted
	}
	if acc.Relation(req) == version.RelSubset {
		return Satisfied
	}
	return AlmostSatisfied
}

func (ps *PartialSolution) intersectAccumulated(id identity.Identity, req version.Set) {
	ps.accumulated[id] = ps.accumulatedFor(id).Intersect(req)
}

// decide commits a concrete version for id at a new decision level.
func (ps *PartialSolution) decide(id identity.Identity, v version.Version) {
	ps.level++
	t := Pos(id, version.Exact(v))
	ps.touch(id)
	ps.decided[id] = v
	ps.intersectAccumulated(id, t.Required())
	ps.log = append(ps.log, logEntry{kind: kindDecision, term: t, level: ps.level, version: v, hasVersion: true})
}

// decidePrefetch commits a pinned version at decision level 0, ahead of
// the first real decision (spec.md §4.4 "Pin prefetch"). Every prefetched
// pin shares level 0 with the root incompatibilities themselves.
func (ps *PartialSolution) decidePrefetch(id identity.Identity, v version.Version) {
	t := Pos(id, version.Exact(v))
	ps.touch(id)
	ps.decided[id] = v
	ps.intersectAccumulated(id, t.Required())
	ps.log = append(ps.log, logEntry{kind: kindDecision, term: t, level: 0, version: v, hasVersion: true})
}

// derive records a term forced by unit propagation against cause, at the
// current decision level.
func (ps *PartialSolution) derive(t Term, cause *Incompatibility) {
	ps.touch(t.Package)
	ps.intersectAccumulated(t.Package, t.Required())
	ps.log = append(ps.log, logEntry{kind: kindDerivation, term: t, cause: cause, level: ps.level})
}

// decidedVersion reports the concrete version decided for id, if any.
func (ps *PartialSolution) decidedVersion(id identity.Identity) (version.Version, bool) {
	v, ok := ps.decided[id]
	return v, ok
}

// backtrackTo discards every log entry at a decision level greater than
// level and recomputes the derived indexes from the remaining prefix.
// spec.md §5's determinism invariant requires this be a pure function of
// the remaining log, never of wall-clock or call order.
func (ps *PartialSolution) backtrackTo(level int) {
	kept := ps.log[:0:0]
	for _, e := range ps.log {
		if e.level <= level {
			kept = append(kept, e)
		}
	}
	ps.log = kept
	ps.level = level
	ps.accumulated = make(map[identity.Identity]version.Set)
	ps.decided = make(map[identity.Identity]version.Version)
	ps.seen = make(map[identity.Identity]bool)
	ps.order = nil
	for _, e := range ps.log {
		ps.touch(e.term.Package)
		ps.intersectAccumulated(e.term.Package, e.term.Required())
		if e.kind == kindDecision {
			ps.decided[e.term.Package] = e.version
		}
	}
}

// nextUndecided picks the next package to decide: the first package in
// insertion order (spec.md §4.4's determinism rule — "tie-breaks ... by
// insertion order of roots") that carries a real constraint but has no
// decided version yet.
func (ps *PartialSolution) nextUndecided() (identity.Identity, bool) {
	for _, id := range ps.order {
		if _, done := ps.decided[id]; done {
			continue
		}
		if ps.accumulatedFor(id).IsEmpty() {
			continue // already contradicted; propagation will report the conflict
		}
		return id, true
	}
	return "", false
}

// findSatisfier locates, among terms, the one that most recently became
// Satisfied while replaying the assignment log forward (the classic
// PubGrub "satisfier" search that drives backjumping). It returns the log
// index of that satisfying assignment, the satisfied term itself, and the
// highest decision level at which every *other* term in terms was already
// satisfied (0 if terms has only one element).
func (ps *PartialSolution) findSatisfier(terms []Term) (satisfierIdx int, satisfierTerm Term, prevLevel int) {
	acc := make(map[identity.Identity]version.Set)
	satisfiedAt := make(map[int]int)
	satisfiedLevel := make(map[int]int)
	remaining := len(terms)

	for i, e := range ps.log {
		cur, ok := acc[e.term.Package]
		if !ok {
			cur = version.Full()
		}
		acc[e.term.Package] = cur.Intersect(e.term.Required())

		for ti, t := range terms {
			if _, done := satisfiedAt[ti]; done {
				continue
			}
			if t.Package != e.term.Package {
				continue
			}
			a := acc[t.Package]
			if a.Relation(t.Required()) == version.RelSubset {
				satisfiedAt[ti] = i
				satisfiedLevel[ti] = e.level
				remaining--
			}
		}
		if remaining == 0 {
			break
		}
	}

	maxIdx, maxTi := -1, -1
	for ti := range terms {
		if idx, ok := satisfiedAt[ti]; ok && idx > maxIdx {
			maxIdx, maxTi = idx, ti
		}
	}
	if maxTi < 0 {
		return -1, Term{}, 0
	}

	for ti := range terms {
		if ti == maxTi {
			continue
		}
		if lvl, ok := satisfiedLevel[ti]; ok && lvl > prevLevel {
			prevLevel = lvl
		}
	}
	return maxIdx, terms[maxTi], prevLevel
}
