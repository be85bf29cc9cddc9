package resolve

import (
	"context"

	"github.com/cordage-pm/cordage/pkg/container"
	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/cordage-pm/cordage/pkg/version"
)

// PinSeed is a prior pinned decision the caller (the workspace reconciler)
// supplies so the resolver can eagerly honor it without re-deriving it
// from scratch (spec.md §4.4 "Pin prefetch"). A pin contradicted by the
// root requirements is simply not prefetched — normal backtracking
// discards contradicted facts, so nothing special happens to it.
type PinSeed struct {
	Package    identity.Identity
	Version    version.Version
	HasVersion bool
}

// Decision is one resolved package's outcome: either a concrete released
// Version, or a source-control Revision (optionally reached via Branch).
type Decision struct {
	Version    version.Version
	HasVersion bool
	Revision   string
	Branch     string
}

// Solution is a complete resolver outcome: every package reachable from
// the roots, decided.
type Solution struct {
	Decisions map[identity.Identity]Decision
}

// dependencyEdge pairs a dependency with the identity that declared it;
// From is "" for a root requirement.
type dependencyEdge struct {
	from identity.Identity
	dep  container.Dependency
}

type fixedPoint struct {
	revision string
	branch   string
}

// Resolver implements the PubGrub main loop of spec.md §4.4 over a
// container.Provider. A Resolver is single-use: build one per Solve call.
type Resolver struct {
	provider container.Provider

	ps        *PartialSolution
	incompats []*Incompatibility
	fixed     map[identity.Identity]fixedPoint
}

// New creates a Resolver over provider.
func New(provider container.Provider) *Resolver {
	return &Resolver{provider: provider}
}

// Solve runs the resolver to completion: pin prefetch, then repeated unit
// propagation and decision until every package reachable from roots is
// decided, or the instance is proven UNSAT (spec.md §4.4).
func (r *Resolver) Solve(ctx context.Context, roots []container.Dependency, pins []PinSeed) (*Solution, error) {
	r.ps = newPartialSolution()
	r.fixed = make(map[identity.Identity]fixedPoint)
	r.incompats = nil

	seed := make([]dependencyEdge, len(roots))
	for i, d := range roots {
		seed[i] = dependencyEdge{dep: d}
	}

	rangeEdges, err := r.drainFixedRefs(ctx, seed)
	if err != nil {
		return nil, err
	}
	for _, e := range rangeEdges {
		r.addRangeIncompatibility(e)
	}

	// Establish baseline knowledge from the root incompatibilities before
	// prefetching pins, so "satisfies the current root terms" (spec.md
	// §4.4 "Pin prefetch") is checked against the real accumulated
	// constraint rather than the as-yet-unconstrained Full() set.
	if err := r.propagate(ctx); err != nil {
		return nil, err
	}
	r.prefetchPins(pins)

	for {
		if err := checkCancel(ctx); err != nil {
			return nil, err
		}
		if err := r.propagate(ctx); err != nil {
			return nil, err
		}
		pkg, ok := r.ps.nextUndecided()
		if !ok {
			return r.buildSolution(), nil
		}
		if err := checkCancel(ctx); err != nil {
			return nil, err
		}
		if err := r.decideNext(ctx, pkg); err != nil {
			return nil, err
		}
	}
}

func (r *Resolver) addIncompatibility(ic *Incompatibility) {
	r.incompats = append(r.incompats, ic)
}

// addRangeIncompatibility records the single-term incompatibility that
// encodes a root or dependency requirement: "the conjunction {p ∉ req} is
// impossible", i.e. unit propagation will immediately derive {p ∈ req} as
// baseline knowledge the moment this incompatibility is scanned.
func (r *Resolver) addRangeIncompatibility(e dependencyEdge) {
	cause := Cause{Kind: CauseRoot}
	if e.from != "" {
		cause = Cause{Kind: CauseDependency, From: e.from}
	}
	r.addIncompatibility(&Incompatibility{
		Terms: []Term{Neg(e.dep.Ref.Identity, e.dep.Requirement.ToSet())},
		Cause: cause,
	})
}

// prefetchPins eagerly decides every pin whose version is still consistent
// with whatever root terms are already known, at decision level 0.
func (r *Resolver) prefetchPins(pins []PinSeed) {
	for _, p := range pins {
		if !p.HasVersion {
			continue // branch/revision pins are carried via r.fixed instead
		}
		if _, already := r.fixed[p.Package]; already {
			continue
		}
		if _, decided := r.ps.decidedVersion(p.Package); decided {
			continue
		}
		if !r.ps.accumulatedFor(p.Package).Contains(p.Version) {
			continue
		}
		r.ps.decidePrefetch(p.Package, p.Version)
	}
}

// drainFixedRefs resolves every branch/revision dependency edge reachable
// from seed directly against the container (branches and revisions are
// opaque equality-only constraints outside the version-range algebra,
// spec.md §3), recursing into their own dependencies, and returns the
// range/exact/unversioned edges discovered along the way for the caller
// to add to the incompatibility store.
func (r *Resolver) drainFixedRefs(ctx context.Context, seed []dependencyEdge) ([]dependencyEdge, error) {
	var rangeEdges []dependencyEdge
	queue := append([]dependencyEdge{}, seed...)

	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]

		if err := checkCancel(ctx); err != nil {
			return nil, err
		}

		switch e.dep.Requirement.Kind {
		case container.RequirementBranch, container.RequirementRevision:
			id := e.dep.Ref.Identity
			revs, err := r.provider.Revisions(ctx, id, e.dep.Requirement)
			if err != nil {
				return nil, err
			}
			if len(revs) == 0 {
				return nil, &NoAvailableVersionError{Package: id}
			}
			rev := revs[0]
			if prior, ok := r.fixed[id]; ok {
				if prior.revision != rev {
					return nil, &ConflictingFixedRefError{Package: id, First: prior.revision, Second: rev}
				}
				continue
			}
			branch := ""
			if e.dep.Requirement.Kind == container.RequirementBranch {
				branch = e.dep.Requirement.Branch
			}
			r.fixed[id] = fixedPoint{revision: rev, branch: branch}

			if err := checkCancel(ctx); err != nil {
				return nil, err
			}
			deps, err := r.provider.Dependencies(ctx, id, container.ForRevision(rev))
			if err != nil {
				return nil, err
			}
			for _, d := range deps {
				queue = append(queue, dependencyEdge{from: id, dep: d})
			}
		default:
			rangeEdges = append(rangeEdges, e)
		}
	}
	return rangeEdges, nil
}

// propagate implements spec.md §4.4 step 5: repeatedly scan
// incompatibilities until no further derivation or conflict fires.
func (r *Resolver) propagate(ctx context.Context) error {
	for {
		if err := checkCancel(ctx); err != nil {
			return err
		}
		changed := false
		for i := 0; i < len(r.incompats); i++ {
			ic := r.incompats[i]
			rel, term := ic.relation(r.ps)
			switch rel {
			case relSatisfied:
				learned, err := r.resolveConflict(ic)
				if err != nil {
					return err
				}
				r.addIncompatibility(learned)
				changed = true
			case relAlmostSatisfied:
				derived := term.Negate()
				if r.ps.satisfies(derived) == Satisfied {
					continue
				}
				r.ps.derive(derived, ic)
				changed = true
			}
		}
		if !changed {
			return nil
		}
	}
}

// resolveConflict implements spec.md §4.4's backjump procedure: walk the
// assignment backward, resolving conflict against the antecedent of each
// offending term's most recent satisfier, until exactly one term in the
// resolved incompatibility sits at the current decision level. It then
// backjumps to the second-highest decision level among the incompatibility's
// terms, derives the negation of the satisfying term there, and returns the
// learned incompatibility for the caller to add to the store.
func (r *Resolver) resolveConflict(conflict *Incompatibility) (*Incompatibility, error) {
	incompat := conflict
	for {
		if len(incompat.Terms) == 0 {
			return nil, &UnsatisfiableError{Chain: r.causeChain(incompat)}
		}

		satisfierIdx, satisfierTerm, prevLevel := r.ps.findSatisfier(incompat.Terms)
		if satisfierIdx < 0 {
			return nil, &UnsatisfiableError{Chain: r.causeChain(incompat)}
		}
		satisfierEntry := r.ps.log[satisfierIdx]

		if satisfierEntry.level == 0 {
			return nil, &UnsatisfiableError{Chain: r.causeChain(incompat)}
		}

		if satisfierEntry.kind == kindDecision || prevLevel != satisfierEntry.level {
			r.ps.backtrackTo(prevLevel)
			r.ps.derive(satisfierTerm.Negate(), incompat)
			return incompat, nil
		}

		incompat = mergeIncompatibilities(incompat, satisfierEntry.cause, satisfierTerm.Package)
	}
}

// decideNext implements spec.md §4.4 steps 2–4: pick the highest
// container-reported version of pkg consistent with its accumulated terms
// and tools-version compatibility; on success, record the decision and
// turn its dependencies into new incompatibilities; on failure, derive a
// NoAvailableVersion conflict and resolve it.
func (r *Resolver) decideNext(ctx context.Context, pkg identity.Identity) error {
	if err := checkCancel(ctx); err != nil {
		return err
	}

	versions, err := r.provider.Versions(ctx, pkg)
	if err != nil {
		return err
	}

	allowed := r.ps.accumulatedFor(pkg)
	var chosen version.Version
	found := false
	for _, v := range versions {
		if !allowed.Contains(v) {
			continue
		}
		if err := checkCancel(ctx); err != nil {
			return err
		}
		compatible, err := r.provider.IsToolsVersionCompatible(ctx, pkg, v)
		if err != nil {
			return err
		}
		if !compatible {
			continue
		}
		chosen, found = v, true
		break // versions is sorted highest-first
	}

	if !found {
		conflict := &Incompatibility{
			Terms: []Term{Pos(pkg, allowed)},
			Cause: Cause{Kind: CauseNoAvailableVersion},
		}
		learned, err := r.resolveConflict(conflict)
		if err != nil {
			return err
		}
		r.addIncompatibility(learned)
		return nil
	}

	if err := checkCancel(ctx); err != nil {
		return err
	}
	deps, err := r.provider.Dependencies(ctx, pkg, container.ForVersion(chosen))
	if err != nil {
		return err
	}

	r.ps.decide(pkg, chosen)

	for _, d := range deps {
		switch d.Requirement.Kind {
		case container.RequirementBranch, container.RequirementRevision:
			rangeEdges, err := r.drainFixedRefs(ctx, []dependencyEdge{{from: pkg, dep: d}})
			if err != nil {
				return err
			}
			for _, e := range rangeEdges {
				r.addRangeIncompatibility(e)
			}
		default:
			// spec.md §4.4 step 4: { p := chosen, q ∉ req }.
			r.addIncompatibility(&Incompatibility{
				Terms: []Term{
					Pos(pkg, version.Exact(chosen)),
					Neg(d.Ref.Identity, d.Requirement.ToSet()),
				},
				Cause: Cause{Kind: CauseDependency, From: pkg},
			})
		}
	}
	return nil
}

func (r *Resolver) buildSolution() *Solution {
	sol := &Solution{Decisions: make(map[identity.Identity]Decision)}
	for id, v := range r.ps.decided {
		sol.Decisions[id] = Decision{Version: v, HasVersion: true}
	}
	for id, f := range r.fixed {
		sol.Decisions[id] = Decision{Revision: f.revision, Branch: f.branch}
	}
	return sol
}

// causeChain walks an Incompatibility's Conflict-cause ancestry, flattening
// it into the user-visible derivation trail spec.md §7 requires for
// UnsatisfiableError.
func (r *Resolver) causeChain(ic *Incompatibility) []string {
	var chain []string
	seen := make(map[*Incompatibility]bool)
	var visit func(*Incompatibility)
	visit = func(cur *Incompatibility) {
		if cur == nil || seen[cur] {
			return
		}
		seen[cur] = true
		if cur.Cause.Kind == CauseConflict {
			visit(cur.Cause.A)
			visit(cur.Cause.B)
			return
		}
		chain = append(chain, cur.String())
	}
	visit(ic)
	return chain
}

func checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return &CancelledError{}
	default:
		return nil
	}
}
