// Package workspace implements the reconciler state machine of spec.md
// §4.5: it loads root manifests, drives the resolver, persists the
// resulting pins, and reconciles the resolved graph against on-disk
// dependency checkouts — cloning what is missing, refusing to clobber
// dirty or unpushed working copies, and leaving edited dependencies alone.
package workspace

import (
	"context"
	"fmt"

	"github.com/cordage-pm/cordage/pkg/clog"
	"github.com/cordage-pm/cordage/pkg/container"
	"github.com/cordage-pm/cordage/pkg/diag"
	"github.com/cordage-pm/cordage/pkg/graph"
	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/cordage-pm/cordage/pkg/manifest"
	"github.com/cordage-pm/cordage/pkg/mirror"
	"github.com/cordage-pm/cordage/pkg/pins"
	"github.com/cordage-pm/cordage/pkg/resolve"
)

// State is the reconciler's current position in the Idle → Loaded →
// Resolving → Resolved → Applied state machine.
type State int

const (
	Idle State = iota
	Loaded
	Resolving
	Resolved
	Applied
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loaded:
		return "loaded"
	case Resolving:
		return "resolving"
	case Resolved:
		return "resolved"
	case Applied:
		return "applied"
	default:
		return "unknown"
	}
}

// EditInfo records one dependency's edit-mode destination.
type EditInfo struct {
	Branch   string
	Revision string
}

// Reconciler is the workspace state machine. A Reconciler is built once per
// workspace and is not safe for concurrent use — spec.md §5 assigns it a
// single owner at a time, the same way PinsStore is owned.
type Reconciler struct {
	provider  container.Provider
	pins      *pins.Store
	mirrors   *mirror.Table
	checkouts CheckoutFactory

	state     State
	manifests []*manifest.Manifest
	edits     map[identity.Identity]EditInfo

	solution *resolve.Solution
	graph    *graph.Graph

	checkoutCache map[identity.Identity]Checkout
	log           *clog.Logger
}

// New creates an Idle Reconciler over provider, persisting resolved pins to
// store and reconciling dependency checkouts via checkouts. mirrors may be
// nil if no mirror table is configured.
func New(provider container.Provider, store *pins.Store, mirrors *mirror.Table, checkouts CheckoutFactory) *Reconciler {
	return &Reconciler{
		provider:      provider,
		pins:          store,
		mirrors:       mirrors,
		checkouts:     checkouts,
		edits:         make(map[identity.Identity]EditInfo),
		checkoutCache: make(map[identity.Identity]Checkout),
		log:           clog.New("workspace"),
	}
}

// SetLogger replaces the reconciler's logger, letting a caller share one
// clog.Logger (and its configured output/level) across every component it
// wires together.
func (r *Reconciler) SetLogger(l *clog.Logger) { r.log = l }

// State reports the reconciler's current state.
func (r *Reconciler) State() State { return r.state }

// Load records the workspace's root manifests and transitions Idle →
// Loaded. Called once per Reconciler; calling it again replaces the
// manifest set and re-enters Loaded from any state but Resolving. It logs a
// warning for every source-control pin in the store that has no revision.
func (r *Reconciler) Load(manifests ...*manifest.Manifest) error {
	if r.state == Resolving {
		return fmt.Errorf("workspace: Load called while resolving")
	}
	r.manifests = manifests
	for _, p := range r.pins.All() {
		if p.Kind != identity.Registry && !p.State.HasRevision() {
			r.log.Warnf("source-control pin %q has no revision", p.Identity)
		}
	}
	r.state = Loaded
	return nil
}

func (r *Reconciler) rootDependencies() []container.Dependency {
	var roots []container.Dependency
	for _, m := range r.manifests {
		roots = append(roots, m.Dependencies...)
	}
	return roots
}

func (r *Reconciler) pinSeeds() []resolve.PinSeed {
	var seeds []resolve.PinSeed
	for _, p := range r.pins.All() {
		if p.State.Version == nil {
			continue
		}
		seeds = append(seeds, resolve.PinSeed{
			Package:    p.Identity,
			Version:    *p.State.Version,
			HasVersion: true,
		})
	}
	return seeds
}

// Resolve runs the resolver over the loaded manifests' root requirements,
// seeded with the current pins, and builds the resulting dependency graph.
// It transitions Loaded → Resolving → Resolved on success; on failure it
// falls back to Loaded so a caller may fix the manifests and retry.
func (r *Reconciler) Resolve(ctx context.Context) (*resolve.Solution, error) {
	if r.state != Loaded {
		return nil, fmt.Errorf("workspace: Resolve called in state %s, want %s", r.state, Loaded)
	}
	r.state = Resolving
	r.log.Debugf("resolving %d root dependencies", len(r.rootDependencies()))

	roots := r.rootDependencies()
	sol, err := resolve.New(r.provider).Solve(ctx, roots, r.pinSeeds())
	if err != nil {
		r.state = Loaded
		r.log.Warnf("resolution failed: %v", err)
		return nil, err
	}

	g, err := graph.Build(ctx, r.provider, roots, sol)
	if err != nil {
		r.state = Loaded
		return nil, fmt.Errorf("workspace: building dependency graph: %w", err)
	}

	r.solution = sol
	r.graph = g
	r.state = Resolved
	r.log.Infof("resolved %d packages", len(sol.Decisions))
	return sol, nil
}

// referenceFor looks up the full PackageReference for id, first among the
// loaded manifests' own dependency edges, then (for transitive dependencies
// never declared at the root) among the last resolution's graph.
func (r *Reconciler) referenceFor(id identity.Identity) (identity.Reference, bool) {
	for _, m := range r.manifests {
		for _, d := range m.Dependencies {
			if d.Ref.Identity == id {
				return d.Ref, true
			}
		}
	}
	if r.graph != nil {
		if idx, ok := r.graph.NodeFor(id); ok {
			return r.graph.Nodes[idx].Ref, true
		}
	}
	return identity.Reference{}, false
}

func (r *Reconciler) checkoutFor(id identity.Identity, ref identity.Reference) Checkout {
	if co, ok := r.checkoutCache[id]; ok {
		return co
	}
	co := r.checkouts(id, ref)
	r.checkoutCache[id] = co
	return co
}

// Apply reconciles the resolved graph against on-disk checkouts (spec.md
// §4.5) and persists the resulting pins. It transitions Resolved →
// Applied on success; the reconciler stays at Resolved on any
// UncommittedChangesError/UnpushedChangesError so the caller can surface
// the conflict and retry once it is resolved out of band.
func (r *Reconciler) Apply(ctx context.Context) ([]diag.Diagnostic, error) {
	if r.state != Resolved {
		return nil, fmt.Errorf("workspace: Apply called in state %s, want %s", r.state, Resolved)
	}

	var diags []diag.Diagnostic
	for _, node := range r.graph.Nodes {
		d, err := r.applyOne(ctx, node)
		diags = append(diags, d...)
		if err != nil {
			return diags, err
		}
	}

	if err := r.pins.Save(r.mirrors); err != nil {
		return diags, fmt.Errorf("workspace: saving pins: %w", err)
	}

	r.state = Applied
	r.log.Infof("applied %d pins", len(r.graph.Nodes))
	return diags, nil
}

func (r *Reconciler) applyOne(ctx context.Context, node graph.Node) ([]diag.Diagnostic, error) {
	id := node.Ref.Identity
	dec := node.Decision

	// Registry dependencies are fetched artifacts, not source-control
	// checkouts: there is no working copy to reconcile, only a pin to
	// record (signature verification over the fetched artifact is
	// handled at fetch time, not here).
	if node.Ref.Kind == identity.Registry {
		st := pins.State{}
		if dec.HasVersion {
			v := dec.Version
			st.Version = &v
		}
		r.pins.Pin(pins.Pin{Identity: id, Kind: identity.Registry, Location: string(id), State: st})
		return nil, nil
	}

	var diags []diag.Diagnostic
	co := r.checkoutFor(id, node.Ref)

	exists, err := co.Exists(ctx)
	if err != nil {
		return diags, fmt.Errorf("workspace: checking %s: %w", id, err)
	}
	if !exists {
		diags = append(diags, diag.Diagnostic{
			Severity: diag.Warning,
			Message:  fmt.Sprintf("dependency %q is missing; cloning again", id),
		})
		r.log.Warnf("%s missing on disk, cloning", id)
		if err := co.Clone(ctx); err != nil {
			return diags, fmt.Errorf("workspace: cloning %s: %w", id, err)
		}
	}

	if edit, inEdit := r.edits[id]; inEdit {
		diags = append(diags, diag.Diagnostic{
			Severity: diag.Warning,
			Message: fmt.Sprintf(
				"dependency %q already exists at the edit destination; not checking-out branch/revision %q",
				id, decisionLabel(dec)),
		})
		rev, err := co.Revision(ctx)
		if err != nil {
			return diags, fmt.Errorf("workspace: reading revision of %s: %w", id, err)
		}
		r.pins.Pin(pins.Pin{
			Identity: id, Kind: node.Ref.Kind, Location: locationOf(node.Ref),
			State: pins.State{Branch: edit.Branch, Revision: rev},
		})
		return diags, nil
	}

	clean, err := co.IsClean(ctx)
	if err != nil {
		return diags, fmt.Errorf("workspace: checking cleanliness of %s: %w", id, err)
	}
	if !clean {
		return diags, &UncommittedChangesError{Identity: string(id)}
	}

	unpushed, err := co.HasUnpushedChanges(ctx)
	if err != nil {
		return diags, fmt.Errorf("workspace: checking unpushed changes of %s: %w", id, err)
	}
	if unpushed {
		return diags, &UnpushedChangesError{Identity: string(id)}
	}

	if dec.HasVersion {
		if err := co.CheckoutVersion(ctx, dec.Version); err != nil {
			return diags, fmt.Errorf("workspace: checking out %s@%s: %w", id, dec.Version, err)
		}
	} else {
		if err := co.CheckoutRevision(ctx, dec.Branch, dec.Revision); err != nil {
			return diags, fmt.Errorf("workspace: checking out %s@%s: %w", id, dec.Revision, err)
		}
	}

	rev, err := co.Revision(ctx)
	if err != nil {
		return diags, fmt.Errorf("workspace: reading revision of %s: %w", id, err)
	}

	st := pins.State{Branch: dec.Branch, Revision: rev}
	if dec.HasVersion {
		v := dec.Version
		st.Version = &v
	}
	r.pins.Pin(pins.Pin{Identity: id, Kind: node.Ref.Kind, Location: locationOf(node.Ref), State: st})
	return diags, nil
}

func decisionLabel(dec resolve.Decision) string {
	switch {
	case dec.HasVersion:
		return dec.Version.String()
	case dec.Branch != "":
		return dec.Branch
	default:
		return dec.Revision
	}
}

func locationOf(ref identity.Reference) string {
	switch ref.Kind {
	case identity.RemoteSCM:
		return ref.URL
	case identity.LocalSCM:
		return ref.Path
	default:
		return string(ref.Identity)
	}
}

// EnterEdit puts dependency id into edit mode: the reconciler will leave
// its working copy untouched on every future Apply until LeaveEdit is
// called. If branch is non-empty, a fresh branch is created at atRevision
// (or at the checkout's current HEAD if atRevision is ""); if branch is
// empty, the working copy is checked out directly at atRevision.
func (r *Reconciler) EnterEdit(ctx context.Context, id identity.Identity, branch, atRevision string) error {
	ref, ok := r.referenceFor(id)
	if !ok {
		return &UnknownDependencyError{Identity: string(id)}
	}
	co := r.checkoutFor(id, ref)

	clean, err := co.IsClean(ctx)
	if err != nil {
		return fmt.Errorf("workspace: checking cleanliness of %s: %w", id, err)
	}
	if !clean {
		return &UncommittedChangesError{Identity: string(id)}
	}

	if branch != "" {
		exists, err := co.BranchExists(ctx, branch)
		if err != nil {
			return fmt.Errorf("workspace: checking branch %q of %s: %w", branch, id, err)
		}
		if exists {
			return &BranchAlreadyExistsError{Identity: string(id), Branch: branch}
		}
	}
	if atRevision != "" {
		exists, err := co.RevisionExists(ctx, atRevision)
		if err != nil {
			return fmt.Errorf("workspace: checking revision %q of %s: %w", atRevision, id, err)
		}
		if !exists {
			return &RevisionDoesNotExistError{Identity: string(id), Revision: atRevision}
		}
	}

	if branch != "" {
		if err := co.CreateBranch(ctx, branch, atRevision); err != nil {
			return fmt.Errorf("workspace: creating branch %q for %s: %w", branch, id, err)
		}
	} else if atRevision != "" {
		if err := co.CheckoutRevision(ctx, "", atRevision); err != nil {
			return fmt.Errorf("workspace: checking out %s at %s: %w", id, atRevision, err)
		}
	}

	r.edits[id] = EditInfo{Branch: branch, Revision: atRevision}
	return nil
}

// LeaveEdit removes id from edit mode, re-exposing it to ordinary Apply
// reconciliation on the next run.
func (r *Reconciler) LeaveEdit(id identity.Identity) error {
	if _, ok := r.edits[id]; !ok {
		return &DependencyNotInEditModeError{Identity: string(id)}
	}
	delete(r.edits, id)
	return nil
}

// InEdit reports whether id is currently in edit mode.
func (r *Reconciler) InEdit(id identity.Identity) bool {
	_, ok := r.edits[id]
	return ok
}

// Edits returns a copy of the reconciler's current edit-mode set, so a
// caller that owns the process lifetime (the CLI) can persist it across
// invocations — the Reconciler itself only keeps edits in memory, per
// spec.md §3 "References are created by the reconciler and live for the
// duration of a resolution."
func (r *Reconciler) Edits() map[identity.Identity]EditInfo {
	out := make(map[identity.Identity]EditInfo, len(r.edits))
	for id, info := range r.edits {
		out[id] = info
	}
	return out
}

// RestoreEdits replaces the reconciler's edit-mode set with edits, letting
// a caller reload what it persisted from a prior invocation before calling
// Apply.
func (r *Reconciler) RestoreEdits(edits map[identity.Identity]EditInfo) {
	r.edits = make(map[identity.Identity]EditInfo, len(edits))
	for id, info := range edits {
		r.edits[id] = info
	}
}

// Solution returns the last successful resolution, if any.
func (r *Reconciler) Solution() *resolve.Solution { return r.solution }

// Graph returns the last built dependency graph, if any.
func (r *Reconciler) Graph() *graph.Graph { return r.graph }
