package workspace

import (
	"context"

	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/cordage-pm/cordage/pkg/version"
)

// Checkout is the on-disk working copy of one pinned source-control
// dependency (a LocalSCM or RemoteSCM reference). Unlike the teacher's
// Repo, which models exactly one top-level working tree, the reconciler
// holds one Checkout per pinned dependency — spec.md §4.5's reconciliation
// rules are stated per-(identity, state), and a real cordage workspace may
// hold dozens of dependency checkouts side by side.
type Checkout interface {
	// Exists reports whether the checkout is present on disk at all.
	Exists(ctx context.Context) (bool, error)

	// Clone fetches the dependency into its checkout location from
	// scratch. Called only when Exists reports false.
	Clone(ctx context.Context) error

	// IsClean reports whether the working copy has no uncommitted
	// changes (staged or unstaged), mirroring the teacher's
	// Repo.ensureClean.
	IsClean(ctx context.Context) (bool, error)

	// HasUnpushedChanges reports whether the checkout's current branch
	// has commits absent from every configured remote.
	HasUnpushedChanges(ctx context.Context) (bool, error)

	// CurrentBranch returns the checked-out branch name, or "" if HEAD
	// is detached.
	CurrentBranch(ctx context.Context) (string, error)

	// Revision returns the concrete revision HEAD currently points at.
	Revision(ctx context.Context) (string, error)

	// BranchExists reports whether name already exists in the checkout.
	BranchExists(ctx context.Context, name string) (bool, error)

	// RevisionExists reports whether rev is reachable in the checkout.
	RevisionExists(ctx context.Context, rev string) (bool, error)

	// CheckoutVersion switches the working copy to the tag/ref
	// corresponding to v.
	CheckoutVersion(ctx context.Context, v version.Version) error

	// CheckoutRevision switches the working copy to rev directly
	// (detached), optionally by way of branch if it is non-empty.
	CheckoutRevision(ctx context.Context, branch, rev string) error

	// CreateBranch creates a new branch named name at rev (or at the
	// current HEAD if rev is "") and switches the working copy to it.
	CreateBranch(ctx context.Context, name, rev string) error
}

// CheckoutFactory builds the Checkout for a dependency identity and
// reference. The reconciler calls it at most once per identity per
// reconciler instance, caching the result.
type CheckoutFactory func(id identity.Identity, ref identity.Reference) Checkout
