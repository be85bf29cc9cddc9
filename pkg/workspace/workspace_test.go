package workspace

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/cordage-pm/cordage/pkg/container"
	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/cordage-pm/cordage/pkg/manifest"
	"github.com/cordage-pm/cordage/pkg/pins"
	"github.com/cordage-pm/cordage/pkg/version"
)

// fakeCheckout is the workspace package's in-memory Checkout test double,
// the same role container.Memory plays for the resolver.
type fakeCheckout struct {
	exists   bool
	clean    bool
	unpushed bool
	revision string

	branches  map[string]bool
	revisions map[string]bool

	cloned            bool
	checkedOutVersion *version.Version
	checkedOutRev     string
	createdBranch     string
}

func newFakeCheckout() *fakeCheckout {
	return &fakeCheckout{
		exists:    true,
		clean:     true,
		revision:  "rev-initial",
		branches:  make(map[string]bool),
		revisions: make(map[string]bool),
	}
}

func (f *fakeCheckout) Exists(context.Context) (bool, error) { return f.exists, nil }

func (f *fakeCheckout) Clone(context.Context) error {
	f.cloned = true
	f.exists = true
	f.clean = true
	return nil
}

func (f *fakeCheckout) IsClean(context.Context) (bool, error) { return f.clean, nil }

func (f *fakeCheckout) HasUnpushedChanges(context.Context) (bool, error) { return f.unpushed, nil }

func (f *fakeCheckout) CurrentBranch(context.Context) (string, error) { return "", nil }

func (f *fakeCheckout) Revision(context.Context) (string, error) { return f.revision, nil }

func (f *fakeCheckout) BranchExists(_ context.Context, name string) (bool, error) {
	return f.branches[name], nil
}

func (f *fakeCheckout) RevisionExists(_ context.Context, rev string) (bool, error) {
	return f.revisions[rev], nil
}

func (f *fakeCheckout) CheckoutVersion(_ context.Context, v version.Version) error {
	f.checkedOutVersion = &v
	f.revision = "rev-for-" + v.String()
	return nil
}

func (f *fakeCheckout) CheckoutRevision(_ context.Context, branch, rev string) error {
	f.checkedOutRev = rev
	f.revision = rev
	return nil
}

func (f *fakeCheckout) CreateBranch(_ context.Context, name, rev string) error {
	f.createdBranch = name
	f.branches[name] = true
	return nil
}

var _ Checkout = (*fakeCheckout)(nil)

func mustExpr(t *testing.T, expr string) container.Requirement {
	t.Helper()
	req, err := container.ParseExpr(expr)
	if err != nil {
		t.Fatalf("ParseExpr(%q): %v", expr, err)
	}
	return req
}

// setup builds a Reconciler with one remote-SCM root dependency "foo" at
// version 1.0.0, a fakeCheckout registered for it, and a fresh pins.Store
// persisting into dir.
func setup(t *testing.T) (*Reconciler, identity.Identity, *fakeCheckout) {
	t.Helper()

	m := container.NewMemory()
	foo := identity.MustDerive("https://example.com/foo.git")
	m.AddVersion(foo, version.MustParse("1.0.0"))

	ref, err := identity.NewRemoteSCM("https://example.com/foo.git")
	if err != nil {
		t.Fatalf("NewRemoteSCM: %v", err)
	}

	mf := &manifest.Manifest{
		Name:         "root",
		Dependencies: []container.Dependency{{Ref: ref, Requirement: mustExpr(t, "^1.0.0")}},
	}

	co := newFakeCheckout()
	checkouts := map[identity.Identity]Checkout{foo: co}
	factory := func(id identity.Identity, ref identity.Reference) Checkout { return checkouts[id] }

	store := pins.New(filepath.Join(t.TempDir(), "pins.json"))
	r := New(m, store, nil, factory)

	if err := r.Load(mf); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := r.Resolve(context.Background()); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return r, foo, co
}

func TestApplyClonesMissingCheckout(t *testing.T) {
	r, foo, co := setup(t)
	co.exists = false

	diags, err := r.Apply(context.Background())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !co.cloned {
		t.Fatal("expected the missing checkout to be cloned")
	}
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %+v", diags)
	}
	if r.State() != Applied {
		t.Fatalf("state = %s, want Applied", r.State())
	}

	pin, ok := r.pins.Get(foo)
	if !ok {
		t.Fatal("expected a pin for foo")
	}
	if pin.State.Revision == "" {
		t.Fatal("expected the pin to carry a revision")
	}
}

func TestApplyUncommittedChangesBlocks(t *testing.T) {
	r, _, co := setup(t)
	co.clean = false

	_, err := r.Apply(context.Background())
	var target *UncommittedChangesError
	if !errors.As(err, &target) {
		t.Fatalf("Apply err = %v, want *UncommittedChangesError", err)
	}
	if r.State() != Resolved {
		t.Fatalf("state = %s, want Resolved (unchanged on failure)", r.State())
	}
}

func TestApplyUnpushedChangesBlocks(t *testing.T) {
	r, _, co := setup(t)
	co.unpushed = true

	_, err := r.Apply(context.Background())
	var target *UnpushedChangesError
	if !errors.As(err, &target) {
		t.Fatalf("Apply err = %v, want *UnpushedChangesError", err)
	}
}

func TestApplyEditModeKeepsWorkingCopy(t *testing.T) {
	r, foo, co := setup(t)
	if err := r.EnterEdit(context.Background(), foo, "feature", ""); err != nil {
		t.Fatalf("EnterEdit: %v", err)
	}

	diags, err := r.Apply(context.Background())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if co.checkedOutVersion != nil {
		t.Fatal("expected the edited checkout to not be checked out to the resolved version")
	}
	found := false
	for _, d := range diags {
		if d.Severity.String() == "warning" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an edit-mode warning diagnostic, got %+v", diags)
	}
}

func TestEnterEditRejectsDirtyWorkingCopy(t *testing.T) {
	r, foo, co := setup(t)
	co.clean = false

	err := r.EnterEdit(context.Background(), foo, "feature", "")
	var target *UncommittedChangesError
	if !errors.As(err, &target) {
		t.Fatalf("EnterEdit err = %v, want *UncommittedChangesError", err)
	}
}

func TestEnterEditRejectsExistingBranch(t *testing.T) {
	r, foo, co := setup(t)
	co.branches["feature"] = true

	err := r.EnterEdit(context.Background(), foo, "feature", "")
	var target *BranchAlreadyExistsError
	if !errors.As(err, &target) {
		t.Fatalf("EnterEdit err = %v, want *BranchAlreadyExistsError", err)
	}
}

func TestEnterEditRejectsMissingRevision(t *testing.T) {
	r, foo, _ := setup(t)

	err := r.EnterEdit(context.Background(), foo, "", "deadbeef")
	var target *RevisionDoesNotExistError
	if !errors.As(err, &target) {
		t.Fatalf("EnterEdit err = %v, want *RevisionDoesNotExistError", err)
	}
}

func TestLeaveEditNotInEditMode(t *testing.T) {
	r, foo, _ := setup(t)

	err := r.LeaveEdit(foo)
	var target *DependencyNotInEditModeError
	if !errors.As(err, &target) {
		t.Fatalf("LeaveEdit err = %v, want *DependencyNotInEditModeError", err)
	}
}

func TestEnterThenLeaveEdit(t *testing.T) {
	r, foo, _ := setup(t)
	if err := r.EnterEdit(context.Background(), foo, "feature", ""); err != nil {
		t.Fatalf("EnterEdit: %v", err)
	}
	if !r.InEdit(foo) {
		t.Fatal("expected foo to be in edit mode")
	}
	if err := r.LeaveEdit(foo); err != nil {
		t.Fatalf("LeaveEdit: %v", err)
	}
	if r.InEdit(foo) {
		t.Fatal("expected foo to no longer be in edit mode")
	}
}
