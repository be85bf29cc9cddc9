package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/cordage-pm/cordage/pkg/container"
	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/cordage-pm/cordage/pkg/version"
)

func mustRange(t *testing.T, expr string) container.Requirement {
	t.Helper()
	req, err := container.ParseExpr(expr)
	if err != nil {
		t.Fatalf("ParseExpr(%q): %v", expr, err)
	}
	return req
}

// S1 (basic pin round-trip): roots=[foo], container foo has versions
// {1.0.0, 1.0.2}, requirement ^1.0.0, no pins. Expected: resolved
// foo=1.0.2.
func TestResolverBasic(t *testing.T) {
	m := container.NewMemory()
	fooID := identity.MustDerive("foo")
	m.AddVersion(fooID, version.MustParse("1.0.0"))
	m.AddVersion(fooID, version.MustParse("1.0.2"))

	roots := []container.Dependency{
		{Ref: identity.NewLocalSCM(fooID, "foo"), Requirement: mustRange(t, "^1.0.0")},
	}

	sol, err := New(m).Solve(context.Background(), roots, nil)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	got, ok := sol.Decisions[fooID]
	if !ok || !got.HasVersion {
		t.Fatalf("foo not decided: %+v", sol.Decisions)
	}
	if got.Version.Compare(version.MustParse("1.0.2")) != 0 {
		t.Fatalf("foo decided at %s, want 1.0.2", got.Version)
	}
}

// S4 (UNSAT): roots require A ^1.0 and B ^1.0; A 1.0 depends on C ^1; B
// 1.0 depends on C ^2; container for C has only {1.0.0, 2.0.0}. Expected:
// UNSAT.
func TestResolverUnsat(t *testing.T) {
	m := container.NewMemory()
	a := identity.MustDerive("a")
	b := identity.MustDerive("b")
	c := identity.MustDerive("c")

	m.AddVersion(a, version.MustParse("1.0.0"),
		container.Dependency{Ref: identity.NewLocalSCM(c, "c"), Requirement: mustRange(t, "^1.0.0")})
	m.AddVersion(b, version.MustParse("1.0.0"),
		container.Dependency{Ref: identity.NewLocalSCM(c, "c"), Requirement: mustRange(t, "^2.0.0")})
	m.AddVersion(c, version.MustParse("1.0.0"))
	m.AddVersion(c, version.MustParse("2.0.0"))

	roots := []container.Dependency{
		{Ref: identity.NewLocalSCM(a, "a"), Requirement: mustRange(t, "^1.0.0")},
		{Ref: identity.NewLocalSCM(b, "b"), Requirement: mustRange(t, "^1.0.0")},
	}

	_, err := New(m).Solve(context.Background(), roots, nil)
	if err == nil {
		t.Fatal("expected UNSAT, got nil error")
	}
	var unsat *UnsatisfiableError
	if !errors.As(err, &unsat) {
		t.Fatalf("expected *UnsatisfiableError, got %T: %v", err, err)
	}
}

// A single-package graph with a branch requirement pins by revision and
// records no version.
func TestResolverBranchRequirement(t *testing.T) {
	m := container.NewMemory()
	foo := identity.MustDerive("foo")
	m.AddRevision(foo, "main", "deadbeef")

	roots := []container.Dependency{
		{Ref: identity.NewLocalSCM(foo, "foo"), Requirement: container.BranchRequirement("main")},
	}

	sol, err := New(m).Solve(context.Background(), roots, nil)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	got, ok := sol.Decisions[foo]
	if !ok {
		t.Fatalf("foo not decided")
	}
	if got.HasVersion {
		t.Fatalf("branch pin should not record a version: %+v", got)
	}
	if got.Revision != "deadbeef" || got.Branch != "main" {
		t.Fatalf("unexpected decision: %+v", got)
	}
}

// A pin contradicted by root requirements is discarded silently and
// resolution proceeds.
func TestResolverPinContradicted(t *testing.T) {
	m := container.NewMemory()
	foo := identity.MustDerive("foo")
	m.AddVersion(foo, version.MustParse("1.0.0"))
	m.AddVersion(foo, version.MustParse("2.0.0"))

	roots := []container.Dependency{
		{Ref: identity.NewLocalSCM(foo, "foo"), Requirement: mustRange(t, "^2.0.0")},
	}
	pins := []PinSeed{
		{Package: foo, Version: version.MustParse("1.0.0"), HasVersion: true},
	}

	sol, err := New(m).Solve(context.Background(), roots, pins)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	got := sol.Decisions[foo]
	if got.Version.Compare(version.MustParse("2.0.0")) != 0 {
		t.Fatalf("foo decided at %s, want 2.0.0 (pin should have been discarded)", got.Version)
	}
}

// Pin prefetch: a pin consistent with root requirements is honored without
// re-deriving dependencies that would otherwise pick a higher version.
func TestResolverPinPrefetchHonored(t *testing.T) {
	m := container.NewMemory()
	foo := identity.MustDerive("foo")
	m.AddVersion(foo, version.MustParse("1.0.0"))
	m.AddVersion(foo, version.MustParse("1.0.2"))

	roots := []container.Dependency{
		{Ref: identity.NewLocalSCM(foo, "foo"), Requirement: mustRange(t, "^1.0.0")},
	}
	pins := []PinSeed{
		{Package: foo, Version: version.MustParse("1.0.0"), HasVersion: true},
	}

	sol, err := New(m).Solve(context.Background(), roots, pins)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	got := sol.Decisions[foo]
	if got.Version.Compare(version.MustParse("1.0.0")) != 0 {
		t.Fatalf("foo decided at %s, want 1.0.0 from prefetched pin", got.Version)
	}
}

func TestResolverCancellation(t *testing.T) {
	m := container.NewMemory()
	foo := identity.MustDerive("foo")
	m.AddVersion(foo, version.MustParse("1.0.0"))

	roots := []container.Dependency{
		{Ref: identity.NewLocalSCM(foo, "foo"), Requirement: mustRange(t, "^1.0.0")},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(m).Solve(ctx, roots, nil)
	var cancelled *CancelledError
	if !errors.As(err, &cancelled) {
		t.Fatalf("expected *CancelledError, got %T: %v", err, err)
	}
}
