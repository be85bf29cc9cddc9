package graph

import (
	"context"
	"testing"

	"github.com/cordage-pm/cordage/pkg/container"
	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/cordage-pm/cordage/pkg/resolve"
	"github.com/cordage-pm/cordage/pkg/version"
)

func mustExpr(t *testing.T, expr string) container.Requirement {
	t.Helper()
	req, err := container.ParseExpr(expr)
	if err != nil {
		t.Fatalf("ParseExpr(%q): %v", expr, err)
	}
	return req
}

func TestBuildLinearChain(t *testing.T) {
	m := container.NewMemory()
	foo := identity.MustDerive("foo")
	bar := identity.MustDerive("bar")

	m.AddVersion(foo, version.MustParse("1.0.0"),
		container.Dependency{Ref: identity.NewLocalSCM(bar, "bar"), Requirement: mustExpr(t, "^1.0.0")})
	m.AddVersion(bar, version.MustParse("1.0.0"))

	roots := []container.Dependency{
		{Ref: identity.NewLocalSCM(foo, "foo"), Requirement: mustExpr(t, "^1.0.0")},
	}

	sol, err := resolve.New(m).Solve(context.Background(), roots, nil)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	g, err := Build(context.Background(), m, roots, sol)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(g.RootIndices) != 1 {
		t.Fatalf("expected 1 root, got %d", len(g.RootIndices))
	}
	rootNode := g.Nodes[g.RootIndices[0]]
	if rootNode.Ref.Identity != foo {
		t.Fatalf("root node is %s, want foo", rootNode.Ref.Identity)
	}
	if len(rootNode.DependsOn) != 1 {
		t.Fatalf("expected foo to depend on exactly bar, got %d edges", len(rootNode.DependsOn))
	}
	barNode := g.Nodes[rootNode.DependsOn[0]]
	if barNode.Ref.Identity != bar {
		t.Fatalf("foo's dependency is %s, want bar", barNode.Ref.Identity)
	}
}

func TestBuildCycleSafe(t *testing.T) {
	m := container.NewMemory()
	foo := identity.MustDerive("foo")
	bar := identity.MustDerive("bar")

	m.AddVersion(foo, version.MustParse("1.0.0"),
		container.Dependency{Ref: identity.NewLocalSCM(bar, "bar"), Requirement: mustExpr(t, "^1.0.0")})
	m.AddVersion(bar, version.MustParse("1.0.0"),
		container.Dependency{Ref: identity.NewLocalSCM(foo, "foo"), Requirement: mustExpr(t, "^1.0.0")})

	roots := []container.Dependency{
		{Ref: identity.NewLocalSCM(foo, "foo"), Requirement: mustExpr(t, "^1.0.0")},
	}

	sol, err := resolve.New(m).Solve(context.Background(), roots, nil)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	g, err := Build(context.Background(), m, roots, sol)
	if err != nil {
		t.Fatalf("Build on cyclic graph: %v", err)
	}
	if len(g.Nodes) != 2 {
		t.Fatalf("expected 2 nodes (foo, bar), got %d", len(g.Nodes))
	}
}
