package mirror

import "testing"

func TestResolveUnresolveRoundTrip(t *testing.T) {
	tbl := New()
	tbl.Set("https://github.com/corporate/foo.git", "https://ghe/team/foo.git")

	if got := tbl.Resolve("https://github.com/corporate/foo.git"); got != "https://ghe/team/foo.git" {
		t.Fatalf("Resolve: got %q", got)
	}
	if got := tbl.Unresolve("https://ghe/team/foo.git"); got != "https://github.com/corporate/foo.git" {
		t.Fatalf("Unresolve: got %q", got)
	}
}

func TestResolveOutsideDomainIsIdentity(t *testing.T) {
	tbl := New()
	tbl.Set("https://github.com/corporate/foo.git", "https://ghe/team/foo.git")

	other := "https://github.com/other/bar.git"
	if got := tbl.Resolve(other); got != other {
		t.Fatalf("Resolve outside domain: got %q", got)
	}
	if got := tbl.Unresolve(other); got != other {
		t.Fatalf("Unresolve outside domain: got %q", got)
	}
}

func TestSelfMirrorIsNoOp(t *testing.T) {
	tbl := New()
	u := "https://github.com/corporate/foo.git"
	tbl.Set(u, u)

	if got := tbl.Resolve(u); got != u {
		t.Fatalf("Resolve self-mirror: got %q", got)
	}
	if got := tbl.Unresolve(u); got != u {
		t.Fatalf("Unresolve self-mirror: got %q", got)
	}
}

func TestTrailingSlashNormalized(t *testing.T) {
	tbl := New()
	tbl.Set("https://github.com/corporate/foo.git/", "https://ghe/team/foo.git")

	if got := tbl.Resolve("https://github.com/corporate/foo.git"); got != "https://ghe/team/foo.git" {
		t.Fatalf("Resolve: got %q", got)
	}
}
