package resolve

import (
	"testing"

	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/cordage-pm/cordage/pkg/version"
)

func TestTermNegateRoundTrip(t *testing.T) {
	id := identity.MustDerive("foo")
	set := version.Range(version.MustParse("1.0.0"), version.MustParse("2.0.0"))
	t1 := Pos(id, set)
	t2 := t1.Negate().Negate()
	if t1.Positive != t2.Positive {
		t.Fatalf("double negation changed polarity")
	}
}

func TestTermRequired(t *testing.T) {
	id := identity.MustDerive("foo")
	set := version.Range(version.MustParse("1.0.0"), version.MustParse("2.0.0"))

	pos := Pos(id, set)
	if pos.Required().Relation(set) != version.RelSubset {
		t.Fatalf("positive term's Required() should equal its own set")
	}

	neg := Neg(id, set)
	if !neg.Required().Contains(version.MustParse("2.0.0")) {
		t.Fatalf("negative term's Required() should be the complement")
	}
	if neg.Required().Contains(version.MustParse("1.5.0")) {
		t.Fatalf("negative term's Required() should exclude the original set")
	}
}

func TestPartialSolutionSatisfyStates(t *testing.T) {
	ps := newPartialSolution()
	id := identity.MustDerive("foo")
	set := version.Range(version.MustParse("1.0.0"), version.MustParse("2.0.0"))

	if got := ps.satisfies(Pos(id, set)); got != Undetermined {
		t.Fatalf("fresh package: got %s, want Undetermined", got)
	}

	ps.decide(id, version.MustParse("1.5.0"))

	if got := ps.satisfies(Pos(id, set)); got != Satisfied {
		t.Fatalf("decided-inside-range: got %s, want Satisfied", got)
	}

	outside := version.Range(version.MustParse("5.0.0"), version.MustParse("6.0.0"))
	if got := ps.satisfies(Pos(id, outside)); got != Contradicted {
		t.Fatalf("decided-outside-range: got %s, want Contradicted", got)
	}
}
