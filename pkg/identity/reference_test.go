package identity

import "testing"

func TestReferenceEqualByIdentityAndKind(t *testing.T) {
	a, err := NewRemoteSCM("https://github.com/corporate/foo.git")
	if err != nil {
		t.Fatalf("NewRemoteSCM: %v", err)
	}
	b, err := NewRemoteSCM("https://ghe.example.com/team/foo.git")
	if err != nil {
		t.Fatalf("NewRemoteSCM: %v", err)
	}
	if !a.Equal(b) {
		t.Fatalf("expected references with equal identity to be equal: %v vs %v", a, b)
	}

	reg := NewRegistry("foo")
	if a.Equal(reg) {
		t.Fatal("RemoteSCM and Registry references must not be equal even with the same identity")
	}
}

func TestReferenceRootEquality(t *testing.T) {
	r1 := NewRoot("/workspace/a")
	r2 := NewRoot("/workspace/b")
	if !r1.Equal(r2) {
		t.Fatal("all Root references are considered equal (singleton per workspace)")
	}
}
