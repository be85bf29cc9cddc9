package main

import (
	"testing"

	"github.com/cordage-pm/cordage/pkg/identity"
)

func TestStateForRevision(t *testing.T) {
	st, err := stateFor("a1b2c3d")
	if err != nil {
		t.Fatalf("stateFor: %v", err)
	}
	if st.Revision != "a1b2c3d" || st.Version != nil || st.Branch != "" {
		t.Fatalf("stateFor(revision) = %+v, want Revision only", st)
	}
}

func TestStateForVersion(t *testing.T) {
	st, err := stateFor("v1.2.3")
	if err != nil {
		t.Fatalf("stateFor: %v", err)
	}
	if st.Version == nil || st.Version.String() != "1.2.3" || st.Revision != "" || st.Branch != "" {
		t.Fatalf("stateFor(version) = %+v, want Version 1.2.3 only", st)
	}

	st, err = stateFor("2.0.0")
	if err != nil {
		t.Fatalf("stateFor: %v", err)
	}
	if st.Version == nil || st.Version.String() != "2.0.0" {
		t.Fatalf("stateFor(bare version) = %+v, want Version 2.0.0", st)
	}
}

func TestStateForBranch(t *testing.T) {
	st, err := stateFor("main")
	if err != nil {
		t.Fatalf("stateFor: %v", err)
	}
	if st.Branch != "main" || st.Version != nil || st.Revision != "" {
		t.Fatalf("stateFor(branch) = %+v, want Branch main only", st)
	}
}

func TestClassifyPinTargetRemoteURL(t *testing.T) {
	id, kind, loc, err := classifyPinTarget("https://example.com/acme/widgets.git")
	if err != nil {
		t.Fatalf("classifyPinTarget: %v", err)
	}
	if kind != identity.RemoteSCM {
		t.Fatalf("kind = %v, want RemoteSCM", kind)
	}
	if id != "widgets" {
		t.Fatalf("identity = %q, want %q", id, "widgets")
	}
	if loc != "https://example.com/acme/widgets.git" {
		t.Fatalf("location = %q, want the original URL", loc)
	}
}

func TestClassifyPinTargetLocalDirectory(t *testing.T) {
	dir := t.TempDir()
	id, kind, loc, err := classifyPinTarget(dir)
	if err != nil {
		t.Fatalf("classifyPinTarget: %v", err)
	}
	if kind != identity.LocalSCM {
		t.Fatalf("kind = %v, want LocalSCM", kind)
	}
	if loc != dir {
		t.Fatalf("location = %q, want %q", loc, dir)
	}
	wantID, _ := identity.Derive(dir)
	if id != wantID {
		t.Fatalf("identity = %q, want %q", id, wantID)
	}
}

func TestClassifyPinTargetRegistryName(t *testing.T) {
	id, kind, loc, err := classifyPinTarget("widgets")
	if err != nil {
		t.Fatalf("classifyPinTarget: %v", err)
	}
	if kind != identity.Registry {
		t.Fatalf("kind = %v, want Registry", kind)
	}
	if id != "widgets" || loc != "widgets" {
		t.Fatalf("identity/location = %q/%q, want widgets/widgets", id, loc)
	}
}
