package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/cordage-pm/cordage/pkg/workspace"
)

func withPinsPath(t *testing.T) {
	t.Helper()
	old := flags.pinsPath
	flags.pinsPath = filepath.Join(t.TempDir(), "pins.json")
	t.Cleanup(func() { flags.pinsPath = old })
}

func TestSaveAndLoadEditsRoundTrip(t *testing.T) {
	withPinsPath(t)

	want := map[identity.Identity]workspace.EditInfo{
		"widgets": {Branch: "feature"},
		"gadgets": {Revision: "deadbeef"},
	}
	if err := saveEdits(want); err != nil {
		t.Fatalf("saveEdits: %v", err)
	}

	got := loadEdits()
	if len(got) != len(want) {
		t.Fatalf("loadEdits = %+v, want %+v", got, want)
	}
	for id, info := range want {
		if got[id] != info {
			t.Fatalf("loadEdits[%s] = %+v, want %+v", id, got[id], info)
		}
	}
}

func TestSaveEditsEmptyRemovesFile(t *testing.T) {
	withPinsPath(t)

	if err := saveEdits(map[identity.Identity]workspace.EditInfo{"widgets": {Branch: "feature"}}); err != nil {
		t.Fatalf("saveEdits: %v", err)
	}
	if err := saveEdits(map[identity.Identity]workspace.EditInfo{}); err != nil {
		t.Fatalf("saveEdits(empty): %v", err)
	}
	if _, err := os.Stat(editsPath()); !os.IsNotExist(err) {
		t.Fatalf("editsPath() stat err = %v, want not-exist", err)
	}
}

func TestLoadEditsMissingFileReturnsEmpty(t *testing.T) {
	withPinsPath(t)

	got := loadEdits()
	if len(got) != 0 {
		t.Fatalf("loadEdits on missing file = %+v, want empty", got)
	}
}
