package main

import (
	"encoding/json"
	"os"

	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/cordage-pm/cordage/pkg/workspace"
)

// loadEdits/saveEdits persist the Reconciler's in-memory edit-mode set
// across separate cordage invocations — spec.md's EnterEdit/LeaveEdit are
// pure Reconciler mutations with no file format of their own, so the CLI
// owns a small sidecar file next to the pins file, mirroring how pins.Store
// itself is "loaded once, mutated in memory... persisted on explicit save"
// but scoped to the edit set instead.
type editsFile struct {
	Edits map[string]workspace.EditInfo `json:"edits"`
}

func loadEdits() map[identity.Identity]workspace.EditInfo {
	out := make(map[identity.Identity]workspace.EditInfo)
	data, err := os.ReadFile(editsPath())
	if err != nil {
		return out
	}
	var f editsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return out
	}
	for k, v := range f.Edits {
		out[identity.Identity(k)] = v
	}
	return out
}

func saveEdits(edits map[identity.Identity]workspace.EditInfo) error {
	f := editsFile{Edits: make(map[string]workspace.EditInfo, len(edits))}
	for k, v := range edits {
		f.Edits[string(k)] = v
	}
	if len(f.Edits) == 0 {
		err := os.Remove(editsPath())
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(editsPath(), data, 0o644)
}
