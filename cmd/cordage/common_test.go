package main

import "testing"

func TestLoadMirrorsParsesSpecs(t *testing.T) {
	old := flags.mirrors
	defer func() { flags.mirrors = old }()

	flags.mirrors = []string{"https://github.com/acme/widgets=https://mirror.internal/acme/widgets"}
	table, err := loadMirrors()
	if err != nil {
		t.Fatalf("loadMirrors: %v", err)
	}
	if got := table.Resolve("https://github.com/acme/widgets"); got != "https://mirror.internal/acme/widgets" {
		t.Fatalf("Resolve = %q, want mirror URL", got)
	}
}

func TestLoadMirrorsRejectsMalformedSpec(t *testing.T) {
	old := flags.mirrors
	defer func() { flags.mirrors = old }()

	flags.mirrors = []string{"no-equals-sign-here"}
	if _, err := loadMirrors(); err == nil {
		t.Fatal("loadMirrors: want error for spec without '='")
	}
}
