package classify

import (
	"sort"
	"testing"

	"github.com/cordage-pm/cordage/pkg/version"
)

func allPaths(res Result) []string {
	var all []string
	all = append(all, res.Sources...)
	all = append(all, res.Resources...)
	all = append(all, res.Headers...)
	all = append(all, res.Others...)
	sort.Strings(all)
	return all
}

// S5 (classifier, tv=5.3, directory-with-extension): files
// /some/hello.swift, /some.thing/hello.txt, no explicit resources.
func TestClassifyDirectoryWithExtension(t *testing.T) {
	target := Target{
		Name:         "Foo",
		ToolsVersion: version.MustParse("5.3.0"),
		Local:        true,
	}
	res, err := Classify(target, []string{"/some/hello.swift", "/some.thing/hello.txt"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	got := allPaths(res)
	want := []string{"/some.thing", "/some/hello.swift"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// S6 (classifier, conflict): resources [process "Resources"] over files
// /Resources/foo.txt, /Resources/Sub/foo.txt.
func TestClassifyConflict(t *testing.T) {
	target := Target{
		Name:         "Foo",
		ToolsVersion: version.MustParse("5.6.0"),
		Local:        true,
		Resources: []Resource{
			{Path: "Resources", Rule: RuleProcess},
		},
	}
	_, err := Classify(target, []string{"/Resources/foo.txt", "/Resources/Sub/foo.txt"})
	if err == nil {
		t.Fatal("expected a conflict error")
	}
	if got := err.Error(); got != `classify: multiple resources named "foo.txt" in target "Foo"` {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestClassifyDirectoryWithExtensionBeforeTV53(t *testing.T) {
	target := Target{
		Name:         "Foo",
		ToolsVersion: version.MustParse("5.2.0"),
		Local:        true,
	}
	res, err := Classify(target, []string{"/some.thing/hello.swift"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(res.Resources) != 0 || len(res.Others) != 0 {
		t.Fatalf("expected the directory to be recursed into, got %+v", res)
	}
	if len(res.Sources) != 1 || res.Sources[0] != "/some.thing/hello.swift" {
		t.Fatalf("expected /some.thing/hello.swift classified as a source, got %+v", res.Sources)
	}
}

func TestClassifyExcludeSilentForRemotePackage(t *testing.T) {
	target := Target{
		Name:         "Foo",
		ToolsVersion: version.MustParse("5.6.0"),
		Local:        false,
		Exclude:      []string{"Nonexistent"},
	}
	res, err := Classify(target, []string{"/main.swift"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	for _, d := range res.Diagnostics {
		if d.Severity == SeverityWarning {
			t.Fatalf("remote package should not warn about an unmatched exclude, got %+v", d)
		}
	}
}

func TestClassifyExcludeWarnsForLocalPackage(t *testing.T) {
	target := Target{
		Name:         "Foo",
		ToolsVersion: version.MustParse("5.6.0"),
		Local:        true,
		Exclude:      []string{"Nonexistent"},
	}
	res, err := Classify(target, []string{"/main.swift"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	found := false
	for _, d := range res.Diagnostics {
		if d.Severity == SeverityWarning {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a warning diagnostic for the unmatched exclude, got %+v", res.Diagnostics)
	}
}

func TestClassifyLocalizationBothVariants(t *testing.T) {
	target := Target{
		Name:         "Foo",
		ToolsVersion: version.MustParse("5.3.0"),
		Local:        true,
		Resources: []Resource{
			{Path: "Localizable.strings", Rule: RuleProcess},
		},
	}
	files := []string{"/en.lproj/Localizable.strings", "/Localizable.strings"}
	res, err := Classify(target, files)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	warned := false
	for _, d := range res.Diagnostics {
		if d.Severity == SeverityWarning {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("expected a both-variants warning, got %+v", res.Diagnostics)
	}
}

func TestClassifyInfoPlistForbidden(t *testing.T) {
	target := Target{
		Name:         "Foo",
		ToolsVersion: version.MustParse("5.6.0"),
		Local:        true,
	}
	res, _ := Classify(target, []string{"/Info.plist"})
	found := false
	for _, d := range res.Diagnostics {
		if d.Severity == SeverityError {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an error diagnostic for Info.plist, got %+v", res.Diagnostics)
	}
}

func TestClassifyOutputDisjointAndSorted(t *testing.T) {
	target := Target{
		Name:         "Foo",
		ToolsVersion: version.MustParse("5.6.0"),
		Local:        true,
	}
	files := []string{"/b.swift", "/a.swift", "/README.md", "/include/a.h"}
	res, err := Classify(target, files)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !sort.StringsAreSorted(res.Sources) || !sort.StringsAreSorted(res.Others) || !sort.StringsAreSorted(res.Headers) {
		t.Fatalf("expected sorted buckets, got %+v", res)
	}
	seen := make(map[string]bool)
	for _, bucket := range [][]string{res.Sources, res.Resources, res.Headers, res.Others} {
		for _, p := range bucket {
			if seen[p] {
				t.Fatalf("path %s appeared in more than one bucket", p)
			}
			seen[p] = true
		}
	}
}
