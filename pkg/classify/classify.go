// Package classify partitions a target's filesystem view into the four
// disjoint build-input buckets — sources, resources, headers and others —
// applying the localization, resource and exclude rules a manifest's
// declared tools version gates.
package classify

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/cordage-pm/cordage/pkg/diag"
	"github.com/cordage-pm/cordage/pkg/version"
)

// Rule is the handling a resource declaration requests.
type Rule int

const (
	RuleProcess Rule = iota
	RuleCopy
	RuleEmbedInCode
)

func (r Rule) String() string {
	switch r {
	case RuleProcess:
		return "process"
	case RuleCopy:
		return "copy"
	case RuleEmbedInCode:
		return "embedInCode"
	default:
		return "unknown"
	}
}

// Resource is one explicit resource declaration from a target description.
type Resource struct {
	Path         string
	Rule         Rule
	Localization string // "", ".default", or an explicit language tag
}

// Target is the input a manifest's target description supplies to the
// classifier: exclude paths, an optional explicit sources list, explicit
// resources, the public-headers path, and the tools version gating which
// rule set applies.
type Target struct {
	Name                string
	Exclude             []string
	Sources             []string
	Resources           []Resource
	PublicHeadersPath   string
	DefaultLocalization string // e.g. "en"; "" if the package declares none
	ToolsVersion        version.Version
	Local               bool // false for a dependency fetched from a remote origin
}

// Severity and Diagnostic are aliases of the shared diag package's types:
// the classifier and the workspace reconciler report through the same
// Diagnostic shape so the CLI layer can render both uniformly.
type Severity = diag.Severity
type Diagnostic = diag.Diagnostic

const (
	SeverityError   = diag.Error
	SeverityWarning = diag.Warning
	SeverityInfo    = diag.Info
)

// Result is the classifier's output: four pairwise-disjoint, lexicographically
// sorted path lists, plus any diagnostics raised along the way.
type Result struct {
	Sources     []string
	Resources   []string
	Headers     []string
	Others      []string
	Diagnostics []Diagnostic
}

// knownContentExtensions is the set of directory-with-extension content
// types the classifier recognizes as a bundle instead of an opaque unknown
// directory. A bundle whose extension is absent from this set still
// collapses to a single unit at tv >= 5.3 (its interior is never expanded)
// but lands in Others rather than Resources, since the classifier cannot
// say what kind of content it holds.
var knownContentExtensions = map[string]bool{
	".xcassets":     true,
	".xcdatamodeld": true,
	".docc":         true,
	".bundle":       true,
	".playground":   true,
}

var sourceExtensions = map[string]bool{
	".swift": true, ".c": true, ".cc": true, ".cpp": true, ".cxx": true,
	".m": true, ".mm": true, ".s": true, ".asm": true,
}

var headerExtensions = map[string]bool{
	".h": true, ".hpp": true, ".hh": true,
}

// tv53 is the tools version at which lproj/directory-with-extension
// recognition turns on. The further 5.6 threshold in spec.md §4.6 only
// changes which bucket a known bundle extension lands in (still Resources
// here), not whether the bundle collapses — both sub-thresholds share the
// same "collapse, don't recurse" unit grouping below.
var tv53 = version.MustParse("5.3.0")

// Classify partitions files (repo-relative, forward-slash paths rooted at
// the target directory) into the four output buckets.
//
// Algorithm:
//  1. Resolve and apply excludes, warning or staying silent about unmatched
//     ones depending on whether the target belongs to a local package.
//  2. Collapse every directory-with-extension bundle (including .lproj
//     localization directories) into a single classified unit per the
//     tools-version gating rules, instead of walking its interior.
//  3. Classify every remaining leaf file: excluded explicit resources,
//     localized resources, public headers, source-extension files, and
//     everything else.
//  4. Run the forbidden-filename, both-variants and default-locale checks.
//  5. Detect same-output-path conflicts across the resources bucket.
//  6. Sort every bucket lexicographically and return.
func Classify(target Target, files []string) (Result, error) {
	files = normalizeAndDedup(files)

	kept, diags := applyExcludes(target, files)

	units, unitDiags := groupUnits(target, kept)
	diags = append(diags, unitDiags...)

	res := Result{}
	var resourceSources []resourceEntry

	for _, u := range units {
		switch u.kind {
		case unitBundle:
			if knownContentExtensions[u.ext] {
				res.Resources = append(res.Resources, u.path)
				resourceSources = append(resourceSources, resourceEntry{
					sourcePath: u.path,
					outputPath: strings.ToLower(u.path),
					filename:   path.Base(u.path),
				})
			} else {
				res.Others = append(res.Others, u.path)
			}

		case unitLproj:
			for _, f := range u.files {
				base := path.Base(f)
				res.Resources = append(res.Resources, f)
				resourceSources = append(resourceSources, resourceEntry{
					sourcePath: f,
					outputPath: strings.ToLower(u.lang) + "/" + strings.ToLower(base),
					lang:       u.lang,
					filename:   base,
				})
				if strings.EqualFold(base, "Info.plist") {
					diags = append(diags, Diagnostic{
						Severity: SeverityError,
						Message:  fmt.Sprintf("'Info.plist' is not a valid resource name in target %q", target.Name),
						Path:     f,
					})
				}
			}

		case unitExplicitResource:
			res.Resources = append(res.Resources, u.path)
			resourceSources = append(resourceSources, resourceEntry{
				sourcePath: u.path,
				outputPath: strings.ToLower(path.Base(u.path)),
				lang:       u.resource.Localization,
				filename:   path.Base(u.path),
			})

		case unitLeaf:
			bucket, diag := classifyLeaf(target, u.path)
			switch bucket {
			case bucketSource:
				res.Sources = append(res.Sources, u.path)
			case bucketHeader:
				res.Headers = append(res.Headers, u.path)
			default:
				res.Others = append(res.Others, u.path)
			}
			if diag != nil {
				diags = append(diags, *diag)
			}
		}
	}

	diags = append(diags, checkBothVariants(resourceSources)...)
	diags = append(diags, checkDefaultLocaleSiblings(target, resourceSources)...)

	conflictDiags, err := checkConflicts(target.Name, resourceSources)
	diags = append(diags, conflictDiags...)

	sort.Strings(res.Sources)
	sort.Strings(res.Resources)
	sort.Strings(res.Headers)
	sort.Strings(res.Others)
	res.Diagnostics = diags

	return res, err
}

func normalizeAndDedup(files []string) []string {
	seen := make(map[string]bool, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		f = path.Clean("/" + strings.TrimPrefix(path.Clean(f), "/"))
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}
