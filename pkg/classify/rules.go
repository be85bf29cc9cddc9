package classify

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

type unitKind int

const (
	unitLeaf unitKind = iota
	unitBundle
	unitLproj
	unitExplicitResource
)

type unit struct {
	kind     unitKind
	path     string
	ext      string   // unitBundle
	lang     string    // unitLproj
	files    []string  // unitLproj members
	resource Resource // unitExplicitResource
}

// resourceEntry is one file that landed in the resources bucket, carrying
// enough context for the both-variants, default-locale and conflict checks.
type resourceEntry struct {
	sourcePath string
	outputPath string // case-folded path the checks compare for collisions
	lang       string // "" unlocalized, ".default", or a language tag
	filename   string
}

func hasExt(seg string) bool {
	ext := path.Ext(seg)
	return ext != "" && ext != seg
}

func cleanRel(p string) string {
	return path.Clean("/" + strings.TrimPrefix(p, "/"))
}

// groupUnits scans the flat file list and collapses every directory that
// the tools version recognizes as a bundle (a .lproj localization
// directory, or any other directory-with-extension) into a single unit,
// per spec.md §4.6's tools-version gating. Files claimed by an explicit
// resource declaration are pulled out first and never auto-grouped.
func groupUnits(target Target, files []string) ([]unit, []Diagnostic) {
	var diags []Diagnostic

	recognizeBundles := target.ToolsVersion.Compare(tv53) >= 0

	explicit := make([]Resource, len(target.Resources))
	copy(explicit, target.Resources)
	sort.Slice(explicit, func(i, j int) bool { return len(explicit[i].Path) > len(explicit[j].Path) })

	matchExplicit := func(p string) (Resource, bool) {
		for _, r := range explicit {
			rp := cleanRel(r.Path)
			if p == rp || strings.HasPrefix(p, rp+"/") {
				return r, true
			}
		}
		return Resource{}, false
	}

	bundles := make(map[string]*unit)
	lprojs := make(map[string]*unit)
	var order []string
	var leaves []unit

	for _, f := range files {
		if r, ok := matchExplicit(f); ok {
			if r.Localization != "" && insideLproj(f) {
				diags = append(diags, Diagnostic{
					Severity: SeverityError,
					Message:  fmt.Sprintf("explicit localization on resource %q inside a localization directory is not allowed", f),
					Path:     f,
				})
			}
			leaves = append(leaves, unit{kind: unitExplicitResource, path: f, resource: r})
			continue
		}

		comps := strings.Split(strings.TrimPrefix(f, "/"), "/")
		collapsedAt := -1
		isLproj := false
		var lprojLang, bundleExt string

		for i := 0; i < len(comps)-1; i++ {
			seg := comps[i]
			if recognizeBundles && strings.HasSuffix(strings.ToLower(seg), ".lproj") {
				collapsedAt, isLproj = i, true
				lprojLang = seg[:len(seg)-len(".lproj")]
				break
			}
			if recognizeBundles && hasExt(seg) {
				collapsedAt = i
				bundleExt = path.Ext(seg)
				break
			}
		}

		if collapsedAt < 0 {
			leaves = append(leaves, unit{kind: unitLeaf, path: f})
			continue
		}

		dirPath := "/" + strings.Join(comps[:collapsedAt+1], "/")
		if isLproj {
			u, ok := lprojs[dirPath]
			if !ok {
				u = &unit{kind: unitLproj, path: dirPath, lang: lprojLang}
				lprojs[dirPath] = u
				order = append(order, dirPath)
			}
			if rest := comps[collapsedAt+1:]; len(rest) > 1 {
				diags = append(diags, Diagnostic{
					Severity: SeverityError,
					Message:  fmt.Sprintf("subdirectories are forbidden inside localization directory %q", dirPath),
					Path:     f,
				})
			}
			u.files = append(u.files, f)
		} else {
			if _, ok := bundles[dirPath]; !ok {
				bundles[dirPath] = &unit{kind: unitBundle, path: dirPath, ext: bundleExt}
				order = append(order, dirPath)
			}
		}
	}

	units := append([]unit{}, leaves...)
	for _, key := range order {
		if u, ok := bundles[key]; ok {
			units = append(units, *u)
			continue
		}
		if u, ok := lprojs[key]; ok {
			units = append(units, *u)
		}
	}
	return units, diags
}

func insideLproj(p string) bool {
	for _, seg := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		if strings.HasSuffix(strings.ToLower(seg), ".lproj") {
			return true
		}
	}
	return false
}

type leafBucket int

const (
	bucketOther leafBucket = iota
	bucketSource
	bucketHeader
)

// classifyLeaf buckets a plain file by its public-headers membership,
// then its extension. Explicit resources, lproj members and bundles are
// classified by their own unit handling before classifyLeaf ever runs.
func classifyLeaf(target Target, p string) (leafBucket, *Diagnostic) {
	base := path.Base(p)
	if strings.EqualFold(base, "Info.plist") {
		return bucketOther, &Diagnostic{
			Severity: SeverityError,
			Message:  fmt.Sprintf("'Info.plist' is not a valid resource name in target %q", target.Name),
			Path:     p,
		}
	}

	ext := strings.ToLower(path.Ext(p))
	if target.PublicHeadersPath != "" {
		hp := cleanRel(target.PublicHeadersPath)
		if (p == hp || strings.HasPrefix(p, hp+"/")) && headerExtensions[ext] {
			return bucketHeader, nil
		}
	}
	if headerExtensions[ext] {
		return bucketHeader, nil
	}

	if len(target.Sources) > 0 {
		for _, s := range target.Sources {
			sp := cleanRel(s)
			if p == sp || strings.HasPrefix(p, sp+"/") {
				return bucketSource, nil
			}
		}
		return bucketOther, nil
	}

	if sourceExtensions[ext] {
		return bucketSource, nil
	}
	return bucketOther, nil
}

// applyExcludes removes every file under a declared exclude path. An
// exclude that matches nothing warns for a local package's own target and
// is silent for a dependency fetched from a remote origin, per spec.md
// §4.6.
func applyExcludes(target Target, files []string) ([]string, []Diagnostic) {
	var diags []Diagnostic
	var cleanExcludes []string

	for _, ex := range target.Exclude {
		clean := cleanRel(ex)
		cleanExcludes = append(cleanExcludes, clean)

		matched := false
		for _, f := range files {
			if f == clean || strings.HasPrefix(f, clean+"/") {
				matched = true
				break
			}
		}
		if !matched && target.Local {
			diags = append(diags, Diagnostic{
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("exclude %q does not match any file in target %q", ex, target.Name),
				Path:     ex,
			})
		}
	}

	var kept []string
	for _, f := range files {
		excluded := false
		for _, ex := range cleanExcludes {
			if f == ex || strings.HasPrefix(f, ex+"/") {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, f)
		}
	}
	return kept, diags
}

// checkBothVariants warns when the same filename appears both as a plain
// unlocalized resource and inside some language's localization directory.
func checkBothVariants(entries []resourceEntry) []Diagnostic {
	localized := make(map[string]bool)
	unlocalized := make(map[string][]string)

	for _, e := range entries {
		name := strings.ToLower(e.filename)
		switch e.lang {
		case "":
			unlocalized[name] = append(unlocalized[name], e.sourcePath)
		case ".default":
		default:
			localized[name] = true
		}
	}

	names := make([]string, 0, len(unlocalized))
	for n := range unlocalized {
		names = append(names, n)
	}
	sort.Strings(names)

	var diags []Diagnostic
	for _, n := range names {
		if !localized[n] {
			continue
		}
		for _, p := range unlocalized[n] {
			diags = append(diags, Diagnostic{
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("resource %q appears both localized and un-localized", n),
				Path:     p,
			})
		}
	}
	return diags
}

// checkDefaultLocaleSiblings warns when a localized resource has no
// counterpart under the target's declared default language.
func checkDefaultLocaleSiblings(target Target, entries []resourceEntry) []Diagnostic {
	if target.DefaultLocalization == "" {
		return nil
	}
	def := strings.ToLower(target.DefaultLocalization)

	byLang := make(map[string]map[string]bool)
	for _, e := range entries {
		if e.lang == "" || e.lang == ".default" {
			continue
		}
		lang := strings.ToLower(e.lang)
		if byLang[lang] == nil {
			byLang[lang] = make(map[string]bool)
		}
		byLang[lang][strings.ToLower(e.filename)] = true
	}
	defaultFiles := byLang[def]

	langs := make([]string, 0, len(byLang))
	for l := range byLang {
		langs = append(langs, l)
	}
	sort.Strings(langs)

	var diags []Diagnostic
	for _, lang := range langs {
		if lang == def {
			continue
		}
		names := make([]string, 0, len(byLang[lang]))
		for n := range byLang[lang] {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			if !defaultFiles[n] {
				diags = append(diags, Diagnostic{
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("localized resource %q has no sibling under default language %q", n, target.DefaultLocalization),
				})
			}
		}
	}
	return diags
}

// checkConflicts finds resources whose output paths collide. It returns
// the enumerated diagnostics plus the first conflict as an error, since a
// conflict is fatal to classifying the target.
func checkConflicts(targetName string, entries []resourceEntry) ([]Diagnostic, error) {
	byOutput := make(map[string][]string)
	for _, e := range entries {
		byOutput[e.outputPath] = append(byOutput[e.outputPath], e.sourcePath)
	}

	keys := make([]string, 0, len(byOutput))
	for k := range byOutput {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var diags []Diagnostic
	var firstErr error
	for _, k := range keys {
		paths := dedupSorted(byOutput[k])
		if len(paths) < 2 {
			continue
		}
		msg := fmt.Sprintf("multiple resources named %q in target %q", path.Base(paths[0]), targetName)
		diags = append(diags, Diagnostic{Severity: SeverityError, Message: msg})
		for _, p := range paths {
			diags = append(diags, Diagnostic{Severity: SeverityInfo, Message: "conflicting resource location", Path: p})
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("classify: %s", msg)
		}
	}
	return diags, firstErr
}

func dedupSorted(paths []string) []string {
	sort.Strings(paths)
	out := paths[:0:0]
	var prev string
	for i, p := range paths {
		if i == 0 || p != prev {
			out = append(out, p)
		}
		prev = p
	}
	return out
}
