// Package manifest loads a cordage.toml package manifest, producing the
// root dependency edges the resolver consumes and the target descriptions
// the classifier consumes. The resolver and classifier never read TOML
// themselves; this package is the only place the manifest format is
// parsed.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/cordage-pm/cordage/pkg/classify"
	"github.com/cordage-pm/cordage/pkg/container"
	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/cordage-pm/cordage/pkg/version"
)

// MalformedManifestError reports a manifest that failed to parse or
// validate. It is fatal to loading the package that declared it.
type MalformedManifestError struct {
	Path string
	Err  error
}

func (e *MalformedManifestError) Error() string {
	return fmt.Sprintf("manifest: %s: %v", e.Path, e.Err)
}

func (e *MalformedManifestError) Unwrap() error { return e.Err }

// Manifest is the parsed, validated form of a package's cordage.toml.
type Manifest struct {
	Name                string
	DefaultLocalization string
	ToolsVersion        version.Version
	Dependencies        []container.Dependency
	Targets             []classify.Target
}

type wireManifest struct {
	Name                string           `toml:"name"`
	DefaultLocalization string           `toml:"defaultLocalization"`
	ToolsVersion        string           `toml:"tools_version"`
	Dependencies        []wireDependency `toml:"dependencies"`
	Targets             []wireTarget     `toml:"targets"`
}

type wireDependency struct {
	URL         string `toml:"url"`
	Path        string `toml:"path"`
	Requirement string `toml:"requirement"`
}

type wireTarget struct {
	Name              string         `toml:"name"`
	Exclude           []string       `toml:"exclude"`
	Sources           []string       `toml:"sources"`
	PublicHeadersPath string         `toml:"public_headers_path"`
	ToolsVersion      string         `toml:"tools_version"`
	Resources         []wireResource `toml:"resources"`
}

type wireResource struct {
	Path         string `toml:"path"`
	Rule         string `toml:"rule"`
	Localization string `toml:"localization"`
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse parses manifest TOML already read into memory. sourcePath is used
// only for diagnostics and to resolve relative dependency paths.
func Parse(data []byte, sourcePath string) (*Manifest, error) {
	var w wireManifest
	if _, err := toml.Decode(string(data), &w); err != nil {
		return nil, &MalformedManifestError{Path: sourcePath, Err: err}
	}
	if strings.TrimSpace(w.Name) == "" {
		return nil, &MalformedManifestError{Path: sourcePath, Err: fmt.Errorf("missing required field 'name'")}
	}

	tv := version.MustParse("5.6.0")
	if strings.TrimSpace(w.ToolsVersion) != "" {
		parsed, err := parseToolsVersion(w.ToolsVersion)
		if err != nil {
			return nil, &MalformedManifestError{Path: sourcePath, Err: fmt.Errorf("tools_version: %w", err)}
		}
		tv = parsed
	}

	m := &Manifest{Name: w.Name, DefaultLocalization: w.DefaultLocalization, ToolsVersion: tv}
	manifestDir := filepath.Dir(sourcePath)

	for i, d := range w.Dependencies {
		dep, err := toDependency(d, manifestDir)
		if err != nil {
			return nil, &MalformedManifestError{Path: sourcePath, Err: fmt.Errorf("dependencies[%d]: %w", i, err)}
		}
		m.Dependencies = append(m.Dependencies, dep)
	}

	for i, t := range w.Targets {
		target, err := toTarget(t, m.DefaultLocalization, tv)
		if err != nil {
			return nil, &MalformedManifestError{Path: sourcePath, Err: fmt.Errorf("targets[%d]: %w", i, err)}
		}
		m.Targets = append(m.Targets, target)
	}

	return m, nil
}

func toDependency(d wireDependency, manifestDir string) (container.Dependency, error) {
	hasURL := strings.TrimSpace(d.URL) != ""
	hasPath := strings.TrimSpace(d.Path) != ""
	if hasURL == hasPath {
		return container.Dependency{}, fmt.Errorf("exactly one of 'url' or 'path' must be set")
	}

	var ref identity.Reference
	if hasURL {
		r, err := identity.NewRemoteSCM(d.URL)
		if err != nil {
			return container.Dependency{}, err
		}
		ref = r
	} else {
		abs := d.Path
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(manifestDir, d.Path)
		}
		id, err := identity.Derive(abs)
		if err != nil {
			return container.Dependency{}, err
		}
		ref = identity.NewLocalSCM(id, abs)
	}

	req, err := requirementFor(d.Requirement, hasPath)
	if err != nil {
		return container.Dependency{}, err
	}
	return container.Dependency{Ref: ref, Requirement: req}, nil
}

func requirementFor(expr string, isLocalPath bool) (container.Requirement, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		if isLocalPath {
			return container.UnversionedRequirement(), nil
		}
		return container.Requirement{}, fmt.Errorf("missing 'requirement'")
	}
	return container.ParseExpr(expr)
}

func toTarget(t wireTarget, packageDefaultLocalization string, packageToolsVersion version.Version) (classify.Target, error) {
	tv := packageToolsVersion
	if strings.TrimSpace(t.ToolsVersion) != "" {
		parsed, err := parseToolsVersion(t.ToolsVersion)
		if err != nil {
			return classify.Target{}, err
		}
		tv = parsed
	}

	target := classify.Target{
		Name:                t.Name,
		Exclude:             t.Exclude,
		Sources:             t.Sources,
		PublicHeadersPath:   t.PublicHeadersPath,
		DefaultLocalization: packageDefaultLocalization,
		ToolsVersion:        tv,
		Local:               true,
	}

	for i, r := range t.Resources {
		rule, err := parseRule(r.Rule)
		if err != nil {
			return classify.Target{}, fmt.Errorf("resources[%d]: %w", i, err)
		}
		target.Resources = append(target.Resources, classify.Resource{
			Path:         r.Path,
			Rule:         rule,
			Localization: r.Localization,
		})
	}
	return target, nil
}

func parseRule(s string) (classify.Rule, error) {
	switch s {
	case "", "process":
		return classify.RuleProcess, nil
	case "copy":
		return classify.RuleCopy, nil
	case "embedInCode":
		return classify.RuleEmbedInCode, nil
	default:
		return 0, fmt.Errorf("unknown resource rule %q", s)
	}
}

// parseToolsVersion accepts both "X.Y" and full semver "X.Y.Z" forms,
// since manifests commonly write a bare major.minor tools version.
func parseToolsVersion(s string) (version.Version, error) {
	if strings.Count(s, ".") == 1 {
		s = s + ".0"
	}
	return version.Parse(s)
}
