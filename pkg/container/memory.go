package container

import (
	"context"
	"sort"

	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/cordage-pm/cordage/pkg/version"
)

// memoryPackage is one identity's full catalog in an in-memory Provider.
type memoryPackage struct {
	versions     []version.Version
	dependencies map[string][]Dependency // keyed by version.String()
	revisions    map[string]string       // branch/revision literal -> resolved revision
	incompatible map[string]bool         // version.String() -> tools-incompatible
}

// Memory is an in-memory PackageContainer.Provider, the fixture used by the
// resolver's own tests and by anything standing in for a real registry
// without a network round trip.
type Memory struct {
	packages map[identity.Identity]*memoryPackage
}

// NewMemory creates an empty in-memory container.
func NewMemory() *Memory {
	return &Memory{packages: make(map[identity.Identity]*memoryPackage)}
}

func (m *Memory) pkg(id identity.Identity) *memoryPackage {
	p, ok := m.packages[id]
	if !ok {
		p = &memoryPackage{
			dependencies: make(map[string][]Dependency),
			revisions:    make(map[string]string),
			incompatible: make(map[string]bool),
		}
		m.packages[id] = p
	}
	return p
}

// AddVersion registers a version of id with its dependency edges.
func (m *Memory) AddVersion(id identity.Identity, v version.Version, deps ...Dependency) {
	p := m.pkg(id)
	p.versions = append(p.versions, v)
	p.dependencies[v.String()] = deps
}

// AddRevision registers a resolved revision for a branch name or revision
// literal of id.
func (m *Memory) AddRevision(id identity.Identity, ref, revision string, deps ...Dependency) {
	p := m.pkg(id)
	p.revisions[ref] = revision
	p.dependencies["rev:"+revision] = deps
}

// MarkIncompatible flags a version as failing the tools-version check.
func (m *Memory) MarkIncompatible(id identity.Identity, v version.Version) {
	m.pkg(id).incompatible[v.String()] = true
}

func (m *Memory) Versions(_ context.Context, id identity.Identity) ([]version.Version, error) {
	p, ok := m.packages[id]
	if !ok {
		return nil, nil
	}
	out := append([]version.Version{}, p.versions...)
	sort.Slice(out, func(i, j int) bool { return out[j].Less(out[i]) })
	return out, nil
}

func (m *Memory) Revisions(_ context.Context, id identity.Identity, req Requirement) ([]string, error) {
	p, ok := m.packages[id]
	if !ok {
		return nil, nil
	}
	var key string
	switch req.Kind {
	case RequirementBranch:
		key = req.Branch
	case RequirementRevision:
		key = req.Revision
	default:
		return nil, nil
	}
	if rev, ok := p.revisions[key]; ok {
		return []string{rev}, nil
	}
	if req.Kind == RequirementRevision {
		// A literal revision that was never registered via AddRevision is
		// still valid if some AddVersion/AddRevision call used it as the
		// dependency-map key directly.
		if _, ok := p.dependencies["rev:"+key]; ok {
			return []string{key}, nil
		}
	}
	return nil, nil
}

func (m *Memory) Dependencies(_ context.Context, id identity.Identity, at At) ([]Dependency, error) {
	p, ok := m.packages[id]
	if !ok {
		return nil, nil
	}
	if at.HasVer {
		return p.dependencies[at.Version.String()], nil
	}
	return p.dependencies["rev:"+at.Revision], nil
}

func (m *Memory) IsToolsVersionCompatible(_ context.Context, id identity.Identity, v version.Version) (bool, error) {
	p, ok := m.packages[id]
	if !ok {
		return true, nil
	}
	return !p.incompatible[v.String()], nil
}

var _ Provider = (*Memory)(nil)
