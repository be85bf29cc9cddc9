package identity

import "fmt"

// Kind discriminates the variants of a PackageReference.
type Kind int

const (
	// Root is the workspace's own root package; it has no identity.
	Root Kind = iota
	// LocalSCM references a package checked out at a local filesystem path
	// under source control (an "edit" checkout).
	LocalSCM
	// RemoteSCM references a package fetched from a source-control URL
	// (git, hg, etc. — the transport is opaque to this package).
	RemoteSCM
	// Registry references a package resolved by name against a registry.
	Registry
)

func (k Kind) String() string {
	switch k {
	case Root:
		return "root"
	case LocalSCM:
		return "localSourceControl"
	case RemoteSCM:
		return "remoteSourceControl"
	case Registry:
		return "registry"
	default:
		return "unknown"
	}
}

// Reference is the tagged-union PackageReference: it carries enough
// information to fetch a package, but equality and map-keying are by
// Identity and Kind alone — Path/URL differences (e.g. across mirrors) do
// not affect identity.
type Reference struct {
	Kind     Kind
	Identity Identity

	// Path is populated for Root and LocalSCM.
	Path string
	// URL is populated for RemoteSCM.
	URL string
}

// NewRoot builds a Root reference for the workspace's own package at path.
func NewRoot(path string) Reference {
	return Reference{Kind: Root, Path: path}
}

// NewLocalSCM builds a LocalSCM reference for a package checked out at path.
func NewLocalSCM(id Identity, path string) Reference {
	return Reference{Kind: LocalSCM, Identity: id, Path: path}
}

// NewRemoteSCM builds a RemoteSCM reference from a fetchable URL, deriving
// its identity.
func NewRemoteSCM(rawURL string) (Reference, error) {
	id, err := Derive(rawURL)
	if err != nil {
		return Reference{}, fmt.Errorf("remote reference: %w", err)
	}
	return Reference{Kind: RemoteSCM, Identity: id, URL: rawURL}, nil
}

// NewRegistry builds a Registry reference for a package named name.
func NewRegistry(name string) Reference {
	return Reference{Kind: Registry, Identity: Identity(name)}
}

// Equal reports whether two references denote the same package: same kind
// and same identity. Root references are never equal to anything but
// another Root (identity is empty for both, but they are singleton per
// workspace so kind equality suffices).
func (r Reference) Equal(other Reference) bool {
	if r.Kind != other.Kind {
		return false
	}
	if r.Kind == Root {
		return true
	}
	return r.Identity == other.Identity
}

func (r Reference) String() string {
	switch r.Kind {
	case Root:
		return fmt.Sprintf("root(%s)", r.Path)
	case LocalSCM:
		return fmt.Sprintf("local(%s@%s)", r.Identity, r.Path)
	case RemoteSCM:
		return fmt.Sprintf("remote(%s@%s)", r.Identity, r.URL)
	case Registry:
		return fmt.Sprintf("registry(%s)", r.Identity)
	default:
		return "invalid-reference"
	}
}
