package container

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/cordage-pm/cordage/pkg/object"
	"github.com/cordage-pm/cordage/pkg/remote"
	"github.com/cordage-pm/cordage/pkg/sign"
	"github.com/cordage-pm/cordage/pkg/version"
	"golang.org/x/sync/singleflight"
)

// ManifestParser decodes raw manifest bytes (cordage.toml text, as fetched
// verbatim from the remote's /manifest endpoint) into dependency edges and
// the manifest's declared tools version. *manifest.Manifest's loader
// satisfies this; it cannot be imported directly here since pkg/manifest
// already depends on pkg/container for the Dependency/Requirement types,
// and container cannot import back without a cycle.
type ManifestParser func(data []byte, sourcePath string) (deps []Dependency, toolsVersion version.Version, err error)

// MaxSupportedToolsVersion is the highest manifest tools version this build
// of cordage can parse. A fetched manifest declaring a higher tools version
// fails IsToolsVersionCompatible rather than being misparsed.
var MaxSupportedToolsVersion = version.MustParse("5.9.0")

// HTTPProvider implements Provider over a remote.Client, caching fetched
// version lists and manifests in a content-addressed object.Store keyed by
// identity+resolution-point so repeated resolver calls within one run (and
// across runs against the same workspace) avoid re-fetching, and optionally
// verifying a fetched manifest's detached SSH signature before trusting it.
type HTTPProvider struct {
	client *remote.Client
	parse  ManifestParser
	cache  *object.Store

	// TrustedKeys, when non-nil, requires every fetched manifest to carry
	// a valid signature from one of these keys. A manifest lacking a
	// signature at all is rejected the same as one with an invalid one.
	TrustedKeys sign.TrustedKeys

	// fetch collapses concurrent identical fetches (same identity and
	// resolution point) into one underlying remote call, the way a module
	// proxy dedupes concurrent requests for the same @v/info or @v/zip.
	// The resolver itself calls a Provider sequentially, but a workspace
	// that runs several Reconcilers against one shared cache directory
	// (e.g. a batch `cordage update` across many manifests) can issue
	// concurrent requests for the same package.
	fetch singleflight.Group
}

// NewHTTPProvider builds a Provider backed by client, parsing fetched
// manifest bytes with parse and caching responses in cache.
func NewHTTPProvider(client *remote.Client, parse ManifestParser, cache *object.Store) *HTTPProvider {
	return &HTTPProvider{client: client, parse: parse, cache: cache}
}

func (p *HTTPProvider) Versions(ctx context.Context, id identity.Identity) ([]version.Version, error) {
	key := string(id) + "/versions"
	if h, ok := p.cache.LookupKey(key); ok {
		data, err := p.cache.ReadVersionList(h)
		if err == nil {
			out, err := decodeVersionList(data)
			if err == nil {
				p.prefetchManifests(ctx, id, out)
			}
			return out, err
		}
	}

	data, err, _ := p.fetch.Do(key, func() (interface{}, error) {
		raw, err := p.client.ListVersions(ctx, string(id))
		if err != nil {
			return nil, fmt.Errorf("list versions for %s: %w", id, err)
		}
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, err
		}
		if h, err := p.cache.WriteVersionList(data); err == nil {
			_ = p.cache.PutKey(key, h)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	out, err := decodeVersionList(data.([]byte))
	if err != nil {
		return nil, err
	}
	p.prefetchManifests(ctx, id, out)
	return out, nil
}

// manifestPrefetchWindow is how many of a package's highest candidate
// versions get their manifests warmed in one round trip. decideNext tries
// versions highest-first and stops at the first tools-compatible one, so
// the common case (the newest version is usable) is covered by a single
// batch call instead of one request per candidate it would otherwise try
// in sequence.
const manifestPrefetchWindow = 8

// prefetchManifests warms the manifest cache for id's highest candidate
// versions in one round trip via the remote client's batch transport,
// right after Versions resolves the candidate list for a resolver decision
// — the batching point spec.md §4.8's bulk fast path exists for. It is
// best-effort: any failure (transport error, a server that doesn't support
// batching, a short response) is swallowed, since fetchManifest already
// falls back to fetching the point individually on a cache miss.
func (p *HTTPProvider) prefetchManifests(ctx context.Context, id identity.Identity, versions []version.Version) {
	n := manifestPrefetchWindow
	if n > len(versions) {
		n = len(versions)
	}

	reqs := make([]remote.ManifestRequest, 0, n)
	points := make([]string, 0, n)
	for _, v := range versions[:n] {
		pk := v.String()
		if _, ok := p.cache.LookupKey(string(id) + "/manifest/" + pk); ok {
			continue
		}
		reqs = append(reqs, remote.ManifestRequest{Identity: string(id), At: pk})
		points = append(points, pk)
	}
	if len(reqs) < 2 {
		// Nothing to gain from a batch of zero or one: a single candidate
		// is exactly what fetchManifest's own lazy single-item fetch
		// already covers.
		return
	}

	records, err := p.client.BatchManifests(ctx, reqs)
	if err != nil {
		return
	}
	byKey := make(map[string][]byte, len(records))
	for _, rec := range records {
		byKey[rec.Key] = rec.Data
	}

	for _, pk := range points {
		data, ok := byKey[string(id)+"@"+pk]
		if !ok {
			continue
		}
		if err := p.verifySignature(ctx, id, pk, data); err != nil {
			continue
		}
		h, err := p.cache.WriteManifest(data)
		if err != nil {
			continue
		}
		_ = p.cache.PutKey(string(id)+"/manifest/"+pk, h)
	}
}

func decodeVersionList(data []byte) ([]version.Version, error) {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode version list: %w", err)
	}
	out := make([]version.Version, 0, len(raw))
	for _, s := range raw {
		v, err := version.Parse(s)
		if err != nil {
			continue // malformed entries are skipped, not fatal to the list
		}
		out = append(out, v)
	}
	sortDescending(out)
	return out, nil
}

// sortDescending insertion-sorts vs highest-first; the lists this package
// handles are small (a package's release count), so O(n^2) is plenty.
func sortDescending(vs []version.Version) {
	for i := 1; i < len(vs); i++ {
		for j := i; j > 0 && vs[j-1].Less(vs[j]); j-- {
			vs[j], vs[j-1] = vs[j-1], vs[j]
		}
	}
}

func (p *HTTPProvider) Revisions(ctx context.Context, id identity.Identity, req Requirement) ([]string, error) {
	raw, err := p.client.ListRevisions(ctx, string(id))
	if err != nil {
		return nil, fmt.Errorf("list revisions for %s: %w", id, err)
	}
	switch req.Kind {
	case RequirementBranch:
		if rev, ok := raw[req.Branch]; ok {
			return []string{rev}, nil
		}
		return nil, nil
	case RequirementRevision:
		return []string{req.Revision}, nil
	default:
		return nil, fmt.Errorf("Revisions called with non-branch/revision requirement")
	}
}

// pointKey derives the manifest-cache key for a resolution point.
func pointKey(at At) string {
	if at.HasVer {
		return at.Version.String()
	}
	return at.Revision
}

// fetchManifest returns the raw manifest bytes for id at the given point,
// using the object cache when available and populating it on a miss. A
// cache hit skips signature verification too: the bytes were already
// verified the first time they were written to the cache.
func (p *HTTPProvider) fetchManifest(ctx context.Context, id identity.Identity, pk string) ([]byte, error) {
	key := string(id) + "/manifest/" + pk

	if h, ok := p.cache.LookupKey(key); ok {
		if cached, err := p.cache.ReadManifest(h); err == nil {
			return cached, nil
		}
	}

	data, err, _ := p.fetch.Do(key, func() (interface{}, error) {
		data, err := p.client.FetchManifest(ctx, string(id), pk)
		if err != nil {
			return nil, fmt.Errorf("fetch manifest for %s@%s: %w", id, pk, err)
		}
		if err := p.verifySignature(ctx, id, pk, data); err != nil {
			return nil, err
		}
		if h, err := p.cache.WriteManifest(data); err == nil {
			_ = p.cache.PutKey(key, h)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return data.([]byte), nil
}

func (p *HTTPProvider) verifySignature(ctx context.Context, id identity.Identity, pk string, data []byte) error {
	if p.TrustedKeys == nil {
		return nil
	}
	encoded, err := p.client.FetchManifestSignature(ctx, string(id), pk)
	if err != nil {
		return fmt.Errorf("fetch signature for %s@%s: %w", id, pk, err)
	}
	if err := sign.Verify(data, encoded, p.TrustedKeys); err != nil {
		return fmt.Errorf("manifest for %s@%s: %w", id, pk, err)
	}
	return nil
}

func (p *HTTPProvider) Dependencies(ctx context.Context, id identity.Identity, at At) ([]Dependency, error) {
	pk := pointKey(at)
	data, err := p.fetchManifest(ctx, id, pk)
	if err != nil {
		return nil, err
	}
	deps, _, err := p.parse(data, string(id)+"@"+pk)
	if err != nil {
		return nil, fmt.Errorf("manifest for %s@%s: %w", id, pk, err)
	}
	return deps, nil
}

func (p *HTTPProvider) IsToolsVersionCompatible(ctx context.Context, id identity.Identity, v version.Version) (bool, error) {
	pk := v.String()
	data, err := p.fetchManifest(ctx, id, pk)
	if err != nil {
		return false, err
	}
	_, tv, err := p.parse(data, string(id)+"@"+pk)
	if err != nil {
		return false, fmt.Errorf("manifest for %s@%s: %w", id, pk, err)
	}
	return tv.Compare(MaxSupportedToolsVersion) <= 0, nil
}

var _ Provider = (*HTTPProvider)(nil)
