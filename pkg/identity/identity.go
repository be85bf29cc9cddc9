// Package identity derives canonical package identities from URLs and
// filesystem paths, and models the tagged-union PackageReference that
// carries enough information to fetch a package while comparing equal
// purely by identity and kind.
package identity

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Identity is a canonical, case-folded package name derived purely
// syntactically from a URL or filesystem path. Two references with the same
// identity are the same package even if their URLs differ, so mirroring a
// remote never changes identity.
type Identity string

// Derive computes the canonical Identity for a URL or filesystem path:
// strip scheme, user-info, a trailing ".git" suffix and trailing path
// separators, then take the last path segment and case-fold it.
//
// Derive is intentionally syntactic — it never performs I/O or network
// lookups.
func Derive(raw string) (Identity, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("identity: empty reference")
	}

	base := lastPathSegment(trimmed)
	base = strings.TrimSuffix(base, ".git")
	base = strings.TrimSpace(base)
	if base == "" {
		return "", fmt.Errorf("identity: cannot derive identity from %q", raw)
	}
	return Identity(strings.ToLower(base)), nil
}

// MustDerive is Derive but panics on error; useful for literal identities
// known at compile time.
func MustDerive(raw string) Identity {
	id, err := Derive(raw)
	if err != nil {
		panic(err)
	}
	return id
}

func lastPathSegment(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		trimmed := strings.Trim(u.Path, "/")
		if trimmed != "" {
			return path.Base(trimmed)
		}
		return u.Host
	}

	// scp-like syntax: git@host:owner/repo(.git)
	if at := strings.Index(raw, "@"); at >= 0 {
		if colon := strings.Index(raw[at:], ":"); colon >= 0 {
			rest := raw[at+colon+1:]
			rest = strings.Trim(rest, "/")
			if rest != "" {
				return path.Base(rest)
			}
		}
	}

	trimmed := strings.Trim(strings.TrimSpace(raw), string(filepath.Separator)+"/")
	if trimmed == "" {
		return raw
	}
	return filepath.Base(filepath.ToSlash(trimmed))
}
