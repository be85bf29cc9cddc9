package container

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/cordage-pm/cordage/pkg/object"
	"github.com/cordage-pm/cordage/pkg/remote"
	"github.com/cordage-pm/cordage/pkg/sign"
	"github.com/cordage-pm/cordage/pkg/version"
)

// fakeParser recognizes a tiny fixed manifest body so tests don't need to
// drag in pkg/manifest's TOML decoding (which would import this package
// back and create a cycle).
func fakeParser(data []byte, sourcePath string) ([]Dependency, version.Version, error) {
	switch string(data) {
	case "manifest-v1":
		return []Dependency{{Ref: identity.NewLocalSCM("bar", "/tmp/bar"), Requirement: UnversionedRequirement()}}, version.MustParse("5.6.0"), nil
	case "manifest-v2":
		return nil, version.MustParse("9.9.9"), nil
	default:
		return nil, version.Version{}, nil
	}
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*HTTPProvider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c, err := remote.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return NewHTTPProvider(c, fakeParser, object.NewStore(t.TempDir())), srv
}

func TestHTTPProviderVersionsSortsDescending(t *testing.T) {
	p, srv := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"versions":["1.0.0","2.0.0","1.5.0"]}`))
	})
	defer srv.Close()

	vs, err := p.Versions(context.Background(), "foo")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	want := []string{"2.0.0", "1.5.0", "1.0.0"}
	if len(vs) != len(want) {
		t.Fatalf("got %v, want %v", vs, want)
	}
	for i, w := range want {
		if vs[i].String() != w {
			t.Fatalf("vs[%d] = %s, want %s", i, vs[i], w)
		}
	}
}

func TestHTTPProviderVersionsCaches(t *testing.T) {
	calls := 0
	p, srv := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"versions":["1.0.0"]}`))
	})
	defer srv.Close()

	for i := 0; i < 2; i++ {
		if _, err := p.Versions(context.Background(), "foo"); err != nil {
			t.Fatalf("Versions: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (second call should hit cache)", calls)
	}
}

func TestHTTPProviderDependencies(t *testing.T) {
	p, srv := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("at") != "1.0.0" {
			t.Fatalf("unexpected at: %s", r.URL.RawQuery)
		}
		w.Write([]byte("manifest-v1"))
	})
	defer srv.Close()

	deps, err := p.Dependencies(context.Background(), "foo", ForVersion(version.MustParse("1.0.0")))
	if err != nil {
		t.Fatalf("Dependencies: %v", err)
	}
	if len(deps) != 1 {
		t.Fatalf("deps = %v, want 1 entry", deps)
	}
}

func TestHTTPProviderIsToolsVersionCompatible(t *testing.T) {
	p, srv := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("at") {
		case "1.0.0":
			w.Write([]byte("manifest-v1"))
		case "2.0.0":
			w.Write([]byte("manifest-v2"))
		}
	})
	defer srv.Close()

	ok, err := p.IsToolsVersionCompatible(context.Background(), "foo", version.MustParse("1.0.0"))
	if err != nil || !ok {
		t.Fatalf("v1: ok=%v err=%v, want true, nil", ok, err)
	}

	ok, err = p.IsToolsVersionCompatible(context.Background(), "foo", version.MustParse("2.0.0"))
	if err != nil || ok {
		t.Fatalf("v2: ok=%v err=%v, want false, nil", ok, err)
	}
}

func TestHTTPProviderVersionsPrefetchesManifestsViaBatch(t *testing.T) {
	var batchCalls, singleManifestCalls int
	p, srv := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/packages/foo/versions":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"versions":["2.0.0","1.0.0"]}`))
		case "/manifests/batch":
			batchCalls++
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"results":[{"key":"foo@2.0.0","data":"bWFuaWZlc3QtdjE="},{"key":"foo@1.0.0","data":"bWFuaWZlc3QtdjE="}]}`))
		case "/packages/foo/manifest":
			singleManifestCalls++
			w.Write([]byte("manifest-v1"))
		}
	})
	defer srv.Close()

	if _, err := p.Versions(context.Background(), "foo"); err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if batchCalls != 1 {
		t.Fatalf("batchCalls = %d, want 1", batchCalls)
	}

	// Both candidate manifests should already be cached by the batch
	// prefetch, so Dependencies makes no further network call.
	if _, err := p.Dependencies(context.Background(), "foo", ForVersion(version.MustParse("2.0.0"))); err != nil {
		t.Fatalf("Dependencies: %v", err)
	}
	if _, err := p.Dependencies(context.Background(), "foo", ForVersion(version.MustParse("1.0.0"))); err != nil {
		t.Fatalf("Dependencies: %v", err)
	}
	if singleManifestCalls != 0 {
		t.Fatalf("singleManifestCalls = %d, want 0 (both should hit the prefetch cache)", singleManifestCalls)
	}
}

func TestHTTPProviderRevisionsResolvesBranch(t *testing.T) {
	p, srv := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"main":"abc123"}`))
	})
	defer srv.Close()

	revs, err := p.Revisions(context.Background(), "foo", BranchRequirement("main"))
	if err != nil {
		t.Fatalf("Revisions: %v", err)
	}
	if len(revs) != 1 || revs[0] != "abc123" {
		t.Fatalf("revs = %v, want [abc123]", revs)
	}
}

func TestHTTPProviderRejectsUnsignedManifestWhenTrustRequired(t *testing.T) {
	_, authorized := mustTestSigner(t)
	p, srv := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/packages/foo/manifest/signature":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.Write([]byte("manifest-v1"))
		}
	})
	defer srv.Close()

	trusted, err := sign.NewTrustedKeys(authorized)
	if err != nil {
		t.Fatalf("NewTrustedKeys: %v", err)
	}
	p.TrustedKeys = trusted

	_, err = p.Dependencies(context.Background(), "foo", ForVersion(version.MustParse("1.0.0")))
	if err == nil {
		t.Fatalf("Dependencies: expected error for unsigned manifest, got nil")
	}
}

func TestHTTPProviderAcceptsTrustedSignedManifest(t *testing.T) {
	signer, authorized := mustTestSigner(t)
	payload := []byte("manifest-v1")
	sig, err := signer.Sign(rand.Reader, payload)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	encoded := fmt.Sprintf("sshsig-v1:%s:%s:%s", sig.Format,
		base64.StdEncoding.EncodeToString(signer.PublicKey().Marshal()),
		base64.StdEncoding.EncodeToString(sig.Blob))

	p, srv := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/packages/foo/manifest/signature":
			w.Write([]byte(encoded))
		default:
			w.Write(payload)
		}
	})
	defer srv.Close()

	trusted, err := sign.NewTrustedKeys(authorized)
	if err != nil {
		t.Fatalf("NewTrustedKeys: %v", err)
	}
	p.TrustedKeys = trusted

	deps, err := p.Dependencies(context.Background(), "foo", ForVersion(version.MustParse("1.0.0")))
	if err != nil {
		t.Fatalf("Dependencies: %v", err)
	}
	if len(deps) != 1 {
		t.Fatalf("deps = %v, want 1 entry", deps)
	}
}

func mustTestSigner(t *testing.T) (ssh.Signer, string) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("NewSignerFromKey: %v", err)
	}
	authorized := fmt.Sprintf("%s %s", signer.PublicKey().Type(),
		base64.StdEncoding.EncodeToString(signer.PublicKey().Marshal()))
	return signer, authorized
}
