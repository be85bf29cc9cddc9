package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Endpoint identifies a registry or source-control HTTP endpoint. BaseURL is
// normalized with no trailing slash and no embedded userinfo.
type Endpoint struct {
	Raw     string
	BaseURL string
	user    string
	pass    string
}

// ParseEndpoint parses a remote URL into a canonical endpoint, pulling any
// userinfo out of the URL so it never leaks into logs or the pins file.
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Endpoint{}, fmt.Errorf("remote URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parse remote URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Endpoint{}, fmt.Errorf("remote URL must include scheme and host")
	}

	user := ""
	pass := ""
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""

	return Endpoint{
		Raw:     raw,
		BaseURL: strings.TrimRight(u.String(), "/"),
		user:    user,
		pass:    pass,
	}, nil
}

// ManifestRequest identifies one manifest/version-list fetch: the package
// identity and the resolution point ("" for the versions listing, otherwise
// a version, branch, or hex revision).
type ManifestRequest struct {
	Identity string
	At       string
}

// ManifestRecord is a fetched manifest or version-list payload, keyed the
// same way the request was, so batch responses can be matched back up.
type ManifestRecord struct {
	Key  string
	Data []byte
}

// ClientOptions configures the registry/source-control HTTP client.
type ClientOptions struct {
	Timeout     time.Duration // HTTP client timeout (default 60s)
	MaxAttempts int           // retry attempts (default 3)
}

const (
	responseLimitVersions = 4 << 20  // 4MB
	responseLimitManifest = 16 << 20 // 16MB
	responseLimitBatch    = 64 << 20 // 64MB
)

// Client fetches package versions, revisions and manifests over HTTP(S) on
// behalf of a PackageContainer implementation.
type Client struct {
	endpoint    Endpoint
	httpClient  *http.Client
	breaker     *hostCircuitBreaker
	token       string
	user        string
	pass        string
	maxAttempts int
}

// NewClient creates a client with default options.
//
// Auth resolution order:
//  1. CORDAGE_TOKEN (Bearer)
//  2. CORDAGE_USERNAME + CORDAGE_PASSWORD (Basic)
//  3. URL userinfo (Basic)
func NewClient(remoteURL string) (*Client, error) {
	return NewClientWithOptions(remoteURL, ClientOptions{})
}

// NewClientWithOptions creates a client with configurable options. Zero or
// negative fields in opts receive defaults (60s timeout, 3 attempts).
func NewClientWithOptions(remoteURL string, opts ClientOptions) (*Client, error) {
	endpoint, err := ParseEndpoint(remoteURL)
	if err != nil {
		return nil, err
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}

	token := strings.TrimSpace(os.Getenv("CORDAGE_TOKEN"))
	user := strings.TrimSpace(os.Getenv("CORDAGE_USERNAME"))
	pass := os.Getenv("CORDAGE_PASSWORD")
	if token == "" && user == "" && endpoint.user != "" {
		user = endpoint.user
		pass = endpoint.pass
	}

	return &Client{
		endpoint:    endpoint,
		httpClient:  &http.Client{Timeout: opts.Timeout},
		breaker:     defaultHostBreaker,
		token:       token,
		user:        user,
		pass:        pass,
		maxAttempts: opts.MaxAttempts,
	}, nil
}

// Endpoint returns the parsed endpoint metadata.
func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

// ListVersions lists the known versions for a package identity, descending
// order as reported by the server (HTTPProvider re-sorts them regardless).
func (c *Client) ListVersions(ctx context.Context, identity string) ([]string, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, fmt.Errorf("identity is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint.BaseURL+"/packages/"+url.PathEscape(identity)+"/versions", nil)
	if err != nil {
		return nil, err
	}
	body, err := c.doWithLimit(req, http.StatusOK, responseLimitVersions, "application/json")
	if err != nil {
		return nil, err
	}
	var resp struct {
		Versions []string `json:"versions"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode versions response: %w", err)
	}
	return resp.Versions, nil
}

// ListRevisions resolves branch names and tags to revisions for a package
// identity, used by branch/revision requirements.
func (c *Client) ListRevisions(ctx context.Context, identity string) (map[string]string, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, fmt.Errorf("identity is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint.BaseURL+"/packages/"+url.PathEscape(identity)+"/revisions", nil)
	if err != nil {
		return nil, err
	}
	body, err := c.doWithLimit(req, http.StatusOK, responseLimitVersions, "application/json")
	if err != nil {
		return nil, err
	}
	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode revisions response: %w", err)
	}
	return raw, nil
}

// FetchManifest fetches the manifest at a given version, branch, or revision.
func (c *Client) FetchManifest(ctx context.Context, identity, at string) ([]byte, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, fmt.Errorf("identity is required")
	}
	if strings.TrimSpace(at) == "" {
		return nil, fmt.Errorf("resolution point is required")
	}
	reqURL := fmt.Sprintf("%s/packages/%s/manifest?at=%s", c.endpoint.BaseURL, url.PathEscape(identity), url.QueryEscape(at))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	return c.doWithLimit(req, http.StatusOK, responseLimitManifest, "")
}

// FetchManifestSignature fetches the detached signature a registry-origin
// manifest was published with, if any. A 404 is not an error: it means the
// package publishes unsigned manifests, and the caller decides whether that
// is acceptable.
func (c *Client) FetchManifestSignature(ctx context.Context, identity, at string) (string, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", fmt.Errorf("identity is required")
	}
	reqURL := fmt.Sprintf("%s/packages/%s/manifest/signature?at=%s", c.endpoint.BaseURL, url.PathEscape(identity), url.QueryEscape(at))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}

	c.applyAuth(req)
	host := req.URL.Host
	if !c.breaker.allow(host) {
		return "", fmt.Errorf("circuit open for host %s: too many recent failures", host)
	}
	resp, err := retryDo(c.httpClient, req, c.maxAttempts)
	if err != nil {
		c.breaker.recordFailure(host)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return "", nil
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, responseLimitVersions))
	if readErr != nil {
		return "", readErr
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		c.breaker.recordFailure(host)
	}
	if resp.StatusCode != http.StatusOK {
		if re := tryParseRemoteError(body); re != nil {
			return "", re
		}
		return "", fmt.Errorf("remote request failed (%s %s): %s", req.Method, req.URL.Path, strings.TrimSpace(string(body)))
	}
	return strings.TrimSpace(string(body)), nil
}

// BatchManifests fetches multiple manifests/version-lists in one round trip
// using the pack transport; a response whose Content-Type is not the pack
// type is decoded as a single JSON document of results.
func (c *Client) BatchManifests(ctx context.Context, reqs []ManifestRequest) ([]ManifestRecord, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	type reqPayload struct {
		Identity string `json:"identity"`
		At       string `json:"at,omitempty"`
	}
	payload := struct {
		Requests []reqPayload `json:"requests"`
	}{Requests: make([]reqPayload, 0, len(reqs))}
	for _, r := range reqs {
		payload.Requests = append(payload.Requests, reqPayload{Identity: r.Identity, At: r.At})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.BaseURL+"/manifests/batch", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-cordage-pack")
	req.Header.Set("Accept-Encoding", "zstd")
	c.applyAuth(req)

	host := req.URL.Host
	if !c.breaker.allow(host) {
		return nil, fmt.Errorf("circuit open for host %s: too many recent failures", host)
	}

	resp, err := retryDo(c.httpClient, req, c.maxAttempts)
	if err != nil {
		c.breaker.recordFailure(host)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, responseLimitBatch))
	if readErr != nil {
		return nil, readErr
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		c.breaker.recordFailure(host)
	}
	if resp.StatusCode != http.StatusOK {
		if re := tryParseRemoteError(respBody); re != nil {
			return nil, re
		}
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("remote request failed (%s %s): %s", req.Method, req.URL.Path, msg)
	}

	ct := resp.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/x-cordage-pack") {
		packData := respBody
		if isZstdEncoded(resp.Header.Get("Content-Encoding")) {
			packData, err = decompressZstd(respBody)
			if err != nil {
				return nil, fmt.Errorf("decompress pack response: %w", err)
			}
		}
		blobs, err := DecodePackTransport(packData)
		if err != nil {
			return nil, fmt.Errorf("decode pack response: %w", err)
		}
		if len(blobs) != len(reqs) {
			return nil, fmt.Errorf("pack response entry count %d does not match request count %d", len(blobs), len(reqs))
		}
		out := make([]ManifestRecord, 0, len(blobs))
		for i, b := range blobs {
			out = append(out, ManifestRecord{Key: manifestKey(reqs[i]), Data: b})
		}
		return out, nil
	}

	var jsonResp struct {
		Results []struct {
			Key  string `json:"key"`
			Data []byte `json:"data"`
		} `json:"results"`
	}
	if err := json.Unmarshal(respBody, &jsonResp); err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}
	out := make([]ManifestRecord, 0, len(jsonResp.Results))
	for _, r := range jsonResp.Results {
		out = append(out, ManifestRecord{Key: r.Key, Data: r.Data})
	}
	return out, nil
}

func manifestKey(r ManifestRequest) string {
	if r.At == "" {
		return r.Identity
	}
	return r.Identity + "@" + r.At
}

func (c *Client) doWithLimit(req *http.Request, expectedStatus int, maxBytes int64, expectedContentType string) ([]byte, error) {
	c.applyAuth(req)
	host := req.URL.Host
	if !c.breaker.allow(host) {
		return nil, fmt.Errorf("circuit open for host %s: too many recent failures", host)
	}

	resp, err := retryDo(c.httpClient, req, c.maxAttempts)
	if err != nil {
		c.breaker.recordFailure(host)
		return nil, err
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		c.breaker.recordFailure(host)
	}
	if resp.StatusCode != expectedStatus {
		if re := tryParseRemoteError(body); re != nil {
			return nil, re
		}
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("remote request failed (%s %s): %s", req.Method, req.URL.Path, msg)
	}

	if expectedContentType != "" {
		ct := resp.Header.Get("Content-Type")
		if ct != "" && !strings.HasPrefix(ct, expectedContentType) {
			return nil, fmt.Errorf("unexpected content type %q (expected %s) from %s %s (status %d)",
				ct, expectedContentType, req.Method, req.URL.Path, resp.StatusCode)
		}
	}

	return body, nil
}

func (c *Client) applyAuth(req *http.Request) {
	req.Header.Set(headerProtocol, ProtocolVersion)
	req.Header.Set(headerCapabilities, ClientCapabilities)

	if strings.TrimSpace(c.token) != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
		return
	}
	if strings.TrimSpace(c.user) != "" {
		req.SetBasicAuth(c.user, c.pass)
	}
}
