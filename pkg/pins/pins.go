// Package pins implements the persisted PinsStore: a durable mapping from
// package identity to a pinned resolution state, loaded from and saved to a
// lockfile on disk with schema v1 (legacy, read-only) and v2 support.
package pins

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/cordage-pm/cordage/pkg/mirror"
	"github.com/cordage-pm/cordage/pkg/version"
)

// State is a PinState: the resolved point a package was pinned at.
// Exactly one of Version/Branch is meaningful alongside an optional or
// required Revision, per Kind.
type State struct {
	Version  *version.Version
	Branch   string
	Revision string // opaque, compared byte-exact; "" means absent
}

// Kind reports which PinState variant this is.
func (s State) Kind() string {
	switch {
	case s.Branch != "":
		return "branch"
	case s.Revision != "" && s.Version == nil:
		return "revision"
	default:
		return "version"
	}
}

// Pin is a persisted (packageRef, state) decision.
type Pin struct {
	Identity identity.Identity
	Kind     identity.Kind
	Location string // URL for RemoteSCM, path for LocalSCM, name for Registry
	State    State
}

// Store is the in-memory PinsStore, mutated freely between Load and Save.
// Mutation is expected to have a single owner per the concurrency model in
// spec.md §5; Store itself is not safe for concurrent use from multiple
// goroutines, but Load/Save hold an exclusive cross-process lock (lock.go)
// so two cordage invocations against the same pins file serialize instead of
// racing each other's read-modify-write.
type Store struct {
	path  string
	pins  map[identity.Identity]Pin
	dirty bool
	lock  *fileLock
}

// New creates an empty Store that will persist to path on Save.
func New(path string) *Store {
	return &Store{path: path, pins: make(map[identity.Identity]Pin)}
}

// Pin overwrites (by identity) the pin recorded for ref with state.
func (s *Store) Pin(p Pin) {
	s.pins[p.Identity] = p
	s.dirty = true
}

// Unpin removes the pin for id, if any.
func (s *Store) Unpin(id identity.Identity) {
	if _, ok := s.pins[id]; ok {
		delete(s.pins, id)
		s.dirty = true
	}
}

// UnpinAll clears every pin.
func (s *Store) UnpinAll() {
	if len(s.pins) == 0 {
		return
	}
	s.pins = make(map[identity.Identity]Pin)
	s.dirty = true
}

// Get returns the pin for id, if one is recorded.
func (s *Store) Get(id identity.Identity) (Pin, bool) {
	p, ok := s.pins[id]
	return p, ok
}

// All returns every pin, sorted by identity.
func (s *Store) All() []Pin {
	out := make([]Pin, 0, len(s.pins))
	for _, p := range s.pins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

// Len reports the number of pins currently recorded.
func (s *Store) Len() int { return len(s.pins) }

// --- wire schema ---

type wireV1 struct {
	Version int `json:"version"`
	Object  struct {
		Pins []wireV1Pin `json:"pins"`
	} `json:"object"`
}

type wireV1Pin struct {
	Package       string `json:"package"`
	RepositoryURL string `json:"repositoryURL"`
	State         struct {
		Branch   string `json:"branch,omitempty"`
		Revision string `json:"revision,omitempty"`
		Version  string `json:"version,omitempty"`
	} `json:"state"`
}

type wireV2 struct {
	Version    int         `json:"version"`
	OriginHash string      `json:"originHash,omitempty"`
	Pins       []wireV2Pin `json:"pins"`
}

type wireV2Pin struct {
	Identity string         `json:"identity"`
	Kind     string         `json:"kind"`
	Location string         `json:"location"`
	State    wireV2PinState `json:"state"`
}

type wireV2PinState struct {
	Version  string `json:"version,omitempty"`
	Branch   string `json:"branch,omitempty"`
	Revision string `json:"revision,omitempty"`
}

// MalformedLockfileError reports an unrecognized or corrupt pins file.
type MalformedLockfileError struct {
	Path   string
	Reason string
}

func (e *MalformedLockfileError) Error() string {
	return fmt.Sprintf("%s: corrupted or malformed; fix or delete to continue: %s", e.Path, e.Reason)
}

// Load acquires the exclusive pins-file lock, then reads and parses the
// pins file at path. A missing file yields an empty, freshly-created Store
// (no error): an absent lockfile is the normal state before the first
// resolution. The lock is held by the returned Store until Save or Close
// releases it, covering the full load/mutate/save sequence a caller runs
// against it.
//
// Mirrors is applied by the caller at resolution time (§4.1); Load leaves
// URLs exactly as read.
func Load(path string) (*Store, error) {
	lock, err := acquireLock(path)
	if err != nil {
		return nil, err
	}

	s, err := load(path)
	if err != nil {
		_ = lock.release()
		return nil, err
	}
	s.lock = lock
	return s, nil
}

func load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(path), nil
		}
		return nil, fmt.Errorf("read pins file: %w", err)
	}

	var probe struct {
		Version *int `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &MalformedLockfileError{Path: path, Reason: err.Error()}
	}
	if probe.Version == nil {
		return nil, &MalformedLockfileError{Path: path, Reason: "missing \"version\" field"}
	}

	switch *probe.Version {
	case 1:
		return loadV1(path, data)
	case 2:
		return loadV2(path, data)
	default:
		return nil, &MalformedLockfileError{Path: path, Reason: fmt.Sprintf("unrecognized schema version %d", *probe.Version)}
	}
}

func loadV1(path string, data []byte) (*Store, error) {
	var w wireV1
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &MalformedLockfileError{Path: path, Reason: err.Error()}
	}

	s := New(path)
	for _, p := range w.Object.Pins {
		id, err := identity.Derive(p.Package)
		if err != nil {
			return nil, &MalformedLockfileError{Path: path, Reason: fmt.Sprintf("pin %q: %v", p.Package, err)}
		}

		state, err := stateFromWire(p.State.Version, p.State.Branch, p.State.Revision)
		if err != nil {
			return nil, &MalformedLockfileError{Path: path, Reason: fmt.Sprintf("pin %q: %v", p.Package, err)}
		}

		s.pins[id] = Pin{
			Identity: id,
			Kind:     identity.RemoteSCM,
			Location: p.RepositoryURL,
			State:    state,
		}
	}
	// v1 pins are upgraded in memory only; the next Save writes v2.
	s.dirty = len(s.pins) > 0
	return s, nil
}

func loadV2(path string, data []byte) (*Store, error) {
	var w wireV2
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &MalformedLockfileError{Path: path, Reason: err.Error()}
	}

	s := New(path)
	for _, p := range w.Pins {
		kind, err := kindFromWire(p.Kind)
		if err != nil {
			return nil, &MalformedLockfileError{Path: path, Reason: fmt.Sprintf("pin %q: %v", p.Identity, err)}
		}

		state, err := stateFromWire(p.State.Version, p.State.Branch, p.State.Revision)
		if err != nil {
			return nil, &MalformedLockfileError{Path: path, Reason: fmt.Sprintf("pin %q: %v", p.Identity, err)}
		}

		// Open question (spec.md §9): a source-control pin missing its
		// revision is accepted on load with a warning, rejected on save.
		// The warning itself is surfaced by the caller (workspace/cli
		// layer); Store only needs to not reject it here.
		_ = kind

		s.pins[identity.Identity(p.Identity)] = Pin{
			Identity: identity.Identity(p.Identity),
			Kind:     kind,
			Location: p.Location,
			State:    state,
		}
	}
	return s, nil
}

func kindFromWire(k string) (identity.Kind, error) {
	switch k {
	case "remoteSourceControl":
		return identity.RemoteSCM, nil
	case "localSourceControl":
		return identity.LocalSCM, nil
	case "registry":
		return identity.Registry, nil
	default:
		return 0, fmt.Errorf("unrecognized pin kind %q", k)
	}
}

func kindToWire(k identity.Kind) string {
	switch k {
	case identity.RemoteSCM:
		return "remoteSourceControl"
	case identity.LocalSCM:
		return "localSourceControl"
	case identity.Registry:
		return "registry"
	default:
		return "registry"
	}
}

func stateFromWire(v, branch, revision string) (State, error) {
	if v == "" && branch == "" && revision == "" {
		return State{}, fmt.Errorf("pin state must set at least one of version, branch, revision")
	}
	var st State
	if v != "" {
		parsed, err := version.Parse(v)
		if err != nil {
			return State{}, fmt.Errorf("invalid pinned version %q: %w", v, err)
		}
		st.Version = &parsed
	}
	st.Branch = branch
	st.Revision = revision
	return st, nil
}

// HasRevision reports whether State carries a revision.
func (s State) HasRevision() bool { return s.Revision != "" }

// ToolsVersionTag is the forward-compat marker written into the saved
// file's originHash so future tooling can recognize what produced it.
// Nothing in cordage assigns it, so saved files carry "unknown"; an empty
// value leaves originHash out of the file.
var ToolsVersionTag = "unknown"

// Save atomically writes the store to its path. If the store is empty
// after mutations, the pins file is deleted instead of written, per
// spec.md §4.2.
//
// mirrors.Unresolve is applied to every pin's Location so the lockfile
// records the upstream (non-mirrored) URL, keeping it portable across
// environments with different mirror configuration.
//
// Save acquires the exclusive pins-file lock if Load did not already
// (a Store built with New and saved directly, as tests do), and releases it
// before returning either way: the load/mutate/save sequence is complete
// once Save has run.
func (s *Store) Save(mirrors *mirror.Table) error {
	lock := s.lock
	if lock == nil {
		acquired, err := acquireLock(s.path)
		if err != nil {
			return err
		}
		lock = acquired
	}
	defer func() {
		_ = lock.release()
		s.lock = nil
	}()

	if len(s.pins) == 0 {
		err := os.Remove(s.path)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete empty pins file: %w", err)
		}
		s.dirty = false
		return nil
	}

	w := wireV2{Version: 2, OriginHash: ToolsVersionTag}
	for _, p := range s.All() {
		loc := p.Location
		if mirrors != nil && p.Kind == identity.RemoteSCM {
			loc = mirrors.Unresolve(loc)
		}

		if p.Kind != identity.Registry && !p.State.HasRevision() {
			return fmt.Errorf("pin %q: source-control pin must carry a revision to be saved", p.Identity)
		}

		wp := wireV2Pin{
			Identity: string(p.Identity),
			Kind:     kindToWire(p.Kind),
			Location: loc,
			State: wireV2PinState{
				Branch:   p.State.Branch,
				Revision: p.State.Revision,
			},
		}
		if p.State.Version != nil {
			wp.State.Version = p.State.Version.String()
		}
		w.Pins = append(w.Pins, wp)
	}

	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pins file: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pins file dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".pins-tmp-*")
	if err != nil {
		return fmt.Errorf("write pins file: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write pins file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write pins file: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write pins file: rename: %w", err)
	}

	s.dirty = false
	return nil
}

// Dirty reports whether the store has unsaved mutations.
func (s *Store) Dirty() bool { return s.dirty }

// Path returns the on-disk path this store loads from and saves to.
func (s *Store) Path() string { return s.path }

// Close releases the pins-file lock without saving, for a caller that
// loaded a Store but decided not to mutate or save it (e.g. an `unpin` of
// an identity that turns out not to be pinned). A no-op if Save already
// released the lock, or if the Store never held one.
func (s *Store) Close() error {
	if s.lock == nil {
		return nil
	}
	err := s.lock.release()
	s.lock = nil
	return err
}
