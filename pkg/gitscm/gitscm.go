// Package gitscm implements workspace.Checkout by shelling out to a real
// git binary. It is the production CheckoutFactory for RemoteSCM and
// LocalSCM dependencies: cordage does not reimplement a source-control
// system of its own for dependency working copies, it drives the one
// already on the machine, the same way the teacher's cmd/got/git_bridge.go
// shells out to git for clone/push/pull interop rather than reimplementing
// git's network protocol in terms of its own object store.
package gitscm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/cordage-pm/cordage/pkg/version"
	"github.com/cordage-pm/cordage/pkg/workspace"
)

// Checkout is a git working copy at Dir, cloned from (or rooted at) a
// particular origin. It implements workspace.Checkout.
type Checkout struct {
	Dir    string
	Origin string // remote URL for RemoteSCM, "" for LocalSCM (already on disk)
	Remote string // remote name used for unpushed-change checks, defaults to "origin"
}

// Factory builds gitscm Checkouts rooted at root/<identity>, one directory
// per dependency. It satisfies workspace.CheckoutFactory's function type.
type Factory struct {
	Root string
}

func NewFactory(root string) *Factory { return &Factory{Root: root} }

// Build is assignable directly to workspace.CheckoutFactory.
func (f *Factory) Build(id identity.Identity, ref identity.Reference) workspace.Checkout {
	dir := filepath.Join(f.Root, string(id))
	switch ref.Kind {
	case identity.LocalSCM:
		return &Checkout{Dir: ref.Path, Remote: "origin"}
	default:
		return &Checkout{Dir: dir, Origin: ref.URL, Remote: "origin"}
	}
}

func (c *Checkout) remoteName() string {
	if c.Remote == "" {
		return "origin"
	}
	return c.Remote
}

func (c *Checkout) Exists(ctx context.Context) (bool, error) {
	stat, err := os.Stat(filepath.Join(c.Dir, ".git"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return stat != nil, nil
}

func (c *Checkout) Clone(ctx context.Context) error {
	if c.Origin == "" {
		return fmt.Errorf("gitscm: checkout %s has no origin to clone from", c.Dir)
	}
	if err := os.MkdirAll(filepath.Dir(c.Dir), 0o755); err != nil {
		return fmt.Errorf("gitscm: mkdir %s: %w", filepath.Dir(c.Dir), err)
	}
	return run(ctx, "", "clone", c.Origin, c.Dir)
}

// IsClean reports whether the working copy has no staged or unstaged
// changes, mirroring the teacher's Repo.ensureClean via `git status
// --porcelain` instead of a custom index/staging comparison.
func (c *Checkout) IsClean(ctx context.Context) (bool, error) {
	out, err := capture(ctx, c.Dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return len(strings.TrimSpace(string(out))) == 0, nil
}

// HasUnpushedChanges reports whether HEAD has commits not present on any
// configured remote-tracking branch.
func (c *Checkout) HasUnpushedChanges(ctx context.Context) (bool, error) {
	upstream, err := capture(ctx, c.Dir, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}")
	if err != nil {
		// No upstream configured at all: treat as nothing to push, since
		// there is no remote to compare against (matches a fresh local
		// branch that was never published).
		return false, nil
	}
	out, err := capture(ctx, c.Dir, "rev-list", "--count", strings.TrimSpace(string(upstream))+"..HEAD")
	if err != nil {
		return false, err
	}
	n := strings.TrimSpace(string(out))
	return n != "" && n != "0", nil
}

func (c *Checkout) CurrentBranch(ctx context.Context) (string, error) {
	out, err := capture(ctx, c.Dir, "symbolic-ref", "--short", "HEAD")
	if err != nil {
		return "", nil // detached HEAD
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *Checkout) Revision(ctx context.Context) (string, error) {
	out, err := capture(ctx, c.Dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *Checkout) BranchExists(ctx context.Context, name string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", c.Dir, "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, err
}

func (c *Checkout) RevisionExists(ctx context.Context, rev string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", c.Dir, "cat-file", "-e", rev+"^{commit}")
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, err
}

func (c *Checkout) CheckoutVersion(ctx context.Context, v version.Version) error {
	tag := "v" + v.String()
	if err := run(ctx, c.Dir, "fetch", "--tags", c.remoteName()); err != nil {
		return err
	}
	if err := run(ctx, c.Dir, "checkout", "--detach", tag); err != nil {
		return run(ctx, c.Dir, "checkout", "--detach", v.String())
	}
	return nil
}

func (c *Checkout) CheckoutRevision(ctx context.Context, branch, rev string) error {
	if err := run(ctx, c.Dir, "fetch", c.remoteName()); err != nil {
		return err
	}
	if branch != "" {
		if err := run(ctx, c.Dir, "checkout", "-B", branch, rev); err != nil {
			return err
		}
		return nil
	}
	return run(ctx, c.Dir, "checkout", "--detach", rev)
}

func (c *Checkout) CreateBranch(ctx context.Context, name, rev string) error {
	args := []string{"checkout", "-b", name}
	if rev != "" {
		args = append(args, rev)
	}
	return run(ctx, c.Dir, args...)
}

func run(ctx context.Context, dir string, args ...string) error {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	full := args
	if dir != "" {
		full = append([]string{"-C", dir}, args...)
	}
	cmd := exec.CommandContext(cctx, "git", full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return nil
}

func capture(ctx context.Context, dir string, args ...string) ([]byte, error) {
	full := append([]string{"-C", dir}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return stdout.Bytes(), nil
}
