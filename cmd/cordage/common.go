package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cordage-pm/cordage/pkg/container"
	"github.com/cordage-pm/cordage/pkg/gitscm"
	"github.com/cordage-pm/cordage/pkg/manifest"
	"github.com/cordage-pm/cordage/pkg/mirror"
	"github.com/cordage-pm/cordage/pkg/object"
	"github.com/cordage-pm/cordage/pkg/pins"
	"github.com/cordage-pm/cordage/pkg/remote"
	"github.com/cordage-pm/cordage/pkg/sign"
	"github.com/cordage-pm/cordage/pkg/version"
	"github.com/cordage-pm/cordage/pkg/workspace"
	"github.com/spf13/cobra"
)

// globalFlags are registered on the root command and read by every
// subcommand that opens a workspace, the same way the teacher's cmd/got
// commands each independently called repo.Open(".") against a shared
// working directory.
type globalFlags struct {
	manifestPath string
	pinsPath     string
	cacheDir     string
	checkoutsDir string
	registry     string
	mirrors      []string
	trustedKeys  string
}

var flags globalFlags

func registerGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().StringVar(&flags.manifestPath, "manifest", "cordage.toml", "path to the package manifest")
	root.PersistentFlags().StringVar(&flags.pinsPath, "pins", ".cordage/pins.json", "path to the pins (lockfile) file")
	root.PersistentFlags().StringVar(&flags.cacheDir, "cache-dir", ".cordage/cache", "manifest/version-list cache directory")
	root.PersistentFlags().StringVar(&flags.checkoutsDir, "checkouts-dir", ".cordage/checkouts", "directory dependency checkouts are cloned into")
	root.PersistentFlags().StringVar(&flags.registry, "registry", os.Getenv("CORDAGE_REGISTRY"), "base URL of the registry metadata service")
	root.PersistentFlags().StringArrayVar(&flags.mirrors, "mirror", nil, "original=mirror URL rewrite, repeatable")
	root.PersistentFlags().StringVar(&flags.trustedKeys, "trusted-keys", "", "path to an authorized_keys-style file of trusted manifest signers")
}

// manifestParser bridges pkg/manifest's TOML loader into
// container.ManifestParser, resolving the import cycle pkg/manifest already
// has onto pkg/container by wiring the dependency the other way, at this
// construction site, rather than inside either package.
func manifestParser(data []byte, sourcePath string) ([]container.Dependency, version.Version, error) {
	m, err := manifest.Parse(data, sourcePath)
	if err != nil {
		return nil, version.Version{}, err
	}
	return m.Dependencies, m.ToolsVersion, nil
}

func loadMirrors() (*mirror.Table, error) {
	table := mirror.New()
	for _, spec := range flags.mirrors {
		orig, repl, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("--mirror %q: expected ORIGINAL=REPLACEMENT", spec)
		}
		table.Set(orig, repl)
	}
	return table, nil
}

func loadTrustedKeys() (sign.TrustedKeys, error) {
	if flags.trustedKeys == "" {
		return nil, nil
	}
	data, err := os.ReadFile(flags.trustedKeys)
	if err != nil {
		return nil, fmt.Errorf("read trusted keys: %w", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	return sign.NewTrustedKeys(lines...)
}

func buildProvider() (container.Provider, error) {
	if flags.registry == "" {
		return nil, fmt.Errorf("no registry configured: pass --registry or set CORDAGE_REGISTRY")
	}
	client, err := remote.NewClient(flags.registry)
	if err != nil {
		return nil, fmt.Errorf("registry client: %w", err)
	}
	if err := os.MkdirAll(flags.cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("cache dir: %w", err)
	}
	cache := object.NewStore(flags.cacheDir)
	provider := container.NewHTTPProvider(client, manifestParser, cache)

	trusted, err := loadTrustedKeys()
	if err != nil {
		return nil, err
	}
	provider.TrustedKeys = trusted
	return provider, nil
}

// openWorkspace wires a Reconciler the way the CLI needs it in production:
// an HTTP-backed container.Provider against the configured registry, a
// loaded PinsStore, the configured mirror table, and a gitscm.Factory
// rooted at checkouts-dir for every non-registry dependency's working copy.
func openWorkspace() (*workspace.Reconciler, *pins.Store, *mirror.Table, error) {
	mirrors, err := loadMirrors()
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := pins.Load(flags.pinsPath)
	if err != nil {
		return nil, nil, nil, err
	}

	provider, err := buildProvider()
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}

	if err := os.MkdirAll(flags.checkoutsDir, 0o755); err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("checkouts dir: %w", err)
	}
	factory := gitscm.NewFactory(flags.checkoutsDir)

	r := workspace.New(provider, store, mirrors, factory.Build)
	r.RestoreEdits(loadEdits())
	return r, store, mirrors, nil
}

func loadRootManifest() (*manifest.Manifest, error) {
	m, err := manifest.Load(flags.manifestPath)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func editsPath() string {
	return filepath.Join(filepath.Dir(flags.pinsPath), "edits.json")
}
