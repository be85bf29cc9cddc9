package main

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/cordage-pm/cordage/pkg/pins"
	"github.com/cordage-pm/cordage/pkg/version"
	"github.com/spf13/cobra"
)

var hexRevisionRE = regexp.MustCompile(`^[0-9a-fA-F]{7,64}$`)

func newPinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pin <package> <version|branch|revision>",
		Short: "Manually pin a package to a version, branch, or revision and save",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, at := args[0], args[1]

			id, kind, location, err := classifyPinTarget(name)
			if err != nil {
				return err
			}

			st, err := stateFor(at)
			if err != nil {
				return fmt.Errorf("pin: %w", err)
			}

			mirrors, err := loadMirrors()
			if err != nil {
				return err
			}
			store, err := pins.Load(flags.pinsPath)
			if err != nil {
				return err
			}
			defer store.Close()

			store.Pin(pins.Pin{Identity: id, Kind: kind, Location: location, State: st})
			if err := store.Save(mirrors); err != nil {
				return fmt.Errorf("pin: saving: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pinned %s at %s\n", id, at)
			return nil
		},
	}
}

func stateFor(at string) (pins.State, error) {
	if hexRevisionRE.MatchString(at) {
		return pins.State{Revision: at}, nil
	}
	if v, err := version.Parse(strings.TrimPrefix(at, "v")); err == nil {
		return pins.State{Version: &v}, nil
	}
	return pins.State{Branch: at}, nil
}

func classifyPinTarget(name string) (identity.Identity, identity.Kind, string, error) {
	switch {
	case strings.Contains(name, "://") || strings.HasSuffix(name, ".git"):
		ref, err := identity.NewRemoteSCM(name)
		if err != nil {
			return "", 0, "", err
		}
		return ref.Identity, identity.RemoteSCM, name, nil
	default:
		if stat, err := os.Stat(name); err == nil && stat.IsDir() {
			id, err := identity.Derive(name)
			if err != nil {
				return "", 0, "", err
			}
			return id, identity.LocalSCM, name, nil
		}
		id, err := identity.Derive(name)
		if err != nil {
			return "", 0, "", err
		}
		return id, identity.Registry, string(id), nil
	}
}
