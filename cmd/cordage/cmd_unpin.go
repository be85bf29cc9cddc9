package main

import (
	"fmt"

	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/cordage-pm/cordage/pkg/pins"
	"github.com/spf13/cobra"
)

func newUnpinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpin <package>",
		Short: "Remove a pin and save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity.Derive(args[0])
			if err != nil {
				return fmt.Errorf("unpin: %w", err)
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

			if _, ok := store.Get(id); !ok {
				return fmt.Errorf("unpin: %q is not pinned", id)
			}
			store.Unpin(id)
			if err := store.Save(mirrors); err != nil {
				return fmt.Errorf("unpin: saving: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unpinned %s\n", id)
			return nil
		},
	}
}
