package main

import (
	"fmt"

	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/spf13/cobra"
)

func newUneditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unedit <package>",
		Short: "Take a dependency out of edit mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity.Derive(args[0])
			if err != nil {
				return fmt.Errorf("unedit: %w", err)
			}

			r, store, _, err := openWorkspace()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := r.LeaveEdit(id); err != nil {
				return err
			}
			if err := saveEdits(r.Edits()); err != nil {
				return fmt.Errorf("saving edit state: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s no longer in edit mode\n", id)
			return nil
		},
	}
}
