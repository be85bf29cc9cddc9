package main

import (
	"fmt"

	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/spf13/cobra"
)

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update [package...]",
		Short: "Re-resolve, ignoring existing pins for the named packages (or all, if none named)",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := loadRootManifest()
			if err != nil {
				return err
			}

			r, store, _, err := openWorkspace()
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 0 {
				store.UnpinAll()
			} else {
				for _, name := range args {
					id, err := identity.Derive(name)
					if err != nil {
						return fmt.Errorf("update: %s: %w", name, err)
					}
					store.Unpin(id)
				}
			}

			if err := r.Load(root); err != nil {
				return err
			}
			sol, err := r.Resolve(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "resolved %d package(s)\n", len(sol.Decisions))

			diags, err := r.Apply(cmd.Context())
			renderDiagnostics(cmd.ErrOrStderr(), diags)
			if err != nil {
				return err
			}
			if err := saveEdits(r.Edits()); err != nil {
				return fmt.Errorf("saving edit state: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d pin(s) to %s\n", len(sol.Decisions), flags.pinsPath)
			return nil
		},
	}
}
