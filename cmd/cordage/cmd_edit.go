package main

import (
	"fmt"

	"github.com/cordage-pm/cordage/pkg/identity"
	"github.com/spf13/cobra"
)

func newEditCmd() *cobra.Command {
	var branch, revision string

	cmd := &cobra.Command{
		Use:   "edit <package>",
		Short: "Put a dependency into edit mode, leaving its working copy untouched by future resolves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity.Derive(args[0])
			if err != nil {
				return fmt.Errorf("edit: %w", err)
			}

			root, err := loadRootManifest()
			if err != nil {
				return err
			}
			r, store, _, err := openWorkspace()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := r.Load(root); err != nil {
				return err
			}
			// Best-effort: a resolve populates the dependency graph so
			// EnterEdit can find the reference for a transitive
			// dependency, but edit should still work for a root
			// dependency even if the registry is unreachable.
			_, _ = r.Resolve(cmd.Context())

			if err := r.EnterEdit(cmd.Context(), id, branch, revision); err != nil {
				return err
			}
			if err := saveEdits(r.Edits()); err != nil {
				return fmt.Errorf("saving edit state: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now in edit mode\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&branch, "branch", "", "create and switch to a new branch")
	cmd.Flags().StringVar(&revision, "revision", "", "switch to a specific revision")
	return cmd
}
