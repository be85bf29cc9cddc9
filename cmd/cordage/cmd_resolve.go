package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the dependency graph and reconcile on-disk checkouts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd)
		},
	}
}

// runResolve drives the full Idle→Loaded→Resolving→Resolved→Applied state
// machine once, per spec.md §4.5.
func runResolve(cmd *cobra.Command) error {
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
}
