package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "cordage",
		Short: "Dependency resolver and pinned-graph workspace manager",
	}

	registerGlobalFlags(root)

	root.AddCommand(newVersionCmd())
	root.AddCommand(newResolveCmd())
	root.AddCommand(newUpdateCmd())
	root.AddCommand(newPinCmd())
	root.AddCommand(newUnpinCmd())
	root.AddCommand(newEditCmd())
	root.AddCommand(newUneditCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "cordage 0.1.0-dev")
		},
	}
}
