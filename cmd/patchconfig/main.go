package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/librarian/internal/patch"
)

var (
	pathFlag  string
	valueFlag string
)

var rootCmd = &cobra.Command{
	Use:   "patchconfig",
	Short: "Set one field in a JSON config read from stdin and write the result to stdout",
	Long: `Reads a JSON config document from stdin, sets a single field and writes the
re-indented document to stdout. By default it sets
agents.defaults.sandbox.workspaceAccess to "rw".`,
	Args:          cobra.NoArgs,
	RunE:          runPatch,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().StringVar(&pathFlag, "path", patch.WorkspaceAccessPath, "Dot-separated field path")
	rootCmd.Flags().StringVar(&valueFlag, "value", patch.WorkspaceAccessRW, "String value to set")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "patchconfig: %v\n", err)
		os.Exit(1)
	}
}

func runPatch(cmd *cobra.Command, args []string) error {
	return patch.Apply(cmd.InOrStdin(), cmd.OutOrStdout(), pathFlag, valueFlag)
}
