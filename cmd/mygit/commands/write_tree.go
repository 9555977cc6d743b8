package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var writeTreeCmd = &cobra.Command{
	Use:   "write-tree [dir]",
	Short: "Create a tree object from a directory",
	Long: `Snapshot a directory (default: the current one) into tree and blob objects and
print the root tree ID. The repository directory and paths matched by the ignore
file are skipped; symlinks are stored, never followed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}

		id, err := MG.Repo.WriteTree(cmd.Context(), dir)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(writeTreeCmd)
}
