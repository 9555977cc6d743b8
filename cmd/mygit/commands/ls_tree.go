package commands

import (
	"fmt"
	"io"

	"mygit/pkg/core"
	"mygit/pkg/exporter"

	"github.com/spf13/cobra"
)

var (
	lsTreeNameOnly  bool
	lsTreeRecursive bool
)

var lsTreeCmd = &cobra.Command{
	Use:   "ls-tree [--name-only] [-r] <tree>",
	Short: "List the contents of a tree object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := MG.Repo.ResolveID(ctx, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if lsTreeRecursive {
			return MG.Repo.LsTreeRecursive(ctx, id, func(p string, entry core.TreeEntry) error {
				return printTreeLine(out, p, entry)
			})
		}

		entries, err := MG.Repo.LsTree(ctx, id)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := printTreeLine(out, entry.Name, entry); err != nil {
				return err
			}
		}
		return nil
	},
}

func printTreeLine(w io.Writer, p string, entry core.TreeEntry) error {
	if lsTreeNameOnly {
		_, err := fmt.Fprintln(w, p)
		return err
	}
	return exporter.PrintEntry(w, p, entry)
}

func init() {
	lsTreeCmd.Flags().BoolVar(&lsTreeNameOnly, "name-only", false, "List only filenames")
	lsTreeCmd.Flags().BoolVarP(&lsTreeRecursive, "recursive", "r", false, "Recurse into sub-trees")
	rootCmd.AddCommand(lsTreeCmd)
}
