package commands

import (
	"fmt"

	"mygit/pkg/exporter"

	"github.com/spf13/cobra"
)

var (
	catPretty bool
	catType   bool
	catSize   bool
)

var catFileCmd = &cobra.Command{
	Use:   "cat-file (-p | -t | -s) <object>",
	Short: "Provide content, type or size of a repository object",
	Long: `Show an object by its full or abbreviated (at least 4 hex characters) ID.
Blobs are printed raw; trees are printed one entry per line like ls-tree.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := MG.Repo.ResolveID(ctx, args[0])
		if err != nil {
			return err
		}

		obj, err := MG.Repo.ReadObject(ctx, id)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch {
		case catType:
			fmt.Fprintln(out, obj.Type())
		case catSize:
			fmt.Fprintln(out, len(obj.Payload()))
		default:
			return exporter.PrintObject(obj, out)
		}
		return nil
	},
}

func init() {
	f := catFileCmd.Flags()
	f.BoolVarP(&catPretty, "pretty", "p", false, "Pretty-print the contents of <object>")
	f.BoolVarP(&catType, "type", "t", false, "Show the object type")
	f.BoolVarP(&catSize, "size", "s", false, "Show the object size")
	catFileCmd.MarkFlagsMutuallyExclusive("pretty", "type", "size")
	catFileCmd.MarkFlagsOneRequired("pretty", "type", "size")
	rootCmd.AddCommand(catFileCmd)
}
