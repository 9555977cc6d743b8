package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var hashObjectWrite bool

var hashObjectCmd = &cobra.Command{
	Use:   "hash-object [-w] <file>...",
	Short: "Compute object ID and optionally create a blob from a file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := MG.Repo.HashObjects(cmd.Context(), args, hashObjectWrite)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func init() {
	hashObjectCmd.Flags().BoolVarP(&hashObjectWrite, "write", "w", false, "Actually write the object into the object database")
	rootCmd.AddCommand(hashObjectCmd)
}
