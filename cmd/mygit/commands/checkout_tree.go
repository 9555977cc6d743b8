package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var checkoutTreeCmd = &cobra.Command{
	Use:   "checkout-tree <tree> <dir>",
	Short: "Restore the files of a tree object into a directory",
	Long:  `Write every file, executable bit and symlink recorded in <tree> under <dir>. Existing files with the same names are overwritten.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		start := time.Now()

		id, err := MG.Repo.ResolveID(ctx, args[0])
		if err != nil {
			return err
		}

		n, err := MG.Repo.CheckoutTree(ctx, id, args[1])
		if err != nil {
			return err
		}

		MG.Log.Info("checkout done",
			zap.Stringer("tree", id),
			zap.Int("files", n),
			zap.Duration("took", time.Since(start)),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %d files from %s into %s\n", n, id.Short(), args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkoutTreeCmd)
}
