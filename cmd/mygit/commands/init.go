package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"mygit/pkg/config"
	"mygit/pkg/refs"
	"mygit/pkg/types"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty repository",
	Long:  `Create the repository metadata directory (objects/, refs/ and HEAD), or reinitialize an existing one.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repoPath, err := filepath.Abs(viper.GetString(config.KeyRepoPath))
		if err != nil {
			return types.NewError(types.IOError, "init", err)
		}

		_, statErr := os.Stat(filepath.Join(repoPath, "objects"))
		existed := statErr == nil

		// 1. 目录结构
		for _, dir := range []string{
			repoPath,
			filepath.Join(repoPath, "objects"),
			filepath.Join(repoPath, "refs"),
		} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return types.PathError(types.IOError, "init", dir, err)
			}
		}

		// 2. HEAD 只在不存在时写
		if _, err := refs.NewManager(repoPath).InitHead(refs.DefaultBranch); err != nil {
			return err
		}

		if existed {
			fmt.Fprintf(cmd.OutOrStdout(), "Reinitialized existing repository in %s\n", repoPath)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized empty repository in %s\n", repoPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
