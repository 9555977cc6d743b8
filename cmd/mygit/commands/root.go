package commands

import (
	"context"
	"fmt"
	"os"

	"mygit/pkg/app"
	"mygit/pkg/config"
	"mygit/pkg/types"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// 全局应用实例，供子命令使用
	MG *app.App
)

var rootCmd = &cobra.Command{
	Use:   "mygit",
	Short: "mygit: content-addressable object plumbing",
	Long: `mygit stores files and directory snapshots as immutable, SHA-1 addressed,
zlib-compressed blob and tree objects in a git-compatible object directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	// PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// init 就是去创建环境的，不需要 App
		switch cmd.Name() {
		case "init", "help", "completion", cobra.ShellCompRequestCmd:
			return nil
		}

		var err error
		MG, err = app.NewApp(cmd.Context())
		if err != nil {
			if types.KindOf(err) == types.NotFound {
				return fmt.Errorf("not a mygit repository: %w", err)
			}
			return err
		}
		return nil
	},
}

// Execute 是入口
func Execute() error {
	return ExecuteContext(context.Background(), os.Args[1:])
}

// ExecuteContext 执行一次命令，结束后释放 App
func ExecuteContext(ctx context.Context, args []string) error {
	rootCmd.SetArgs(args)
	defer func() {
		if MG != nil {
			MG.Close()
			MG = nil
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

// FormatError 把错误格式化为 "fatal: <kind>: <message>"
func FormatError(err error) string {
	if kind := types.KindOf(err); kind != "" {
		return fmt.Sprintf("fatal: %s: %v", kind, err)
	}
	return fmt.Sprintf("fatal: %v", err)
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml, <repo>/config.yaml or $HOME/.mygit/config.yaml)")
	flags.String("repo", ".git", "Repository metadata directory")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
}

// bindFlags 把全局参数绑定到 Viper，命令行优先于配置文件与环境变量
func bindFlags() error {
	flags := rootCmd.PersistentFlags()
	for key, name := range map[string]string{
		config.KeyRepoPath: "repo",
		config.KeyLogLevel: "log-level",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := bindFlags(); err != nil {
		fmt.Fprintln(os.Stderr, FormatError(err))
		os.Exit(1)
	}
	if _, err := config.Load(cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, FormatError(err))
		os.Exit(1)
	}
}
