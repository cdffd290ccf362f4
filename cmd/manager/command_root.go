package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	ConfigPath string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "onroad-manager",
		Short:         "On-device process supervisor",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), runOptions{ConfigPath: configPath(flags.ConfigPath)})
		},
	}
	root.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "", "path to config.yaml (default $MANAGER_CONFIG or "+defaultConfigPath+")")

	root.AddCommand(
		newRunCmd(flags),
		newPrepareCmd(flags),
		newParamsCmd(flags),
		newVersionCmd(),
	)
	return root
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Bootstrap and run the reconciliation loop (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), runOptions{ConfigPath: configPath(flags.ConfigPath)})
		},
	}
}

func newPrepareCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "prepare",
		Short: "Bootstrap, prepare every process and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), runOptions{ConfigPath: configPath(flags.ConfigPath), PrepareOnly: true})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			b := buildInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "onroad-manager %s\n", b.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "  branch: %s\n  commit: %s (%s)\n  remote: %s\n  dirty:  %t\n",
				b.GitBranch, b.GitCommit, b.CommitDate, b.GitRemote, b.Dirty)
		},
	}
}
