package main

import (
	"fmt"

	"github.com/OCAP2/drivescene/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	var (
		configDir string
		logLevel  string
		logsDir   string
	)

	root := &cobra.Command{
		Use:   AppName,
		Short: "Describe driving scenes for an LLM decision client",
		Long: `drivescene reads simulator frames as JSON lines, describes each
frame in natural language and records the episode trace.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(configDir); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Failed to load config, using defaults: %v\n", err)
			}
			if logLevel != "" {
				viper.Set("logLevel", logLevel)
			}
			if logsDir != "" {
				viper.Set("logsDir", logsDir)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configDir, "config-dir", ".", "directory containing "+config.FileName)
	flags.StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flags.StringVar(&logsDir, "logs-dir", "", "log directory override")

	root.AddCommand(
		newDescribeCmd(),
		newReplayCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s (built %s)\n", AppName, CurrentVersion, BuildDate)
			return err
		},
	}
}
