// Package cmd implements the locum-bookings command-line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/krekz/maulocum-sub000/internal/bootstrap"
	infraconfig "github.com/krekz/maulocum-sub000/internal/infra/config"
)

// cfgFile holds the path to the configuration file.
var cfgFile string

// NewRootCommand builds the command tree. Running it without a subcommand
// starts the server.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "locum-bookings",
		Short: "Job application lifecycle and capacity service",
		Long: `locum-bookings runs the application lifecycle for locum shifts:
applications, employer approval, double opt-in confirmation, capacity
enforcement and completion.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return bootstrap.Serve(cmd.Context(), cfgFile)
		},
	}

	root.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		infraconfig.GetConfigPath("config.yml"),
		"config file (default is $CONFIG_PATH or ./config.yml)",
	)

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newSweepCommand(),
		newTokenCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", bootstrap.ServiceName, bootstrap.Version)
			},
		},
	)

	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().ExecuteContext(context.Background())
}
