package cmd

import (
	"github.com/spf13/cobra"

	"github.com/krekz/maulocum-sub000/internal/bootstrap"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, notification dispatcher and sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return bootstrap.Serve(cmd.Context(), cfgFile)
		},
	}
}
