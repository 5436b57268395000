package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/krekz/maulocum-sub000/internal/bootstrap"
)

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Complete every confirmed booking whose shift has ended",
		Long: `Run one global completion sweep. Listing applications already
completes a doctor's own ended bookings; this catches the rest.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := bootstrap.Sweep(cmd.Context(), cfgFile)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Completed %d booking(s)\n", n)
			return nil
		},
	}
}
