package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/krekz/maulocum-sub000/internal/bootstrap"
	infrajwt "github.com/krekz/maulocum-sub000/internal/infra/jwt"
)

// newTokenCommand mints a bearer token for local testing. Production tokens
// come from the identity service that shares auth.jwt_secret.
func newTokenCommand() *cobra.Command {
	var (
		role    string
		profile string
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development JWT for a doctor, facility or admin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch role {
			case infrajwt.RoleDoctor, infrajwt.RoleFacility, infrajwt.RoleAdmin:
			default:
				return fmt.Errorf("unknown role %q", role)
			}
			if profile == "" {
				return errors.New("--profile is required")
			}
			if subject == "" {
				subject = profile
			}

			cfg, err := bootstrap.LoadConfig(cfgFile)
			if err != nil {
				return err
			}

			tok, err := infrajwt.Issue(cfg.Auth.JWTSecret, subject, role, profile, ttl)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", infrajwt.RoleDoctor, "doctor, facility or admin")
	cmd.Flags().StringVar(&profile, "profile", "", "doctor or facility profile id")
	cmd.Flags().StringVar(&subject, "subject", "", "user id (defaults to the profile id)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
