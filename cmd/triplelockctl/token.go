package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/triplelock/constants"
	"github.com/joseph-ayodele/triplelock/internal/auth"
	"github.com/joseph-ayodele/triplelock/internal/entity"
)

func tokenCmd(opts *rootOptions) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an actor",
		Long: `Mint an HS256 bearer token signed with JWT_SECRET.

Examples:
  triplelockctl token --subject ngo-1 --role ngo
  triplelockctl token --subject B7 --role beneficiary --ttl 2h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("JWT_SECRET is required")
			}
			r, ok := constants.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}
			dir := auth.NewJWTDirectory(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
			tok, err := dir.GenerateToken(entity.Actor{ID: subject, Role: r}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "actor id")
	cmd.Flags().StringVar(&role, "role", "", "donor | ngo | vendor | beneficiary | admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to JWT_TTL)")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}
