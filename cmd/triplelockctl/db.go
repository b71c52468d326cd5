package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/triplelock/internal/repository"
	svc "github.com/joseph-ayodele/triplelock/internal/server"
)

func migrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			store, err := svc.ConnectDB(cmd.Context(), cfg.Database, logger)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer svc.CloseDB(store, logger)

			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%d tables)\n", len(repository.Tables()))
			return nil
		},
	}
}

func healthCmd(opts *rootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check database connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			store, err := repository.Open(cmd.Context(), repository.Config{
				Driver:      cfg.Database.Driver,
				DSN:         cfg.Database.DSN,
				MaxConns:    2,
				MinConns:    1,
				DialTimeout: cfg.Database.DialTimeout,
			}, logger)
			if err != nil {
				return fmt.Errorf("opening DB: %w", err)
			}
			defer store.Close()

			if err := svc.PingDB(cmd.Context(), store, logger, timeout); err != nil {
				return fmt.Errorf("DB health: FAIL (%w)", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "DB health: OK (%s)\n", store.Dialect())
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "ping timeout")
	return cmd
}
