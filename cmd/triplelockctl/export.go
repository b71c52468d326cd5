package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/triplelock/internal/export"
	"github.com/joseph-ayodele/triplelock/internal/repository"
	svc "github.com/joseph-ayodele/triplelock/internal/server"
)

func exportCmd(opts *rootOptions) *cobra.Command {
	var (
		project string
		out     string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the public ledger as an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var projectID *uuid.UUID
			if project != "" {
				id, err := uuid.Parse(project)
				if err != nil {
					return fmt.Errorf("--project must be a UUID: %w", err)
				}
				projectID = &id
			}
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			store, err := svc.ConnectDB(cmd.Context(), cfg.Database, logger)
			if err != nil {
				return err
			}
			defer svc.CloseDB(store, logger)

			exporter := export.NewService(
				repository.NewExpenditureRepository(store, logger),
				repository.NewProjectRepository(store, logger),
				logger,
			)
			data, err := exporter.ExportLedgerXLSX(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "limit the ledger to one project id")
	cmd.Flags().StringVarP(&out, "out", "o", "ledger.xlsx", "output path")
	return cmd
}
