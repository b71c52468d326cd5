package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/triplelock/constants"
	"github.com/joseph-ayodele/triplelock/internal/entity"
	"github.com/joseph-ayodele/triplelock/internal/projects"
	"github.com/joseph-ayodele/triplelock/internal/repository"
	svc "github.com/joseph-ayodele/triplelock/internal/server"
)

func projectsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage the project registry",
	}

	var ngoID string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Register a project owned by an NGO",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svcs, cleanup, err := openProjects(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			admin := entity.Actor{ID: "triplelockctl", Role: constants.RoleAdmin}
			p, err := svcs.CreateProject(cmd.Context(), admin, projects.CreateProjectRequest{Name: args[0], NGOID: ngoID})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.ID)
			return nil
		},
	}
	create.Flags().StringVar(&ngoID, "ngo", "", "owning NGO actor id")
	_ = create.MarkFlagRequired("ngo")

	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svcs, cleanup, err := openProjects(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			plist, err := svcs.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tNGO\tCREATED")
			for _, p := range plist {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.NGOID, p.CreatedAt.Format("2006-01-02"))
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}

func openProjects(cmd *cobra.Command, opts *rootOptions) (*projects.Service, func(), error) {
	cfg, logger, err := opts.load(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	store, err := svc.ConnectDB(cmd.Context(), cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	return projects.NewService(repository.NewProjectRepository(store, logger), logger), func() { svc.CloseDB(store, logger) }, nil
}
