package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/triplelock/constants"
)

func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the canonical expenditure categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, c := range constants.AsStringSlice() {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}
