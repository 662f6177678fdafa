package main

import (
	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/promptdesk/internal/entitlement"
	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

func newTiersCmd(opts *options) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "tiers",
		Short: "Print the entitlement table",
		Long: `Print every tier's item and byte limits per category.

Without --file the built-in table is printed. Unbounded limits render as
"unbounded" in yaml and null in json.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := entitlement.LoadOrDefault(file)
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), struct {
				Tiers []models.EntitlementRow `json:"tiers" yaml:"tiers"`
			}{table.Rows()})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "entitlement table override (yaml)")
	return cmd
}
