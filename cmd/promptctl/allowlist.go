package main

import (
	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/promptdesk/internal/allowlist"
	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

type lookupResult struct {
	Email   string      `json:"email" yaml:"email"`
	Listed  bool        `json:"listed" yaml:"listed"`
	Tier    models.Tier `json:"tier" yaml:"tier"`
	Entries int         `json:"entries" yaml:"entries"`
}

func newAllowListCmd(opts *options) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "allowlist",
		Short: "Allow-list commands",
	}
	cmd.PersistentFlags().StringVar(&file, "file", "allowlist.yaml", "allow-list file")

	lookup := &cobra.Command{
		Use:   "lookup <email>",
		Short: "Show the tier an email would receive at registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := allowlist.Load(file, opts.logger())
			if err != nil {
				return err
			}
			tier, listed := list.Lookup(args[0])
			if !listed {
				tier = models.LowestTier
			}
			return opts.render(cmd.OutOrStdout(), lookupResult{
				Email:   models.NormalizeEmail(args[0]),
				Listed:  listed,
				Tier:    tier,
				Entries: list.Len(),
			})
		},
	}

	cmd.AddCommand(lookup)
	return cmd
}
