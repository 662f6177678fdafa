package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/promptdesk/internal/scheduler"
	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

func newSyncTierCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-tier <email>",
		Short: "Re-apply the allow-list to an existing account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := opts.openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			account, err := svc.Credentials.SyncTier(cmd.Context(), args[0])
			if errors.Is(err, models.ErrNotFound) {
				return fmt.Errorf("no account registered for %s", args[0])
			}
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), account)
		},
	}
}

func newReconcileCmd(opts *options) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "reconcile [email]",
		Short: "Recount usage from saved items",
		Long: `Recompute an account's usage counters from the items it has saved and
persist the result. With --all every account is reconciled.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := opts.openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			if all {
				report, err := scheduler.NewScheduler(svc.Store, svc.Library, opts.logger()).RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				return opts.render(cmd.OutOrStdout(), report)
			}

			tracker, err := svc.Library.Reconcile(cmd.Context(), models.UserIDForEmail(args[0]))
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), tracker)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "reconcile every account")
	return cmd
}
