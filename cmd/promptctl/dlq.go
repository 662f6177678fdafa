package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

var errQueueDisabled = errors.New("queue is disabled in config")

func newDLQCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Usage event dead-letter queue commands",
	}

	depth := &cobra.Command{
		Use:   "depth",
		Short: "Print the number of dead-lettered usage events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := opts.openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()
			if svc.Queue == nil {
				return errQueueDisabled
			}

			n, err := svc.Queue.GetDLQDepth()
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), map[string]int{"depth": n})
		},
	}

	var wait time.Duration
	replay := &cobra.Command{
		Use:   "replay",
		Short: "Move dead-lettered usage events back to the main queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := opts.openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()
			if svc.Queue == nil {
				return errQueueDisabled
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()

			var replayed atomic.Int64
			err = svc.Queue.ConsumeDLQ(ctx, func(event *models.UsageEvent, reason string) error {
				if err := svc.Queue.RetryFromDLQ(ctx, event); err != nil {
					return err
				}
				replayed.Add(1)
				fmt.Fprintf(cmd.ErrOrStderr(), "replayed %s (%s)\n", event.ID, reason)
				return nil
			})
			if err != nil {
				return err
			}

			<-ctx.Done()
			return opts.render(cmd.OutOrStdout(), map[string]int64{"replayed": replayed.Load()})
		},
	}
	replay.Flags().DurationVar(&wait, "wait", 10*time.Second, "how long to drain the queue")

	cmd.AddCommand(depth, replay)
	return cmd
}
