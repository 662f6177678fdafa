package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/therealutkarshpriyadarshi/promptdesk/internal/app"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/config"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/logging"
)

type options struct {
	cfgFile      string
	outputFormat string
	verbose      bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "promptctl",
		Short: "Administer promptdesk accounts, plans and usage",
		Long: `promptctl inspects the entitlement table and allow-list and repairs
account state directly against the configured backends.

Examples:
  promptctl tiers                     # Print the tier table
  promptctl allowlist lookup a@b.com  # Show the plan an email is granted
  promptctl sync-tier a@b.com         # Re-apply the allow-list to an account
  promptctl reconcile --all           # Recount every account's usage`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(
		&opts.cfgFile, "config", defaultConfigPath(), "config file",
	)
	rootCmd.PersistentFlags().StringVarP(
		&opts.outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&opts.verbose, "verbose", "v", false, "log to stderr",
	)

	rootCmd.AddCommand(
		newTiersCmd(opts),
		newAllowListCmd(opts),
		newSyncTierCmd(opts),
		newReconcileCmd(opts),
		newDLQCmd(opts),
	)

	return rootCmd
}

func defaultConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}

func (o *options) logger() *logging.Logger {
	if !o.verbose {
		return logging.NewNopLogger()
	}
	return logging.New(os.Stderr, "debug")
}

// openServices loads the config and connects to every configured backend
func (o *options) openServices(ctx context.Context) (*config.Config, *app.Services, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, nil, err
	}
	svc, err := app.Open(ctx, cfg, o.logger())
	if err != nil {
		svc.Close()
		return nil, nil, err
	}
	return cfg, svc, nil
}

// render writes v in the selected output format
func (o *options) render(w io.Writer, v interface{}) error {
	switch o.outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", o.outputFormat)
	}
}
