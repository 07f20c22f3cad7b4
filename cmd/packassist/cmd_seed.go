package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linnemanlabs/packassist/internal/app"
	"github.com/linnemanlabs/packassist/internal/incident"
)

func newSeedCmd(o *options) *cobra.Command {
	var ifEmpty bool
	cmd := &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load known failures and CMS logs into the incident store",
		Long:  "Reads a YAML seed file (known_failures, cms_logs) and writes it to the\nconfigured database. Patterns keep file order, which is match order.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.resolve(cmd); err != nil {
				return err
			}
			L, ctx, err := o.logger(cmd.Context())
			if err != nil {
				return err
			}
			store, closeStore, err := app.OpenIncidentStore(ctx, &o.app, L)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			if ifEmpty {
				return app.SeedIfEmpty(ctx, store, args[0], L)
			}
			sf, err := app.LoadSeedFile(args[0])
			if err != nil {
				return err
			}
			if err := incident.Seed(ctx, store, sf); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d known failures and %d CMS logs\n", len(sf.KnownFailures), len(sf.Logs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&ifEmpty, "if-empty", false, "skip when the store already has known failures")
	return cmd
}
