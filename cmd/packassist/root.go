package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/log"
	v "github.com/linnemanlabs/go-core/version"

	vc "github.com/linnemanlabs/packassist/internal/cfg"
)

const (
	appName   = "packassist"
	component = "cli"
	envPrefix = "PACKASSIST_"
)

func init() {
	v.AppName = appName
	v.Component = component
}

// options is the configuration shared by every subcommand. Flags are
// registered on a std FlagSet so the server and CLI read the same names.
type options struct {
	app vc.Config
	log log.Config
	fs  *flag.FlagSet
}

func newOptions() *options {
	o := &options{fs: flag.NewFlagSet(appName, flag.ContinueOnError)}
	o.app.RegisterFlags(o.fs)
	o.log.RegisterFlags(o.fs)
	return o
}

// resolve marks flags given on the command line as set, fills the rest from
// the environment and validates the result.
func (o *options) resolve(cmd *cobra.Command) error {
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if o.fs.Lookup(f.Name) != nil {
			_ = o.fs.Set(f.Name, f.Value.String())
		}
	})
	cfg.FillFromEnv(o.fs, envPrefix, func(format string, args ...any) {
		fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
	})
	if err := errors.Join(o.app.Validate(), o.log.Validate()); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func (o *options) logger(ctx context.Context) (log.Logger, context.Context, error) {
	lg, err := log.New(o.log.ToOptions(appName))
	if err != nil {
		return nil, ctx, fmt.Errorf("logger init: %w", err)
	}
	L := lg.With("component", component)
	return L, log.WithContext(ctx, L), nil
}

// newRootCmd creates the root packassist command with all subcommands attached.
func newRootCmd() *cobra.Command {
	vi := v.Get()

	o := newOptions()
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Packing-station incident triage assistant",
		Long:          "packassist answers packing-station users about failed CMS requests,\nsuggests workarounds for known failures and escalates the rest to IT.",
		Version:       vi.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.PersistentFlags().AddGoFlagSet(o.fs)

	cmd.AddCommand(
		newChatCmd(o),
		newSeedCmd(o),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vi := v.Get()
			fmt.Fprintf(cmd.OutOrStdout(),
				"%s (%s) %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
				vi.AppName, vi.Component, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
				vi.VCSDirty != nil && *vi.VCSDirty,
			)
			return nil
		},
	}
}
