package cmd

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Quidge/chatconform/internal/fixture"
	"github.com/Quidge/chatconform/internal/harness"
)

var fixturesWarmCmd = &cobra.Command{
	Use:   "warm [MODEL...]",
	Short: "Provision fixtures ahead of a run",
	Long: `Provision fixtures so their derived images exist before the first run.

With no arguments the default fixture models are provisioned. Containers are
removed afterwards unless --keep-containers is set; the derived images stay.`,
	RunE: runFixturesWarm,
}

func init() {
	fixturesCmd.AddCommand(fixturesWarmCmd)
}

func runFixturesWarm(cmd *cobra.Command, args []string) (err error) {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	h, err := harness.New(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), shutdownTimeout)
		defer cancel()
		err = errors.Join(err, h.Close(ctx))
	}()

	if h.Registry.External() {
		fmt.Fprintf(cmd.OutOrStdout(), "Using external endpoint %s, nothing to provision.\n", cfg.ExternalURL)
		return nil
	}

	keys := h.Factory.DefaultKeys()
	if len(args) > 0 {
		keys = make([]fixture.Key, 0, len(args))
		for _, model := range args {
			keys = append(keys, h.Factory.Key(model))
		}
	}

	if err := h.Registry.Start(cmd.Context(), keys...); err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tBASE IMAGE\tSOURCE\tENDPOINT")
	for _, handle := range h.Registry.Handles() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", handle.Key.Model, handle.Key.BaseImage, handle.Source, handle.Endpoint)
	}
	return w.Flush()
}
