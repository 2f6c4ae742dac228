package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Quidge/chatconform/internal/conformance"
	"github.com/Quidge/chatconform/internal/harness"
	"github.com/Quidge/chatconform/internal/restype"
)

// shutdownTimeout bounds fixture teardown after a run.
const shutdownTimeout = time.Minute

var runCmd = &cobra.Command{
	Use:   "run [FAMILY...]",
	Short: "Run the conformance scenarios",
	Long: `Provision the default fixtures, then run every built-in scenario
against each selected client family. With no arguments every registered
family is tested.

The command exits non-zero when a scenario fails, including a soft-reject
capability that was not refused.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntP("parallel", "p", conformance.DefaultParallelism, "maximum number of scenarios in flight")
}

func runRun(cmd *cobra.Command, args []string) (err error) {
	parallel, _ := cmd.Flags().GetInt("parallel")

	families, err := familyNames(args)
	if err != nil {
		return err
	}

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

	ctx := cmd.Context()
	if err := h.Start(ctx); err != nil {
		return fmt.Errorf("failed to provision fixtures: %w", err)
	}

	resolver, err := restype.ForRegistered()
	if err != nil {
		return err
	}

	suite := &conformance.Suite{
		Factory:     h.Factory,
		Families:    families,
		Scenarios:   conformance.DefaultScenarios(resolver),
		Parallelism: parallel,
		Log:         log,
	}
	results := suite.RunAll(ctx)
	results.Print(cmd.OutOrStdout())
	if results.Failed() {
		return errors.New("conformance run failed")
	}
	return nil
}
