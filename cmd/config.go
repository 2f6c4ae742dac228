package cmd

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Quidge/chatconform/internal/state"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
	Long: `Inspect the configuration a run would use.

Subcommands:
  show   Print the merged configuration`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration",
	Long: `Print the configuration after merging defaults, the project file,
environment variables and flags.

Environment values are hidden; only their names are shown.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	source := cfg.ConfigPath
	if source == "" {
		source = "(none, using defaults)"
	}
	stateDB := cfg.StateDB
	if stateDB == "" {
		if stateDB, err = state.DefaultDBPath(); err != nil {
			return err
		}
	}
	external := cfg.ExternalURL
	if external == "" {
		external = "(unset, fixtures are provisioned)"
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	row := func(k string, v any) { fmt.Fprintf(w, "%s\t%v\n", k, v) }

	row("config file", source)
	row("external endpoint", external)
	row("runtime", cfg.Runtime)
	if cfg.Binary != "" {
		row("binary", cfg.Binary)
	}
	if cfg.Host != "" {
		row("host", cfg.Host)
	}
	row("base image", cfg.BaseImage)
	row("default model", cfg.DefaultModel)
	row("tools model", cfg.Fixtures.Tools)
	row("vision model", cfg.Fixtures.Vision)
	row("custom model", cfg.Fixtures.Custom)
	row("readiness path", cfg.ReadinessPath)
	row("keep containers", cfg.KeepContainers)
	row("provisioning timeout", cfg.ProvisioningTimeout)
	row("request timeout", cfg.RequestTimeout)
	row("state db", stateDB)
	row("log level", cfg.LogLevel)
	row("log format", cfg.LogFormat)
	if err := w.Flush(); err != nil {
		return err
	}

	writeList(cmd.OutOrStdout(), "env", sortedKeys(cfg.Env))
	writeList(cmd.OutOrStdout(), "setup", cfg.Setup)
	writeList(cmd.OutOrStdout(), "profile overrides", sortedKeys(cfg.Profiles))
	return nil
}

func writeList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "  %s\n", item)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
