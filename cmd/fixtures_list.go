package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Quidge/chatconform/internal/state"
)

var fixturesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List derived images and recent provisioning attempts",
	Long: `List the derived images recorded in the state database, followed by
the provisioning attempts.

By default, failed and removed attempts are hidden. Use --all to show them.`,
	Args: cobra.NoArgs,
	RunE: runFixturesList,
}

func init() {
	fixturesCmd.AddCommand(fixturesListCmd)

	fixturesListCmd.Flags().String("model", "", "filter attempts by model")
	fixturesListCmd.Flags().Bool("all", false, "include failed/removed attempts")
	fixturesListCmd.Flags().Int("limit", 20, "maximum number of attempts to show (0 for no limit)")
}

func runFixturesList(cmd *cobra.Command, _ []string) error {
	model, _ := cmd.Flags().GetString("model")
	showAll, _ := cmd.Flags().GetBool("all")
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openState(cfg.StateDB)
	if err != nil {
		return err
	}
	defer db.Close()

	images, err := db.ListImages()
	if err != nil {
		return err
	}

	opts := state.ListOptions{Model: model, Limit: limit}
	if !showAll {
		opts.Statuses = visibleStatuses
	}
	fixtures, err := db.ListFixtures(opts)
	if err != nil {
		return fmt.Errorf("failed to list fixtures: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(images) == 0 && len(fixtures) == 0 {
		fmt.Fprintln(out, "No fixtures found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if len(images) > 0 {
		fmt.Fprintln(w, "IMAGE\tBASE IMAGE\tMODEL\tCREATED\tLAST USED")
		for _, img := range images {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				img.Image, img.BaseImage, img.Model,
				formatTimeAgo(img.CreatedAt), formatTimeAgo(img.LastUsedAt))
		}
	}
	if len(fixtures) > 0 {
		if len(images) > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, "ID\tMODEL\tSTATUS\tSOURCE\tELAPSED\tSTARTED")
		for _, f := range fixtures {
			status := string(f.Status)
			if f.Error != "" {
				status += ": " + firstLine(f.Error)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				state.ShortID(f.ID), f.Model, status, orDash(f.Source),
				f.Elapsed.Round(time.Second), formatTimeAgo(f.StartedAt))
		}
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
