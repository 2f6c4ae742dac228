package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Quidge/chatconform/internal/backend"
)

var fixturesPruneCmd = &cobra.Command{
	Use:   "prune [MODEL...]",
	Short: "Remove derived images",
	Long: `Remove derived images from the container runtime and forget them in the
state database. The next run provisions those models from the base image.

With no arguments every recorded derived image is removed. Use --containers
to also remove fixture containers left behind by --keep-containers.`,
	RunE: runFixturesPrune,
}

func init() {
	fixturesCmd.AddCommand(fixturesPruneCmd)

	fixturesPruneCmd.Flags().Bool("containers", false, "also remove leftover fixture containers")
}

func runFixturesPrune(cmd *cobra.Command, args []string) error {
	containers, _ := cmd.Flags().GetBool("containers")

	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	be, err := backend.Get(backend.BackendConfig{
		Type:   cfg.Runtime,
		Binary: cfg.Binary,
		Host:   cfg.Host,
		Logger: log,
	})
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

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	removed := 0
	for _, img := range images {
		if len(args) > 0 && !slices.Contains(args, img.Model) {
			continue
		}
		if err := be.RemoveImage(ctx, img.Image); err != nil {
			return err
		}
		if err := db.DeleteImage(img.BaseImage, img.Model); err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed image %s\n", img.Image)
		removed++
	}

	if containers {
		ids, err := be.List(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := be.Destroy(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(out, "Removed container %s\n", id)
			removed++
		}
	}

	if removed == 0 {
		fmt.Fprintln(out, "Nothing to prune.")
	}
	return nil
}
