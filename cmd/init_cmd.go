package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Quidge/chatconform/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a " + config.ProjectConfigFilename + " template",
	Long: `Create a ` + config.ProjectConfigFilename + ` template in the current directory.

The template includes commented examples for all configuration options.
Use --minimal for a short file with only the fixture models.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().Bool("force", false, "overwrite existing file")
	initCmd.Flags().Bool("minimal", false, "write a minimal template without comments")
}

func runInit(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")
	minimal, _ := cmd.Flags().GetBool("minimal")

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	content := config.ProjectConfigTemplate
	if minimal {
		content = config.ProjectConfigMinimalTemplate
	}

	path := filepath.Join(cwd, config.ProjectConfigFilename)
	if err := config.WriteProjectConfig(path, content, force); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", config.ProjectConfigFilename)
	return nil
}
