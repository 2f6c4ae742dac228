package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Quidge/chatconform/internal/state"
)

// fixturesCmd is the parent command for fixture management.
var fixturesCmd = &cobra.Command{
	Use:     "fixtures",
	Aliases: []string{"fx"},
	Short:   "Manage model-serving fixtures",
	Long: `Manage the containers and derived images that serve models to the
conformance scenarios.

A fixture is one model-serving container for a (base image, model) pair.
Once a model is installed, the container is committed to a derived image so
later runs start from it without pulling the model again.`,
}

func init() {
	rootCmd.AddCommand(fixturesCmd)
}

// visibleStatuses are the statuses shown by default in `fixtures list`.
var visibleStatuses = []state.FixtureStatus{
	state.StatusProvisioning,
	state.StatusReady,
}

// formatTimeAgo formats a time as a human-readable relative time.
func formatTimeAgo(t time.Time) string {
	d := time.Since(t)

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

// openState opens the configured state database.
func openState(stateDB string) (*state.DB, error) {
	db, err := state.Open(stateDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	return db, nil
}
