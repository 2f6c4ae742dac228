package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Quidge/chatconform/internal/capability"
	"github.com/Quidge/chatconform/internal/client"
	"github.com/Quidge/chatconform/internal/factory"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles [FAMILY...]",
	Short: "Show the capability profile of each client family",
	Long: `Show the declared capabilities of each registered client family after
applying the overrides from the project file.

Each cell is the decision the battery takes for scenarios needing that
capability: run, skip (hard_skip) or expect-rejection (soft_reject).`,
	RunE: runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	overrides, err := cfg.ProfileOverrides()
	if err != nil {
		return err
	}

	// Profiles never touch the registry, so none is needed.
	f, err := factory.New(nil, factory.Options{Overrides: overrides})
	if err != nil {
		return err
	}

	var profiles []capability.Profile
	if len(args) == 0 {
		profiles = f.Profiles()
	} else {
		for _, name := range args {
			p, err := f.Profile(name)
			if err != nil {
				return err
			}
			profiles = append(profiles, p)
		}
	}

	return printProfiles(cmd.OutOrStdout(), profiles)
}

func printProfiles(out io.Writer, profiles []capability.Profile) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	header := []string{"CAPABILITY"}
	for _, p := range profiles {
		header = append(header, strings.ToUpper(p.Family()))
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, c := range capability.All {
		cells := []string{string(c)}
		for _, p := range profiles {
			cells = append(cells, modeCell(p.Mode(c)))
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}

	assertions := []struct {
		name string
		get  func(capability.Profile) bool
	}{
		{"assert response_id", capability.Profile.AssertsResponseID},
		{"assert finish_reason", capability.Profile.AssertsFinishReason},
		{"assert partial_response_count", capability.Profile.AssertsPartialResponseCount},
	}
	for _, a := range assertions {
		cells := []string{a.name}
		for _, p := range profiles {
			cells = append(cells, boolCell(a.get(p)))
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}

	metadata := []string{"metadata type"}
	usage := []string{"usage type"}
	for _, p := range profiles {
		metadata = append(metadata, p.MetadataType().String())
		usage = append(usage, p.UsageType().String())
	}
	fmt.Fprintln(w, strings.Join(metadata, "\t"))
	fmt.Fprintln(w, strings.Join(usage, "\t"))

	return w.Flush()
}

// Every cell is colored so escape sequences of equal length keep the
// tabwriter columns aligned.
var (
	runColor    = color.New(color.FgGreen)
	skipColor   = color.New(color.FgYellow)
	rejectColor = color.New(color.FgCyan)
)

func modeCell(m capability.Mode) string {
	switch m {
	case capability.ModeRun:
		return runColor.Sprint(m)
	case capability.ModeExpectRejection:
		return rejectColor.Sprint(m)
	default:
		return skipColor.Sprint(m)
	}
}

func boolCell(b bool) string {
	if b {
		return runColor.Sprint("yes")
	}
	return skipColor.Sprint("no")
}

// familyNames validates names against the registered families. An empty
// list selects every family.
func familyNames(names []string) ([]string, error) {
	if len(names) == 0 {
		return client.FamilyNames(), nil
	}
	for _, name := range names {
		if _, err := client.Lookup(name); err != nil {
			return nil, err
		}
	}
	return names, nil
}
