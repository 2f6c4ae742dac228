package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alessio/shellescape"
)

// SetupRunner abstracts the steps that turn a base container into a
// model-serving fixture. Each backend provides its own implementation that
// knows how to execute inside its containers.
type SetupRunner interface {
	// Run executes all setup steps for the container.
	Run(ctx context.Context, cfg *SetupConfig) error
}

// SetupConfig contains the configuration for setting up a container.
type SetupConfig struct {
	// Models are pulled into the container's model store, in order.
	Models []string

	// PullCommand is the command prefix used to pull one model.
	// The model name is appended as the final argument.
	PullCommand []string

	// SetupCommands run after all models are pulled.
	SetupCommands [][]string
}

// DefaultPullCommand pulls a model with the ollama CLI inside the container.
var DefaultPullCommand = []string{"ollama", "pull"}

// ContainerSetupRunner implements SetupRunner on top of Backend.Exec, so
// every runtime that can exec into its containers shares it.
type ContainerSetupRunner struct {
	// ContainerID is the container where setup runs.
	ContainerID string

	// Backend executes the commands.
	Backend Backend
}

var _ SetupRunner = (*ContainerSetupRunner)(nil)

// Run executes all setup steps for the container.
//
// Setup order:
// 1. Pull each model with the pull command
// 2. Run setup commands
func (r *ContainerSetupRunner) Run(ctx context.Context, cfg *SetupConfig) error {
	if r.ContainerID == "" {
		return errors.New("container ID not set")
	}

	pull := cfg.PullCommand
	if len(pull) == 0 {
		pull = DefaultPullCommand
	}

	for _, model := range cfg.Models {
		if err := ctx.Err(); err != nil {
			return err
		}
		cmd := append(append([]string{}, pull...), model)
		if err := r.runCommand(ctx, cmd); err != nil {
			return fmt.Errorf("failed to pull model %s: %w", model, err)
		}
	}

	for _, cmd := range cfg.SetupCommands {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.runCommand(ctx, cmd); err != nil {
			return fmt.Errorf("failed to run setup commands: %w", err)
		}
	}

	return nil
}

// runCommand runs one command and turns a non-zero exit into an error that
// carries the tail of its output.
func (r *ContainerSetupRunner) runCommand(ctx context.Context, cmd []string) error {
	out, code, err := r.Backend.Exec(ctx, r.ContainerID, cmd...)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("command %q exited with code %d: %s", shellescape.QuoteCommand(cmd), code, tail(out, 512))
	}
	return nil
}

// tail returns at most n trailing bytes of s.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
