package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Quidge/chatconform/internal/config"
	"github.com/Quidge/chatconform/internal/logging"
)

var (
	// Version is set at build time
	Version = "dev"

	// Global flags
	configPath     string
	verbose        bool
	logLevel       string
	logFormat      string
	runtimeType    string
	baseImage      string
	keepContainers bool
)

var rootCmd = &cobra.Command{
	Use:   "chatconform",
	Short: "Run conformance scenarios against streaming chat-completion clients",
	Long: `chatconform checks chat-completion client implementations against model
servers running in local containers. Fixtures are provisioned once per
(base image, model) pair and their installed state is committed to a derived
image, so later runs start from it.

Set OLLAMA_BASE_URL to run against an already running server instead.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to "+config.ProjectConfigFilename+" (default: search upward from the current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging, including request and response bodies")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console, json)")
	rootCmd.PersistentFlags().StringVar(&runtimeType, "runtime", "", "override the container runtime (testcontainers or docker)")
	rootCmd.PersistentFlags().StringVar(&baseImage, "base-image", "", "override the model-server base image")
	rootCmd.PersistentFlags().BoolVar(&keepContainers, "keep-containers", false, "leave fixture containers running after the run")
}

// loadConfig merges the project file, the environment and the global flags.
func loadConfig() (config.Config, error) {
	flags := config.FlagOverrides{
		Runtime:        runtimeType,
		BaseImage:      baseImage,
		LogLevel:       logLevel,
		LogFormat:      logFormat,
		KeepContainers: keepContainers,
	}
	if verbose && flags.LogLevel == "" {
		flags.LogLevel = "debug"
	}
	return config.Load(configPath, flags)
}

// setup loads the configuration and builds the logger that writes to the
// command's error stream.
func setup(cmd *cobra.Command) (config.Config, zerolog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	log, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	return cfg, log, nil
}
