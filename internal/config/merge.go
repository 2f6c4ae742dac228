package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Quidge/chatconform/internal/pathutil"
)

// FlagOverrides contains CLI flag values that override configuration.
type FlagOverrides struct {
	Runtime        string
	BaseImage      string
	LogLevel       string
	LogFormat      string
	KeepContainers bool
}

// Merge combines project config, environment and CLI flag overrides
// following the precedence order: defaults → project → environment → flags.
func Merge(project ProjectConfig, envCfg EnvConfig, flags FlagOverrides) (Config, error) {
	merged := Config{
		Runtime:             project.Runtime,
		Binary:              project.Binary,
		Host:                project.Host,
		BaseImage:           project.BaseImage,
		DefaultModel:        project.DefaultModel,
		Fixtures:            project.Fixtures,
		ReadinessPath:       project.ReadinessPath,
		KeepContainers:      project.KeepContainers,
		ProvisioningTimeout: project.Timeouts.Provisioning,
		RequestTimeout:      project.Timeouts.Request,
		StateDB:             project.StateDB,
		Profiles:            project.Profiles,
	}

	// Environment overrides the project file
	merged.ExternalURL = envCfg.OllamaBaseURL
	merged.LogLevel = envCfg.LogLevel
	merged.LogFormat = envCfg.LogFormat
	if envCfg.StateDB != "" {
		merged.StateDB = envCfg.StateDB
	}
	if envCfg.ProvisioningTimeout != 0 {
		merged.ProvisioningTimeout = envCfg.ProvisioningTimeout
	}
	if envCfg.RequestTimeout != 0 {
		merged.RequestTimeout = envCfg.RequestTimeout
	}

	// CLI flags override everything
	if flags.Runtime != "" {
		merged.Runtime = flags.Runtime
	}
	if flags.BaseImage != "" {
		merged.BaseImage = flags.BaseImage
	}
	if flags.LogLevel != "" {
		merged.LogLevel = flags.LogLevel
	}
	if flags.LogFormat != "" {
		merged.LogFormat = flags.LogFormat
	}
	if flags.KeepContainers {
		merged.KeepContainers = true
	}

	if merged.ProvisioningTimeout < 0 || merged.RequestTimeout < 0 {
		return Config{}, fmt.Errorf("timeouts must not be negative")
	}

	var err error
	merged.StateDB, err = pathutil.ExpandTilde(ExpandEnvVars(merged.StateDB))
	if err != nil {
		return Config{}, fmt.Errorf("failed to expand state_db: %w", err)
	}

	if project.Env != nil {
		merged.Env, err = ExpandEnvMap(project.Env)
		if err != nil {
			return Config{}, fmt.Errorf("failed to expand environment variables: %w", err)
		}
	}
	for _, cmd := range project.Setup {
		merged.Setup = append(merged.Setup, ExpandEnvVars(cmd))
	}

	if _, err := merged.ProfileOverrides(); err != nil {
		return Config{}, err
	}

	return merged, nil
}

// Load finds and loads the project configuration, reads the environment and
// merges both with the provided flag overrides. An empty configPath searches
// upward from the current directory.
func Load(configPath string, flags FlagOverrides) (Config, error) {
	if configPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("failed to get working directory: %w", err)
		}
		configPath, err = FindProjectConfig(cwd)
		if err != nil {
			return Config{}, err
		}
	}

	project := DefaultProjectConfig()
	if configPath != "" {
		var err error
		project, err = LoadProjectConfig(configPath)
		if err != nil {
			return Config{}, fmt.Errorf("failed to load project config: %w", err)
		}
	}

	envCfg, err := LoadEnv()
	if err != nil {
		return Config{}, err
	}

	merged, err := Merge(project, envCfg, flags)
	if err != nil {
		return Config{}, err
	}
	merged.ConfigPath = configPath
	if configPath != "" && envCfg.StateDB == "" {
		// A relative state_db is relative to the config file.
		merged.StateDB, err = pathutil.Resolve(filepath.Dir(configPath), merged.StateDB)
		if err != nil {
			return Config{}, err
		}
	}
	return merged, nil
}
