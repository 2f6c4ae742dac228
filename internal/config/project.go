package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectConfigFilename is the name of the project configuration file.
const ProjectConfigFilename = ".chatconform.yaml"

// FindProjectConfig searches for a .chatconform.yaml file starting from the
// given directory and walking up to parent directories until it finds one or
// reaches the filesystem root. It returns "" when there is none.
func FindProjectConfig(startDir string) (string, error) {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ProjectConfigFilename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// LoadProjectConfig loads the project configuration from configPath.
// If the file doesn't exist, returns default configuration (not an error).
// If the file exists but is invalid YAML or has unknown keys, returns an error.
func LoadProjectConfig(configPath string) (ProjectConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultProjectConfig(), nil
		}
		return ProjectConfig{}, fmt.Errorf("failed to read project config: %w", err)
	}

	var cfg ProjectConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return ProjectConfig{}, fmt.Errorf("invalid YAML in %s: %w", configPath, err)
	}

	return applyProjectDefaults(cfg), nil
}

// applyProjectDefaults fills in missing fields with default values.
func applyProjectDefaults(cfg ProjectConfig) ProjectConfig {
	defaults := DefaultProjectConfig()

	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}
	if cfg.Runtime == "" {
		cfg.Runtime = defaults.Runtime
	}
	if cfg.Host == "" {
		cfg.Host = defaults.Host
	}
	if cfg.BaseImage == "" {
		cfg.BaseImage = defaults.BaseImage
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaults.DefaultModel
	}
	if cfg.Fixtures.Tools == "" {
		cfg.Fixtures.Tools = cfg.DefaultModel
	}
	if cfg.Fixtures.Vision == "" {
		cfg.Fixtures.Vision = defaults.Fixtures.Vision
	}
	if cfg.Fixtures.Custom == "" {
		cfg.Fixtures.Custom = defaults.Fixtures.Custom
	}
	if cfg.Timeouts.Provisioning == 0 {
		cfg.Timeouts.Provisioning = defaults.Timeouts.Provisioning
	}
	if cfg.Timeouts.Request == 0 {
		cfg.Timeouts.Request = defaults.Timeouts.Request
	}

	return cfg
}

// WriteProjectConfig writes raw template content to configPath. It refuses
// to overwrite an existing file unless force is set.
func WriteProjectConfig(configPath, content string, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(configPath, flags, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
		}
		return fmt.Errorf("failed to write config: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	return f.Close()
}

// ProjectConfigExists checks if a .chatconform.yaml file exists in the given directory.
func ProjectConfigExists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ProjectConfigFilename))
	return err == nil
}
