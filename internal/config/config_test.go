package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Quidge/chatconform/internal/capability"
)

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "testvalue")
	t.Setenv("ANOTHER_VAR", "another")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no vars", "plain text", "plain text"},
		{"single var", "${TEST_VAR}", "testvalue"},
		{"var in text", "prefix-${TEST_VAR}-suffix", "prefix-testvalue-suffix"},
		{"multiple vars", "${TEST_VAR}:${ANOTHER_VAR}", "testvalue:another"},
		{"missing var", "${NONEXISTENT}", ""},
		{"default value", "${NONEXISTENT:-default}", "default"},
		{"default with set var", "${TEST_VAR:-default}", "testvalue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExpandEnvVars(tt.input)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestReadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "secret")
	if err := os.WriteFile(testFile, []byte("secret-value\n"), 0644); err != nil {
		t.Fatal(err)
	}

	value, err := ReadFromFile(testFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "secret-value" {
		t.Errorf("expected %q, got %q", "secret-value", value)
	}

	_, err = ReadFromFile(filepath.Join(tmpDir, "nonexistent"))
	if err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestFindProjectConfig(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	found, err := FindProjectConfig(nested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found != "" && strings.HasPrefix(found, root) {
		t.Errorf("expected no config under %s, got %s", root, found)
	}

	configPath := filepath.Join(root, ProjectConfigFilename)
	if err := os.WriteFile(configPath, []byte("version: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	found, err = FindProjectConfig(nested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found != configPath {
		t.Errorf("expected %s, got %s", configPath, found)
	}
	if !ProjectConfigExists(root) {
		t.Error("expected ProjectConfigExists to be true")
	}
}

func TestLoadProjectConfig(t *testing.T) {
	t.Run("missing config returns defaults", func(t *testing.T) {
		cfg, err := LoadProjectConfig("/nonexistent/path/.chatconform.yaml")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Version != 1 {
			t.Errorf("expected version 1, got %d", cfg.Version)
		}
		if cfg.BaseImage != "ollama/ollama:latest" {
			t.Errorf("expected base_image 'ollama/ollama:latest', got %q", cfg.BaseImage)
		}
		if cfg.Fixtures.Vision != "llama3.2-vision" {
			t.Errorf("expected vision fixture 'llama3.2-vision', got %q", cfg.Fixtures.Vision)
		}
	})

	t.Run("valid config parses correctly", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), ProjectConfigFilename)

		content := `version: 1
runtime: docker
base_image: ollama/ollama:0.5.7
default_model: qwen2.5
fixtures:
  vision: llava
keep_containers: true
timeouts:
  provisioning: 45m
  request: 90s
env:
  OLLAMA_KEEP_ALIVE: "-1"
  HF_TOKEN:
    from_file: ~/.secrets/hf
setup:
  - ollama show qwen2.5
profiles:
  openai:
    capabilities:
      json_schema:
        supported: true
    assertions:
      finish_reason: true
`
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadProjectConfig(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.BaseImage != "ollama/ollama:0.5.7" {
			t.Errorf("expected base_image 'ollama/ollama:0.5.7', got %q", cfg.BaseImage)
		}
		if cfg.Fixtures.Tools != "qwen2.5" {
			t.Errorf("expected tools fixture to follow default_model, got %q", cfg.Fixtures.Tools)
		}
		if cfg.Fixtures.Vision != "llava" {
			t.Errorf("expected vision fixture 'llava', got %q", cfg.Fixtures.Vision)
		}
		if cfg.Fixtures.Custom != "llama3.2" {
			t.Errorf("expected custom fixture default 'llama3.2', got %q", cfg.Fixtures.Custom)
		}
		if !cfg.KeepContainers {
			t.Error("expected keep_containers to be true")
		}
		if cfg.Timeouts.Provisioning != 45*time.Minute {
			t.Errorf("expected provisioning timeout 45m, got %s", cfg.Timeouts.Provisioning)
		}
		if cfg.Timeouts.Request != 90*time.Second {
			t.Errorf("expected request timeout 90s, got %s", cfg.Timeouts.Request)
		}
		if cfg.Env["OLLAMA_KEEP_ALIVE"].Value != "-1" {
			t.Errorf("expected OLLAMA_KEEP_ALIVE '-1', got %q", cfg.Env["OLLAMA_KEEP_ALIVE"].Value)
		}
		if cfg.Env["HF_TOKEN"].FromFile != "~/.secrets/hf" {
			t.Errorf("expected HF_TOKEN from_file '~/.secrets/hf', got %q", cfg.Env["HF_TOKEN"].FromFile)
		}
		if !cfg.Profiles["openai"].Capabilities["json_schema"].Supported {
			t.Error("expected openai json_schema override")
		}
	})

	t.Run("invalid yaml returns error", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), ProjectConfigFilename)
		if err := os.WriteFile(configPath, []byte("version: 1\ninvalid: [yaml: syntax"), 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := LoadProjectConfig(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("unknown key returns error", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), ProjectConfigFilename)
		if err := os.WriteFile(configPath, []byte("version: 1\nbase_imgae: ollama/ollama\n"), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := LoadProjectConfig(configPath)
		if err == nil || !strings.Contains(err.Error(), "base_imgae") {
			t.Errorf("expected error naming the unknown key, got %v", err)
		}
	})

	t.Run("empty file returns defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), ProjectConfigFilename)
		if err := os.WriteFile(configPath, nil, 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadProjectConfig(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Runtime != "testcontainers" {
			t.Errorf("expected runtime 'testcontainers', got %q", cfg.Runtime)
		}
	})

	t.Run("templates parse", func(t *testing.T) {
		for name, tmpl := range map[string]string{"full": ProjectConfigTemplate, "minimal": ProjectConfigMinimalTemplate} {
			configPath := filepath.Join(t.TempDir(), ProjectConfigFilename)
			if err := os.WriteFile(configPath, []byte(tmpl), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadProjectConfig(configPath); err != nil {
				t.Errorf("%s template: unexpected error: %v", name, err)
			}
		}
	})
}

func TestLoadEnvFrom(t *testing.T) {
	cfg, err := LoadEnvFrom(map[string]string{
		"OLLAMA_BASE_URL":                  "http://ollama.internal:11434",
		"CHATCONFORM_LOG_LEVEL":            "debug",
		"CHATCONFORM_PROVISIONING_TIMEOUT": "10m",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OllamaBaseURL != "http://ollama.internal:11434" {
		t.Errorf("expected OLLAMA_BASE_URL, got %q", cfg.OllamaBaseURL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %q", cfg.LogLevel)
	}
	if cfg.ProvisioningTimeout != 10*time.Minute {
		t.Errorf("expected provisioning timeout 10m, got %s", cfg.ProvisioningTimeout)
	}

	if _, err := LoadEnvFrom(map[string]string{"CHATCONFORM_REQUEST_TIMEOUT": "soon"}); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestMerge(t *testing.T) {
	project := DefaultProjectConfig()
	project.KeepContainers = false
	project.StateDB = "/var/lib/chatconform/state.db"

	t.Run("project values pass through", func(t *testing.T) {
		merged, err := Merge(project, EnvConfig{}, FlagOverrides{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if merged.Runtime != "testcontainers" {
			t.Errorf("expected runtime 'testcontainers', got %q", merged.Runtime)
		}
		if merged.ExternalURL != "" {
			t.Errorf("expected no external URL, got %q", merged.ExternalURL)
		}
		if merged.ProvisioningTimeout != DefaultProvisioningTimeout {
			t.Errorf("expected default provisioning timeout, got %s", merged.ProvisioningTimeout)
		}
		if merged.StateDB != "/var/lib/chatconform/state.db" {
			t.Errorf("expected state db from project, got %q", merged.StateDB)
		}
	})

	t.Run("environment overrides project", func(t *testing.T) {
		merged, err := Merge(project, EnvConfig{
			OllamaBaseURL:  "http://ollama.internal:11434",
			StateDB:        "/tmp/state.db",
			RequestTimeout: 30 * time.Second,
		}, FlagOverrides{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if merged.ExternalURL != "http://ollama.internal:11434" {
			t.Errorf("expected external URL from environment, got %q", merged.ExternalURL)
		}
		if merged.StateDB != "/tmp/state.db" {
			t.Errorf("expected state db from environment, got %q", merged.StateDB)
		}
		if merged.RequestTimeout != 30*time.Second {
			t.Errorf("expected request timeout 30s, got %s", merged.RequestTimeout)
		}
	})

	t.Run("flags override everything", func(t *testing.T) {
		merged, err := Merge(project, EnvConfig{LogLevel: "info"}, FlagOverrides{
			BaseImage:      "ollama/ollama:0.5.7",
			LogLevel:       "debug",
			KeepContainers: true,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if merged.BaseImage != "ollama/ollama:0.5.7" {
			t.Errorf("expected base image from flag, got %q", merged.BaseImage)
		}
		if merged.LogLevel != "debug" {
			t.Errorf("expected log level from flag, got %q", merged.LogLevel)
		}
		if !merged.KeepContainers {
			t.Error("expected keep containers from flag")
		}
	})

	t.Run("env and setup are expanded", func(t *testing.T) {
		t.Setenv("ORIGINS", "*")
		p := project
		p.Env = map[string]EnvVar{"OLLAMA_ORIGINS": {Value: "${ORIGINS}"}}
		p.Setup = []string{"echo ${ORIGINS:-none}"}

		merged, err := Merge(p, EnvConfig{}, FlagOverrides{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if merged.Env["OLLAMA_ORIGINS"] != "*" {
			t.Errorf("expected expanded env, got %q", merged.Env["OLLAMA_ORIGINS"])
		}
		cmds := merged.SetupCommands()
		if len(cmds) != 1 || cmds[0][2] != "echo *" {
			t.Errorf("expected expanded setup command, got %v", cmds)
		}
	})

	t.Run("invalid profile is rejected", func(t *testing.T) {
		p := project
		p.Profiles = map[string]ProfileConfig{
			"openai": {Capabilities: map[string]SupportConfig{"telepathy": {Supported: true}}},
		}
		if _, err := Merge(p, EnvConfig{}, FlagOverrides{}); err == nil {
			t.Error("expected error for unknown capability")
		}
	})
}

func TestProfileOverrides(t *testing.T) {
	cfg := Config{Profiles: map[string]ProfileConfig{
		"openai": {
			Capabilities: map[string]SupportConfig{
				"json_schema":            {Supported: true},
				"tool_choice_required":   {Tier: "soft_reject"},
				"multiple_images_base64": {},
			},
			Assertions: &AssertionsConfig{FinishReason: true},
		},
	}}

	overrides, err := cfg.ProfileOverrides()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o := overrides["openai"]
	if !o.Capabilities[capability.JSONSchema].Supported {
		t.Error("expected json_schema supported")
	}
	if o.Capabilities[capability.ToolChoiceRequired].Tier != capability.TierSoftReject {
		t.Errorf("expected soft_reject tier, got %q", o.Capabilities[capability.ToolChoiceRequired].Tier)
	}
	if o.Capabilities[capability.MultipleImagesBase64].Tier != capability.TierHardSkip {
		t.Errorf("expected empty tier to mean hard_skip, got %q", o.Capabilities[capability.MultipleImagesBase64].Tier)
	}
	if o.Assertions == nil || !o.Assertions.FinishReason {
		t.Error("expected finish_reason assertion")
	}

	cfg.Profiles["openai"].Capabilities["json_schema"] = SupportConfig{Tier: "maybe"}
	if _, err := cfg.ProfileOverrides(); err == nil {
		t.Error("expected error for invalid tier")
	}
}

func TestWriteProjectConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ProjectConfigFilename)

	if err := WriteProjectConfig(configPath, ProjectConfigMinimalTemplate, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := WriteProjectConfig(configPath, ProjectConfigTemplate, false); err == nil {
		t.Error("expected error when the file exists")
	}
	if err := WriteProjectConfig(configPath, ProjectConfigTemplate, true); err != nil {
		t.Fatalf("unexpected error with force: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != ProjectConfigTemplate {
		t.Error("expected file to hold the full template")
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "")
	t.Setenv("CHATCONFORM_STATE_DB", "")

	dir := t.TempDir()
	configPath := filepath.Join(dir, ProjectConfigFilename)
	content := "version: 1\nstate_db: .chatconform/state.db\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath, FlagOverrides{Runtime: "docker"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ConfigPath != configPath {
		t.Errorf("expected config path %s, got %s", configPath, cfg.ConfigPath)
	}
	if want := filepath.Join(dir, ".chatconform", "state.db"); cfg.StateDB != want {
		t.Errorf("expected state db %s, got %s", want, cfg.StateDB)
	}
	if cfg.ExternalURL != "" {
		t.Errorf("expected no external URL, got %q", cfg.ExternalURL)
	}

	t.Setenv("OLLAMA_BASE_URL", "http://ollama.internal:11434")
	cfg, err = Load(configPath, FlagOverrides{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ExternalURL != "http://ollama.internal:11434" {
		t.Errorf("expected external URL from environment, got %q", cfg.ExternalURL)
	}
}
