package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectConfig represents the project configuration loaded from
// .chatconform.yaml.
type ProjectConfig struct {
	Version        int                      `yaml:"version"`
	Runtime        string                   `yaml:"runtime"`
	Binary         string                   `yaml:"binary"`
	Host           string                   `yaml:"host"`
	BaseImage      string                   `yaml:"base_image"`
	DefaultModel   string                   `yaml:"default_model"`
	Fixtures       FixturesConfig           `yaml:"fixtures"`
	ReadinessPath  string                   `yaml:"readiness_path"`
	KeepContainers bool                     `yaml:"keep_containers"`
	Timeouts       Timeouts                 `yaml:"timeouts"`
	Env            map[string]EnvVar        `yaml:"env"`
	Setup          []string                 `yaml:"setup"`
	StateDB        string                   `yaml:"state_db"`
	Profiles       map[string]ProfileConfig `yaml:"profiles"`
}

// FixturesConfig names the model behind each default fixture.
type FixturesConfig struct {
	Tools  string `yaml:"tools"`
	Vision string `yaml:"vision"`
	Custom string `yaml:"custom"`
}

// Timeouts bounds provisioning and requests. Values are Go durations
// ("30m", "180s").
type Timeouts struct {
	Provisioning time.Duration `yaml:"provisioning"`
	Request      time.Duration `yaml:"request"`
}

// EnvVar represents a container environment variable value.
// It can be either a literal string or a from_file reference.
type EnvVar struct {
	Value    string // Literal value (after expansion)
	FromFile string // Path to file containing value
}

// UnmarshalYAML implements custom unmarshaling for EnvVar to handle
// both string values and {from_file: path} objects.
func (e *EnvVar) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err == nil {
		e.Value = str
		return nil
	}

	var obj struct {
		FromFile string `yaml:"from_file"`
	}
	if err := value.Decode(&obj); err != nil {
		return err
	}
	e.FromFile = obj.FromFile
	return nil
}

// ProfileConfig adjusts one family's declared capability profile.
type ProfileConfig struct {
	Capabilities map[string]SupportConfig `yaml:"capabilities"`
	Assertions   *AssertionsConfig        `yaml:"assertions"`
}

// SupportConfig declares one capability. Tier is hard_skip or soft_reject
// and only matters when Supported is false.
type SupportConfig struct {
	Supported bool   `yaml:"supported"`
	Tier      string `yaml:"tier"`
}

// AssertionsConfig toggles the optional response assertions.
type AssertionsConfig struct {
	ResponseID           bool `yaml:"response_id"`
	FinishReason         bool `yaml:"finish_reason"`
	PartialResponseCount bool `yaml:"partial_response_count"`
}

// EnvConfig holds settings read from the process environment.
type EnvConfig struct {
	OllamaBaseURL       string        `env:"OLLAMA_BASE_URL"`
	LogLevel            string        `env:"CHATCONFORM_LOG_LEVEL"`
	LogFormat           string        `env:"CHATCONFORM_LOG_FORMAT"`
	StateDB             string        `env:"CHATCONFORM_STATE_DB"`
	ProvisioningTimeout time.Duration `env:"CHATCONFORM_PROVISIONING_TIMEOUT"`
	RequestTimeout      time.Duration `env:"CHATCONFORM_REQUEST_TIMEOUT"`
}

// Config represents the final merged configuration after applying
// precedence rules (defaults → project → environment → flags).
type Config struct {
	// ConfigPath is the project file that was loaded, if any.
	ConfigPath string

	Runtime        string
	Binary         string
	Host           string
	BaseImage      string
	DefaultModel   string
	Fixtures       FixturesConfig
	ReadinessPath  string
	KeepContainers bool

	ProvisioningTimeout time.Duration
	RequestTimeout      time.Duration

	// Env is the expanded container environment.
	Env map[string]string

	// Setup holds shell commands run in the container after the model pull.
	Setup []string

	// StateDB is the expanded state database path. Empty means the default.
	StateDB string

	// ExternalURL disables provisioning when set.
	ExternalURL string

	LogLevel  string
	LogFormat string

	Profiles map[string]ProfileConfig
}

// DefaultProjectConfig returns a ProjectConfig with sensible defaults.
func DefaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version:      1,
		Runtime:      DefaultRuntime,
		Host:         "localhost",
		BaseImage:    DefaultBaseImage,
		DefaultModel: DefaultModel,
		Fixtures: FixturesConfig{
			Tools:  DefaultModel,
			Vision: DefaultVisionModel,
			Custom: DefaultCustomModel,
		},
		Timeouts: Timeouts{
			Provisioning: DefaultProvisioningTimeout,
			Request:      DefaultRequestTimeout,
		},
	}
}
