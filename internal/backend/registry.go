package backend

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// BackendConfig contains configuration needed to initialize a backend.
type BackendConfig struct {
	// Type is the backend type (e.g., "docker").
	Type string

	// Binary overrides the runtime CLI executable. Empty means the default.
	Binary string

	// Host is the hostname used to reach published ports.
	Host string

	// Logger receives command-level logs.
	Logger zerolog.Logger
}

// BackendFactory is a function that creates a new backend instance.
type BackendFactory func(cfg BackendConfig) (Backend, error)

// registry holds the registered backend factories.
var registry = make(map[string]BackendFactory)

// Register registers a backend factory for the given type.
// This should be called during package init. Registering a type twice panics.
func Register(backendType string, factory BackendFactory) {
	if _, dup := registry[backendType]; dup {
		panic(fmt.Sprintf("backend type %q already registered", backendType))
	}
	registry[backendType] = factory
}

// Get returns a new backend instance for the given configuration.
// Returns an error if the backend type is not registered.
func Get(cfg BackendConfig) (Backend, error) {
	factory, ok := registry[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
	return factory(cfg)
}

// RegisteredTypes returns a sorted list of all registered backend types.
func RegisteredTypes() []string {
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
