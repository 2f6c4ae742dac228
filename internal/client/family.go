// Package client binds chat-completion client implementations to fixture
// endpoints. Each implementation family registers itself at init with its
// constructor and its capability profile.
package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/Quidge/chatconform/internal/capability"
)

// Client is the surface the harness needs from a bound implementation.
type Client interface {
	// Family returns the implementation family name.
	Family() string

	// BaseURL returns the URL requests are sent to.
	BaseURL() string

	// ModelName returns the model the client is bound to.
	ModelName() string

	// ListModels returns the models the endpoint serves.
	ListModels(ctx context.Context) ([]string, error)

	// CheckParameters fails closed with an UnsupportedCapabilityError for a
	// parameter set the implementation cannot honor.
	CheckParameters(p Parameters) error
}

// Config contains what a family needs to construct a bound client.
type Config struct {
	// Endpoint is the fixture base URL.
	Endpoint  string
	ModelName string
	Timeout   time.Duration
	Logger    zerolog.Logger
}

// Factory constructs a client for one family.
type Factory func(cfg Config) (Client, error)

// Family is one registered implementation.
type Family struct {
	Name    string
	New     Factory
	Profile capability.Profile
}

// ErrUnknownImplementation is the sentinel wrapped by UnknownImplementationError.
var ErrUnknownImplementation = errors.New("unknown implementation family")

// UnknownImplementationError is returned for a family that is not registered.
type UnknownImplementationError struct {
	Family string
}

func (e *UnknownImplementationError) Error() string {
	return fmt.Sprintf("%s: %q (registered: %v)", ErrUnknownImplementation.Error(), e.Family, FamilyNames())
}

func (e *UnknownImplementationError) Unwrap() error {
	return ErrUnknownImplementation
}

// families holds the registered implementations.
var families = make(map[string]Family)

// Register registers a family. This should be called during package init.
// Registering a name twice panics.
func Register(f Family) {
	if f.Name == "" || f.New == nil {
		panic("client family requires a name and a constructor")
	}
	if f.Profile.Family() != f.Name {
		panic(fmt.Sprintf("client family %q registered with profile for %q", f.Name, f.Profile.Family()))
	}
	if _, dup := families[f.Name]; dup {
		panic(fmt.Sprintf("client family %q already registered", f.Name))
	}
	families[f.Name] = f
}

// Lookup returns the registered family with the given name.
func Lookup(name string) (Family, error) {
	f, ok := families[name]
	if !ok {
		return Family{}, &UnknownImplementationError{Family: name}
	}
	return f, nil
}

// Families returns all registered families ordered by name.
func Families() []Family {
	out := make([]Family, 0, len(families))
	for _, f := range families {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FamilyNames returns the sorted names of all registered families.
func FamilyNames() []string {
	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
