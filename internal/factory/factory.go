// Package factory builds client instances bound to model fixtures.
package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/Quidge/chatconform/internal/capability"
	"github.com/Quidge/chatconform/internal/client"
	"github.com/Quidge/chatconform/internal/fixture"
)

// Documented defaults.
const (
	DefaultBaseImage   = "ollama/ollama:latest"
	DefaultModel       = "llama3.1"
	DefaultVisionModel = "llama3.2-vision"
	DefaultCustomModel = "llama3.2"
)

// Role names a default fixture.
type Role string

const (
	RoleTools  Role = "tools"
	RoleVision Role = "vision"
	RoleCustom Role = "custom"
)

// Roles lists the roles whose fixtures are provisioned at startup.
var Roles = []Role{RoleTools, RoleVision}

// Options configures a Factory. Zero values fall back to the defaults above.
type Options struct {
	BaseImage      string
	DefaultModel   string
	Models         map[Role]string
	RequestTimeout time.Duration

	// Overrides adjusts a family's declared profile. They are applied once,
	// when the factory is built.
	Overrides map[string]capability.Override

	Logger zerolog.Logger
}

// Factory creates client instances. All entry points obtain fixtures through
// one registry.
type Factory struct {
	registry       *fixture.Registry
	baseImage      string
	defaultModel   string
	models         map[Role]string
	requestTimeout time.Duration
	profiles       map[string]capability.Profile
	log            zerolog.Logger
}

// New returns a factory over reg. An override for a family that is not
// registered is an error.
func New(reg *fixture.Registry, opts Options) (*Factory, error) {
	f := &Factory{
		registry:       reg,
		baseImage:      opts.BaseImage,
		defaultModel:   opts.DefaultModel,
		requestTimeout: opts.RequestTimeout,
		models: map[Role]string{
			RoleTools:  DefaultModel,
			RoleVision: DefaultVisionModel,
			RoleCustom: DefaultCustomModel,
		},
		profiles: make(map[string]capability.Profile),
		log:      opts.Logger,
	}
	if f.baseImage == "" {
		f.baseImage = DefaultBaseImage
	}
	if f.defaultModel == "" {
		f.defaultModel = DefaultModel
	}
	if f.requestTimeout == 0 {
		f.requestTimeout = client.DefaultRequestTimeout
	}
	for role, model := range opts.Models {
		if model != "" {
			f.models[role] = model
		}
	}

	for name, o := range opts.Overrides {
		fam, err := client.Lookup(name)
		if err != nil {
			return nil, err
		}
		p, err := fam.Profile.With(o)
		if err != nil {
			return nil, fmt.Errorf("failed to apply profile override: %w", err)
		}
		f.profiles[name] = p
	}
	return f, nil
}

// BaseImage returns the configured base image.
func (f *Factory) BaseImage() string { return f.baseImage }

// ModelFor returns the model provisioned for role.
func (f *Factory) ModelFor(role Role) (string, error) {
	model, ok := f.models[role]
	if !ok {
		return "", fmt.Errorf("unknown fixture role %q", role)
	}
	return model, nil
}

// Key returns the provisioning key for model on the configured base image.
func (f *Factory) Key(model string) fixture.Key {
	return fixture.Key{BaseImage: f.baseImage, Model: model}
}

// DefaultKeys returns the keys of the fixtures provisioned at startup.
func (f *Factory) DefaultKeys() []fixture.Key {
	seen := make(map[string]bool)
	var keys []fixture.Key
	for _, role := range Roles {
		model := f.models[role]
		if seen[model] {
			continue
		}
		seen[model] = true
		keys = append(keys, f.Key(model))
	}
	return keys
}

// Profile returns the effective profile for a family, with overrides applied.
func (f *Factory) Profile(family string) (capability.Profile, error) {
	if p, ok := f.profiles[family]; ok {
		return p, nil
	}
	fam, err := client.Lookup(family)
	if err != nil {
		return capability.Profile{}, err
	}
	return fam.Profile, nil
}

// Profiles returns the effective profile of every registered family.
func (f *Factory) Profiles() []capability.Profile {
	names := client.FamilyNames()
	out := make([]capability.Profile, 0, len(names))
	for _, name := range names {
		p, err := f.Profile(name)
		if err == nil {
			out = append(out, p)
		}
	}
	return out
}

// Create builds an instance of family for params, provisioning the fixture
// for the effective model on demand. When params omits the model name, the
// default model is injected into the bound parameters.
func (f *Factory) Create(ctx context.Context, family string, params client.Parameters) (*client.Instance, error) {
	fam, err := client.Lookup(family)
	if err != nil {
		return nil, err
	}
	profile, err := f.Profile(family)
	if err != nil {
		return nil, err
	}

	model := params.ModelName.OrElse(f.defaultModel)
	key := f.Key(model)

	handle, err := f.registry.GetOrCreate(ctx, key)
	if err != nil {
		return nil, err
	}

	params.ModelName = ldvalue.NewOptionalString(model)
	if params.Temperature == nil {
		params.Temperature = client.Float(0)
	}
	if params.Timeout == 0 {
		params.Timeout = f.requestTimeout
	}

	c, err := fam.New(client.Config{
		Endpoint:  handle.Endpoint,
		ModelName: model,
		Timeout:   params.Timeout,
		Logger: f.log.With().
			Str("family", family).
			Str("model", model).
			Logger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client for %s: %w", family, key, err)
	}

	f.log.Debug().
		Str("family", family).
		Str("model", model).
		Str("endpoint", handle.Endpoint).
		Str("source", string(handle.Source)).
		Msg("created instance")

	return client.NewInstance(c, params, profile, handle), nil
}

// Default builds an instance bound to the fixture for role. The tools and
// vision fixtures are the ones Registry.Start provisions up front.
func (f *Factory) Default(ctx context.Context, family string, role Role) (*client.Instance, error) {
	model, err := f.ModelFor(role)
	if err != nil {
		return nil, err
	}
	return f.Create(ctx, family, client.Parameters{ModelName: ldvalue.NewOptionalString(model)})
}
