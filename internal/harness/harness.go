// Package harness assembles a run from configuration: the state database,
// the container backend, the fixture registry and the model factory.
package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Quidge/chatconform/internal/backend"
	"github.com/Quidge/chatconform/internal/config"
	"github.com/Quidge/chatconform/internal/factory"
	"github.com/Quidge/chatconform/internal/fixture"
	"github.com/Quidge/chatconform/internal/state"

	// Register the built-in container runtimes and client families.
	_ "github.com/Quidge/chatconform/internal/backend/docker"
	_ "github.com/Quidge/chatconform/internal/backend/testcontainer"
	_ "github.com/Quidge/chatconform/internal/client/ollama"
	_ "github.com/Quidge/chatconform/internal/client/openaicompat"
)

// Harness owns everything one run needs. Build it with New, call Start to
// pre-provision the default fixtures and Close at the end of the run.
type Harness struct {
	Config   config.Config
	DB       *state.DB
	Registry *fixture.Registry
	Factory  *factory.Factory

	// Backend is nil when an external endpoint is configured.
	Backend backend.Backend

	log zerolog.Logger
}

// New builds a harness from cfg. No container is started until Start or the
// first factory call.
func New(cfg config.Config, log zerolog.Logger) (*Harness, error) {
	overrides, err := cfg.ProfileOverrides()
	if err != nil {
		return nil, err
	}

	db, err := state.Open(cfg.StateDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	h := &Harness{Config: cfg, DB: db, log: log}
	h.markInterrupted()

	var prov fixture.Provisioner
	if cfg.ExternalURL == "" {
		h.Backend, err = backend.Get(backend.BackendConfig{
			Type:   cfg.Runtime,
			Binary: cfg.Binary,
			Host:   cfg.Host,
			Logger: log,
		})
		if err != nil {
			db.Close()
			return nil, err
		}
		prov = fixture.NewContainerProvisioner(fixture.ContainerConfig{
			Backend:        h.Backend,
			BackendType:    cfg.Runtime,
			DB:             db,
			ReadinessPath:  cfg.ReadinessPath,
			SetupCommands:  cfg.SetupCommands(),
			Environment:    cfg.Env,
			KeepContainers: cfg.KeepContainers,
			Logger:         log,
		})
	}

	h.Registry = fixture.NewRegistry(prov, fixture.Options{
		ExternalURL:         cfg.ExternalURL,
		ProvisioningTimeout: cfg.ProvisioningTimeout,
		Logger:              log,
	})

	h.Factory, err = factory.New(h.Registry, factory.Options{
		BaseImage:    cfg.BaseImage,
		DefaultModel: cfg.DefaultModel,
		Models: map[factory.Role]string{
			factory.RoleTools:  cfg.Fixtures.Tools,
			factory.RoleVision: cfg.Fixtures.Vision,
			factory.RoleCustom: cfg.Fixtures.Custom,
		},
		RequestTimeout: cfg.RequestTimeout,
		Overrides:      overrides,
		Logger:         log,
	})
	if err != nil {
		h.Registry.Close(context.Background())
		db.Close()
		return nil, err
	}
	return h, nil
}

// markInterrupted fails records still provisioning after the provisioning
// limit. No live attempt can be that old, so they belong to a dead process.
func (h *Harness) markInterrupted() {
	limit := h.Config.ProvisioningTimeout
	if limit <= 0 {
		limit = fixture.DefaultProvisioningTimeout
	}
	n, err := h.DB.MarkStaleFixtures(time.Now().Add(-limit))
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to mark interrupted fixtures")
		return
	}
	if n > 0 {
		h.log.Info().Int64("count", n).Msg("marked interrupted fixture records as failed")
	}
}

// Start pre-provisions the default fixtures. The first failure is returned
// and the run should stop.
func (h *Harness) Start(ctx context.Context) error {
	return h.Registry.Start(ctx, h.Factory.DefaultKeys()...)
}

// Close stops every fixture and closes the state database.
func (h *Harness) Close(ctx context.Context) error {
	return errors.Join(h.Registry.Close(ctx), h.DB.Close())
}
