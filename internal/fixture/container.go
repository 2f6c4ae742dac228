package fixture

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"

	"github.com/Quidge/chatconform/internal/backend"
	"github.com/Quidge/chatconform/internal/state"
)

const (
	// DefaultPort is the port ollama serves on inside its container.
	DefaultPort = 11434

	// DefaultReadinessPath answers 200 once the ollama server is up.
	DefaultReadinessPath = "/"

	defaultReadinessInterval = time.Second
	readinessRequestTimeout  = 5 * time.Second
)

// ContainerConfig configures a ContainerProvisioner.
type ContainerConfig struct {
	// Backend runs the containers.
	Backend backend.Backend

	// BackendType is recorded in the state database.
	BackendType string

	// DB records derived images and provisioning attempts. Nil disables
	// recording.
	DB *state.DB

	// Port is the serving port inside the container.
	Port int

	// ReadinessPath is polled on the endpoint until it answers 200.
	ReadinessPath string

	// ReadinessInterval is the delay between readiness checks.
	ReadinessInterval time.Duration

	// PullCommand overrides the model pull command.
	PullCommand []string

	// SetupCommands run after the model is pulled and before the commit, so
	// their effects are part of the derived image.
	SetupCommands [][]string

	// Environment is set in every container.
	Environment map[string]string

	// KeepContainers leaves containers running when fixtures are stopped.
	KeepContainers bool

	Logger zerolog.Logger
}

// ContainerProvisioner starts model-serving containers. When a derived image
// for the exact (base image, model) pair exists it is started directly.
// Otherwise the base image is started, the model installed, and the result
// committed as the derived image so later runs take the fast path.
type ContainerProvisioner struct {
	cfg   ContainerConfig
	http  *resty.Client
	log   zerolog.Logger
	mu    sync.Mutex
	owned map[string]ownedContainer // by endpoint
}

type ownedContainer struct {
	containerID string
	recordID    string
}

// NewContainerProvisioner returns a provisioner running on cfg.Backend.
func NewContainerProvisioner(cfg ContainerConfig) *ContainerProvisioner {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.ReadinessPath == "" {
		cfg.ReadinessPath = DefaultReadinessPath
	}
	if cfg.ReadinessInterval == 0 {
		cfg.ReadinessInterval = defaultReadinessInterval
	}
	return &ContainerProvisioner{
		cfg:   cfg,
		http:  resty.New().SetTimeout(readinessRequestTimeout),
		log:   cfg.Logger.With().Str("component", "provisioner").Logger(),
		owned: make(map[string]ownedContainer),
	}
}

var _ Provisioner = (*ContainerProvisioner)(nil)

// Start makes key ready. On any failure the container it started is removed
// and a *ProvisioningError returned.
func (p *ContainerProvisioner) Start(ctx context.Context, key Key) (Handle, error) {
	start := time.Now()
	rec := p.beginRecord(key, start)

	h, containerID, err := p.start(ctx, key)
	elapsed := time.Since(start)

	if err != nil {
		if containerID != "" {
			// ctx may already be done; cleanup must still run.
			cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
			if derr := p.cfg.Backend.Destroy(cleanupCtx, containerID); derr != nil {
				p.log.Warn().Err(derr).Str("container", containerID).Msg("failed to remove container after provisioning failure")
			}
			cancel()
		}
		p.finishRecord(rec, containerID, Handle{}, state.StatusFailed, err, elapsed)
		return Handle{}, &ProvisioningError{Key: key, Elapsed: elapsed, Err: err}
	}

	p.finishRecord(rec, containerID, h, state.StatusReady, nil, elapsed)

	p.mu.Lock()
	p.owned[h.Endpoint] = ownedContainer{containerID: containerID, recordID: recordID(rec)}
	p.mu.Unlock()

	return h, nil
}

// start does the work of Start and returns the container it created, if any,
// so the caller can clean up.
func (p *ContainerProvisioner) start(ctx context.Context, key Key) (Handle, string, error) {
	be := p.cfg.Backend
	derived := key.DerivedImage()
	log := p.log.With().Str("key", key.String()).Logger()

	cached, err := be.ImageExists(ctx, derived)
	if err != nil {
		return Handle{}, "", err
	}

	image, source := key.BaseImage, SourceBuilt
	if cached {
		image, source = derived, SourceCached
		log.Info().Str("image", derived).Msg("derived image found, skipping model install")
	}

	containerID, err := be.Run(ctx, &backend.RunConfig{
		Image: image,
		Port:  p.cfg.Port,
		Labels: map[string]string{
			"chatconform.base_image": key.BaseImage,
			"chatconform.model":      key.Model,
		},
		Environment: p.cfg.Environment,
	})
	if err != nil {
		return Handle{}, "", err
	}

	endpoint, err := be.Endpoint(ctx, containerID, p.cfg.Port)
	if err != nil {
		return Handle{}, containerID, err
	}

	if err := p.waitReady(ctx, endpoint); err != nil {
		return Handle{}, containerID, err
	}

	if cached {
		if p.cfg.DB != nil {
			if err := p.cfg.DB.TouchImage(key.BaseImage, key.Model, time.Now()); err != nil && !errors.Is(err, state.ErrImageNotFound) {
				log.Warn().Err(err).Msg("failed to update image record")
			}
		}
	} else {
		log.Info().Str("model", key.Model).Msg("installing model")
		setup := &backend.SetupConfig{
			Models:        []string{key.Model},
			PullCommand:   p.cfg.PullCommand,
			SetupCommands: p.cfg.SetupCommands,
		}
		if err := be.NewSetupRunner(containerID).Run(ctx, setup); err != nil {
			return Handle{}, containerID, err
		}
		if err := be.Commit(ctx, containerID, derived); err != nil {
			return Handle{}, containerID, err
		}
		if p.cfg.DB != nil {
			if err := p.cfg.DB.RecordImage(&state.Image{BaseImage: key.BaseImage, Model: key.Model, Image: derived}); err != nil {
				log.Warn().Err(err).Msg("failed to record derived image")
			}
		}
		log.Info().Str("image", derived).Msg("derived image committed")
	}

	return Handle{Key: key, Endpoint: endpoint, Ready: true, Source: source}, containerID, nil
}

// waitReady polls endpoint until it answers 200 or ctx ends.
func (p *ContainerProvisioner) waitReady(ctx context.Context, endpoint string) error {
	url := endpoint + p.cfg.ReadinessPath
	ticker := time.NewTicker(p.cfg.ReadinessInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		resp, err := p.http.R().SetContext(ctx).Get(url)
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode() == http.StatusOK:
			return nil
		default:
			lastErr = fmt.Errorf("status %d", resp.StatusCode())
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("endpoint %s never became ready (last error: %v): %w", url, lastErr, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Stop removes the container behind h unless containers are kept. Handles
// this provisioner did not create are ignored.
func (p *ContainerProvisioner) Stop(ctx context.Context, h Handle) error {
	p.mu.Lock()
	owned, ok := p.owned[h.Endpoint]
	delete(p.owned, h.Endpoint)
	p.mu.Unlock()
	if !ok {
		return nil
	}

	if p.cfg.KeepContainers {
		p.log.Info().Str("container", owned.containerID).Str("endpoint", h.Endpoint).Msg("keeping container")
		return nil
	}

	if err := p.cfg.Backend.Destroy(ctx, owned.containerID); err != nil {
		return err
	}

	if p.cfg.DB != nil && owned.recordID != "" {
		rec, err := p.cfg.DB.GetFixture(owned.recordID)
		if err == nil {
			rec.Status = state.StatusRemoved
			err = p.cfg.DB.UpdateFixture(rec)
		}
		if err != nil {
			p.log.Warn().Err(err).Msg("failed to update fixture record")
		}
	}
	return nil
}

// beginRecord writes a provisioning row. Recording is best effort.
func (p *ContainerProvisioner) beginRecord(key Key, start time.Time) *state.Fixture {
	if p.cfg.DB == nil {
		return nil
	}
	id, err := state.GenerateID()
	if err != nil {
		p.log.Warn().Err(err).Msg("failed to record fixture")
		return nil
	}
	rec := &state.Fixture{
		ID:        id,
		BaseImage: key.BaseImage,
		Model:     key.Model,
		Backend:   p.cfg.BackendType,
		Status:    state.StatusProvisioning,
		StartedAt: start,
	}
	if err := p.cfg.DB.CreateFixture(rec); err != nil {
		p.log.Warn().Err(err).Msg("failed to record fixture")
		return nil
	}
	return rec
}

func (p *ContainerProvisioner) finishRecord(rec *state.Fixture, containerID string, h Handle, status state.FixtureStatus, cause error, elapsed time.Duration) {
	if rec == nil {
		return
	}
	rec.ContainerID = containerID
	rec.Endpoint = h.Endpoint
	rec.Source = string(h.Source)
	rec.Status = status
	rec.Elapsed = elapsed
	if cause != nil {
		rec.Error = cause.Error()
	}
	if err := p.cfg.DB.UpdateFixture(rec); err != nil {
		p.log.Warn().Err(err).Msg("failed to update fixture record")
	}
}

func recordID(rec *state.Fixture) string {
	if rec == nil {
		return ""
	}
	return rec.ID
}
