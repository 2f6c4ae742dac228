// Package testcontainer implements the default chatconform runtime on top of
// testcontainers-go. It talks to the docker engine API directly, so no CLI
// has to be installed, and containers it starts are reaped by the
// testcontainers session when the process exits.
//
// Key characteristics:
//   - Run blocks until the serving port accepts connections
//   - Every container carries the chatconform.managed label
//   - Derived images are committed into the engine's local image store
//
// Containers started by another process can be listed, inspected and
// destroyed, but Exec and Endpoint only work on containers this backend
// started.
package testcontainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	tcexec "github.com/testcontainers/testcontainers-go/exec"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Quidge/chatconform/internal/backend"
)

const (
	// BackendType is the identifier for this backend type.
	BackendType = "testcontainers"

	// StartupTimeout bounds how long Run waits for the serving port.
	StartupTimeout = 2 * time.Minute
)

// Backend implements backend.Backend with testcontainers-go.
type Backend struct {
	host string
	log  zerolog.Logger

	mu         sync.Mutex
	containers map[string]testcontainers.Container

	clientOnce sync.Once
	client     *testcontainers.DockerClient
	clientErr  error
}

// New creates a new testcontainers backend. The engine connection is opened
// on first use.
func New(cfg backend.BackendConfig) (backend.Backend, error) {
	return &Backend{
		host:       cfg.Host,
		log:        cfg.Logger.With().Str("backend", BackendType).Logger(),
		containers: make(map[string]testcontainers.Container),
	}, nil
}

func init() {
	backend.Register(BackendType, New)
}

func (b *Backend) engine(ctx context.Context) (*testcontainers.DockerClient, error) {
	b.clientOnce.Do(func() {
		b.client, b.clientErr = testcontainers.NewDockerClientWithOpts(ctx)
		if b.clientErr != nil {
			b.clientErr = fmt.Errorf("failed to connect to container engine: %w", b.clientErr)
		}
	})
	return b.client, b.clientErr
}

func (b *Backend) lookup(containerID string) (testcontainers.Container, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.containers[containerID]
	if !ok {
		return nil, fmt.Errorf("container %s was not started by this backend", containerID)
	}
	return c, nil
}

// ImageExists reports whether the image is present in the local store.
func (b *Backend) ImageExists(ctx context.Context, ref string) (bool, error) {
	if ref == "" {
		return false, errors.New("image is required")
	}
	cli, err := b.engine(ctx)
	if err != nil {
		return false, err
	}
	if _, _, err := cli.ImageInspectWithRaw(ctx, ref); err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect image %s: %w", ref, err)
	}
	return true, nil
}

// Run starts a container and waits until cfg.Port is listening. The image is
// pulled when it is not in the local store.
func (b *Backend) Run(ctx context.Context, cfg *backend.RunConfig) (string, error) {
	if cfg.Image == "" {
		return "", errors.New("image is required")
	}
	if cfg.Port <= 0 {
		return "", errors.New("port is required")
	}

	port := servingPort(cfg.Port)
	labels := map[string]string{backend.ManagedLabel: "true"}
	maps.Copy(labels, cfg.Labels)

	b.log.Debug().Str("image", cfg.Image).Int("port", cfg.Port).Msg("starting container")
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        cfg.Image,
			ExposedPorts: []string{string(port)},
			Labels:       labels,
			Env:          cfg.Environment,
			WaitingFor:   wait.ForListeningPort(port).WithStartupTimeout(StartupTimeout),
		},
		Started: true,
	})
	if err != nil {
		if c != nil {
			_ = c.Terminate(context.WithoutCancel(ctx))
		}
		return "", fmt.Errorf("failed to run container from %s: %w", cfg.Image, err)
	}

	id := c.GetContainerID()
	b.mu.Lock()
	b.containers[id] = c
	b.mu.Unlock()
	return id, nil
}

// NewSetupRunner returns a ContainerSetupRunner for this container.
func (b *Backend) NewSetupRunner(containerID string) backend.SetupRunner {
	return &backend.ContainerSetupRunner{
		ContainerID: containerID,
		Backend:     b,
	}
}

// Endpoint returns http://<host>:<port> for the host port mapped to port.
func (b *Backend) Endpoint(ctx context.Context, containerID string, port int) (string, error) {
	c, err := b.lookup(containerID)
	if err != nil {
		return "", err
	}
	mapped, err := c.MappedPort(ctx, servingPort(port))
	if err != nil {
		return "", fmt.Errorf("failed to get mapped port for %s: %w", containerID, err)
	}
	host := b.host
	if host == "" {
		if host, err = c.Host(ctx); err != nil {
			return "", fmt.Errorf("failed to get host for %s: %w", containerID, err)
		}
	}
	return "http://" + net.JoinHostPort(host, mapped.Port()), nil
}

// Exec runs a command in the container with stdout and stderr combined.
func (b *Backend) Exec(ctx context.Context, containerID string, args ...string) (string, int, error) {
	if len(args) == 0 {
		return "", -1, errors.New("command is required")
	}
	c, err := b.lookup(containerID)
	if err != nil {
		return "", -1, err
	}
	code, r, err := c.Exec(ctx, args, tcexec.Multiplexed())
	if err != nil {
		return "", -1, fmt.Errorf("failed to exec in %s: %w", containerID, err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return string(out), -1, fmt.Errorf("failed to read exec output from %s: %w", containerID, err)
	}
	return string(out), code, nil
}

// Commit snapshots the container as image.
func (b *Backend) Commit(ctx context.Context, containerID string, ref string) error {
	cli, err := b.engine(ctx)
	if err != nil {
		return err
	}
	if _, err := cli.ContainerCommit(ctx, containerID, container.CommitOptions{Reference: ref}); err != nil {
		return fmt.Errorf("failed to commit %s as %s: %w", containerID, ref, err)
	}
	return nil
}

// RemoveImage deletes image. A missing image is not an error.
func (b *Backend) RemoveImage(ctx context.Context, ref string) error {
	cli, err := b.engine(ctx)
	if err != nil {
		return err
	}
	if _, err := cli.ImageRemove(ctx, ref, image.RemoveOptions{}); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to remove image %s: %w", ref, err)
	}
	return nil
}

// Destroy stops and removes the container. A missing container is not an
// error.
func (b *Backend) Destroy(ctx context.Context, containerID string) error {
	b.mu.Lock()
	c, ok := b.containers[containerID]
	delete(b.containers, containerID)
	b.mu.Unlock()

	if ok {
		if err := c.Terminate(ctx); err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("failed to terminate container %s: %w", containerID, err)
		}
		return nil
	}

	cli, err := b.engine(ctx)
	if err != nil {
		return err
	}
	err = cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to remove container %s: %w", containerID, err)
	}
	return nil
}

// Status maps the engine's container state onto backend.ContainerState.
func (b *Backend) Status(ctx context.Context, containerID string) (backend.BackendStatus, error) {
	cli, err := b.engine(ctx)
	if err != nil {
		return backend.BackendStatus{}, err
	}
	info, err := cli.ContainerInspect(ctx, containerID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return backend.BackendStatus{State: backend.StateNotFound}, nil
		}
		return backend.BackendStatus{}, fmt.Errorf("failed to inspect container %s: %w", containerID, err)
	}
	return backend.StatusFromState(info.State.Status), nil
}

// List returns the IDs of all managed containers, running or not.
func (b *Backend) List(ctx context.Context) ([]string, error) {
	cli, err := b.engine(ctx)
	if err != nil {
		return nil, err
	}
	found, err := cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", backend.ManagedLabel+"=true")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	ids := make([]string, 0, len(found))
	for _, c := range found {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func servingPort(port int) nat.Port {
	return nat.Port(fmt.Sprintf("%d/tcp", port))
}
