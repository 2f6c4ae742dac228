// Package docker implements the docker backend for chatconform.
// It drives the docker CLI, so it works wherever `docker` does (local
// daemon, remote DOCKER_HOST, colima, podman with the docker shim).
//
// Key characteristics:
//   - Containers publish the serving port on an ephemeral host port
//   - Every container carries the chatconform.managed label
//   - Derived images are committed into the local image store
package docker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/rs/zerolog"

	"github.com/Quidge/chatconform/internal/backend"
)

const (
	// BackendType is the identifier for this backend type.
	BackendType = "docker"

	// defaultBinary is the CLI invoked when no override is configured.
	defaultBinary = "docker"

	// defaultHost is used to reach published ports.
	defaultHost = "localhost"
)

// runFunc executes the docker CLI and returns combined output.
type runFunc func(ctx context.Context, args ...string) ([]byte, error)

// Backend implements the backend.Backend interface using the docker CLI.
type Backend struct {
	binary string
	host   string
	log    zerolog.Logger
	run    runFunc
}

// New creates a new docker backend.
func New(cfg backend.BackendConfig) (backend.Backend, error) {
	b := &Backend{
		binary: cfg.Binary,
		host:   cfg.Host,
		log:    cfg.Logger.With().Str("backend", BackendType).Logger(),
	}
	if b.binary == "" {
		b.binary = defaultBinary
	}
	if b.host == "" {
		b.host = defaultHost
	}
	b.run = b.execCLI
	return b, nil
}

func init() {
	backend.Register(BackendType, New)
}

// execCLI runs the configured binary with args.
func (b *Backend) execCLI(ctx context.Context, args ...string) ([]byte, error) {
	b.log.Debug().Str("cmd", shellescape.QuoteCommand(append([]string{b.binary}, args...))).Msg("running docker command")
	cmd := exec.CommandContext(ctx, b.binary, args...)
	return cmd.CombinedOutput()
}

// ImageExists reports whether the image is present in the local store.
func (b *Backend) ImageExists(ctx context.Context, image string) (bool, error) {
	if image == "" {
		return false, errors.New("image is required")
	}
	out, err := b.run(ctx, "image", "inspect", "--format", "{{.Id}}", image)
	if err != nil {
		if isNotFound(out) {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect image %s: %w\noutput: %s", image, err, out)
	}
	return true, nil
}

// Run starts a detached container with the configured port published on an
// ephemeral host port.
func (b *Backend) Run(ctx context.Context, cfg *backend.RunConfig) (string, error) {
	if cfg.Image == "" {
		return "", errors.New("image is required")
	}
	if cfg.Port <= 0 {
		return "", errors.New("port is required")
	}

	args := []string{"run", "--detach", "--publish", strconv.Itoa(cfg.Port)}
	args = append(args, "--label", backend.ManagedLabel+"=true")
	for _, k := range sortedKeys(cfg.Labels) {
		args = append(args, "--label", k+"="+cfg.Labels[k])
	}
	for _, k := range sortedKeys(cfg.Environment) {
		args = append(args, "--env", k+"="+cfg.Environment[k])
	}
	args = append(args, cfg.Image)

	out, err := b.run(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("failed to run container from %s: %w\noutput: %s", cfg.Image, err, out)
	}

	id := lastLine(out)
	if id == "" {
		return "", fmt.Errorf("docker run returned no container ID for %s", cfg.Image)
	}
	return id, nil
}

// NewSetupRunner returns a ContainerSetupRunner for this container.
func (b *Backend) NewSetupRunner(containerID string) backend.SetupRunner {
	return &backend.ContainerSetupRunner{
		ContainerID: containerID,
		Backend:     b,
	}
}

// Endpoint returns http://<host>:<port> for the host port bound to port.
func (b *Backend) Endpoint(ctx context.Context, containerID string, port int) (string, error) {
	out, err := b.run(ctx, "port", containerID, fmt.Sprintf("%d/tcp", port))
	if err != nil {
		return "", fmt.Errorf("failed to get published port for %s: %w\noutput: %s", containerID, err, out)
	}

	// Output is one binding per line, e.g. "0.0.0.0:49153" then "[::]:49153".
	first, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	_, hostPort, err := net.SplitHostPort(strings.TrimSpace(first))
	if err != nil {
		return "", fmt.Errorf("failed to parse port binding %q: %w", first, err)
	}
	return "http://" + net.JoinHostPort(b.host, hostPort), nil
}

// Exec runs a command in the container.
func (b *Backend) Exec(ctx context.Context, containerID string, args ...string) (string, int, error) {
	if len(args) == 0 {
		return "", -1, errors.New("command is required")
	}
	out, err := b.run(ctx, append([]string{"exec", containerID}, args...)...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), exitErr.ExitCode(), nil
		}
		return string(out), -1, fmt.Errorf("failed to exec in %s: %w", containerID, err)
	}
	return string(out), 0, nil
}

// Commit snapshots the container as image.
func (b *Backend) Commit(ctx context.Context, containerID string, image string) error {
	out, err := b.run(ctx, "commit", containerID, image)
	if err != nil {
		return fmt.Errorf("failed to commit %s as %s: %w\noutput: %s", containerID, image, err, out)
	}
	return nil
}

// RemoveImage deletes image. A missing image is not an error.
func (b *Backend) RemoveImage(ctx context.Context, image string) error {
	out, err := b.run(ctx, "image", "rm", image)
	if err != nil && !isNotFound(out) {
		return fmt.Errorf("failed to remove image %s: %w\noutput: %s", image, err, out)
	}
	return nil
}

// Destroy force-removes the container. A missing container is not an error.
func (b *Backend) Destroy(ctx context.Context, containerID string) error {
	out, err := b.run(ctx, "rm", "--force", containerID)
	if err != nil && !isNotFound(out) {
		return fmt.Errorf("failed to remove container %s: %w\noutput: %s", containerID, err, out)
	}
	return nil
}

// Status maps docker's container state onto backend.ContainerState.
func (b *Backend) Status(ctx context.Context, containerID string) (backend.BackendStatus, error) {
	out, err := b.run(ctx, "container", "inspect", "--format", "{{.State.Status}}", containerID)
	if err != nil {
		if isNotFound(out) {
			return backend.BackendStatus{State: backend.StateNotFound}, nil
		}
		return backend.BackendStatus{}, fmt.Errorf("failed to inspect container %s: %w\noutput: %s", containerID, err, out)
	}

	return backend.StatusFromState(lastLine(out)), nil
}

// List returns the IDs of all managed containers, running or not.
func (b *Backend) List(ctx context.Context) ([]string, error) {
	out, err := b.run(ctx, "ps", "--all", "--quiet", "--filter", "label="+backend.ManagedLabel+"=true")
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w\noutput: %s", err, out)
	}

	var ids []string
	for _, line := range strings.Split(string(out), "\n") {
		if id := strings.TrimSpace(line); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// isNotFound recognizes docker's missing-object messages.
func isNotFound(out []byte) bool {
	s := strings.ToLower(string(out))
	return strings.Contains(s, "no such image") ||
		strings.Contains(s, "no such container") ||
		strings.Contains(s, "no such object")
}

// lastLine returns the last non-empty line of out. docker run may print pull
// progress before the container ID.
func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
