// Package backend defines the container runtime interface that fixture
// provisioning runs on. Runtimes register themselves by type at init, so the
// provisioner never depends on a concrete runtime.
package backend

import (
	"context"
)

// Backend defines the operations a container runtime must provide for
// model-serving fixtures.
//
// Method implementations by backend:
//
//	| Method         | Testcontainers (default)         | Docker CLI                      |
//	|----------------|----------------------------------|---------------------------------|
//	| ImageExists    | ImageInspect                     | docker image inspect            |
//	| Run            | GenericContainer + wait strategy | docker run -d -p                |
//	| NewSetupRunner | Returns ContainerSetupRunner     | Returns ContainerSetupRunner    |
//	| Endpoint       | Container.PortEndpoint           | docker port                     |
//	| Exec           | Container.Exec                   | docker exec                     |
//	| Commit         | ContainerCommit                  | docker commit                   |
//	| RemoveImage    | ImageRemove                      | docker image rm                 |
//	| Destroy        | Terminate / ContainerRemove      | docker rm -f                    |
//	| Status         | ContainerInspect                 | docker inspect                  |
//	| List           | ContainerList with label filter  | docker ps -a --filter label=... |
type Backend interface {
	// ImageExists reports whether the image is present in the local store.
	ImageExists(ctx context.Context, image string) (bool, error)

	// Run starts a detached container and returns its ID.
	Run(ctx context.Context, cfg *RunConfig) (containerID string, err error)

	// NewSetupRunner returns a runner that installs models into a container.
	NewSetupRunner(containerID string) SetupRunner

	// Endpoint returns the host-reachable base URL for a published port.
	Endpoint(ctx context.Context, containerID string, port int) (string, error)

	// Exec runs a command inside the container and returns its output.
	Exec(ctx context.Context, containerID string, args ...string) (output string, exitCode int, err error)

	// Commit snapshots the container as a new image.
	Commit(ctx context.Context, containerID string, image string) error

	// RemoveImage deletes an image from the local store.
	RemoveImage(ctx context.Context, image string) error

	// Destroy stops and removes a container.
	Destroy(ctx context.Context, containerID string) error

	// Status queries container state.
	Status(ctx context.Context, containerID string) (BackendStatus, error)

	// List returns the IDs of all containers started by this harness.
	List(ctx context.Context) ([]string, error)
}

// RunConfig describes a container to start.
type RunConfig struct {
	// Image is the image reference to run.
	Image string

	// Port is the container port to publish on an ephemeral host port.
	Port int

	// Labels are attached to the container. The managed label is always added.
	Labels map[string]string

	// Environment contains environment variables for the container.
	Environment map[string]string
}

// ManagedLabel marks containers started by this harness.
const ManagedLabel = "chatconform.managed"

// BackendStatus represents the current state of a container.
type BackendStatus struct {
	// State is the current state of the container.
	State ContainerState

	// Message provides additional context about the current state.
	Message string
}

// ContainerState represents the possible states of a container.
type ContainerState string

const (
	// StateRunning indicates the container is running.
	StateRunning ContainerState = "running"

	// StateStopped indicates the container exited or was never started.
	StateStopped ContainerState = "stopped"

	// StateStarting indicates the container is restarting.
	StateStarting ContainerState = "starting"

	// StateDestroying indicates the container is being removed.
	StateDestroying ContainerState = "destroying"

	// StateNotFound indicates the container does not exist.
	StateNotFound ContainerState = "not_found"

	// StateError indicates the container is in an error state.
	StateError ContainerState = "error"
)

// StatusFromState maps a docker-compatible engine state string onto a
// BackendStatus.
func StatusFromState(raw string) BackendStatus {
	switch raw {
	case "running":
		return BackendStatus{State: StateRunning}
	case "created", "exited", "paused":
		return BackendStatus{State: StateStopped, Message: raw}
	case "restarting":
		return BackendStatus{State: StateStarting}
	case "removing":
		return BackendStatus{State: StateDestroying}
	default:
		return BackendStatus{State: StateError, Message: raw}
	}
}
