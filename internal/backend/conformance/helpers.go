//go:build conformance

package conformance

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Quidge/chatconform/internal/backend"
	"github.com/Quidge/chatconform/internal/state"
)

// DefaultTimeout is the default timeout for test operations.
const DefaultTimeout = 2 * time.Minute

// DefaultImage serves HTTP on DefaultPort and ships a POSIX shell.
const (
	DefaultImage = "nginx:alpine"
	DefaultPort  = 80
)

// TestEnvConfig configures a test container.
type TestEnvConfig struct {
	Image       string
	Port        int
	Environment map[string]string

	// Timeout for test operations. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// TestEnv encapsulates a running test container with assertion helpers.
type TestEnv struct {
	T           *testing.T
	Backend     backend.Backend
	ContainerID string
	Port        int
	Ctx         context.Context
	Cancel      context.CancelFunc
}

// NewTestEnv starts a container and removes it when the test completes.
func NewTestEnv(t *testing.T, be backend.Backend, cfg TestEnvConfig) *TestEnv {
	t.Helper()

	if cfg.Image == "" {
		cfg.Image = DefaultImage
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(t.Context(), timeout)

	id, err := be.Run(ctx, &backend.RunConfig{
		Image:       cfg.Image,
		Port:        cfg.Port,
		Labels:      map[string]string{"chatconform.test": generateTestID(t)},
		Environment: cfg.Environment,
	})
	if err != nil {
		cancel()
		t.Fatalf("failed to run container: %v", err)
	}

	t.Cleanup(func() {
		// The test context may already be cancelled.
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cleanupCancel()
		be.Destroy(cleanupCtx, id)
		cancel()
	})

	return &TestEnv{
		T:           t,
		Backend:     be,
		ContainerID: id,
		Port:        cfg.Port,
		Ctx:         ctx,
		Cancel:      cancel,
	}
}

// RunSetup executes setup with the given config.
func (e *TestEnv) RunSetup(cfg *backend.SetupConfig) error {
	return e.Backend.NewSetupRunner(e.ContainerID).Run(e.Ctx, cfg)
}

// Exec runs a shell command and returns output, exit code, and any error.
func (e *TestEnv) Exec(command string) (string, int, error) {
	return e.Backend.Exec(e.Ctx, e.ContainerID, "sh", "-c", command)
}

// MustExec runs a command and fails the test if it errors or returns non-zero.
func (e *TestEnv) MustExec(command string) string {
	e.T.Helper()
	output, exitCode, err := e.Exec(command)
	if err != nil {
		e.T.Fatalf("command %q failed: %v", command, err)
	}
	if exitCode != 0 {
		e.T.Fatalf("command %q exited with %d: %s", command, exitCode, output)
	}
	return output
}

// AssertFileExists fails if the file doesn't exist in the container.
func (e *TestEnv) AssertFileExists(path string) {
	e.T.Helper()
	if _, exitCode, _ := e.Exec(fmt.Sprintf("test -e %q", path)); exitCode != 0 {
		e.T.Errorf("file %q does not exist", path)
	}
}

// AssertFileNotExists fails if the file exists in the container.
func (e *TestEnv) AssertFileNotExists(path string) {
	e.T.Helper()
	if _, exitCode, _ := e.Exec(fmt.Sprintf("test -e %q", path)); exitCode == 0 {
		e.T.Errorf("file %q should not exist", path)
	}
}

// AssertFileContent fails if file content doesn't match expected.
func (e *TestEnv) AssertFileContent(path, expected string) {
	e.T.Helper()
	output := e.MustExec(fmt.Sprintf("cat %q", path))
	if strings.TrimSpace(output) != expected {
		e.T.Errorf("file %q: got %q, want %q", path, strings.TrimSpace(output), expected)
	}
}

// AssertEnvVar fails if environment variable doesn't match expected value.
func (e *TestEnv) AssertEnvVar(name, expected string) {
	e.T.Helper()
	output := e.MustExec(fmt.Sprintf("printf '%%s' \"$%s\"", name))
	if output != expected {
		e.T.Errorf("env var %s: got %q, want %q", name, output, expected)
	}
}

// WaitHTTP polls the published endpoint until it answers with a status
// below 500 or the test context expires.
func (e *TestEnv) WaitHTTP() string {
	e.T.Helper()

	endpoint, err := e.Backend.Endpoint(e.Ctx, e.ContainerID, e.Port)
	if err != nil {
		e.T.Fatalf("Endpoint() returned error: %v", err)
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		req, err := http.NewRequestWithContext(e.Ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			e.T.Fatalf("bad endpoint %q: %v", endpoint, err)
		}
		if resp, err := http.DefaultClient.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode < 500 {
				return endpoint
			}
		}
		select {
		case <-e.Ctx.Done():
			e.T.Fatalf("endpoint %s never became reachable", endpoint)
		case <-ticker.C:
		}
	}
}

// generateTestID returns a short unique ID for labels and image tags.
func generateTestID(t *testing.T) string {
	t.Helper()
	id, err := state.GenerateID()
	if err != nil {
		t.Fatalf("failed to generate ID: %v", err)
	}
	return state.ShortID(id)
}
