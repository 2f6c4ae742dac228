//go:build conformance

package conformance

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/Quidge/chatconform/internal/backend"
)

// ConformanceSuite defines the contract tests for any Backend implementation.
type ConformanceSuite struct {
	// Backend under test.
	Backend backend.Backend

	// Image and Port override DefaultImage and DefaultPort.
	Image string
	Port  int
}

// Run executes all contract tests.
func (s *ConformanceSuite) Run(t *testing.T) {
	t.Run("Lifecycle", s.testLifecycle)
	t.Run("Environment", s.testEnvironment)
	t.Run("SetupCommands", s.testSetupCommands)
	t.Run("Images", s.testImages)
}

func (s *ConformanceSuite) env(t *testing.T, environment map[string]string) *TestEnv {
	t.Helper()
	return NewTestEnv(t, s.Backend, TestEnvConfig{Image: s.Image, Port: s.Port, Environment: environment})
}

// testLifecycle tests basic container lifecycle operations.
func (s *ConformanceSuite) testLifecycle(t *testing.T) {
	t.Run("RunAndDestroy", func(t *testing.T) {
		env := s.env(t, nil)

		status, err := s.Backend.Status(env.Ctx, env.ContainerID)
		if err != nil {
			t.Fatalf("Status() returned error: %v", err)
		}
		if status.State != backend.StateRunning {
			t.Errorf("expected state Running, got %v (%s)", status.State, status.Message)
		}

		endpoint := env.WaitHTTP()
		if !strings.HasPrefix(endpoint, "http://") {
			t.Errorf("endpoint %q is not an http URL", endpoint)
		}

		output, exitCode, err := s.Backend.Exec(env.Ctx, env.ContainerID, "echo", "hello")
		if err != nil {
			t.Fatalf("Exec() returned error: %v", err)
		}
		if exitCode != 0 {
			t.Errorf("expected exit code 0, got %d", exitCode)
		}
		if !strings.Contains(output, "hello") {
			t.Errorf("expected output to contain 'hello', got: %s", output)
		}

		ids, err := s.Backend.List(env.Ctx)
		if err != nil {
			t.Fatalf("List() returned error: %v", err)
		}
		if !slices.ContainsFunc(ids, func(id string) bool { return strings.HasPrefix(env.ContainerID, id) }) {
			t.Errorf("List() = %v, missing %s", ids, env.ContainerID)
		}

		if err := s.Backend.Destroy(env.Ctx, env.ContainerID); err != nil {
			t.Fatalf("Destroy() returned error: %v", err)
		}
		status, err = s.Backend.Status(env.Ctx, env.ContainerID)
		if err != nil {
			t.Fatalf("Status() after Destroy returned error: %v", err)
		}
		if status.State != backend.StateNotFound {
			t.Errorf("expected StateNotFound after Destroy, got %v", status.State)
		}

		// Destroying twice is not an error.
		if err := s.Backend.Destroy(env.Ctx, env.ContainerID); err != nil {
			t.Errorf("second Destroy() returned error: %v", err)
		}
	})

	t.Run("NonZeroExit", func(t *testing.T) {
		env := s.env(t, nil)

		_, exitCode, err := env.Exec("exit 3")
		if err != nil {
			t.Fatalf("Exec() returned error: %v", err)
		}
		if exitCode != 3 {
			t.Errorf("expected exit code 3, got %d", exitCode)
		}
	})

	t.Run("StatusNotFound", func(t *testing.T) {
		status, err := s.Backend.Status(t.Context(), "chatconform-conformance-missing")
		if err != nil {
			t.Fatalf("Status() should not error for a missing container: %v", err)
		}
		if status.State != backend.StateNotFound {
			t.Errorf("expected StateNotFound, got %v", status.State)
		}
	})

	t.Run("ExecOnNonexistent", func(t *testing.T) {
		_, exitCode, err := s.Backend.Exec(t.Context(), "chatconform-conformance-missing", "echo", "test")
		if err == nil && exitCode == 0 {
			t.Error("expected a failure for exec in a missing container")
		}
	})
}

// testEnvironment verifies values reach the container without shell expansion.
func (s *ConformanceSuite) testEnvironment(t *testing.T) {
	values := map[string]string{
		"CHATCONFORM_SIMPLE": "value",
		"CHATCONFORM_SPACES": "value with spaces",
		"CHATCONFORM_QUOTES": `it's got "quotes"`,
		"CHATCONFORM_DOLLAR": "$HOME and ${PATH}",
		"CHATCONFORM_EMPTY":  "",
	}
	env := s.env(t, values)

	for name, want := range values {
		env.AssertEnvVar(name, want)
	}
}

// testSetupCommands verifies setup order and failure handling.
func (s *ConformanceSuite) testSetupCommands(t *testing.T) {
	// The pull command receives the model as its final argument, which sh
	// binds to $0.
	pull := []string{"sh", "-c", `echo "$0" >> /tmp/order`}

	t.Run("Order", func(t *testing.T) {
		env := s.env(t, nil)

		err := env.RunSetup(&backend.SetupConfig{
			Models:        []string{"llama3.1", "llama3.2-vision"},
			PullCommand:   pull,
			SetupCommands: [][]string{
				{"sh", "-c", "echo setup-one >> /tmp/order"},
				{"sh", "-c", "echo setup-two >> /tmp/order"},
			},
		})
		if err != nil {
			t.Fatalf("RunSetup() returned error: %v", err)
		}
		env.AssertFileContent("/tmp/order", "llama3.1\nllama3.2-vision\nsetup-one\nsetup-two")
	})

	t.Run("StopsAtFirstFailure", func(t *testing.T) {
		env := s.env(t, nil)

		err := env.RunSetup(&backend.SetupConfig{
			PullCommand:   pull,
			SetupCommands: [][]string{
				{"sh", "-c", "echo failing >&2; exit 7"},
				{"touch", "/tmp/after-failure"},
			},
		})
		if err == nil {
			t.Fatal("expected RunSetup() to fail")
		}
		if !strings.Contains(err.Error(), "exited with code 7") {
			t.Errorf("error should carry the exit code: %v", err)
		}
		env.AssertFileNotExists("/tmp/after-failure")
	})

	t.Run("FailedPull", func(t *testing.T) {
		env := s.env(t, nil)

		err := env.RunSetup(&backend.SetupConfig{
			Models:        []string{"missing-model"},
			PullCommand:   []string{"sh", "-c", `echo "pull $0: file does not exist" >&2; exit 1`},
			SetupCommands: [][]string{{"touch", "/tmp/after-pull"}},
		})
		if err == nil || !strings.Contains(err.Error(), "missing-model") {
			t.Fatalf("expected a pull failure naming the model, got %v", err)
		}
		env.AssertFileNotExists("/tmp/after-pull")
	})
}

// testImages verifies that a committed container can be found and removed.
func (s *ConformanceSuite) testImages(t *testing.T) {
	env := s.env(t, nil)
	env.MustExec("echo installed > /tmp/marker")

	image := "chatconform-conformance:" + generateTestID(t)
	if err := s.Backend.Commit(env.Ctx, env.ContainerID, image); err != nil {
		t.Fatalf("Commit() returned error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.Backend.RemoveImage(ctx, image)
	})

	exists, err := s.Backend.ImageExists(env.Ctx, image)
	if err != nil {
		t.Fatalf("ImageExists() returned error: %v", err)
	}
	if !exists {
		t.Fatalf("committed image %s not found", image)
	}

	// A container from the derived image keeps the committed state.
	derived := NewTestEnv(t, s.Backend, TestEnvConfig{Image: image, Port: env.Port})
	derived.AssertFileContent("/tmp/marker", "installed")
	if err := s.Backend.Destroy(derived.Ctx, derived.ContainerID); err != nil {
		t.Fatalf("Destroy() returned error: %v", err)
	}

	if err := s.Backend.RemoveImage(env.Ctx, image); err != nil {
		t.Fatalf("RemoveImage() returned error: %v", err)
	}
	exists, err = s.Backend.ImageExists(env.Ctx, image)
	if err != nil {
		t.Fatalf("ImageExists() returned error: %v", err)
	}
	if exists {
		t.Errorf("image %s still exists after RemoveImage", image)
	}

	// Removing a missing image is not an error.
	if err := s.Backend.RemoveImage(env.Ctx, image); err != nil {
		t.Errorf("second RemoveImage() returned error: %v", err)
	}
}
