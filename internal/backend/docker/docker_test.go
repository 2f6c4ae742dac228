package docker

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Quidge/chatconform/internal/backend"
)

// fakeCLI records invocations and answers from a table keyed by the first
// arguments of each command.
type fakeCLI struct {
	calls   [][]string
	answers map[string]answer
}

type answer struct {
	out string
	err error
}

func (f *fakeCLI) run(_ context.Context, args ...string) ([]byte, error) {
	f.calls = append(f.calls, args)
	for prefix := len(args); prefix > 0; prefix-- {
		if a, ok := f.answers[strings.Join(args[:prefix], " ")]; ok {
			return []byte(a.out), a.err
		}
	}
	return nil, nil
}

func newTestBackend(t *testing.T, answers map[string]answer) (*Backend, *fakeCLI) {
	t.Helper()
	be, err := New(backend.BackendConfig{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	b := be.(*Backend)
	fake := &fakeCLI{answers: answers}
	b.run = fake.run
	return b, fake
}

// exitError produces a real *exec.ExitError with the given code.
func exitError(t *testing.T, code string) error {
	t.Helper()
	err := exec.Command("sh", "-c", "exit "+code).Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	return err
}

func TestBackendType(t *testing.T) {
	if BackendType != "docker" {
		t.Errorf("expected BackendType 'docker', got %q", BackendType)
	}
}

func TestNewDefaults(t *testing.T) {
	be, err := New(backend.BackendConfig{})
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	b := be.(*Backend)
	if b.binary != "docker" {
		t.Errorf("expected binary 'docker', got %q", b.binary)
	}
	if b.host != "localhost" {
		t.Errorf("expected host 'localhost', got %q", b.host)
	}
}

func TestImageExists(t *testing.T) {
	b, _ := newTestBackend(t, map[string]answer{
		"image inspect --format {{.Id}} present": {out: "sha256:abc\n"},
		"image inspect --format {{.Id}} absent":  {out: "Error: No such image: absent", err: errors.New("exit status 1")},
		"image inspect --format {{.Id}} broken":  {out: "Cannot connect to the Docker daemon", err: errors.New("exit status 1")},
	})
	ctx := context.Background()

	ok, err := b.ImageExists(ctx, "present")
	if err != nil || !ok {
		t.Errorf("ImageExists(present) = %v, %v; want true, nil", ok, err)
	}

	ok, err = b.ImageExists(ctx, "absent")
	if err != nil || ok {
		t.Errorf("ImageExists(absent) = %v, %v; want false, nil", ok, err)
	}

	if _, err := b.ImageExists(ctx, "broken"); err == nil {
		t.Error("expected error when the daemon is unreachable")
	}
}

func TestRunBuildsArguments(t *testing.T) {
	b, fake := newTestBackend(t, map[string]answer{
		"run": {out: "Unable to find image locally\nlatest: Pulling\nf00dcafe\n"},
	})

	id, err := b.Run(context.Background(), &backend.RunConfig{
		Image:       "ollama/ollama:latest",
		Port:        11434,
		Labels:      map[string]string{"chatconform.model": "llama3.1"},
		Environment: map[string]string{"OLLAMA_KEEP_ALIVE": "-1"},
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if id != "f00dcafe" {
		t.Errorf("expected container ID 'f00dcafe', got %q", id)
	}

	got := strings.Join(fake.calls[0], " ")
	want := "run --detach --publish 11434 --label chatconform.managed=true --label chatconform.model=llama3.1 --env OLLAMA_KEEP_ALIVE=-1 ollama/ollama:latest"
	if got != want {
		t.Errorf("unexpected arguments:\n got: %s\nwant: %s", got, want)
	}
}

func TestRunValidation(t *testing.T) {
	b, _ := newTestBackend(t, nil)
	ctx := context.Background()

	if _, err := b.Run(ctx, &backend.RunConfig{Port: 1}); err == nil {
		t.Error("expected error for missing image")
	}
	if _, err := b.Run(ctx, &backend.RunConfig{Image: "x"}); err == nil {
		t.Error("expected error for missing port")
	}
}

func TestEndpoint(t *testing.T) {
	b, _ := newTestBackend(t, map[string]answer{
		"port abc 11434/tcp": {out: "0.0.0.0:49153\n[::]:49153\n"},
		"port bad 11434/tcp": {out: "garbage\n"},
	})
	ctx := context.Background()

	got, err := b.Endpoint(ctx, "abc", 11434)
	if err != nil {
		t.Fatalf("Endpoint() failed: %v", err)
	}
	if got != "http://localhost:49153" {
		t.Errorf("expected http://localhost:49153, got %s", got)
	}

	if _, err := b.Endpoint(ctx, "bad", 11434); err == nil {
		t.Error("expected error for unparsable binding")
	}
}

func TestExecExitCode(t *testing.T) {
	b, _ := newTestBackend(t, map[string]answer{
		"exec abc ollama pull llama3.1": {out: "success\n"},
		"exec abc ollama pull missing":  {out: "pull model manifest: file does not exist", err: exitError(t, "3")},
		"exec gone":                     {out: "", err: errors.New("signal: killed")},
	})
	ctx := context.Background()

	out, code, err := b.Exec(ctx, "abc", "ollama", "pull", "llama3.1")
	if err != nil || code != 0 || !strings.Contains(out, "success") {
		t.Errorf("Exec() = %q, %d, %v", out, code, err)
	}

	_, code, err = b.Exec(ctx, "abc", "ollama", "pull", "missing")
	if err != nil {
		t.Fatalf("non-zero exit should not be an error: %v", err)
	}
	if code != 3 {
		t.Errorf("expected exit code 3, got %d", code)
	}

	if _, _, err := b.Exec(ctx, "gone", "true"); err == nil {
		t.Error("expected error when exec itself fails")
	}

	if _, _, err := b.Exec(ctx, "abc"); err == nil {
		t.Error("expected error for empty command")
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		raw  string
		err  error
		want backend.ContainerState
	}{
		{"running\n", nil, backend.StateRunning},
		{"exited\n", nil, backend.StateStopped},
		{"created\n", nil, backend.StateStopped},
		{"restarting\n", nil, backend.StateStarting},
		{"removing\n", nil, backend.StateDestroying},
		{"dead\n", nil, backend.StateError},
		{"Error: No such container: abc", errors.New("exit status 1"), backend.StateNotFound},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.raw), func(t *testing.T) {
			b, _ := newTestBackend(t, map[string]answer{
				"container inspect": {out: tt.raw, err: tt.err},
			})
			status, err := b.Status(context.Background(), "abc")
			if err != nil {
				t.Fatalf("Status() returned error: %v", err)
			}
			if status.State != tt.want {
				t.Errorf("expected %s, got %s", tt.want, status.State)
			}
		})
	}
}

func TestDestroyAndRemoveImageTolerateMissing(t *testing.T) {
	b, _ := newTestBackend(t, map[string]answer{
		"rm --force abc":  {out: "Error: No such container: abc", err: errors.New("exit status 1")},
		"image rm tc-x:y": {out: "Error: No such image: tc-x:y", err: errors.New("exit status 1")},
		"rm --force busy": {out: "permission denied", err: errors.New("exit status 1")},
	})
	ctx := context.Background()

	if err := b.Destroy(ctx, "abc"); err != nil {
		t.Errorf("Destroy() of missing container returned error: %v", err)
	}
	if err := b.RemoveImage(ctx, "tc-x:y"); err != nil {
		t.Errorf("RemoveImage() of missing image returned error: %v", err)
	}
	if err := b.Destroy(ctx, "busy"); err == nil {
		t.Error("expected error for failed removal")
	}
}

func TestList(t *testing.T) {
	b, fake := newTestBackend(t, map[string]answer{
		"ps": {out: "aaa\nbbb\n\n"},
	})

	ids, err := b.List(context.Background())
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "aaa" || ids[1] != "bbb" {
		t.Errorf("expected [aaa bbb], got %v", ids)
	}
	if got := strings.Join(fake.calls[0], " "); !strings.Contains(got, "label=chatconform.managed=true") {
		t.Errorf("expected managed label filter, got %s", got)
	}
}

func TestCommit(t *testing.T) {
	b, fake := newTestBackend(t, nil)

	if err := b.Commit(context.Background(), "abc", "tc-ollama/ollama:latest-llama3.1"); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	if got := strings.Join(fake.calls[0], " "); got != "commit abc tc-ollama/ollama:latest-llama3.1" {
		t.Errorf("unexpected arguments: %s", got)
	}
}
