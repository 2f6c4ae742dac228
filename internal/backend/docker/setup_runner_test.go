package docker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Quidge/chatconform/internal/backend"
)

func TestSetupRunnerPullsModelsInOrder(t *testing.T) {
	b, fake := newTestBackend(t, nil)
	runner := b.NewSetupRunner("abc")

	err := runner.Run(context.Background(), &backend.SetupConfig{
		Models:        []string{"llama3.1", "llama3.2"},
		SetupCommands: [][]string{{"ollama", "list"}},
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	want := []string{
		"exec abc ollama pull llama3.1",
		"exec abc ollama pull llama3.2",
		"exec abc ollama list",
	}
	if len(fake.calls) != len(want) {
		t.Fatalf("expected %d calls, got %d: %v", len(want), len(fake.calls), fake.calls)
	}
	for i, w := range want {
		if got := strings.Join(fake.calls[i], " "); got != w {
			t.Errorf("call %d: expected %q, got %q", i, w, got)
		}
	}
}

func TestSetupRunnerCustomPullCommand(t *testing.T) {
	b, fake := newTestBackend(t, nil)
	runner := b.NewSetupRunner("abc")

	err := runner.Run(context.Background(), &backend.SetupConfig{
		Models:      []string{"phi3"},
		PullCommand: []string{"/bin/ollama", "pull", "--insecure"},
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if got := strings.Join(fake.calls[0], " "); got != "exec abc /bin/ollama pull --insecure phi3" {
		t.Errorf("unexpected command: %s", got)
	}
}

func TestSetupRunnerStopsOnFailure(t *testing.T) {
	b, fake := newTestBackend(t, map[string]answer{
		"exec abc ollama pull nope": {out: "pulling manifest\nError: file does not exist", err: exitError(t, "1")},
	})
	runner := b.NewSetupRunner("abc")

	err := runner.Run(context.Background(), &backend.SetupConfig{
		Models: []string{"nope", "llama3.1"},
	})
	if err == nil {
		t.Fatal("expected error for failed pull")
	}
	if !strings.Contains(err.Error(), "nope") || !strings.Contains(err.Error(), "file does not exist") {
		t.Errorf("error should name the model and carry output, got: %v", err)
	}
	if len(fake.calls) != 1 {
		t.Errorf("expected setup to stop after the first failure, got %d calls", len(fake.calls))
	}
}

func TestSetupRunnerHonorsCancellation(t *testing.T) {
	b, fake := newTestBackend(t, nil)
	runner := b.NewSetupRunner("abc")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runner.Run(ctx, &backend.SetupConfig{Models: []string{"llama3.1"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("expected no commands after cancellation, got %v", fake.calls)
	}
}

func TestSetupRunnerRequiresContainer(t *testing.T) {
	b, _ := newTestBackend(t, nil)
	runner := &backend.ContainerSetupRunner{Backend: b}

	if err := runner.Run(context.Background(), &backend.SetupConfig{}); err == nil {
		t.Error("expected error for missing container ID")
	}
}
