package pathutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("failed to get home dir: %v", err)
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "empty path", path: "", want: ""},
		{name: "just tilde", path: "~", want: home},
		{name: "state db", path: "~/.local/share/chatconform/state.db", want: filepath.Join(home, ".local/share/chatconform/state.db")},
		{name: "absolute path unchanged", path: "/var/lib/chatconform/state.db", want: "/var/lib/chatconform/state.db"},
		{name: "relative path unchanged", path: "state.db", want: "state.db"},
		{name: "tilde in middle unchanged", path: "/home/~user/state.db", want: "/home/~user/state.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandTilde(tt.path)
			if err != nil {
				t.Fatalf("ExpandTilde() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ExpandTilde() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("failed to get home dir: %v", err)
	}

	tests := []struct {
		name string
		base string
		path string
		want string
	}{
		{name: "relative to config dir", base: "/work/project", path: ".chatconform/state.db", want: "/work/project/.chatconform/state.db"},
		{name: "parent refs", base: "/work/project", path: "../shared/state.db", want: "/work/shared/state.db"},
		{name: "absolute unchanged", base: "/work/project", path: "/tmp/state.db", want: "/tmp/state.db"},
		{name: "tilde ignores base", base: "/work/project", path: "~/state.db", want: filepath.Join(home, "state.db")},
		{name: "empty path stays empty", base: "/work/project", path: "", want: ""},
		{name: "no base", base: "", path: "state.db", want: "state.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.base, tt.path)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}
		})
	}
}
