// Package pathutil resolves user-supplied paths from configuration.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandTilde expands ~ to the user's home directory.
// Returns the path unchanged if it doesn't start with ~.
func ExpandTilde(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if path == "~" {
		return os.UserHomeDir()
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}

	return path, nil
}

// Resolve expands ~ in path and joins a relative result onto base. An empty
// path or an empty base leaves the path as expanded.
func Resolve(base, path string) (string, error) {
	expanded, err := ExpandTilde(path)
	if err != nil || expanded == "" || base == "" || filepath.IsAbs(expanded) {
		return expanded, err
	}
	return filepath.Clean(filepath.Join(base, expanded)), nil
}
