package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Home returns artisan's home directory.
// Priority order:
//  1. ARTISAN_HOME environment variable, if set
//  2. the repository root, detected by walking up for a go.mod declaring
//     this module
//  3. the current working directory, as a fallback
//
// The directory is created if it doesn't already exist.
func Home() (string, error) {
	if home := os.Getenv("ARTISAN_HOME"); home != "" {
		if err := os.MkdirAll(home, 0o755); err != nil {
			return "", fmt.Errorf("config: create home directory: %w", err)
		}
		return home, nil
	}

	root, err := findRepoRoot()
	if err != nil || root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("config: get working directory: %w", err)
		}
		root = cwd
	}

	home := filepath.Join(root, ".artisan")
	if err := os.MkdirAll(home, 0o755); err != nil {
		return "", fmt.Errorf("config: create home directory: %w", err)
	}
	return home, nil
}

// findRepoRoot walks up from the working directory looking for a go.mod
// that declares this module's path.
func findRepoRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	current := cwd
	for {
		goModPath := filepath.Join(current, "go.mod")
		if data, err := os.ReadFile(goModPath); err == nil {
			if strings.Contains(string(data), "github.com/harrison/artisan") {
				return current, nil
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return "", fmt.Errorf("config: repository root not found")
}
