// Package test provides test utilities and helpers for abstractbot tests.
package test

import (
	"os"
	"path/filepath"
	"testing"
)

// TempHome is a temporary home directory for isolated tests.
type TempHome struct {
	Dir string
}

// NewTempHome creates a temporary home directory and points HOME and the
// abstractbot state dir at it for the duration of t.
func NewTempHome(t *testing.T) *TempHome {
	t.Helper()

	dir := t.TempDir()
	th := &TempHome{Dir: dir}

	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv("ABSTRACTBOT_STATE_DIR", th.StateDir())
	t.Setenv("ABSTRACTBOT_CONFIG_PATH", "")

	if err := os.MkdirAll(th.StateDir(), 0755); err != nil {
		t.Fatalf("Failed to create state dir: %v", err)
	}
	return th
}

// StateDir returns the abstractbot state directory in the temp home.
func (th *TempHome) StateDir() string {
	return filepath.Join(th.Dir, ".abstractbot")
}

// WriteConfig writes a YAML config file to the state dir.
func (th *TempHome) WriteConfig(t *testing.T, content string) string {
	t.Helper()

	configPath := filepath.Join(th.StateDir(), "abstractbot.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return configPath
}

// CreateFile creates a file in the temp home.
func (th *TempHome) CreateFile(t *testing.T, relPath, content string) string {
	t.Helper()

	fullPath := filepath.Join(th.Dir, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	return fullPath
}
