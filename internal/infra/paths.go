// Package infra resolves the files abstractbot keeps on disk.
package infra

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/liteclaw/abstractbot/internal/config"
)

// LogDir is where a detached server writes its output.
func LogDir() string {
	return filepath.Join(config.StateDir(), "logs")
}

// DataDir holds channel data such as database records.
func DataDir() string {
	if override := os.Getenv("ABSTRACTBOT_STATE_DIR"); override != "" {
		return filepath.Join(config.StateDir(), "data")
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(config.StateDir(), "data")
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "abstractbot", "data")
		}
		return filepath.Join(config.StateDir(), "data")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "abstractbot")
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(config.StateDir(), "data")
		}
		return filepath.Join(home, ".local", "share", "abstractbot")
	}
}

// ServeLockPath is the single-instance lock of the serve command.
func ServeLockPath() string {
	return filepath.Join(config.StateDir(), "abstractbot-serve.lock")
}

// ServePIDPath records the pid of the running server.
func ServePIDPath() string {
	return filepath.Join(config.StateDir(), "abstractbot-serve.pid")
}

// ServeLogPath is the output file of a detached server.
func ServeLogPath() string {
	return filepath.Join(LogDir(), "serve.log")
}

// ResolveDataFile makes a relative data file name absolute under DataDir.
func ResolveDataFile(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(DataDir(), name)
}

// EnsureDirs creates all required directories.
func EnsureDirs() error {
	for _, dir := range []string{config.StateDir(), LogDir(), DataDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
