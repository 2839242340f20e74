package infra

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathsFollowStateDir(t *testing.T) {
	dir := t.TempDir()
	state := filepath.Join(dir, ".abstractbot")
	t.Setenv("ABSTRACTBOT_STATE_DIR", state)

	assert.Equal(t, filepath.Join(state, "logs"), LogDir())
	assert.Equal(t, filepath.Join(state, "data"), DataDir())
	assert.Equal(t, filepath.Join(state, "abstractbot-serve.lock"), ServeLockPath())
	assert.Equal(t, filepath.Join(state, "abstractbot-serve.pid"), ServePIDPath())
	assert.Equal(t, filepath.Join(state, "logs", "serve.log"), ServeLogPath())
}

func TestDataDirUsesXDG(t *testing.T) {
	if filepath.Separator != '/' {
		t.Skip("XDG layout only applies to unix")
	}
	dir := t.TempDir()
	t.Setenv("ABSTRACTBOT_STATE_DIR", "")
	t.Setenv("HOME", dir)
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "xdg"))

	got := DataDir()
	assert.True(t, got == filepath.Join(dir, "xdg", "abstractbot") || got == filepath.Join(dir, ".abstractbot", "data"), got)
}

func TestResolveDataFile(t *testing.T) {
	state := t.TempDir()
	t.Setenv("ABSTRACTBOT_STATE_DIR", state)

	assert.Equal(t, "", ResolveDataFile(""))
	assert.Equal(t, "/var/records.jsonl", ResolveDataFile("/var/records.jsonl"))
	assert.Equal(t, filepath.Join(state, "data", "records.jsonl"), ResolveDataFile("records.jsonl"))
}

func TestEnsureDirs(t *testing.T) {
	state := filepath.Join(t.TempDir(), "state")
	t.Setenv("ABSTRACTBOT_STATE_DIR", state)

	require.NoError(t, EnsureDirs())
	assert.DirExists(t, state)
	assert.DirExists(t, LogDir())
	assert.DirExists(t, DataDir())
}
