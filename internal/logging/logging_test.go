package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreGlobal(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
}

func TestLevelFiltering(t *testing.T) {
	restoreGlobal(t)
	var buf bytes.Buffer
	l, err := New(Config{Level: "warn", Out: &buf})
	require.NoError(t, err)

	l.Info().Msg("hidden")
	l.Warn().Str("k", "v").Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"k":"v"`)
	assert.Equal(t, zerolog.WarnLevel, log.Logger.GetLevel())
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	restoreGlobal(t)
	l, err := New(Config{Level: "loud", Out: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
}

func TestPrettyOutput(t *testing.T) {
	restoreGlobal(t)
	var buf bytes.Buffer
	l, err := New(Config{Pretty: true, Out: &buf})
	require.NoError(t, err)

	l.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestFileOutput(t *testing.T) {
	restoreGlobal(t)
	path := filepath.Join(t.TempDir(), "logs", "bot.log")
	l, err := New(Config{File: path, Out: &bytes.Buffer{}})
	require.NoError(t, err)

	l.Info().Msg("to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
