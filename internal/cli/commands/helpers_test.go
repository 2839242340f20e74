package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// isolate points the config and state dir at a temp dir and writes content
// as the config file when it is not empty.
func isolate(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "abstractbot.json")
	t.Setenv("ABSTRACTBOT_STATE_DIR", dir)
	t.Setenv("ABSTRACTBOT_CONFIG_PATH", path)
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return path
}

// execute runs cmd with args and returns its output.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	b := bytes.NewBufferString("")
	cmd.SetOut(b)
	cmd.SetErr(b)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return b.String(), err
}
