package commands

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liteclaw/abstractbot/internal/config"
	"github.com/liteclaw/abstractbot/internal/infra"
)

const minimalConfig = `{"server":{"domain":"https://bot.example.com","port":18080},"channels":{"database":{"enabled":true}}}`

func TestServeSkipsStartForTests(t *testing.T) {
	isolate(t, minimalConfig)
	t.Setenv("ABSTRACTBOT_SKIP_SERVE", "true")

	out, err := execute(t, NewServeCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "Starting abstractbot on 0.0.0.0:18080 (database)")
	assert.Contains(t, out, "Skipping actual server start")

	_, err = os.Stat(infra.ServePIDPath())
	assert.True(t, os.IsNotExist(err), "pid file is removed on exit")
}

func TestServePortFlagOverridesConfig(t *testing.T) {
	isolate(t, minimalConfig)
	t.Setenv("ABSTRACTBOT_SKIP_SERVE", "true")

	out, err := execute(t, NewServeCommand(), "--port", "9191", "--host", "127.0.0.1")
	require.NoError(t, err)
	assert.Contains(t, out, "127.0.0.1:9191")
}

func TestServeWithoutConfig(t *testing.T) {
	isolate(t, "")

	out, err := execute(t, NewServeCommand())
	assert.ErrorIs(t, err, config.ErrConfigNotFound)
	assert.Contains(t, out, "abstractbot config init")
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	isolate(t, `{"server":{"port":8080}}`)
	t.Setenv("ABSTRACTBOT_SKIP_SERVE", "true")

	_, err := execute(t, NewServeCommand())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Domain")
}

func TestServeSingleInstance(t *testing.T) {
	isolate(t, minimalConfig)
	t.Setenv("ABSTRACTBOT_SKIP_SERVE", "true")

	lock := flock.New(infra.ServeLockPath())
	locked, err := lock.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = lock.Unlock() }()

	out, err := execute(t, NewServeCommand())
	assert.EqualError(t, err, "server already running")
	assert.Contains(t, out, "already running")
}

func TestServeStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","uptime":"42s"}`))
	}))
	defer ts.Close()

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	isolate(t, `{"server":{"domain":"https://bot.example.com","host":"127.0.0.1","port":`+strconv.Itoa(port)+`}}`)

	out, err := execute(t, newServeStatusCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "Server: ok (uptime 42s)")
}

func TestServeStatusNotRunning(t *testing.T) {
	isolate(t, `{"server":{"domain":"https://bot.example.com","host":"127.0.0.1","port":1}}`)

	out, err := execute(t, newServeStatusCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "Server: not running")
}

func TestServeStopWithoutPID(t *testing.T) {
	isolate(t, minimalConfig)

	_, err := execute(t, newServeStopCommand())
	assert.EqualError(t, err, "server not running (pid file missing)")
}
