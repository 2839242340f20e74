package commands

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelsListsConfiguration(t *testing.T) {
	isolate(t, `{"server": {"domain": "https://bot.example.com"}, "channels": {"telegram": {"enabled": true, "botToken": "token123"}, "greenApi": {"enabled": true}}}`)

	out, err := execute(t, NewChannelsCommand())
	require.NoError(t, err)

	assert.Contains(t, out, "CHANNEL")
	assert.Contains(t, out, "telegram")
	assert.Contains(t, out, "/telegram")
	assert.Contains(t, out, "greenApi")
	assert.Contains(t, out, "missing")
}

func TestChannelsProbe(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken123/getMe" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"Abstract","username":"abstract_bot"}}`))
	}))
	defer ts.Close()

	isolate(t, `{"server": {"domain": "https://bot.example.com"}, "channels": {
		"telegram": {"enabled": true, "botToken": "token123", "apiBase": "`+ts.URL+`"},
		"database": {"enabled": true}}}`)

	out, err := execute(t, newChannelsProbeCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "abstract_bot")
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "database")
	assert.Contains(t, out, "n/a")
}

func TestChannelsProbeNothingEnabled(t *testing.T) {
	isolate(t, `{"server": {"domain": "https://bot.example.com"}}`)

	out, err := execute(t, newChannelsProbeCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "No channels enabled.")
}
