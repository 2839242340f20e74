// Package test provides integration and e2e tests for abstractbot.
package test

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liteclaw/abstractbot/extensions/websocket"
	"github.com/liteclaw/abstractbot/internal/bot"
	"github.com/liteclaw/abstractbot/internal/config"
	"github.com/liteclaw/abstractbot/internal/gateway"
	"github.com/liteclaw/abstractbot/test/fixtures"
	testhelpers "github.com/liteclaw/abstractbot/test/helpers"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// startGateway runs a gateway from the sample config against a mock
// Telegram API.
func startGateway(t *testing.T) (*gateway.Server, *testhelpers.MockServer, string) {
	t.Helper()

	telegramAPI := testhelpers.NewMockServer()
	t.Cleanup(telegramAPI.Close)
	base := "/bot" + fixtures.TelegramToken
	telegramAPI.HandleJSON(http.MethodPost, base+"/sendMessage", http.StatusOK, fixtures.TelegramSentMessage)
	telegramAPI.HandleJSON(http.MethodPost, base+"/editMessageText", http.StatusOK, `{"ok":true,"result":true}`)

	home := testhelpers.NewTempHome(t)
	t.Setenv("TEST_TELEGRAM_TOKEN", fixtures.TelegramToken)
	port := testhelpers.GetFreePort(t)
	home.WriteConfig(t, fmt.Sprintf(fixtures.SampleConfig, port, port, telegramAPI.URL))

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	server, err := gateway.New(cfg, gateway.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	require.NoError(t, server.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	})
	require.True(t, testhelpers.WaitForPort(t, "127.0.0.1", port, 2*time.Second))

	return server, telegramAPI, fmt.Sprintf("127.0.0.1:%d", port)
}

// TestGatewayE2E drives every channel kind of the sample config through a
// running gateway.
func TestGatewayE2E(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping e2e test in short mode")
	}

	server, telegramAPI, addr := startGateway(t)
	assert.True(t, server.IsRunning())
	assert.Len(t, server.Registry().All(), 3)

	t.Run("telegram webhook is acknowledged and answered", func(t *testing.T) {
		resp, err := http.Post("http://"+addr+"/telegram", "application/json", strings.NewReader(fixtures.TelegramUpdate))
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		sent := testhelpers.Eventually(t, 5*time.Second, func() bool {
			for _, r := range telegramAPI.RequestsTo("/bot" + fixtures.TelegramToken + "/sendMessage") {
				if strings.Contains(string(r.Body), "got: hello") {
					return true
				}
			}
			return false
		})
		assert.True(t, sent, "reply reaches the Telegram API")
	})

	t.Run("websocket login and reply", func(t *testing.T) {
		conn, _, err := gorillaws.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteMessage(gorillaws.TextMessage, []byte(fixtures.WebsocketLogin)))
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

		var texts []string
		for len(texts) == 0 || texts[len(texts)-1] != "got: hi there" {
			_, data, err := conn.ReadMessage()
			require.NoError(t, err)
			var f websocket.Frame
			require.NoError(t, json.Unmarshal(data, &f))
			if f.Text != "" {
				texts = append(texts, f.Text)
			}
		}
		assert.Contains(t, texts, "got: hi there")
	})

	t.Run("health and metrics", func(t *testing.T) {
		resp, err := http.Get("http://" + addr + "/healthz")
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, err = http.Get("http://" + addr + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

// TestMockServerHelper tests the mock server helper.
func TestMockServerHelper(t *testing.T) {
	server := testhelpers.NewMockServer()
	defer server.Close()

	server.HandleJSON(http.MethodGet, "/api/test", http.StatusOK, `{"status": "ok"}`)

	resp, err := http.Get(server.URL + "/api/test?x=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	requests := server.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodGet, requests[0].Method)
	assert.Equal(t, "/api/test", requests[0].Path)
	assert.Equal(t, "x=1", requests[0].Query)

	server.Reset()
	assert.Empty(t, server.Requests())
}

// TestMockChannelHelper runs the default handler on the mock channel.
func TestMockChannelHelper(t *testing.T) {
	channel := testhelpers.NewMockChannel("mock", gateway.EchoHandler)
	ctx := context.Background()

	require.NoError(t, channel.Start(ctx))
	assert.True(t, channel.IsRunning())
	channel.AssertNoReplies(t)

	require.NoError(t, channel.SimulateIncoming(ctx, "u1", "ping"))
	channel.AssertReplied(t, "got: ping")
	assert.Equal(t, int64(1), channel.State().MessageCount)

	channel.Reset()
	channel.AssertNoReplies(t)

	require.NoError(t, channel.Stop(ctx))
	assert.False(t, channel.IsRunning())
}

// TestMockChannelRejectsInvalidEvents checks events are validated before
// the handler runs.
func TestMockChannelRejectsInvalidEvents(t *testing.T) {
	called := false
	channel := testhelpers.NewMockChannel("mock", func(context.Context, bot.ConversationEvent) error {
		called = true
		return nil
	})
	err := channel.Dispatch(context.Background(), channel.Override("u1"), bot.ConversationEvent{Kind: bot.KindReaction})
	assert.Error(t, err)
	assert.False(t, called)
}

// TestTempHomeHelper tests the temp home helper.
func TestTempHomeHelper(t *testing.T) {
	home := testhelpers.NewTempHome(t)

	path := home.WriteConfig(t, "server:\n  domain: https://bot.example.com\n")
	assert.Equal(t, filepath.Join(home.StateDir(), "abstractbot.yaml"), path)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://bot.example.com", cfg.Server.Domain)

	file := home.CreateFile(t, "test/file.txt", "content")
	assert.FileExists(t, file)
}

// TestGetFreePort tests the GetFreePort helper.
func TestGetFreePort(t *testing.T) {
	port := testhelpers.GetFreePort(t)
	assert.Positive(t, port)
}

// TestPollHelper tests the Poll helper.
func TestPollHelper(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	count := 0
	result := testhelpers.Poll(t, ctx, 50*time.Millisecond, func() bool {
		count++
		return count >= 3
	})
	assert.True(t, result)
	assert.GreaterOrEqual(t, count, 3)
}
