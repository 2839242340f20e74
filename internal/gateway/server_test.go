package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liteclaw/abstractbot/extensions/database"
	"github.com/liteclaw/abstractbot/internal/bot"
	"github.com/liteclaw/abstractbot/internal/config"
	"github.com/liteclaw/abstractbot/internal/inject"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Server.Domain = "http://127.0.0.1"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	return cfg
}

func TestBuildRegistryOrder(t *testing.T) {
	cfg := testConfig()
	cfg.Channels.Database.Enabled = true
	cfg.Channels.Websocket.Enabled = true
	cfg.Channels.Websocket.Tokens = map[string]string{"t": "alice"}
	cfg.Channels.Telegram.Enabled = true
	cfg.Channels.Telegram.BotToken = "123:abc"

	registry, err := BuildRegistry(cfg, EchoHandler, nil, zerolog.Nop())
	require.NoError(t, err)

	var ids []string
	for _, ch := range registry.All() {
		ids = append(ids, ch.ID())
	}
	assert.Equal(t, []string{"telegram", "websocket", "database"}, ids)
	assert.Len(t, registry.Routes(), 1)
}

func TestBuildRegistryNothingEnabled(t *testing.T) {
	registry, err := BuildRegistry(testConfig(), EchoHandler, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, registry.All())
	assert.Empty(t, registry.Endpoints())
}

func TestStaticLogin(t *testing.T) {
	login := StaticLogin(map[string]string{"secret": "alice"})

	id, err := login(context.Background(), "secret")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "alice", id.UniqueID)
	assert.Equal(t, "alice", id.HumanReadableID)

	id, err = login(context.Background(), "wrong")
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestNewStore(t *testing.T) {
	assert.IsType(t, &database.MemoryStore{}, NewStore(""))
	assert.IsType(t, &database.FileStore{}, NewStore(t.TempDir()+"/records.jsonl"))
}

func TestEchoHandler(t *testing.T) {
	var replies []string
	o := bot.WithReply(func(_ context.Context, text string) (string, error) {
		replies = append(replies, text)
		return "1", nil
	})
	err := o.Run(context.Background(), func(ctx context.Context) error {
		return EchoHandler(ctx, bot.ConversationEvent{Kind: bot.KindMessage, Text: " hi "})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"got: hi"}, replies)
}

func TestEchoHandlerIgnoresReactions(t *testing.T) {
	called := false
	o := inject.Compose(bot.WithReply(func(context.Context, string) (string, error) {
		called = true
		return "", nil
	}))
	err := o.Run(context.Background(), func(ctx context.Context) error {
		return EchoHandler(ctx, bot.ConversationEvent{Kind: bot.KindReaction, Text: "👍", OnMessageID: "m1"})
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestHealthEndpoint(t *testing.T) {
	s, err := New(testConfig(), WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestStartAndShutdown(t *testing.T) {
	s, err := New(testConfig(), WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.NotEmpty(t, s.Addr())
	assert.Error(t, s.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.False(t, s.IsRunning())
	assert.Zero(t, s.Uptime())
}

func TestDatabaseMessageIsBouncedAndAnswered(t *testing.T) {
	ts := httptest.NewUnstartedServer(nil)
	defer ts.Close()

	cfg := testConfig()
	cfg.Server.Domain = "http://" + ts.Listener.Addr().String()
	cfg.Channels.Database.Enabled = true

	store := &database.MemoryStore{}
	s, err := New(cfg, WithLogger(zerolog.Nop()), WithStore(store))
	require.NoError(t, err)
	require.NoError(t, s.Registry().StartAll(context.Background()))
	ts.Config.Handler = s.Handler()
	ts.Start()

	resp, err := http.Post(ts.URL+"/messages", "application/json", strings.NewReader(`{"from":"alice","text":"hello"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Eventually(t, func() bool {
		for _, r := range store.Records() {
			if r.From == "bot" && r.Text == "got: hello" {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	records := store.Records()
	require.NotEmpty(t, records)
	assert.Equal(t, "alice", records[0].From)
	assert.Equal(t, "hello", records[0].Text)
}
