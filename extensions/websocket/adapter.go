// Package websocket serves a browser chat over a websocket. Clients send
// {token, text} frames; each token is resolved to a user by a login
// function, and replies are pushed to every socket of that user.
package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/liteclaw/abstractbot/internal/bot"
	"github.com/liteclaw/abstractbot/internal/bouncer"
	"github.com/liteclaw/abstractbot/internal/channels"
	"github.com/liteclaw/abstractbot/internal/inject"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Identity is a logged-in user. UniqueID keys the sockets; HumanReadableID
// is what the task handler sees as the user id.
type Identity struct {
	UniqueID        string `json:"uniqueId"`
	HumanReadableID string `json:"humanReadableId"`
}

// LoginFunc resolves a token. A nil identity rejects the socket.
type LoginFunc func(ctx context.Context, token string) (*Identity, error)

// Config holds websocket channel configuration.
type Config struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

type inbound struct {
	Text      string `json:"text"`
	Token     string `json:"token"`
	Timestamp int64  `json:"timestamp"`
}

// Adapter implements the websocket channel.
type Adapter struct {
	*channels.BaseChannel

	cfg    *Config
	login  LoginFunc
	hub    *Hub
	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup
	mu     sync.Mutex
}

// New creates a new websocket adapter.
func New(cfg *Config, login LoginFunc, handler bot.TaskHandler, logger zerolog.Logger) *Adapter {
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	base := channels.NewBaseChannel("websocket", "WebSocket", channels.ChannelTypeWebsocket, handler, logger)
	ctx, cancel := context.WithCancel(context.Background())
	return &Adapter{
		BaseChannel: base,
		cfg:         cfg,
		login:       login,
		hub:         newHub(base.Logger()),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Hub exposes the socket registry.
func (a *Adapter) Hub() *Hub { return a.hub }

// Endpoints is empty; the channel is served by its upgrade route.
func (a *Adapter) Endpoints() []bouncer.Endpoint { return nil }

// Routes returns the upgrade route.
func (a *Adapter) Routes() []bouncer.Option {
	return []bouncer.Option{bouncer.WithRoute(http.MethodGet, a.cfg.Path, a.serve)}
}

func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.login == nil {
		return fmt.Errorf("websocket login function is required")
	}
	a.SetRunning(true, "websocket")
	return nil
}

// Stop closes every socket and waits for running tasks.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cancel()
	a.hub.closeAll()

	done := make(chan struct{})
	go func() {
		a.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	a.SetRunning(false, "")
	return nil
}

// Send pushes a frame to userID, buffering it when the user is offline.
func (a *Adapter) Send(userID string, f Frame) {
	a.hub.send(userID, f)
	a.RecordOutbound()
}

func (a *Adapter) serve(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		a.Logger().Error().Err(err).Msg("WebSocket upgrade failed")
		return nil
	}
	conn := &conn{ws: ws}
	defer func() {
		a.hub.remove(conn)
		_ = ws.Close()
	}()

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				a.Logger().Debug().Err(err).Msg("WebSocket read ended")
			}
			return nil
		}

		var in inbound
		if err := json.Unmarshal(msg, &in); err != nil {
			a.Logger().Warn().Err(err).Msg("Malformed websocket frame")
			continue
		}
		id, err := a.login(a.ctx, in.Token)
		if err != nil {
			a.RecordError(err)
			a.Logger().Error().Err(err).Msg("WebSocket login failed")
		}
		if id == nil {
			return nil
		}
		a.hub.add(conn, id.UniqueID)
		if in.Text == "" {
			continue
		}
		a.dispatch(*id, in.Text)
	}
}

// dispatch runs the task handler without blocking the read loop.
func (a *Adapter) dispatch(id Identity, text string) {
	a.tasks.Add(1)
	go func() {
		defer a.tasks.Done()
		send := func(_ context.Context, f Frame) error {
			a.Send(id.UniqueID, f)
			return nil
		}
		event := bot.ConversationEvent{Kind: bot.KindMessage, Text: text}
		_ = a.Dispatch(a.ctx, a.Override(send, id), event)
	}()
}

// Override binds the websocket capabilities for a logged-in user.
func (a *Adapter) Override(send SendFunc, id Identity) inject.Override {
	return Override(send, id.HumanReadableID)
}
