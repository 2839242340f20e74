// Package database is a channel without a chat platform: clients POST
// {from, text} and every message, inbound or outbound, is handed to a
// Storer for a client to read back.
package database

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/liteclaw/abstractbot/extensions/websocket"
	"github.com/liteclaw/abstractbot/internal/bot"
	"github.com/liteclaw/abstractbot/internal/bouncer"
	"github.com/liteclaw/abstractbot/internal/channels"
	"github.com/liteclaw/abstractbot/internal/inject"
)

// Config holds database channel configuration.
type Config struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// BotName is the from field of bot records.
	BotName string `json:"botName,omitempty" yaml:"botName,omitempty"`
	// File, when set, is a JSON lines file records are appended to.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// Request is the body clients post.
type Request struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// Adapter implements the database channel.
type Adapter struct {
	*channels.BaseChannel

	cfg   *Config
	store Storer
}

// New creates a new database adapter.
func New(cfg *Config, store Storer, handler bot.TaskHandler, logger zerolog.Logger) *Adapter {
	if cfg.Path == "" {
		cfg.Path = "/messages"
	}
	if cfg.BotName == "" {
		cfg.BotName = "bot"
	}
	return &Adapter{
		BaseChannel: channels.NewBaseChannel("database", "Database", channels.ChannelTypeDatabase, handler, logger),
		cfg:         cfg,
		store:       store,
	}
}

func (a *Adapter) Endpoints() []bouncer.Endpoint {
	return []bouncer.Endpoint{{
		Name:      "database",
		Bounce:    true,
		Predicate: bouncer.Route(http.MethodPost, a.cfg.Path),
		Handler:   bouncer.Typed(a.HandleRequest),
	}}
}

func (a *Adapter) Start(ctx context.Context) error {
	if a.store == nil {
		return fmt.Errorf("database channel needs a store")
	}
	a.SetRunning(true, "store")
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.SetRunning(false, "")
	return nil
}

// HandleRequest stores the inbound message and runs the task handler with
// outputs stored under the bot name.
func (a *Adapter) HandleRequest(ctx context.Context, req Request) (any, error) {
	if req.From == "" {
		return nil, fmt.Errorf("database request without sender")
	}
	err := a.store.Store(ctx, Record{
		From: req.From,
		Key:  uuid.NewString(),
		Text: req.Text,
		Time: time.Now().UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("store inbound: %w", err)
	}
	event := bot.ConversationEvent{Kind: bot.KindMessage, Text: req.Text}
	return nil, a.Dispatch(ctx, a.Override(req.From), event)
}

// Override binds frame capabilities that store each frame as a bot record.
func (a *Adapter) Override(userID string) inject.Override {
	return websocket.Override(func(ctx context.Context, f websocket.Frame) error {
		_, err := channels.Outbound(a.BaseChannel, func() (struct{}, error) {
			return struct{}{}, a.store.Store(ctx, Record{
				From:       a.cfg.BotName,
				Key:        f.Key,
				Text:       f.Text,
				Percentage: f.Percentage,
				Spinner:    f.Spinner,
				URL:        f.URL,
				Time:       time.Now().UnixMilli(),
			})
		})
		return err
	}, userID)
}
