package gateway

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/liteclaw/abstractbot/extensions/database"
	"github.com/liteclaw/abstractbot/extensions/email"
	"github.com/liteclaw/abstractbot/extensions/greenapi"
	"github.com/liteclaw/abstractbot/extensions/messenger"
	"github.com/liteclaw/abstractbot/extensions/telegram"
	"github.com/liteclaw/abstractbot/extensions/websocket"
	"github.com/liteclaw/abstractbot/extensions/whatsapp"
	"github.com/liteclaw/abstractbot/internal/bot"
	"github.com/liteclaw/abstractbot/internal/channels"
	"github.com/liteclaw/abstractbot/internal/config"
	"github.com/liteclaw/abstractbot/internal/infra"
)

// BuildRegistry registers an adapter for every enabled channel in cfg.
// Channels are registered in a fixed order, which is the order their
// endpoints are matched in.
func BuildRegistry(cfg *config.Config, handler bot.TaskHandler, store database.Storer, logger zerolog.Logger) (*channels.Registry, error) {
	registry := channels.NewRegistry(&logger)
	ch := cfg.Channels

	var adapters []channels.Channel
	if ch.Telegram.Enabled {
		adapters = append(adapters, telegram.New(&telegram.Config{
			Token:       ch.Telegram.BotToken,
			WebhookPath: ch.Telegram.WebhookPath,
			APIBase:     ch.Telegram.APIBase,
			FileLimitMB: ch.Telegram.FileLimitMB,
		}, handler, logger))
	}
	if ch.WhatsApp.Enabled {
		adapters = append(adapters, whatsapp.New(&whatsapp.Config{
			AccessToken:   ch.WhatsApp.AccessToken,
			PhoneNumberID: ch.WhatsApp.PhoneNumberID,
			VerifyToken:   ch.WhatsApp.VerifyToken,
			WebhookPath:   ch.WhatsApp.WebhookPath,
			APIBase:       ch.WhatsApp.APIBase,
		}, handler, logger))
	}
	if ch.Messenger.Enabled {
		adapters = append(adapters, messenger.New(&messenger.Config{
			AccessToken: ch.Messenger.AccessToken,
			VerifyToken: ch.Messenger.VerifyToken,
			PageID:      ch.Messenger.PageID,
			WebhookPath: ch.Messenger.WebhookPath,
			APIBase:     ch.Messenger.APIBase,
		}, handler, logger))
	}
	if ch.GreenAPI.Enabled {
		adapters = append(adapters, greenapi.New(&greenapi.Config{
			IDInstance:       ch.GreenAPI.IDInstance,
			APITokenInstance: ch.GreenAPI.APITokenInstance,
			WebhookPath:      ch.GreenAPI.WebhookPath,
			APIBase:          ch.GreenAPI.APIBase,
		}, handler, logger))
	}
	if ch.Email.Enabled {
		adapters = append(adapters, email.New(&email.Config{
			APIKey:      ch.Email.APIKey,
			From:        ch.Email.From,
			WebhookPath: ch.Email.WebhookPath,
			APIBase:     ch.Email.APIBase,
		}, handler, logger))
	}
	if ch.Websocket.Enabled {
		adapters = append(adapters, websocket.New(&websocket.Config{
			Path: ch.Websocket.Path,
		}, StaticLogin(ch.Websocket.Tokens), handler, logger))
	}
	if ch.Database.Enabled {
		if store == nil {
			store = NewStore(infra.ResolveDataFile(ch.Database.File))
		}
		adapters = append(adapters, database.New(&database.Config{
			Path:    ch.Database.Path,
			BotName: ch.Database.BotName,
			File:    ch.Database.File,
		}, store, handler, logger))
	}

	for _, a := range adapters {
		if err := registry.Register(a); err != nil {
			return nil, fmt.Errorf("register %s: %w", a.ID(), err)
		}
	}
	return registry, nil
}

// NewStore returns a file store for path, or a memory store when path is
// empty.
func NewStore(path string) database.Storer {
	if path == "" {
		return &database.MemoryStore{}
	}
	return database.NewFileStore(path)
}

// StaticLogin resolves websocket tokens from a token to user id map. Unknown
// tokens are rejected.
func StaticLogin(tokens map[string]string) websocket.LoginFunc {
	return func(_ context.Context, token string) (*websocket.Identity, error) {
		userID, ok := tokens[token]
		if !ok || token == "" {
			return nil, nil
		}
		return &websocket.Identity{UniqueID: userID, HumanReadableID: userID}, nil
	}
}
