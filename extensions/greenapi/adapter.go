// Package greenapi adapts GreenAPI WhatsApp instances to the bot
// capabilities.
package greenapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/liteclaw/abstractbot/internal/bot"
	"github.com/liteclaw/abstractbot/internal/bouncer"
	"github.com/liteclaw/abstractbot/internal/channels"
	"github.com/liteclaw/abstractbot/internal/htmlfmt"
	"github.com/liteclaw/abstractbot/internal/inject"
)

const phoneSuffix = "@c.us"

// Config holds GreenAPI configuration.
type Config struct {
	IDInstance       string        `json:"idInstance" yaml:"idInstance"`
	APITokenInstance string        `json:"apiTokenInstance" yaml:"apiTokenInstance"`
	WebhookPath      string        `json:"webhookPath,omitempty" yaml:"webhookPath,omitempty"`
	WebhookURL       string        `json:"webhookUrl,omitempty" yaml:"webhookUrl,omitempty"`
	APIBase          string        `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
	RetryWait        time.Duration `json:"-" yaml:"-"`
}

// Notification is a GreenAPI webhook notification.
type Notification struct {
	TypeWebhook  string `json:"typeWebhook"`
	InstanceData struct {
		IDInstance   int64  `json:"idInstance"`
		Wid          string `json:"wid"`
		TypeInstance string `json:"typeInstance"`
	} `json:"instanceData"`
	IDMessage   string      `json:"idMessage"`
	Timestamp   int64       `json:"timestamp"`
	SenderData  SenderData  `json:"senderData"`
	MessageData MessageData `json:"messageData"`
}

type SenderData struct {
	ChatID     string `json:"chatId"`
	ChatName   string `json:"chatName"`
	Sender     string `json:"sender"`
	SenderName string `json:"senderName"`
}

// MessageData holds the message; TypeMessage selects the text field.
type MessageData struct {
	TypeMessage     string `json:"typeMessage"`
	TextMessageData *struct {
		TextMessage string `json:"textMessage"`
	} `json:"textMessageData,omitempty"`
	ExtendedTextMessageData *struct {
		Text        string `json:"text"`
		Description string `json:"description"`
		Title       string `json:"title"`
	} `json:"extendedTextMessageData,omitempty"`
	QuotedMessage *struct {
		StanzaID    string `json:"stanzaId"`
		Participant string `json:"participant"`
		TypeMessage string `json:"typeMessage"`
	} `json:"quotedMessage,omitempty"`
}

func (m MessageData) text() string {
	switch m.TypeMessage {
	case "extendedTextMessage", "quotedMessage":
		if m.ExtendedTextMessageData != nil {
			return m.ExtendedTextMessageData.Text
		}
	case "textMessage":
		if m.TextMessageData != nil {
			return m.TextMessageData.TextMessage
		}
	}
	return ""
}

func phone(id string) string { return strings.ReplaceAll(id, phoneSuffix, "") }

func chatID(phone string) string { return phone + phoneSuffix }

// Adapter implements the GreenAPI channel.
type Adapter struct {
	*channels.BaseChannel

	cfg    *Config
	client *Client
	mu     sync.Mutex
}

// New creates a new GreenAPI adapter.
func New(cfg *Config, handler bot.TaskHandler, logger zerolog.Logger) *Adapter {
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = "/green-api"
	}

	base := channels.NewBaseChannel(
		"greenapi",
		"GreenAPI",
		channels.ChannelTypeGreenAPI,
		handler,
		logger,
	)

	return &Adapter{
		BaseChannel: base,
		cfg:         cfg,
		client:      NewClient(cfg.IDInstance, cfg.APITokenInstance, cfg.APIBase, cfg.RetryWait),
	}
}

// Client exposes the underlying API client.
func (a *Adapter) Client() *Client { return a.client }

// Endpoints returns the notification webhook.
func (a *Adapter) Endpoints() []bouncer.Endpoint {
	return []bouncer.Endpoint{{
		Name:      "green-api",
		Bounce:    true,
		Predicate: bouncer.Route(http.MethodPost, a.cfg.WebhookPath),
		Handler:   bouncer.Typed(a.HandleNotification),
	}}
}

// Start registers the webhook when a public URL is configured.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.IsRunning() {
		return nil
	}
	if a.cfg.IDInstance == "" || a.cfg.APITokenInstance == "" {
		return fmt.Errorf("green-api instance id and token are required")
	}
	if a.cfg.WebhookURL != "" {
		if err := a.client.SetWebhook(ctx, a.cfg.WebhookURL); err != nil {
			a.RecordError(err)
			return fmt.Errorf("set green-api webhook: %w", err)
		}
		a.Logger().Info().Str("url", a.cfg.WebhookURL).Msg("GreenAPI webhook registered")
	}
	a.SetRunning(true, "webhook")
	return nil
}

// Stop stops the GreenAPI adapter.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.IsRunning() {
		return nil
	}
	a.SetRunning(false, "")
	a.Logger().Info().Msg("GreenAPI adapter stopped")
	return nil
}

// Probe reports whether the instance is authorized.
func (a *Adapter) Probe(ctx context.Context) (*channels.ProbeResult, error) {
	start := time.Now()
	state, err := a.client.State(ctx)
	if err == nil && state != "authorized" {
		err = fmt.Errorf("green-api instance state %q", state)
	}
	if err != nil {
		return &channels.ProbeResult{OK: false, Error: err.Error()}, err
	}
	return &channels.ProbeResult{
		OK:        true,
		BotID:     a.cfg.IDInstance,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// HandleNotification runs the task handler for incoming messages. Other
// notification types are ignored.
func (a *Adapter) HandleNotification(ctx context.Context, n Notification) (any, error) {
	if n.TypeWebhook != "incomingMessageReceived" {
		return nil, nil
	}
	event := bot.ConversationEvent{Kind: bot.KindMessage, Text: n.MessageData.text()}

	o := inject.Compose(
		bot.WithBotPhone(phone(n.InstanceData.Wid)),
		bot.WithMessageID(n.IDMessage),
		quoteReference(n.MessageData),
		a.Override(phone(n.SenderData.Sender)),
	)
	return nil, a.Dispatch(ctx, o, event)
}

func quoteReference(m MessageData) inject.Override {
	if m.QuotedMessage == nil || m.QuotedMessage.StanzaID == "" {
		return inject.Override{}
	}
	return bot.WithReferenceID(m.QuotedMessage.StanzaID)
}

// Override binds the GreenAPI capabilities for a phone number.
func (a *Adapter) Override(to string) inject.Override {
	send := func(ctx context.Context, text string) (string, error) {
		return channels.Outbound(a.BaseChannel, func() (string, error) {
			return a.client.SendMessage(ctx, to, htmlfmt.WhatsApp(text))
		})
	}
	return inject.Compose(
		bot.WithMedium(string(channels.ChannelTypeGreenAPI)),
		bot.WithUserID(to),
		bot.WithFileLimitMB(50),
		bot.WithReply(send),
		bot.WithSendFile(func(ctx context.Context, url string) error {
			_, err := channels.Outbound(a.BaseChannel, func() (string, error) {
				return a.client.SendFileByURL(ctx, to, url, "video.mp4", "")
			})
			return err
		}),
		bot.WithSpinnerFunc(bot.SpinnerWithText(send)),
	)
}
