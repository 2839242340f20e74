// Package messenger adapts the Facebook Messenger platform webhook to the
// bot capabilities.
package messenger

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
	"github.com/liteclaw/abstractbot/internal/graph"
	"github.com/liteclaw/abstractbot/internal/inject"
)

// Config holds Messenger configuration.
type Config struct {
	AccessToken string `json:"accessToken" yaml:"accessToken"`
	VerifyToken string `json:"verifyToken,omitempty" yaml:"verifyToken,omitempty"`
	// PageID is used for proactive messages; webhooks carry their own.
	PageID      string        `json:"pageId,omitempty" yaml:"pageId,omitempty"`
	WebhookPath string        `json:"webhookPath,omitempty" yaml:"webhookPath,omitempty"`
	APIBase     string        `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
	RetryWait   time.Duration `json:"-" yaml:"-"`
}

// Adapter implements the Messenger channel.
type Adapter struct {
	*channels.BaseChannel

	cfg    *Config
	client *graph.Client
	mu     sync.Mutex
}

// New creates a new Messenger adapter.
func New(cfg *Config, handler bot.TaskHandler, logger zerolog.Logger) *Adapter {
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = "/messenger"
	}

	base := channels.NewBaseChannel(
		"messenger",
		"Facebook Messenger",
		channels.ChannelTypeMessenger,
		handler,
		logger,
	)

	return &Adapter{
		BaseChannel: base,
		cfg:         cfg,
		client:      graph.NewClient(cfg.APIBase, cfg.AccessToken, cfg.RetryWait),
	}
}

// Endpoints returns the subscription handshake and the event webhook.
func (a *Adapter) Endpoints() []bouncer.Endpoint {
	return []bouncer.Endpoint{
		bouncer.VerifyWebhook(a.cfg.WebhookPath, a.cfg.VerifyToken),
		{
			Name:      "messenger",
			Bounce:    true,
			Predicate: bouncer.Route(http.MethodPost, a.cfg.WebhookPath),
			Handler:   bouncer.Typed(a.HandleWebhook),
		},
	}
}

// Start starts the Messenger adapter.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.IsRunning() {
		return nil
	}
	if a.cfg.AccessToken == "" {
		return fmt.Errorf("messenger access token is required")
	}
	a.SetRunning(true, "webhook")
	a.Logger().Info().Str("path", a.cfg.WebhookPath).Msg("Messenger adapter started")
	return nil
}

// Stop stops the Messenger adapter.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.IsRunning() {
		return nil
	}
	a.SetRunning(false, "")
	a.Logger().Info().Msg("Messenger adapter stopped")
	return nil
}

// Probe reads the page behind the access token.
func (a *Adapter) Probe(ctx context.Context) (*channels.ProbeResult, error) {
	start := time.Now()
	var page struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := a.client.Get(ctx, "/me", &page); err != nil {
		return &channels.ProbeResult{OK: false, Error: err.Error()}, err
	}
	return &channels.ProbeResult{
		OK:        true,
		BotID:     page.ID,
		BotName:   page.Name,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// HandleWebhook runs the task handler for the first messaging event.
// Events without a sender or content are ignored.
func (a *Adapter) HandleWebhook(ctx context.Context, w Webhook) (any, error) {
	entry, m, ok := w.first()
	if !ok || m.Sender.ID == "" {
		return nil, nil
	}
	event := bot.ConversationEvent{
		Kind:        bot.KindMessage,
		Text:        m.text(),
		Attachments: m.attachments(),
	}
	if event.Text == "" && len(event.Attachments) == 0 {
		return nil, nil
	}

	o := inject.Compose(
		bot.WithMessageID(m.messageID()),
		replyReference(m),
		a.Override(entry.ID, m.Sender.ID),
	)
	return nil, a.Dispatch(ctx, o, event)
}

func replyReference(m Messaging) inject.Override {
	if m.Message == nil || m.Message.ReplyTo == nil {
		return inject.Override{}
	}
	return bot.WithReferenceID(m.Message.ReplyTo.MID)
}

// Override binds the Messenger capabilities for a recipient of a page.
func (a *Adapter) Override(pageID, recipient string) inject.Override {
	s := a.To(pageID, recipient)
	send := func(ctx context.Context, text string) (string, error) {
		return channels.Outbound(a.BaseChannel, func() (string, error) {
			return s.Text(ctx, text, MessagingResponse)
		})
	}
	return inject.Compose(
		bot.WithMedium(string(channels.ChannelTypeMessenger)),
		bot.WithUserID(recipient),
		bot.WithBotPhone(s.pageID),
		bot.WithReply(send),
		bot.WithReplyImage(func(ctx context.Context, img bot.ImageReply) (string, error) {
			return channels.Outbound(a.BaseChannel, func() (string, error) {
				return s.Image(ctx, img.Link, img.Data, img.Caption)
			})
		}),
		bot.WithSendFile(func(ctx context.Context, url string) error {
			_, err := channels.Outbound(a.BaseChannel, func() (string, error) {
				return s.Attachment(ctx, url, attachmentKind(url))
			})
			return err
		}),
		bot.WithSpinnerFunc(bot.SpinnerWithText(send)),
		bot.WithTyping(func(ctx context.Context) error {
			if err := s.Action(ctx, "typing_on"); err != nil {
				a.Logger().Warn().Err(err).Msg("Messenger typing indicator failed")
			}
			return nil
		}),
	)
}

func attachmentKind(url string) string {
	path := strings.ToLower(strings.SplitN(url, "?", 2)[0])
	switch {
	case strings.HasSuffix(path, ".mp4"), strings.HasSuffix(path, ".mov"):
		return "video"
	case strings.HasSuffix(path, ".mp3"), strings.HasSuffix(path, ".ogg"), strings.HasSuffix(path, ".wav"):
		return "audio"
	case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"), strings.HasSuffix(path, ".png"), strings.HasSuffix(path, ".gif"):
		return "image"
	default:
		return "file"
	}
}
