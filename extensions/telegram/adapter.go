// Package telegram adapts the Telegram Bot API webhook to the bot
// capabilities.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/liteclaw/abstractbot/internal/bot"
	"github.com/liteclaw/abstractbot/internal/bouncer"
	"github.com/liteclaw/abstractbot/internal/channels"
	"github.com/liteclaw/abstractbot/internal/htmlfmt"
	"github.com/liteclaw/abstractbot/internal/inject"
)

// Config holds Telegram-specific configuration.
type Config struct {
	Token string `json:"token" yaml:"token"`
	// WebhookPath is the path Telegram posts updates to.
	WebhookPath string `json:"webhookPath,omitempty" yaml:"webhookPath,omitempty"`
	// WebhookURL, when set, is registered with setWebhook on start.
	WebhookURL    string        `json:"webhookUrl,omitempty" yaml:"webhookUrl,omitempty"`
	APIBase       string        `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
	FileLimitMB   float64       `json:"fileLimitMb,omitempty" yaml:"fileLimitMb,omitempty"`
	RetryWait     time.Duration `json:"-" yaml:"-"`
	FileRetryWait time.Duration `json:"-" yaml:"-"`
}

// Adapter implements the Telegram channel.
type Adapter struct {
	*channels.BaseChannel

	cfg             *Config
	client          *Client
	spinnerInterval time.Duration
	mu              sync.Mutex
}

// New creates a new Telegram adapter.
func New(cfg *Config, handler bot.TaskHandler, logger zerolog.Logger) *Adapter {
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = "/telegram"
	}
	if cfg.FileLimitMB == 0 {
		cfg.FileLimitMB = 50
	}

	base := channels.NewBaseChannel(
		"telegram",
		"Telegram",
		channels.ChannelTypeTelegram,
		handler,
		logger,
	)

	return &Adapter{
		BaseChannel:     base,
		cfg:             cfg,
		client:          NewClient(cfg.Token, cfg.APIBase, cfg.RetryWait, cfg.FileRetryWait, base.Logger()),
		spinnerInterval: 500 * time.Millisecond,
	}
}

// Client exposes the underlying API client.
func (a *Adapter) Client() *Client { return a.client }

// Endpoints returns the update webhook. Updates are bounced because
// downloading attachments and running the task can outlast Telegram's
// webhook timeout.
func (a *Adapter) Endpoints() []bouncer.Endpoint {
	return []bouncer.Endpoint{{
		Name:      "telegram",
		Bounce:    true,
		Predicate: bouncer.Route(http.MethodPost, a.cfg.WebhookPath),
		Handler:   bouncer.Typed(a.HandleUpdate),
	}}
}

// Start registers the webhook when a public URL is configured.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.IsRunning() {
		return nil
	}
	if a.cfg.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if a.cfg.WebhookURL != "" {
		if err := a.client.SetWebhook(ctx, a.cfg.WebhookURL); err != nil {
			a.RecordError(err)
			return fmt.Errorf("set telegram webhook: %w", err)
		}
		a.Logger().Info().Str("url", a.cfg.WebhookURL).Msg("Telegram webhook registered")
	}

	a.SetRunning(true, "webhook")
	return nil
}

// Stop stops the Telegram adapter.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.IsRunning() {
		return nil
	}
	a.SetRunning(false, "")
	a.Logger().Info().Msg("Telegram adapter stopped")
	return nil
}

// Probe verifies the Telegram token.
func (a *Adapter) Probe(ctx context.Context) (*channels.ProbeResult, error) {
	start := time.Now()
	me, err := a.client.GetMe(ctx)
	if err != nil {
		return &channels.ProbeResult{OK: false, Error: err.Error()}, err
	}
	return &channels.ProbeResult{
		OK:        true,
		BotID:     strconv.FormatInt(me.ID, 10),
		BotName:   me.FirstName,
		Username:  me.UserName,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// HandleUpdate normalizes a message or edited message and runs the task
// handler. Other update kinds are ignored.
func (a *Adapter) HandleUpdate(ctx context.Context, u tgbotapi.Update) (any, error) {
	msg, edited := u.Message, false
	if msg == nil && u.EditedMessage != nil {
		msg, edited = u.EditedMessage, true
	}
	if msg == nil || msg.From == nil {
		return nil, nil
	}

	event, err := a.normalize(ctx, msg)
	if err != nil {
		return nil, err
	}
	if edited {
		event.Kind = bot.KindEdit
		event.OnMessageID = strconv.Itoa(msg.MessageID)
	}

	chatID := msg.From.ID
	if msg.Chat != nil {
		chatID = msg.Chat.ID
	}
	o := inject.Compose(
		bot.WithUserID(strconv.FormatInt(msg.From.ID, 10)),
		bot.WithMessageID(strconv.Itoa(msg.MessageID)),
		replyReference(msg),
		a.Override(chatID),
	)
	return nil, a.Dispatch(ctx, o, event)
}

func replyReference(msg *tgbotapi.Message) inject.Override {
	if msg.ReplyToMessage == nil {
		return inject.Override{}
	}
	return bot.WithReferenceID(strconv.Itoa(msg.ReplyToMessage.MessageID))
}

// Override binds the Telegram capabilities for chatID. It can be used
// outside a webhook to message a chat proactively.
func (a *Adapter) Override(chatID int64) inject.Override {
	return inject.Compose(
		bot.WithMedium(string(channels.ChannelTypeTelegram)),
		bot.WithUserID(strconv.FormatInt(chatID, 10)),
		bot.WithFileLimitMB(a.cfg.FileLimitMB),
		bot.WithReply(func(ctx context.Context, text string) (string, error) {
			return channels.Outbound(a.BaseChannel, func() (string, error) {
				return a.reply(ctx, chatID, text)
			})
		}),
		bot.WithReplyImage(func(ctx context.Context, img bot.ImageReply) (string, error) {
			return channels.Outbound(a.BaseChannel, func() (string, error) {
				return a.replyImage(ctx, chatID, img)
			})
		}),
		bot.WithSendFile(func(ctx context.Context, url string) error {
			_, err := channels.Outbound(a.BaseChannel, func() (int, error) {
				return a.sendFile(ctx, chatID, url)
			})
			return err
		}),
		bot.WithEditMessage(func(ctx context.Context, messageID, text string) error {
			id, err := strconv.Atoi(messageID)
			if err != nil {
				return fmt.Errorf("telegram message id %q: %w", messageID, err)
			}
			return a.client.EditText(ctx, chatID, id, text, true)
		}),
		bot.WithProgressBar(a.progressBar(chatID)),
		bot.WithSpinnerFunc(a.spinner(chatID)),
		bot.WithTyping(func(ctx context.Context) error {
			return a.client.SendChatAction(ctx, chatID, tgbotapi.ChatTyping)
		}),
	)
}

// reply sends text as HTML. A <video> element in the text is sent as a
// video after the surrounding text.
func (a *Adapter) reply(ctx context.Context, chatID int64, text string) (string, error) {
	v, ok := htmlfmt.ExtractVideo(text)
	if !ok {
		id, err := a.client.SendHTML(ctx, chatID, text)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(id), nil
	}

	var id int
	if v.Remaining != "" {
		var err error
		if id, err = a.client.SendHTML(ctx, chatID, v.Remaining); err != nil {
			return "", err
		}
	}
	vid, err := a.client.SendVideo(ctx, chatID, v.URL)
	if err != nil {
		return "", err
	}
	if id == 0 {
		id = vid
	}
	return strconv.Itoa(id), nil
}

func (a *Adapter) replyImage(ctx context.Context, chatID int64, img bot.ImageReply) (string, error) {
	var id int
	var err error
	switch {
	case img.Link != "":
		id, err = a.client.SendPhotoURL(ctx, chatID, img.Link, img.Caption)
	case img.Data != "":
		id, err = a.client.SendPhotoData(ctx, chatID, img.Data, img.Caption)
	default:
		return "", fmt.Errorf("image reply needs a link or data")
	}
	if err != nil {
		return "", err
	}
	return strconv.Itoa(id), nil
}

func (a *Adapter) sendFile(ctx context.Context, chatID int64, url string) (int, error) {
	if strings.Contains(url, ".gif") {
		return a.client.SendAnimation(ctx, chatID, url)
	}
	return a.client.SendVideo(ctx, chatID, url)
}
