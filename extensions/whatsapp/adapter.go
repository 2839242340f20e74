// Package whatsapp adapts the WhatsApp Business Cloud API webhook to the bot
// capabilities.
package whatsapp

import (
	"context"
	"encoding/base64"
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
	"github.com/liteclaw/abstractbot/internal/htmlfmt"
	"github.com/liteclaw/abstractbot/internal/inject"
)

// Config holds WhatsApp Cloud API configuration.
type Config struct {
	AccessToken   string `json:"accessToken" yaml:"accessToken"`
	PhoneNumberID string `json:"phoneNumberId" yaml:"phoneNumberId"`
	// VerifyToken answers the webhook subscription handshake.
	VerifyToken string        `json:"verifyToken,omitempty" yaml:"verifyToken,omitempty"`
	WebhookPath string        `json:"webhookPath,omitempty" yaml:"webhookPath,omitempty"`
	APIBase     string        `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
	FileLimitMB float64       `json:"fileLimitMb,omitempty" yaml:"fileLimitMb,omitempty"`
	RetryWait   time.Duration `json:"-" yaml:"-"`
}

// Adapter implements the WhatsApp Cloud channel.
type Adapter struct {
	*channels.BaseChannel

	cfg    *Config
	client *graph.Client
	mu     sync.Mutex
}

// New creates a new WhatsApp adapter.
func New(cfg *Config, handler bot.TaskHandler, logger zerolog.Logger) *Adapter {
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = "/whatsapp"
	}
	if cfg.FileLimitMB == 0 {
		cfg.FileLimitMB = 100
	}

	base := channels.NewBaseChannel(
		"whatsapp",
		"WhatsApp",
		channels.ChannelTypeWhatsApp,
		handler,
		logger,
	)

	return &Adapter{
		BaseChannel: base,
		cfg:         cfg,
		client:      graph.NewClient(cfg.APIBase, cfg.AccessToken, cfg.RetryWait),
	}
}

// Endpoints returns the subscription handshake and the notification
// webhook, both on the configured path.
func (a *Adapter) Endpoints() []bouncer.Endpoint {
	return []bouncer.Endpoint{
		bouncer.VerifyWebhook(a.cfg.WebhookPath, a.cfg.VerifyToken),
		{
			Name:      "whatsapp",
			Bounce:    true,
			Predicate: bouncer.Route(http.MethodPost, a.cfg.WebhookPath),
			Handler:   bouncer.Typed(a.HandleWebhook),
		},
	}
}

// Start checks the credentials. WhatsApp webhooks are registered in the
// Meta app dashboard, not through the API.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.IsRunning() {
		return nil
	}
	if a.cfg.AccessToken == "" || a.cfg.PhoneNumberID == "" {
		return fmt.Errorf("whatsapp access token and phone number id are required")
	}
	a.SetRunning(true, "webhook")
	a.Logger().Info().Str("path", a.cfg.WebhookPath).Msg("WhatsApp adapter started")
	return nil
}

// Stop stops the WhatsApp adapter.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.IsRunning() {
		return nil
	}
	a.SetRunning(false, "")
	a.Logger().Info().Msg("WhatsApp adapter stopped")
	return nil
}

// Probe reads the configured phone number.
func (a *Adapter) Probe(ctx context.Context) (*channels.ProbeResult, error) {
	start := time.Now()
	var phone struct {
		ID                 string `json:"id"`
		DisplayPhoneNumber string `json:"display_phone_number"`
		VerifiedName       string `json:"verified_name"`
	}
	if err := a.client.Get(ctx, "/"+a.cfg.PhoneNumberID, &phone); err != nil {
		return &channels.ProbeResult{OK: false, Error: err.Error()}, err
	}
	return &channels.ProbeResult{
		OK:        true,
		BotID:     phone.ID,
		BotName:   phone.VerifiedName,
		Username:  phone.DisplayPhoneNumber,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// HandleWebhook runs the task handler for the first message of a
// notification. Status notifications carry no message and are ignored.
func (a *Adapter) HandleWebhook(ctx context.Context, w Webhook) (any, error) {
	msg, meta, ok := w.first()
	if !ok {
		return nil, nil
	}

	event, err := a.normalize(ctx, msg)
	if err != nil {
		return nil, err
	}

	o := inject.Compose(
		bot.WithMessageID(msg.ID),
		contextReference(msg),
		bot.WithBotPhone(meta.DisplayPhoneNumber),
		a.Override(msg.From, msg.ID),
	)
	return nil, a.Dispatch(ctx, o, event)
}

func contextReference(msg Message) inject.Override {
	if msg.Context == nil || msg.Context.ID == "" {
		return inject.Override{}
	}
	return bot.WithReferenceID(msg.Context.ID)
}

type sendResult struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (r sendResult) id() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].ID
}

// Override binds the WhatsApp capabilities for a recipient. inboundID is the
// message the typing indicator marks as read; it may be empty.
func (a *Adapter) Override(to, inboundID string) inject.Override {
	send := func(ctx context.Context, text string) (string, error) {
		return channels.Outbound(a.BaseChannel, func() (string, error) {
			return a.send(ctx, to, "text", map[string]any{
				"body":        htmlfmt.WhatsApp(text),
				"preview_url": false,
			})
		})
	}
	return inject.Compose(
		bot.WithMedium(string(channels.ChannelTypeWhatsApp)),
		bot.WithUserID(to),
		bot.WithFileLimitMB(a.cfg.FileLimitMB),
		bot.WithReply(send),
		bot.WithReplyImage(func(ctx context.Context, img bot.ImageReply) (string, error) {
			return channels.Outbound(a.BaseChannel, func() (string, error) {
				return a.replyImage(ctx, to, img)
			})
		}),
		bot.WithSendFile(func(ctx context.Context, url string) error {
			_, err := channels.Outbound(a.BaseChannel, func() (string, error) {
				return a.send(ctx, to, "document", map[string]any{"link": url})
			})
			return err
		}),
		bot.WithSpinnerFunc(bot.SpinnerWithText(send)),
		bot.WithTyping(func(ctx context.Context) error {
			if inboundID == "" {
				return nil
			}
			return a.client.Post(ctx, a.messagesPath(), map[string]any{
				"messaging_product": "whatsapp",
				"status":            "read",
				"message_id":        inboundID,
				"typing_indicator":  map[string]any{"type": "text"},
			}, nil)
		}),
	)
}

func (a *Adapter) messagesPath() string {
	return "/" + a.cfg.PhoneNumberID + "/messages"
}

func (a *Adapter) send(ctx context.Context, to, kind string, content map[string]any) (string, error) {
	var out sendResult
	err := a.client.Post(ctx, a.messagesPath(), map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              kind,
		kind:                content,
	}, &out)
	if err != nil {
		return "", fmt.Errorf("whatsapp send %s: %w", kind, err)
	}
	return out.id(), nil
}

// replyImage sends a linked image, or uploads inline data first.
func (a *Adapter) replyImage(ctx context.Context, to string, img bot.ImageReply) (string, error) {
	image := map[string]any{}
	if img.Caption != "" {
		image["caption"] = htmlfmt.WhatsApp(img.Caption)
	}
	switch {
	case img.Link != "":
		image["link"] = img.Link
	case img.Data != "":
		id, err := a.uploadImage(ctx, img.Data)
		if err != nil {
			return "", err
		}
		image["id"] = id
	default:
		return "", fmt.Errorf("image reply needs a link or data")
	}
	return a.send(ctx, to, "image", image)
}

func (a *Adapter) uploadImage(ctx context.Context, data string) (string, error) {
	contentType := "image/jpeg"
	if strings.HasPrefix(data, "data:") {
		header, payload, ok := strings.Cut(data, ",")
		if !ok {
			return "", fmt.Errorf("malformed data url")
		}
		contentType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		data = payload
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	var out struct {
		ID string `json:"id"`
	}
	err = a.client.Upload(ctx, "/"+a.cfg.PhoneNumberID+"/media", "file", "image", contentType, raw,
		map[string]string{"messaging_product": "whatsapp", "type": contentType}, &out)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return out.ID, nil
}
