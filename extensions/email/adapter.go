// Package email adapts ForwardEmail webhooks and its outbound email API to
// the bot capabilities.
package email

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/liteclaw/abstractbot/internal/bot"
	"github.com/liteclaw/abstractbot/internal/bouncer"
	"github.com/liteclaw/abstractbot/internal/channels"
	"github.com/liteclaw/abstractbot/internal/htmlfmt"
	"github.com/liteclaw/abstractbot/internal/inject"
)

const defaultAPIBase = "https://api.forwardemail.net"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config holds ForwardEmail configuration.
type Config struct {
	// APIKey is the ForwardEmail API token, sent as the basic auth user.
	APIKey      string        `json:"apiKey" yaml:"apiKey"`
	From        string        `json:"from" yaml:"from"`
	WebhookPath string        `json:"webhookPath,omitempty" yaml:"webhookPath,omitempty"`
	APIBase     string        `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
	RetryWait   time.Duration `json:"-" yaml:"-"`
}

// Address is one parsed mailbox of a header.
type Address struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// Field is a parsed address header.
type Field struct {
	Value []Address `json:"value"`
	Text  string    `json:"text"`
	HTML  string    `json:"html"`
}

func (f Field) first() string {
	if len(f.Value) == 0 {
		return ""
	}
	return f.Value[0].Address
}

// Webhook is the parsed email ForwardEmail posts.
type Webhook struct {
	From    Field  `json:"from"`
	To      Field  `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

// Message is an outbound email.
type Message struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTML     string `json:"html"`
	Text     string `json:"text"`
	Encoding string `json:"encoding"`
}

// Adapter implements the email channel.
type Adapter struct {
	*channels.BaseChannel

	cfg  *Config
	http *resty.Client
	mu   sync.Mutex
}

// New creates a new email adapter.
func New(cfg *Config, handler bot.TaskHandler, logger zerolog.Logger) *Adapter {
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = "/email"
	}
	base := cfg.APIBase
	if base == "" {
		base = defaultAPIBase
	}
	wait := cfg.RetryWait
	if wait <= 0 {
		wait = 500 * time.Millisecond
	}

	client := resty.New().
		SetHostURL(strings.TrimRight(base, "/")).
		SetBasicAuth(cfg.APIKey, "").
		SetTimeout(60 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(wait).
		SetRetryMaxWaitTime(wait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	client.JSONMarshal = json.Marshal
	client.JSONUnmarshal = json.Unmarshal

	return &Adapter{
		BaseChannel: channels.NewBaseChannel("email", "Email", channels.ChannelTypeEmail, handler, logger),
		cfg:         cfg,
		http:        client,
	}
}

func (a *Adapter) Endpoints() []bouncer.Endpoint {
	return []bouncer.Endpoint{{
		Name:      "email",
		Bounce:    true,
		Predicate: bouncer.Route(http.MethodPost, a.cfg.WebhookPath),
		Handler:   bouncer.Typed(a.HandleWebhook),
	}}
}

func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.IsRunning() {
		return nil
	}
	if a.cfg.APIKey == "" || a.cfg.From == "" {
		return fmt.Errorf("email api key and from address are required")
	}
	a.SetRunning(true, "webhook")
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.SetRunning(false, "")
	return nil
}

// HandleWebhook runs the task handler for an inbound email. The text part
// is preferred; HTML-only mail is flattened to text.
func (a *Adapter) HandleWebhook(ctx context.Context, w Webhook) (any, error) {
	sender := w.From.first()
	if sender == "" {
		return nil, fmt.Errorf("email without sender address")
	}
	text := strings.TrimSpace(w.Text)
	if text == "" && w.HTML != "" {
		text = htmlfmt.PlainText(w.HTML)
	}
	event := bot.ConversationEvent{Kind: bot.KindMessage, Text: text}
	return nil, a.Dispatch(ctx, a.Override(sender, w.To.first()), event)
}

// Override binds the email capabilities for replying to sender. inbox is
// the address the user wrote to and names the reply subject.
func (a *Adapter) Override(sender, inbox string) inject.Override {
	return inject.Compose(
		bot.WithMedium(string(channels.ChannelTypeEmail)),
		bot.WithUserID(sender),
		bot.WithReply(func(ctx context.Context, html string) (string, error) {
			return channels.Outbound(a.BaseChannel, func() (string, error) {
				err := a.Send(ctx, Message{
					From:    a.cfg.From,
					To:      sender,
					Subject: "Re: " + inbox,
					HTML:    html,
					Text:    htmlfmt.PlainText(html),
				})
				if err != nil {
					return "", err
				}
				return uuid.NewString(), nil
			})
		}),
	)
}

// Send posts an email through the ForwardEmail API.
func (a *Adapter) Send(ctx context.Context, m Message) error {
	m.Encoding = "utf-8"
	resp, err := a.http.R().SetContext(ctx).SetBody(m).Post("/v1/emails")
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("send email: %d %s", resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}
	return nil
}
