package whatsapp

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/liteclaw/abstractbot/internal/bot"
)

// Webhook is the notification the Cloud API posts for message events.
type Webhook struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// Message is one inbound message. Type selects the populated field.
type Message struct {
	From      string    `json:"from"`
	ID        string    `json:"id"`
	Timestamp string    `json:"timestamp"`
	Type      string    `json:"type"`
	Context   *Context  `json:"context,omitempty"`
	Text      *Text     `json:"text,omitempty"`
	Image     *Media    `json:"image,omitempty"`
	Document  *Media    `json:"document,omitempty"`
	Audio     *Media    `json:"audio,omitempty"`
	Video     *Media    `json:"video,omitempty"`
	Reaction  *Reaction `json:"reaction,omitempty"`
}

type Context struct {
	From string `json:"from"`
	ID   string `json:"id"`
}

type Text struct {
	Body string `json:"body"`
}

type Media struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type Reaction struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

// first returns the first message and its metadata, if any.
func (w Webhook) first() (Message, Metadata, bool) {
	for _, e := range w.Entry {
		for _, c := range e.Changes {
			if len(c.Value.Messages) > 0 {
				return c.Value.Messages[0], c.Value.Metadata, true
			}
		}
	}
	return Message{}, Metadata{}, false
}

type mediaInfo struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

func (a *Adapter) normalize(ctx context.Context, msg Message) (bot.ConversationEvent, error) {
	event := bot.ConversationEvent{Kind: bot.KindMessage}
	switch msg.Type {
	case "text":
		if msg.Text != nil {
			event.Text = msg.Text.Body
		}
	case "reaction":
		if msg.Reaction == nil {
			return event, fmt.Errorf("reaction message without reaction")
		}
		event.Kind = bot.KindReaction
		event.OnMessageID = msg.Reaction.MessageID
		event.Reaction = msg.Reaction.Emoji
	case "image", "document", "audio", "video":
		media := msg.media()
		if media == nil {
			return event, fmt.Errorf("%s message without media", msg.Type)
		}
		att, err := a.download(ctx, media)
		if err != nil {
			return event, err
		}
		event.Text = media.Caption
		event.Attachments = []bot.MediaAttachment{att}
	default:
		a.Logger().Debug().Str("type", msg.Type).Msg("Ignoring unsupported WhatsApp message type")
	}
	return event, nil
}

func (m Message) media() *Media {
	switch m.Type {
	case "image":
		return m.Image
	case "document":
		return m.Document
	case "audio":
		return m.Audio
	case "video":
		return m.Video
	}
	return nil
}

// download resolves a media id to its URL and fetches it.
func (a *Adapter) download(ctx context.Context, media *Media) (bot.MediaAttachment, error) {
	var info mediaInfo
	if err := a.client.Get(ctx, "/"+media.ID, &info); err != nil {
		return bot.MediaAttachment{}, fmt.Errorf("resolve media %s: %w", media.ID, err)
	}
	data, err := a.client.Download(ctx, info.URL)
	if err != nil {
		return bot.MediaAttachment{}, err
	}
	mimeType := media.MimeType
	if mimeType == "" {
		mimeType = info.MimeType
	}
	return bot.Inline(mimeType, base64.StdEncoding.EncodeToString(data), media.Caption), nil
}
