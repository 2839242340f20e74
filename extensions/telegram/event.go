package telegram

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/liteclaw/abstractbot/internal/bot"
)

func (a *Adapter) normalize(ctx context.Context, msg *tgbotapi.Message) (bot.ConversationEvent, error) {
	event := bot.ConversationEvent{Kind: bot.KindMessage, Text: messageText(msg)}

	if len(msg.Photo) > 0 {
		largest := msg.Photo[0]
		for _, p := range msg.Photo[1:] {
			if p.Width > largest.Width {
				largest = p
			}
		}
		att, err := a.inlineFile(ctx, largest.FileID, "", msg.Caption)
		if err != nil {
			return event, fmt.Errorf("photo: %w", err)
		}
		event.Attachments = append(event.Attachments, att)
	}
	if msg.Voice != nil {
		att, err := a.inlineFile(ctx, msg.Voice.FileID, msg.Voice.MimeType, "")
		if err != nil {
			return event, fmt.Errorf("voice: %w", err)
		}
		event.Attachments = append(event.Attachments, att)
	}
	if msg.Document != nil {
		att, err := a.inlineFile(ctx, msg.Document.FileID, msg.Document.MimeType, "")
		if err != nil {
			return event, fmt.Errorf("document: %w", err)
		}
		event.Attachments = append(event.Attachments, att)
	}

	if c := msg.Contact; c != nil {
		event.Contact = &bot.Contact{Name: fullName(c), Phone: BestPhone(c)}
		if msg.From != nil && c.UserID != 0 && c.UserID == msg.From.ID {
			event.OwnPhone = c.PhoneNumber
		}
	}
	return event, nil
}

func (a *Adapter) inlineFile(ctx context.Context, fileID, mimeType, caption string) (bot.MediaAttachment, error) {
	data, filePath, err := a.client.Download(ctx, fileID)
	if err != nil {
		return bot.MediaAttachment{}, err
	}
	if mimeType == "" {
		mimeType = MimeFromPath(filePath)
	}
	return bot.Inline(mimeType, base64.StdEncoding.EncodeToString(data), caption), nil
}

// messageText is the message text followed by the targets of its
// text_link entities, one per line.
func messageText(msg *tgbotapi.Message) string {
	var parts []string
	if msg.Text != "" {
		parts = append(parts, msg.Text)
	}
	for _, e := range msg.Entities {
		if e.Type == "text_link" && e.URL != "" {
			parts = append(parts, e.URL)
		}
	}
	return strings.Join(parts, "\n")
}

func fullName(c *tgbotapi.Contact) string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// BestPhone picks the most useful number from a shared contact: a preferred
// mobile from the vCard, then any mobile, then the contact's own number.
func BestPhone(c *tgbotapi.Contact) string {
	if c.VCard == "" {
		return c.PhoneNumber
	}
	lines := strings.Split(strings.ReplaceAll(c.VCard, "\r\n", "\n"), "\n")
	for _, prefixes := range [][]string{
		{"TEL;CELL;PREF", "TEL;MOBILE;PREF"},
		{"TEL;CELL", "TEL;MOBILE"},
	} {
		for _, line := range lines {
			for _, p := range prefixes {
				if !strings.HasPrefix(line, p) {
					continue
				}
				if _, phone, ok := strings.Cut(line, ":"); ok {
					return phone
				}
			}
		}
	}
	return c.PhoneNumber
}
