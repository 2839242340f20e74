package messenger

import (
	"context"
	"fmt"
	"regexp"

	"github.com/liteclaw/abstractbot/internal/htmlfmt"
)

// MessagingType is the Send API messaging_type.
type MessagingType string

const (
	MessagingResponse   MessagingType = "RESPONSE"
	MessagingUpdate     MessagingType = "UPDATE"
	MessagingMessageTag MessagingType = "MESSAGE_TAG"
)

// Button is a button template entry.
type Button struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// QuickReply is a quick reply chip.
type QuickReply struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title,omitempty"`
	Payload     string `json:"payload,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type sendResult struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

var dataURLRe = regexp.MustCompile(`(?i)^data:(.+?);base64,(.+)$`)

// Sender sends to one recipient through one page.
type Sender struct {
	adapter   *Adapter
	pageID    string
	recipient string
}

// To returns a sender for recipient on the given page. An empty page id
// uses the page the access token belongs to.
func (a *Adapter) To(pageID, recipient string) *Sender {
	if pageID == "" {
		pageID = a.cfg.PageID
	}
	if pageID == "" {
		pageID = "me"
	}
	return &Sender{adapter: a, pageID: pageID, recipient: recipient}
}

func (s *Sender) post(ctx context.Context, body map[string]any) (string, error) {
	body["recipient"] = map[string]any{"id": s.recipient}
	var out sendResult
	if err := s.adapter.client.Post(ctx, "/"+s.pageID+"/messages", body, &out); err != nil {
		return "", fmt.Errorf("messenger send: %w", err)
	}
	return out.MessageID, nil
}

// Text sends HTML converted to Messenger markup.
func (s *Sender) Text(ctx context.Context, text string, kind MessagingType) (string, error) {
	return s.post(ctx, map[string]any{
		"messaging_type": kind,
		"message":        map[string]any{"text": htmlfmt.Messenger(text)},
	})
}

// ReplyTo sends text quoting messageID.
func (s *Sender) ReplyTo(ctx context.Context, messageID, text string) (string, error) {
	return s.post(ctx, map[string]any{
		"messaging_type": MessagingResponse,
		"message":        map[string]any{"text": htmlfmt.Messenger(text)},
		"reply_to":       map[string]any{"mid": messageID},
	})
}

// Image sends an image by link or base64 data with an optional caption.
// Raw base64 is assumed to be JPEG.
func (s *Sender) Image(ctx context.Context, link, data, caption string) (string, error) {
	var attachment map[string]any
	switch {
	case link != "":
		attachment = map[string]any{
			"type":    "image",
			"payload": map[string]any{"url": link, "is_reusable": true},
		}
	case data != "":
		url := data
		if !dataURLRe.MatchString(data) {
			url = "data:image/jpeg;base64," + data
		}
		attachment = map[string]any{
			"type":    "image",
			"payload": map[string]any{"url": url, "is_reusable": false},
		}
	default:
		return "", fmt.Errorf("image reply needs a link or data")
	}
	message := map[string]any{"attachment": attachment}
	if caption != "" {
		message["text"] = htmlfmt.Messenger(caption)
	}
	return s.post(ctx, map[string]any{"messaging_type": MessagingResponse, "message": message})
}

// Attachment sends a reusable attachment of type image, video, audio or
// file.
func (s *Sender) Attachment(ctx context.Context, url, kind string) (string, error) {
	if kind == "" {
		kind = "file"
	}
	return s.post(ctx, map[string]any{
		"messaging_type": MessagingResponse,
		"message": map[string]any{"attachment": map[string]any{
			"type":    kind,
			"payload": map[string]any{"url": url, "is_reusable": true},
		}},
	})
}

// Action sends a sender action: typing_on, typing_off or mark_seen.
func (s *Sender) Action(ctx context.Context, action string) error {
	_, err := s.post(ctx, map[string]any{"sender_action": action})
	return err
}

// Buttons sends a button template.
func (s *Sender) Buttons(ctx context.Context, text string, buttons []Button) (string, error) {
	return s.post(ctx, map[string]any{
		"messaging_type": MessagingResponse,
		"message": map[string]any{"attachment": map[string]any{
			"type": "template",
			"payload": map[string]any{
				"template_type": "button",
				"text":          htmlfmt.Messenger(text),
				"buttons":       buttons,
			},
		}},
	})
}

// QuickReplies sends text with quick reply chips.
func (s *Sender) QuickReplies(ctx context.Context, text string, replies []QuickReply) (string, error) {
	return s.post(ctx, map[string]any{
		"messaging_type": MessagingResponse,
		"message": map[string]any{
			"text":          htmlfmt.Messenger(text),
			"quick_replies": replies,
		},
	})
}
