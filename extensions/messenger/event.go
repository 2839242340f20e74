package messenger

import "github.com/liteclaw/abstractbot/internal/bot"

// Webhook is the notification Messenger posts for page events.
type Webhook struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID        string      `json:"id"`
	Time      int64       `json:"time"`
	Messaging []Messaging `json:"messaging"`
}

type Messaging struct {
	Sender    Party     `json:"sender"`
	Recipient Party     `json:"recipient"`
	Timestamp int64     `json:"timestamp"`
	Message   *Message  `json:"message,omitempty"`
	Postback  *Postback `json:"postback,omitempty"`
}

type Party struct {
	ID string `json:"id"`
}

type Message struct {
	MID         string       `json:"mid"`
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	ReplyTo     *struct {
		MID string `json:"mid"`
	} `json:"reply_to,omitempty"`
}

type Attachment struct {
	Type    string `json:"type"`
	Payload struct {
		URL string `json:"url,omitempty"`
	} `json:"payload"`
}

type Postback struct {
	MID     string `json:"mid"`
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

var attachmentMimes = map[string]string{
	"image": "image/jpeg",
	"video": "video/mp4",
	"audio": "audio/mpeg",
	"file":  "application/octet-stream",
}

func (w Webhook) first() (Entry, Messaging, bool) {
	if len(w.Entry) == 0 || len(w.Entry[0].Messaging) == 0 {
		return Entry{}, Messaging{}, false
	}
	return w.Entry[0], w.Entry[0].Messaging[0], true
}

// text is the message text, or the postback payload for button taps.
func (m Messaging) text() string {
	if m.Message != nil && m.Message.Text != "" {
		return m.Message.Text
	}
	if m.Postback != nil {
		return m.Postback.Payload
	}
	return ""
}

func (m Messaging) messageID() string {
	if m.Message != nil {
		return m.Message.MID
	}
	return ""
}

func (m Messaging) attachments() []bot.MediaAttachment {
	if m.Message == nil {
		return nil
	}
	var out []bot.MediaAttachment
	for _, a := range m.Message.Attachments {
		mime, ok := attachmentMimes[a.Type]
		if !ok || a.Payload.URL == "" {
			continue
		}
		out = append(out, bot.RemoteFile(mime, a.Payload.URL))
	}
	return out
}
