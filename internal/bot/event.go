// Package bot declares the capabilities a task handler can reach through its
// context, and the channel-independent shape of an inbound event.
package bot

import (
	"context"
	"errors"
	"fmt"
)

// EventKind discriminates ConversationEvent.
type EventKind string

const (
	KindMessage  EventKind = "message"
	KindEdit     EventKind = "edit"
	KindReaction EventKind = "reaction"
)

// AttachmentKind discriminates MediaAttachment.
type AttachmentKind string

const (
	AttachmentInline AttachmentKind = "inline"
	AttachmentFile   AttachmentKind = "file"
)

// MediaAttachment is either inline base64 data or a remote file URI.
type MediaAttachment struct {
	Kind       AttachmentKind `json:"kind"`
	MimeType   string         `json:"mimeType"`
	DataBase64 string         `json:"dataBase64,omitempty"`
	FileURI    string         `json:"fileUri,omitempty"`
	Caption    string         `json:"caption,omitempty"`
}

// Inline builds an inline attachment.
func Inline(mimeType, dataBase64, caption string) MediaAttachment {
	return MediaAttachment{Kind: AttachmentInline, MimeType: mimeType, DataBase64: dataBase64, Caption: caption}
}

// RemoteFile builds a file attachment.
func RemoteFile(mimeType, uri string) MediaAttachment {
	return MediaAttachment{Kind: AttachmentFile, MimeType: mimeType, FileURI: uri}
}

// Validate checks that exactly the payload matching Kind is present.
func (a MediaAttachment) Validate() error {
	switch a.Kind {
	case AttachmentInline:
		if a.DataBase64 == "" || a.FileURI != "" {
			return errors.New("inline attachment needs data and no file uri")
		}
	case AttachmentFile:
		if a.FileURI == "" || a.DataBase64 != "" {
			return errors.New("file attachment needs a file uri and no data")
		}
	default:
		return fmt.Errorf("unknown attachment kind %q", a.Kind)
	}
	return nil
}

// Contact is a shared contact card.
type Contact struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

// ConversationEvent is one normalized inbound interaction.
type ConversationEvent struct {
	Kind        EventKind         `json:"kind"`
	Text        string            `json:"text,omitempty"`
	Attachments []MediaAttachment `json:"attachments,omitempty"`
	Contact     *Contact          `json:"contact,omitempty"`
	// OwnPhone is set when the sender shared their own contact.
	OwnPhone string `json:"ownPhone,omitempty"`
	// OnMessageID is the edited or reacted-to message.
	OnMessageID string `json:"onMessageId,omitempty"`
	Reaction    string `json:"reaction,omitempty"`
}

// Validate checks the kind-specific fields.
func (e ConversationEvent) Validate() error {
	switch e.Kind {
	case KindMessage:
	case KindEdit:
		if e.OnMessageID == "" {
			return errors.New("edit event without message id")
		}
	case KindReaction:
		if e.OnMessageID == "" {
			return errors.New("reaction event without message id")
		}
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	for i, a := range e.Attachments {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("attachment %d: %w", i, err)
		}
	}
	return nil
}

// TaskHandler is the user-supplied business logic. Outbound capabilities are
// read from ctx.
type TaskHandler func(ctx context.Context, event ConversationEvent) error
