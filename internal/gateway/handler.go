package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/liteclaw/abstractbot/internal/bot"
)

// EchoHandler is the task handler used when none is configured. It answers
// each message with its own text behind a spinner.
func EchoHandler(ctx context.Context, event bot.ConversationEvent) error {
	if event.Kind != bot.KindMessage {
		return nil
	}
	medium, _ := bot.Medium(ctx)
	userID, _ := bot.UserID(ctx)
	log.Debug().
		Str("medium", medium).
		Str("user", userID).
		Int("attachments", len(event.Attachments)).
		Msg("Echoing message")

	text := strings.TrimSpace(event.Text)
	if text == "" {
		text = fmt.Sprintf("%d attachment(s)", len(event.Attachments))
	}
	_, err := bot.WithSpinner(ctx, "thinking", func(ctx context.Context) (string, error) {
		return bot.Reply(ctx, "got: "+text)
	})
	return err
}
