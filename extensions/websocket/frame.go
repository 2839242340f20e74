package websocket

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/liteclaw/abstractbot/internal/bot"
	"github.com/liteclaw/abstractbot/internal/channels"
	"github.com/liteclaw/abstractbot/internal/inject"
)

// Frame is one outbound message. Frames sharing a key update the same
// element on the client.
type Frame struct {
	Timestamp  int64    `json:"timestamp"`
	Key        string   `json:"key"`
	Text       string   `json:"text,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
	Spinner    *bool    `json:"spinner,omitempty"`
	URL        string   `json:"url,omitempty"`
}

// SendFunc delivers a frame to the current user.
type SendFunc func(ctx context.Context, f Frame) error

func newKey() string { return uuid.NewString() }

func nowMillis() int64 { return time.Now().UnixMilli() }

// Override binds frame-based capabilities on top of send. Replies, files,
// progress bars and spinners each get a fresh key. Progress is reported in
// percent.
func Override(send SendFunc, userID string) inject.Override {
	return inject.Compose(
		bot.WithMedium(string(channels.ChannelTypeWebsocket)),
		bot.WithFileLimitMB(math.Inf(1)),
		bot.WithUserID(userID),
		bot.WithProgressBar(func(_ context.Context, text string) (bot.ProgressFunc, error) {
			key := newKey()
			return func(ctx context.Context, fraction float64) error {
				pct := math.Round(fraction * 100)
				return send(ctx, Frame{Key: key, Text: text, Percentage: &pct})
			}, nil
		}),
		bot.WithSpinnerFunc(func(ctx context.Context, text string) (bot.StopFunc, error) {
			key := newKey()
			on, off := true, false
			if err := send(ctx, Frame{Key: key, Text: text, Spinner: &on}); err != nil {
				return nil, err
			}
			return func(ctx context.Context) error {
				return send(ctx, Frame{Key: key, Text: text, Spinner: &off})
			}, nil
		}),
		bot.WithReply(func(ctx context.Context, text string) (string, error) {
			key := newKey()
			return key, send(ctx, Frame{Key: key, Text: text})
		}),
		bot.WithSendFile(func(ctx context.Context, url string) error {
			return send(ctx, Frame{Key: newKey(), URL: url})
		}),
	)
}
