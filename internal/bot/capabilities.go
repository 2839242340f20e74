package bot

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/liteclaw/abstractbot/internal/inject"
)

type (
	// ReplyFunc sends text and returns the platform message id.
	ReplyFunc func(ctx context.Context, text string) (string, error)
	// ReplyImageFunc sends an image and returns the platform message id.
	ReplyImageFunc func(ctx context.Context, img ImageReply) (string, error)
	// SendFileFunc sends the file found at url.
	SendFileFunc func(ctx context.Context, url string) error
	// ProgressFunc reports progress in [0, 1].
	ProgressFunc func(ctx context.Context, fraction float64) error
	// ProgressBarFunc opens a progress indicator.
	ProgressBarFunc func(ctx context.Context, text string) (ProgressFunc, error)
	// StopFunc ends a spinner.
	StopFunc func(ctx context.Context) error
	// SpinnerFunc opens a spinner.
	SpinnerFunc func(ctx context.Context, text string) (StopFunc, error)
	// TypingFunc shows a typing indicator.
	TypingFunc func(ctx context.Context) error
	// EditMessageFunc replaces the text of a sent message.
	EditMessageFunc func(ctx context.Context, messageID, text string) error
)

// ImageReply is an image to send. Exactly one of Link or Data is expected;
// Data may be raw base64 or a data URL.
type ImageReply struct {
	Link    string `json:"link,omitempty"`
	Data    string `json:"data,omitempty"`
	Caption string `json:"caption,omitempty"`
}

var (
	fileLimitMB = inject.Declare("file limit", inject.Value(math.Inf(1)))
	botPhone    = inject.Declare("bot phone", inject.Value(""))
	requestURL  = inject.Declare("url", inject.Value(""))
	userID      = inject.Declare[string]("user ID", inject.Missing[string])
	messageID   = inject.Declare("message ID", inject.Value(""))
	referenceID = inject.Declare("reference ID", inject.Value(""))
	medium      = inject.Declare[string]("medium", inject.Missing[string])
	lastEvent   = inject.Declare[ConversationEvent]("last event", inject.Missing[ConversationEvent])

	reply       = inject.Declare("reply", inject.Value[ReplyFunc](logReply))
	replyImage  = inject.Declare[ReplyImageFunc]("reply image", inject.Missing[ReplyImageFunc])
	sendFile    = inject.Declare("send file", inject.Value[SendFileFunc](logSendFile))
	progressBar = inject.Declare("progress bar", inject.Value[ProgressBarFunc](logProgressBar))
	spinner     = inject.Declare("spinner", inject.Value[SpinnerFunc](logSpinner))
	typing      = inject.Declare("typing", inject.Value[TypingFunc](func(context.Context) error { return nil }))
	editMessage = inject.Declare[EditMessageFunc]("edit message", inject.Missing[EditMessageFunc])
)

func logReply(_ context.Context, text string) (string, error) {
	log.Info().Str("text", text).Msg("Reply")
	return uuid.NewString(), nil
}

func logSendFile(_ context.Context, url string) error {
	log.Info().Str("url", url).Msg("File")
	return nil
}

func logProgressBar(_ context.Context, text string) (ProgressFunc, error) {
	return func(_ context.Context, fraction float64) error {
		log.Info().Str("text", text).Int("percent", int(math.Round(fraction*100))).Msg("Progress")
		return nil
	}, nil
}

func logSpinner(_ context.Context, text string) (StopFunc, error) {
	log.Info().Str("text", text).Msg("Spinner")
	return func(context.Context) error { return nil }, nil
}

// FileLimitMB is the largest file, in megabytes, the channel accepts.
func FileLimitMB(ctx context.Context) float64 {
	v, _ := fileLimitMB.Read(ctx)
	return v
}

// WithFileLimitMB binds FileLimitMB.
func WithFileLimitMB(mb float64) inject.Override { return fileLimitMB.Bind(mb) }

// BotPhone is the phone number the bot answers on, if the channel has one.
func BotPhone(ctx context.Context) string {
	v, _ := botPhone.Read(ctx)
	return v
}

// WithBotPhone binds BotPhone.
func WithBotPhone(phone string) inject.Override { return botPhone.Bind(phone) }

// URL is the pathname of the request that produced the current task.
func URL(ctx context.Context) string {
	v, _ := requestURL.Read(ctx)
	return v
}

// WithURL binds URL.
func WithURL(url string) inject.Override { return requestURL.Bind(url) }

// UserID identifies the user who sent the current event.
func UserID(ctx context.Context) (string, error) { return userID.Read(ctx) }

// WithUserID binds UserID.
func WithUserID(id string) inject.Override { return userID.Bind(id) }

// MessageID is the platform id of the current inbound message.
func MessageID(ctx context.Context) string {
	v, _ := messageID.Read(ctx)
	return v
}

// WithMessageID binds MessageID.
func WithMessageID(id string) inject.Override { return messageID.Bind(id) }

// ReferenceID is the id of the message the user replied to, if any.
func ReferenceID(ctx context.Context) string {
	v, _ := referenceID.Read(ctx)
	return v
}

// WithReferenceID binds ReferenceID.
func WithReferenceID(id string) inject.Override { return referenceID.Bind(id) }

// Medium names the channel, e.g. "telegram".
func Medium(ctx context.Context) (string, error) { return medium.Read(ctx) }

// WithMedium binds Medium.
func WithMedium(name string) inject.Override { return medium.Bind(name) }

// LastEvent is the event being handled.
func LastEvent(ctx context.Context) (ConversationEvent, error) { return lastEvent.Read(ctx) }

// WithLastEvent binds LastEvent.
func WithLastEvent(e ConversationEvent) inject.Override { return lastEvent.Bind(e) }

// Reply sends text to the current user.
func Reply(ctx context.Context, text string) (string, error) {
	f, err := reply.Read(ctx)
	if err != nil {
		return "", err
	}
	return f(ctx, text)
}

// WithReply binds Reply.
func WithReply(f ReplyFunc) inject.Override { return reply.Bind(f) }

// ReplyImage sends an image to the current user.
func ReplyImage(ctx context.Context, img ImageReply) (string, error) {
	f, err := replyImage.Read(ctx)
	if err != nil {
		return "", err
	}
	return f(ctx, img)
}

// WithReplyImage binds ReplyImage.
func WithReplyImage(f ReplyImageFunc) inject.Override { return replyImage.Bind(f) }

// SendFile sends the file at url to the current user.
func SendFile(ctx context.Context, url string) error {
	f, err := sendFile.Read(ctx)
	if err != nil {
		return err
	}
	return f(ctx, url)
}

// WithSendFile binds SendFile.
func WithSendFile(f SendFileFunc) inject.Override { return sendFile.Bind(f) }

// ProgressBar opens a progress indicator labelled text.
func ProgressBar(ctx context.Context, text string) (ProgressFunc, error) {
	f, err := progressBar.Read(ctx)
	if err != nil {
		return nil, err
	}
	return f(ctx, text)
}

// WithProgressBar binds ProgressBar.
func WithProgressBar(f ProgressBarFunc) inject.Override { return progressBar.Bind(f) }

// Spinner opens a spinner labelled text. Prefer WithSpinner, which stops it.
func Spinner(ctx context.Context, text string) (StopFunc, error) {
	f, err := spinner.Read(ctx)
	if err != nil {
		return nil, err
	}
	return f(ctx, text)
}

// WithSpinnerFunc binds Spinner.
func WithSpinnerFunc(f SpinnerFunc) inject.Override { return spinner.Bind(f) }

// Typing shows a typing indicator to the current user.
func Typing(ctx context.Context) error {
	f, err := typing.Read(ctx)
	if err != nil {
		return err
	}
	return f(ctx)
}

// WithTyping binds Typing.
func WithTyping(f TypingFunc) inject.Override { return typing.Bind(f) }

// EditMessage replaces the text of message id.
func EditMessage(ctx context.Context, id, text string) error {
	f, err := editMessage.Read(ctx)
	if err != nil {
		return err
	}
	return f(ctx, id, text)
}

// WithEditMessage binds EditMessage.
func WithEditMessage(f EditMessageFunc) inject.Override { return editMessage.Bind(f) }

// WithSpinner shows a spinner while fn runs. The spinner is stopped whether
// or not fn fails; fn's error takes precedence over the stop error.
func WithSpinner[T any](ctx context.Context, text string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	stop, err := Spinner(ctx, text)
	if err != nil {
		return zero, err
	}
	result, fnErr := fn(ctx)
	stopErr := stop(ctx)
	if fnErr != nil {
		return zero, fnErr
	}
	if stopErr != nil {
		return zero, stopErr
	}
	return result, nil
}

// SpinnerWithText returns a spinner that posts text through reply and has a
// no-op stop. Channels without editable messages use it.
func SpinnerWithText(send ReplyFunc) SpinnerFunc {
	return func(ctx context.Context, text string) (StopFunc, error) {
		if _, err := send(ctx, text); err != nil {
			return nil, err
		}
		return func(context.Context) error { return nil }, nil
	}
}
