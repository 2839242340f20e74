package bot

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liteclaw/abstractbot/internal/inject"
)

func TestDefaults(t *testing.T) {
	ctx := context.Background()

	assert.True(t, math.IsInf(FileLimitMB(ctx), 1))
	assert.Equal(t, "", BotPhone(ctx))
	assert.Equal(t, "", URL(ctx))
	assert.Equal(t, "", MessageID(ctx))
	assert.Equal(t, "", ReferenceID(ctx))

	_, err := UserID(ctx)
	assert.ErrorIs(t, err, inject.ErrMissingContext)
	assert.EqualError(t, err, "no user ID in context")

	_, err = Medium(ctx)
	assert.ErrorIs(t, err, inject.ErrMissingContext)

	_, err = LastEvent(ctx)
	assert.ErrorIs(t, err, inject.ErrMissingContext)

	err = EditMessage(ctx, "1", "x")
	assert.ErrorIs(t, err, inject.ErrMissingContext)

	_, err = ReplyImage(ctx, ImageReply{Link: "https://example.com/a.png"})
	assert.ErrorIs(t, err, inject.ErrMissingContext)

	id, err := Reply(ctx, "hello")
	require.NoError(t, err)
	assert.Len(t, id, 36)

	require.NoError(t, SendFile(ctx, "https://example.com/v.mp4"))
	require.NoError(t, Typing(ctx))

	progress, err := ProgressBar(ctx, "uploading")
	require.NoError(t, err)
	require.NoError(t, progress(ctx, 0.5))

	stop, err := Spinner(ctx, "thinking")
	require.NoError(t, err)
	require.NoError(t, stop(ctx))
}

func TestOverridesReachCapabilities(t *testing.T) {
	var sent []string
	o := inject.Compose(
		WithMedium("test"),
		WithUserID("u1"),
		WithReply(func(_ context.Context, text string) (string, error) {
			sent = append(sent, text)
			return "m1", nil
		}),
	)

	ctx := o.Apply(context.Background())
	m, err := Medium(ctx)
	require.NoError(t, err)
	assert.Equal(t, "test", m)

	id, err := Reply(ctx, "hi")
	require.NoError(t, err)
	assert.Equal(t, "m1", id)
	assert.Equal(t, []string{"hi"}, sent)
}

type recordingSpinner struct {
	started, stopped int
}

func (r *recordingSpinner) spin(context.Context, string) (StopFunc, error) {
	r.started++
	return func(context.Context) error {
		r.stopped++
		return nil
	}, nil
}

func TestWithSpinnerStopsOnSuccess(t *testing.T) {
	rec := &recordingSpinner{}
	ctx := WithSpinnerFunc(rec.spin).Apply(context.Background())

	out, err := WithSpinner(ctx, "working", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, out)
	assert.Equal(t, 1, rec.started)
	assert.Equal(t, 1, rec.stopped)
}

func TestWithSpinnerStopsOnFailure(t *testing.T) {
	rec := &recordingSpinner{}
	ctx := WithSpinnerFunc(rec.spin).Apply(context.Background())
	boom := errors.New("boom")

	_, err := WithSpinner(ctx, "working", func(context.Context) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, rec.stopped)
}

func TestSpinnerWithText(t *testing.T) {
	var sent []string
	spin := SpinnerWithText(func(_ context.Context, text string) (string, error) {
		sent = append(sent, text)
		return "", nil
	})

	stop, err := spin(context.Background(), "loading")
	require.NoError(t, err)
	require.NoError(t, stop(context.Background()))
	assert.Equal(t, []string{"loading"}, sent)
}

func TestEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		event   ConversationEvent
		wantErr bool
	}{
		{"plain message", ConversationEvent{Kind: KindMessage, Text: "hi"}, false},
		{"edit needs id", ConversationEvent{Kind: KindEdit, Text: "hi"}, true},
		{"edit", ConversationEvent{Kind: KindEdit, Text: "hi", OnMessageID: "3"}, false},
		{"reaction", ConversationEvent{Kind: KindReaction, Reaction: "👍", OnMessageID: "3"}, false},
		{"unknown kind", ConversationEvent{Kind: "poke"}, true},
		{"inline attachment", ConversationEvent{Kind: KindMessage, Attachments: []MediaAttachment{Inline("image/png", "AAAA", "")}}, false},
		{"file attachment", ConversationEvent{Kind: KindMessage, Attachments: []MediaAttachment{RemoteFile("video/mp4", "https://x/y.mp4")}}, false},
		{"both payloads", ConversationEvent{Kind: KindMessage, Attachments: []MediaAttachment{{Kind: AttachmentFile, FileURI: "u", DataBase64: "d"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNilCapabilityFallsBack(t *testing.T) {
	ctx := WithReply(nil).Apply(context.Background())

	id, err := Reply(ctx, "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	err = EditMessage(WithEditMessage(nil).Apply(context.Background()), "1", "x")
	assert.ErrorIs(t, err, inject.ErrMissingContext)
}
