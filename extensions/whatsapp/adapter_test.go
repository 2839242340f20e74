package whatsapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liteclaw/abstractbot/internal/bot"
	"github.com/liteclaw/abstractbot/internal/bouncer"
	testhelpers "github.com/liteclaw/abstractbot/test/helpers"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const sent = `{"messaging_product":"whatsapp","messages":[{"id":"wamid.out"}]}`

func newTestAdapter(t *testing.T, handler bot.TaskHandler) (*Adapter, *testhelpers.MockServer) {
	t.Helper()
	ms := testhelpers.NewMockServer()
	t.Cleanup(ms.Close)
	ms.HandleJSON(http.MethodPost, "/555/messages", http.StatusOK, sent)

	a := New(&Config{
		AccessToken:   "token",
		PhoneNumberID: "555",
		VerifyToken:   "verify",
		APIBase:       ms.URL,
		RetryWait:     time.Millisecond,
	}, handler, zerolog.Nop())
	return a, ms
}

func webhookWith(msg string) Webhook {
	var w Webhook
	raw := `{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":{
		"messaging_product":"whatsapp",
		"metadata":{"display_phone_number":"15550001111","phone_number_id":"555"},
		"messages":[` + msg + `]}}]}]}`
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		panic(err)
	}
	return w
}

func sentBodies(t *testing.T, ms *testhelpers.MockServer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, r := range ms.RequestsTo("/555/messages") {
		var m map[string]any
		require.NoError(t, json.Unmarshal(r.Body, &m))
		out = append(out, m)
	}
	return out
}

func TestTextMessageReply(t *testing.T) {
	var got bot.ConversationEvent
	a, ms := newTestAdapter(t, func(ctx context.Context, e bot.ConversationEvent) error {
		got = e
		user, err := bot.UserID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "972500000000", user)
		assert.Equal(t, "wamid.in", bot.MessageID(ctx))
		assert.Equal(t, "wamid.prev", bot.ReferenceID(ctx))
		assert.Equal(t, "15550001111", bot.BotPhone(ctx))
		medium, _ := bot.Medium(ctx)
		assert.Equal(t, "whatsapp", medium)

		id, err := bot.Reply(ctx, "<b>Bold</b> reply")
		assert.Equal(t, "wamid.out", id)
		return err
	})

	_, err := a.HandleWebhook(context.Background(), webhookWith(`{
		"from":"972500000000","id":"wamid.in","timestamp":"1","type":"text",
		"context":{"from":"15550001111","id":"wamid.prev"},
		"text":{"body":"hello"}}`))
	require.NoError(t, err)

	assert.Equal(t, "hello", got.Text)
	bodies := sentBodies(t, ms)
	require.Len(t, bodies, 1)
	assert.Equal(t, "text", bodies[0]["type"])
	assert.Equal(t, "972500000000", bodies[0]["to"])
	assert.Equal(t, "*Bold* reply", bodies[0]["text"].(map[string]any)["body"])
	assert.Equal(t, "Bearer token", ms.RequestsTo("/555/messages")[0].Headers.Get("Authorization"))
}

func TestReactionEvent(t *testing.T) {
	var got bot.ConversationEvent
	a, _ := newTestAdapter(t, func(_ context.Context, e bot.ConversationEvent) error {
		got = e
		return nil
	})

	_, err := a.HandleWebhook(context.Background(), webhookWith(`{
		"from":"1","id":"wamid.r","type":"reaction",
		"reaction":{"message_id":"wamid.target","emoji":"👍"}}`))
	require.NoError(t, err)

	assert.Equal(t, bot.KindReaction, got.Kind)
	assert.Equal(t, "wamid.target", got.OnMessageID)
	assert.Equal(t, "👍", got.Reaction)
}

func TestImageIsDownloadedInline(t *testing.T) {
	var got bot.ConversationEvent
	a, ms := newTestAdapter(t, func(_ context.Context, e bot.ConversationEvent) error {
		got = e
		return nil
	})
	ms.HandleJSON(http.MethodGet, "/media-1", http.StatusOK, `{"url":"`+ms.URL+`/files/media-1","mime_type":"image/jpeg"}`)
	ms.HandleFunc(http.MethodGet, "/files/media-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jpeg"))
	})

	_, err := a.HandleWebhook(context.Background(), webhookWith(`{
		"from":"1","id":"wamid.i","type":"image",
		"image":{"id":"media-1","mime_type":"image/jpeg","caption":"look"}}`))
	require.NoError(t, err)

	require.Len(t, got.Attachments, 1)
	assert.Equal(t, bot.Inline("image/jpeg", "anBlZw==", "look"), got.Attachments[0])
	assert.Equal(t, "look", got.Text)
	files := ms.RequestsTo("/files/media-1")
	require.Len(t, files, 1)
	assert.Equal(t, "Bearer token", files[0].Headers.Get("Authorization"))
}

func TestStatusNotificationIgnored(t *testing.T) {
	called := false
	a, _ := newTestAdapter(t, func(context.Context, bot.ConversationEvent) error {
		called = true
		return nil
	})

	var w Webhook
	require.NoError(t, json.Unmarshal([]byte(`{"entry":[{"changes":[{"value":{"statuses":[{"id":"x","status":"read"}]}}]}]}`), &w))
	_, err := a.HandleWebhook(context.Background(), w)
	require.NoError(t, err)
	assert.False(t, called)
}

func TestOutboundCapabilities(t *testing.T) {
	a, ms := newTestAdapter(t, nil)
	ctx := a.Override("42", "wamid.in").Apply(context.Background())

	require.NoError(t, bot.SendFile(ctx, "https://example.com/report.pdf"))
	_, err := bot.ReplyImage(ctx, bot.ImageReply{Link: "https://example.com/a.png", Caption: "<i>hi</i>"})
	require.NoError(t, err)
	require.NoError(t, bot.Typing(ctx))
	stop, err := bot.Spinner(ctx, "working")
	require.NoError(t, err)
	require.NoError(t, stop(ctx))

	bodies := sentBodies(t, ms)
	require.Len(t, bodies, 4)
	assert.Equal(t, map[string]any{"link": "https://example.com/report.pdf"}, bodies[0]["document"])
	assert.Equal(t, map[string]any{"link": "https://example.com/a.png", "caption": "_hi_"}, bodies[1]["image"])
	assert.Equal(t, "read", bodies[2]["status"])
	assert.Equal(t, "wamid.in", bodies[2]["message_id"])
	assert.Equal(t, "working", bodies[3]["text"].(map[string]any)["body"])
}

func TestImageDataIsUploaded(t *testing.T) {
	a, ms := newTestAdapter(t, nil)
	ms.HandleJSON(http.MethodPost, "/555/media", http.StatusOK, `{"id":"up-1"}`)
	ctx := a.Override("42", "").Apply(context.Background())

	_, err := bot.ReplyImage(ctx, bot.ImageReply{Data: "data:image/png;base64,iVBO"})
	require.NoError(t, err)

	uploads := ms.RequestsTo("/555/media")
	require.Len(t, uploads, 1)
	assert.True(t, strings.Contains(string(uploads[0].Body), "image/png"))
	bodies := sentBodies(t, ms)
	require.Len(t, bodies, 1)
	assert.Equal(t, map[string]any{"id": "up-1"}, bodies[0]["image"])
}

func TestSendErrorRecorded(t *testing.T) {
	a, ms := newTestAdapter(t, nil)
	ms.HandleJSON(http.MethodPost, "/555/messages", http.StatusBadRequest,
		`{"error":{"message":"Recipient phone number not in allowed list","code":131030}}`)
	ctx := a.Override("42", "").Apply(context.Background())

	_, err := bot.Reply(ctx, "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowed list")
	assert.Contains(t, a.State().LastError, "allowed list")
}

func TestVerificationEndpoint(t *testing.T) {
	a, _ := newTestAdapter(t, nil)
	s := bouncer.New(&bouncer.Config{}, a.Endpoints(), bouncer.WithLogger(zerolog.Nop()))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/whatsapp?hub.mode=subscribe&hub.verify_token=verify&hub.challenge=c123", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c123", rec.Body.String())

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=c123", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartRequiresCredentials(t *testing.T) {
	a := New(&Config{}, nil, zerolog.Nop())
	assert.Error(t, a.Start(context.Background()))

	b, _ := newTestAdapter(t, nil)
	require.NoError(t, b.Start(context.Background()))
	assert.True(t, b.IsRunning())
	require.NoError(t, b.Stop(context.Background()))
	assert.False(t, b.IsRunning())
}
