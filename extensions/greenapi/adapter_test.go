package greenapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liteclaw/abstractbot/internal/bot"
	testhelpers "github.com/liteclaw/abstractbot/test/helpers"
)

const sendPath = "/waInstance1101/sendMessage/tok"

func newTestAdapter(t *testing.T, handler bot.TaskHandler) (*Adapter, *testhelpers.MockServer) {
	t.Helper()
	ms := testhelpers.NewMockServer()
	t.Cleanup(ms.Close)
	ms.HandleJSON(http.MethodPost, sendPath, http.StatusOK, `{"idMessage":"BAE5"}`)

	a := New(&Config{
		IDInstance:       "1101",
		APITokenInstance: "tok",
		APIBase:          ms.URL,
		RetryWait:        time.Millisecond,
	}, handler, zerolog.Nop())
	return a, ms
}

func notification(t *testing.T, messageData string) Notification {
	t.Helper()
	var n Notification
	require.NoError(t, json.Unmarshal([]byte(`{
		"typeWebhook":"incomingMessageReceived",
		"instanceData":{"idInstance":1101,"wid":"972500000001@c.us","typeInstance":"whatsapp"},
		"idMessage":"F7A1","timestamp":1,
		"senderData":{"chatId":"972500000002@c.us","sender":"972500000002@c.us","senderName":"Bob"},
		"messageData":`+messageData+`}`), &n))
	return n
}

func TestTextMessage(t *testing.T) {
	type seen struct {
		event                   bot.ConversationEvent
		user, phone, id, medium string
		limit                   float64
	}
	var got seen
	a, ms := newTestAdapter(t, func(ctx context.Context, e bot.ConversationEvent) error {
		got.event = e
		got.user, _ = bot.UserID(ctx)
		got.medium, _ = bot.Medium(ctx)
		got.phone = bot.BotPhone(ctx)
		got.id = bot.MessageID(ctx)
		got.limit = bot.FileLimitMB(ctx)
		id, err := bot.Reply(ctx, "<b>ok</b>")
		assert.Equal(t, "BAE5", id)
		return err
	})

	_, err := a.HandleNotification(context.Background(), notification(t,
		`{"typeMessage":"textMessage","textMessageData":{"textMessage":"hi"}}`))
	require.NoError(t, err)

	assert.Equal(t, seen{
		event:  bot.ConversationEvent{Kind: bot.KindMessage, Text: "hi"},
		user:   "972500000002",
		phone:  "972500000001",
		id:     "F7A1",
		medium: "green-api",
		limit:  50,
	}, got)

	reqs := ms.RequestsTo(sendPath)
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"chatId":"972500000002@c.us","message":"*ok*"}`, string(reqs[0].Body))
}

func TestQuotedMessage(t *testing.T) {
	var text, ref string
	a, _ := newTestAdapter(t, func(ctx context.Context, e bot.ConversationEvent) error {
		text, ref = e.Text, bot.ReferenceID(ctx)
		return nil
	})

	_, err := a.HandleNotification(context.Background(), notification(t, `{
		"typeMessage":"quotedMessage",
		"extendedTextMessageData":{"text":"this one"},
		"quotedMessage":{"stanzaId":"BAE1","participant":"972500000001@c.us","typeMessage":"textMessage"}}`))
	require.NoError(t, err)
	assert.Equal(t, "this one", text)
	assert.Equal(t, "BAE1", ref)
}

func TestExtendedTextMessage(t *testing.T) {
	var text string
	a, _ := newTestAdapter(t, func(_ context.Context, e bot.ConversationEvent) error {
		text = e.Text
		return nil
	})

	_, err := a.HandleNotification(context.Background(), notification(t,
		`{"typeMessage":"extendedTextMessage","extendedTextMessageData":{"text":"see https://x.y"}}`))
	require.NoError(t, err)
	assert.Equal(t, "see https://x.y", text)
}

func TestOtherNotificationsIgnored(t *testing.T) {
	called := false
	a, _ := newTestAdapter(t, func(context.Context, bot.ConversationEvent) error {
		called = true
		return nil
	})
	n := notification(t, `{"typeMessage":"textMessage","textMessageData":{"textMessage":"hi"}}`)
	n.TypeWebhook = "outgoingMessageStatus"

	_, err := a.HandleNotification(context.Background(), n)
	require.NoError(t, err)
	assert.False(t, called)
}

func TestSendFileAndSpinner(t *testing.T) {
	a, ms := newTestAdapter(t, nil)
	ms.HandleJSON(http.MethodPost, "/waInstance1101/sendFileByUrl/tok", http.StatusOK, `{"idMessage":"F1"}`)
	ctx := a.Override("972500000002").Apply(context.Background())

	require.NoError(t, bot.SendFile(ctx, "https://cdn/v.mp4"))
	stop, err := bot.Spinner(ctx, "working")
	require.NoError(t, err)
	require.NoError(t, stop(ctx))

	files := ms.RequestsTo("/waInstance1101/sendFileByUrl/tok")
	require.Len(t, files, 1)
	assert.JSONEq(t, `{"chatId":"972500000002@c.us","urlFile":"https://cdn/v.mp4","fileName":"video.mp4","caption":""}`, string(files[0].Body))
	assert.Len(t, ms.RequestsTo(sendPath), 1)
}

func TestStartRegistersWebhook(t *testing.T) {
	ms := testhelpers.NewMockServer()
	defer ms.Close()
	ms.HandleJSON(http.MethodPost, "/waInstance1101/setSettings/tok", http.StatusOK, `{"saveSettings":true}`)

	a := New(&Config{
		IDInstance:       "1101",
		APITokenInstance: "tok",
		APIBase:          ms.URL,
		WebhookURL:       "https://bot.example.com/green-api",
	}, nil, zerolog.Nop())
	require.NoError(t, a.Start(context.Background()))

	reqs := ms.RequestsTo("/waInstance1101/setSettings/tok")
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"webhookUrl":"https://bot.example.com/green-api"}`, string(reqs[0].Body))
	assert.Equal(t, "webhook", a.State().Mode)
}

func TestProbe(t *testing.T) {
	a, ms := newTestAdapter(t, nil)
	ms.HandleJSON(http.MethodGet, "/waInstance1101/getStateInstance/tok", http.StatusOK, `{"stateInstance":"notAuthorized"}`)

	res, err := a.Probe(context.Background())
	require.Error(t, err)
	assert.False(t, res.OK)

	ms.HandleJSON(http.MethodGet, "/waInstance1101/getStateInstance/tok", http.StatusOK, `{"stateInstance":"authorized"}`)
	res, err = a.Probe(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK)
}
