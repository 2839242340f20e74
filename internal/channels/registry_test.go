package channels

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liteclaw/abstractbot/internal/bot"
	"github.com/liteclaw/abstractbot/internal/bouncer"
)

type fakeChannel struct {
	*BaseChannel
	path     string
	startErr error
}

func newFake(id, path string, handler bot.TaskHandler) *fakeChannel {
	return &fakeChannel{
		BaseChannel: NewBaseChannel(id, id, ChannelTypeWebsocket, handler, zerolog.Nop()),
		path:        path,
	}
}

func (f *fakeChannel) Endpoints() []bouncer.Endpoint {
	return []bouncer.Endpoint{{Name: f.ID(), Predicate: bouncer.Route(http.MethodPost, f.path)}}
}

func (f *fakeChannel) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.SetRunning(true, "webhook")
	return nil
}

func (f *fakeChannel) Stop(context.Context) error {
	f.SetRunning(false, "")
	return nil
}

func TestRegistryKeepsOrder(t *testing.T) {
	logger := zerolog.Nop()
	r := NewRegistry(&logger)
	require.NoError(t, r.Register(newFake("b", "/b", nil)))
	require.NoError(t, r.Register(newFake("a", "/a", nil)))

	eps := r.Endpoints()
	require.Len(t, eps, 2)
	assert.Equal(t, "b", eps[0].Name)
	assert.Equal(t, "a", eps[1].Name)

	err := r.Register(newFake("a", "/other", nil))
	assert.Error(t, err)
}

func TestRegistryStartStop(t *testing.T) {
	logger := zerolog.Nop()
	r := NewRegistry(&logger)
	ok := newFake("ok", "/ok", nil)
	broken := newFake("broken", "/broken", nil)
	broken.startErr = errors.New("bad token")
	require.NoError(t, r.Register(ok))
	require.NoError(t, r.Register(broken))

	require.NoError(t, r.StartAll(context.Background()))
	statuses := r.Status()
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Running)
	assert.Equal(t, "webhook", statuses[0].Mode)
	assert.False(t, statuses[1].Running)

	require.NoError(t, r.StopAll(context.Background()))
	assert.False(t, ok.IsRunning())
	assert.NotNil(t, ok.State().LastStopAt)
}

func TestDispatchBindsCapabilities(t *testing.T) {
	var gotUser string
	var gotEvent bot.ConversationEvent
	ch := newFake("x", "/x", func(ctx context.Context, e bot.ConversationEvent) error {
		var err error
		gotUser, err = bot.UserID(ctx)
		if err != nil {
			return err
		}
		gotEvent, err = bot.LastEvent(ctx)
		return err
	})

	event := bot.ConversationEvent{Kind: bot.KindMessage, Text: "hi"}
	err := ch.Dispatch(context.Background(), bot.WithUserID("42"), event)

	require.NoError(t, err)
	assert.Equal(t, "42", gotUser)
	assert.Equal(t, event, gotEvent)
	assert.Equal(t, int64(1), ch.State().MessageCount)
	assert.NotNil(t, ch.State().LastInboundAt)
}

func TestDispatchRecordsFailures(t *testing.T) {
	ch := newFake("x", "/x", func(context.Context, bot.ConversationEvent) error {
		return errors.New("boom")
	})

	err := ch.Dispatch(context.Background(), bot.WithUserID("1"), bot.ConversationEvent{Kind: bot.KindMessage})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, "boom", ch.State().LastError)

	err = ch.Dispatch(context.Background(), bot.WithUserID("1"), bot.ConversationEvent{Kind: bot.KindEdit})
	assert.Error(t, err)
}

func TestOutboundRecords(t *testing.T) {
	ch := newFake("x", "/x", nil)

	id, err := Outbound(ch.BaseChannel, func() (string, error) { return "m1", nil })
	require.NoError(t, err)
	assert.Equal(t, "m1", id)
	assert.NotNil(t, ch.State().LastOutboundAt)

	_, err = Outbound(ch.BaseChannel, func() (string, error) { return "", errors.New("down") })
	assert.Error(t, err)
	assert.Equal(t, "down", ch.State().LastError)
}

type routedChannel struct {
	*fakeChannel
}

func (r routedChannel) Routes() []bouncer.Option {
	return []bouncer.Option{bouncer.WithRoute(http.MethodGet, "/ws", nil)}
}

func TestRegistryCollectsRoutes(t *testing.T) {
	logger := zerolog.Nop()
	r := NewRegistry(&logger)
	require.NoError(t, r.Register(newFake("plain", "/p", nil)))
	require.NoError(t, r.Register(routedChannel{newFake("ws", "/w", nil)}))

	assert.Len(t, r.Routes(), 1)
}
