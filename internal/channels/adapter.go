package channels

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/liteclaw/abstractbot/internal/bot"
	"github.com/liteclaw/abstractbot/internal/bouncer"
	"github.com/liteclaw/abstractbot/internal/inject"
)

// Channel is implemented by every platform adapter.
type Channel interface {
	ID() string
	Name() string
	Type() ChannelType

	// Endpoints are the webhook routes this channel serves.
	Endpoints() []bouncer.Endpoint

	// Start performs one-off setup such as webhook registration.
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
	State() RuntimeState
}

// Router is implemented by channels that need raw routes, such as a
// websocket upgrade, in addition to endpoints.
type Router interface {
	Routes() []bouncer.Option
}

// Prober is implemented by channels that can check their credentials.
type Prober interface {
	Probe(ctx context.Context) (*ProbeResult, error)
}

// BaseChannel provides the bookkeeping shared by all adapters.
type BaseChannel struct {
	id       string
	name     string
	chanType ChannelType
	logger   zerolog.Logger
	handler  bot.TaskHandler

	mu    sync.RWMutex
	state RuntimeState
}

// NewBaseChannel creates a new base channel.
func NewBaseChannel(id, name string, chanType ChannelType, handler bot.TaskHandler, logger zerolog.Logger) *BaseChannel {
	return &BaseChannel{
		id:       id,
		name:     name,
		chanType: chanType,
		handler:  handler,
		logger:   logger.With().Str("channel", id).Logger(),
	}
}

func (b *BaseChannel) ID() string        { return b.id }
func (b *BaseChannel) Name() string      { return b.name }
func (b *BaseChannel) Type() ChannelType { return b.chanType }

// Logger returns a pointer to the logger for calling pointer receiver methods.
func (b *BaseChannel) Logger() *zerolog.Logger { return &b.logger }

func (b *BaseChannel) State() RuntimeState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *BaseChannel) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state.Running
}

// SetRunning records a start or stop in the given mode.
func (b *BaseChannel) SetRunning(running bool, mode string) {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Running = running
	if running {
		b.state.Mode = mode
		b.state.LastStartAt = &now
		b.state.LastError = ""
	} else {
		b.state.LastStopAt = &now
	}
}

func (b *BaseChannel) RecordError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.LastError = err.Error()
}

func (b *BaseChannel) RecordOutbound() {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.LastOutboundAt = &now
}

func (b *BaseChannel) recordInbound() {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.LastInboundAt = &now
	b.state.MessageCount++
}

// Dispatch validates event and runs the task handler with the channel's
// capabilities bound. The event is also bound as the last event.
func (b *BaseChannel) Dispatch(ctx context.Context, caps inject.Override, event bot.ConversationEvent) error {
	b.recordInbound()
	if err := event.Validate(); err != nil {
		b.RecordError(err)
		return err
	}
	if b.handler == nil {
		b.logger.Warn().Msg("No task handler, dropping event")
		return nil
	}

	o := inject.Compose(caps, bot.WithLastEvent(event))
	err := o.Run(ctx, func(ctx context.Context) error {
		return b.handler(ctx, event)
	})
	if err != nil {
		b.RecordError(err)
		b.logger.Error().Err(err).Msg("Task handler failed")
	}
	return err
}

// Outbound wraps a capability so each successful call is recorded.
func Outbound[R any](b *BaseChannel, fn func() (R, error)) (R, error) {
	r, err := fn()
	if err != nil {
		b.RecordError(err)
		return r, err
	}
	b.RecordOutbound()
	return r, nil
}
