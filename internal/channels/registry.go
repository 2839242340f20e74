package channels

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/liteclaw/abstractbot/internal/bouncer"
)

// Registry holds the configured channels in registration order. The order
// is the order their endpoints are offered to the bouncer.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	channels map[string]Channel
	logger   *zerolog.Logger
}

// NewRegistry creates a new channel registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	return &Registry{
		channels: make(map[string]Channel),
		logger:   logger,
	}
}

// Register adds a channel to the registry.
func (r *Registry) Register(ch Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := ch.ID()
	if _, exists := r.channels[id]; exists {
		return fmt.Errorf("channel %q already registered", id)
	}

	r.channels[id] = ch
	r.order = append(r.order, id)
	r.logger.Info().
		Str("channel", id).
		Str("type", string(ch.Type())).
		Int("endpoints", len(ch.Endpoints())).
		Msg("Channel registered")

	return nil
}

// Get returns a channel by ID.
func (r *Registry) Get(id string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// All returns the channels in registration order.
func (r *Registry) All() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Channel, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.channels[id])
	}
	return result
}

// Endpoints concatenates every channel's endpoints in registration order.
func (r *Registry) Endpoints() []bouncer.Endpoint {
	var eps []bouncer.Endpoint
	for _, ch := range r.All() {
		eps = append(eps, ch.Endpoints()...)
	}
	return eps
}

// Routes collects the raw routes of channels implementing Router.
func (r *Registry) Routes() []bouncer.Option {
	var opts []bouncer.Option
	for _, ch := range r.All() {
		if rt, ok := ch.(Router); ok {
			opts = append(opts, rt.Routes()...)
		}
	}
	return opts
}

// StartAll starts every channel. A failing channel is logged and skipped.
func (r *Registry) StartAll(ctx context.Context) error {
	for _, ch := range r.All() {
		if err := ch.Start(ctx); err != nil {
			r.logger.Error().
				Err(err).
				Str("channel", ch.ID()).
				Msg("Failed to start channel")
			// Continue trying to start others
			continue
		}
		r.logger.Info().Str("channel", ch.ID()).Msg("Channel started")
	}
	return nil
}

// StopAll stops every channel and returns the last error.
func (r *Registry) StopAll(ctx context.Context) error {
	var lastErr error
	for _, ch := range r.All() {
		if err := ch.Stop(ctx); err != nil {
			r.logger.Error().
				Err(err).
				Str("channel", ch.ID()).
				Msg("Failed to stop channel")
			lastErr = err
		}
	}
	return lastErr
}

// Status returns the status of all channels.
func (r *Registry) Status() []Status {
	channels := r.All()
	statuses := make([]Status, 0, len(channels))
	for _, ch := range channels {
		state := ch.State()
		statuses = append(statuses, Status{
			ID:            ch.ID(),
			Name:          ch.Name(),
			Type:          ch.Type(),
			Running:       state.Running,
			Mode:          state.Mode,
			Endpoints:     len(ch.Endpoints()),
			MessageCount:  state.MessageCount,
			LastError:     state.LastError,
			LastInboundAt: state.LastInboundAt,
		})
	}
	return statuses
}
